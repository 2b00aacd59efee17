package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar registers a set of routes under the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be mounted by Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registrar on the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// RouteGroup is a prefix with its own middleware and routes
type RouteGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*RouteGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewRouteGroup creates a route group mounted at prefix
func NewRouteGroup(name, prefix string) *RouteGroup {
	return &RouteGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (g *RouteGroup) Use(middleware ...gin.HandlerFunc) *RouteGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// GET registers a GET route
func (g *RouteGroup) GET(path string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (g *RouteGroup) POST(path string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodPost, path, handlers)
}

func (g *RouteGroup) handle(method, path string, handlers []gin.HandlerFunc) *RouteGroup {
	g.routes = append(g.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return g
}

// Group creates a sub-group that inherits this group's middleware
func (g *RouteGroup) Group(name, prefix string) *RouteGroup {
	sub := NewRouteGroup(name, prefix)
	g.subgroups = append(g.subgroups, sub)
	return sub
}

// RegisterRoutes implements RouteRegistrar
func (g *RouteGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix)
	if len(g.middleware) > 0 {
		group.Use(g.middleware...)
	}
	for _, route := range g.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, sub := range g.subgroups {
		sub.RegisterRoutes(group)
	}
}

// Name returns the group name
func (g *RouteGroup) Name() string {
	return g.name
}

// Prefix returns the group prefix
func (g *RouteGroup) Prefix() string {
	return g.prefix
}
