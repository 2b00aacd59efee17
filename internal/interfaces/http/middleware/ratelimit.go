package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/erp/ordersync/internal/interfaces/http/dto"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket. Clients are keyed by token
// subject when authenticated and by client IP otherwise.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastPrune time.Time
	now       func() time.Time
}

// NewRateLimiter allows perMinute requests per client with the given burst.
// Buckets idle for longer than idleTTL are forgotten.
func NewRateLimiter(perMinute float64, burst int, idleTTL time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*limiterEntry),
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// reserve takes one token for key and reports how long the caller must
// wait when none is available.
func (rl *RateLimiter) reserve(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.pruneLocked(now)

	entry, ok := rl.clients[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = entry
	}
	entry.lastSeen = now

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	if rl.idleTTL <= 0 || now.Sub(rl.lastPrune) < rl.idleTTL {
		return
	}
	rl.lastPrune = now
	for key, e := range rl.clients {
		if now.Sub(e.lastSeen) > rl.idleTTL {
			delete(rl.clients, key)
		}
	}
}

// Middleware returns the gin handler enforcing the limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetSubject(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		ok, wait := rl.reserve(key)
		if !ok {
			if wait > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited, "Too many sync requests", GetRequestID(c)))
			return
		}
		c.Next()
	}
}
