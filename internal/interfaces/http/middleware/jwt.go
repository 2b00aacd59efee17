package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
)

// Bearer context keys
const (
	ClaimsKey     = "jwt_claims"
	SubjectKey    = "jwt_subject"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenVerifier validates a raw bearer token
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

var _ TokenVerifier = (*auth.TokenService)(nil)

var errMissingBearer = errors.New("missing bearer token")

// BearerConfig holds configuration for BearerAuth
type BearerConfig struct {
	// Verifier is required
	Verifier TokenVerifier
	// SkipPaths are exact paths served without a token
	SkipPaths []string
	Logger    *zap.Logger
}

// BearerAuth verifies the Authorization header and stores the claims in
// the gin context for RequireScope and the handlers.
func BearerAuth(cfg BearerConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, log, errMissingBearer)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abortUnauthorized(c, log, errMissingBearer)
			return
		}

		claims, err := cfg.Verifier.Verify(token)
		if err != nil {
			abortUnauthorized(c, log, err)
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}

// RequireScope rejects requests whose token lacks scope. It expects
// BearerAuth earlier in the chain; without claims the request is rejected.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Authentication required", GetRequestID(c)))
			return
		}
		if !claims.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden, "Token lacks scope "+scope, GetRequestID(c)))
			return
		}
		c.Next()
	}
}

// GetClaims returns the verified claims, or nil when the request is anonymous
func GetClaims(c *gin.Context) *auth.Claims {
	if claims, ok := c.Value(ClaimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// GetSubject returns the token subject, or ""
func GetSubject(c *gin.Context) string {
	return c.GetString(SubjectKey)
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error) {
	log.Warn("Bearer authentication failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", GetRequestID(c)),
	)

	code := dto.ErrCodeTokenInvalid
	msg := "Invalid token"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, msg = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, errMissingBearer):
		code, msg = dto.ErrCodeUnauthorized, "Authentication required"
	}

	c.Header("WWW-Authenticate", `Bearer realm="ordersync"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, msg, GetRequestID(c)))
}
