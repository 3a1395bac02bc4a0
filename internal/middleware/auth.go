// Package middleware provides Gin HTTP middleware for authentication, rate limiting,
// security headers, request logging and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → Security → BodyLimit → RateLimit → Auth → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attempts before any store work.
// Auth resolves the caller's identity; Audit reads it after the handler has run.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/component-request-system/crs/internal/auth"
)

const (
	// IdentityKey is the gin.Context key holding the caller's *auth.Identity
	IdentityKey = "identity"

	// UserIDKey and APIKeyIDKey expose the identity's IDs to rate limiting and audit
	UserIDKey   = "user_id"
	APIKeyIDKey = "api_key_id"
)

// KeyValidator resolves a plaintext API key to its owner. Unknown keys yield (nil, nil).
type KeyValidator interface {
	Validate(ctx context.Context, plaintext string) (*auth.Identity, error)
}

// RequireAPIKey rejects requests without a valid Bearer API key.
// A missing or malformed header is a 401, a well-formed but unknown key a 403.
func RequireAPIKey(keys KeyValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := auth.ExtractAPIKeyFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid authorization header",
			})
			return
		}

		identity, err := keys.Validate(c.Request.Context(), key)
		if err != nil {
			slog.Error("api key validation failed", "request_id", c.GetString(RequestIDKey), "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Authentication failed",
			})
			return
		}
		if identity == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// OptionalAPIKey attaches the caller's identity when a valid Bearer key is present.
// Missing, malformed and unknown keys are treated as anonymous; the request always continues.
func OptionalAPIKey(keys KeyValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := auth.ExtractAPIKeyFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.Next()
			return
		}

		identity, err := keys.Validate(c.Request.Context(), key)
		if err != nil {
			slog.Warn("optional api key validation failed, continuing anonymously",
				"request_id", c.GetString(RequestIDKey), "error", err)
		}
		if identity != nil {
			setIdentity(c, identity)
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, identity *auth.Identity) {
	c.Set(IdentityKey, identity)
	c.Set(UserIDKey, identity.UserID)
	c.Set(APIKeyIDKey, identity.APIKeyID)
}

// GetIdentity returns the identity set by RequireAPIKey or OptionalAPIKey, or nil
func GetIdentity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}
