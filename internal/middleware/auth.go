package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fleet/internal/domain"
	"fleet/internal/service"
)

const (
	identityKey = "fleet.identity"
	sessionKey  = "fleet.session"
	tokenKey    = "fleet.token"
)

// Authenticate resolves the bearer token to a session and stores the caller's
// identity in the context. Missing, invalid or logged-out tokens leave the
// caller anonymous; route guards decide what that means.
func Authenticate(sessions *service.SessionService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		c.Set(tokenKey, token)

		session, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, service.ErrInvalidToken) {
				logger.Error("failed to resolve session", "error", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
				return
			}
			c.Next()
			return
		}

		if session != nil {
			identity := session.Identity
			c.Set(sessionKey, session)
			c.Set(identityKey, &identity)
		}
		c.Next()
	}
}

// RequireRoles rejects anonymous callers with 401 and callers holding none of
// the roles with 403.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := service.Authorize(Identity(c), roles...)
		switch {
		case errors.Is(err, service.ErrNotAuthenticated):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case err != nil:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.Next()
		}
	}
}

// Identity returns the caller's identity, or nil for the anonymous caller.
func Identity(c *gin.Context) *domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*domain.Identity); ok {
			return id
		}
	}
	return nil
}

// Session returns the caller's live session, or nil.
func Session(c *gin.Context) *domain.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*domain.Session); ok {
			return s
		}
	}
	return nil
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) string {
	if v, ok := c.Get(tokenKey); ok {
		return v.(string)
	}
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
