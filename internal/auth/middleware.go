package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CookieName carries the session token for browser clients.
const CookieName = "portal_session"

const claimsKey = "claims"

// Revoker tracks logged-out sessions.
type Revoker interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	Revoked(ctx context.Context, sessionID string) (bool, error)
}

// Sessions attaches the caller's claims to the context when a valid bearer
// token or session cookie is present. It never rejects a request by itself.
func Sessions(signingKey, issuer string, revoker Revoker, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearer(c.GetHeader("Authorization"))
		if tokenStr == "" {
			tokenStr, _ = c.Cookie(CookieName)
		}
		if tokenStr == "" {
			c.Next()
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.Next()
			return
		}
		if revoker != nil {
			revoked, err := revoker.Revoked(c.Request.Context(), claims.ID)
			if err != nil {
				// redis down: sessions stay valid until they expire
				log.Warn("revocation check failed", zap.Error(err))
			}
			if revoked {
				c.Next()
				return
			}
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects callers without a session or with a role outside roles.
// An empty roles list accepts any logged-in user.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := FromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		if len(roles) > 0 && !contains(roles, claims.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// FromContext returns the claims set by Sessions.
func FromContext(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

func bearer(header string) string {
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
