package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DTADMI/gamehub-api/internal/identity"
	"github.com/DTADMI/gamehub-api/internal/service"
)

const identityKey = "identity"

// Auth resolves bearer tokens into caller identities.
type Auth struct {
	Auth *service.AuthService
}

// Identify attaches the caller's identity when a bearer token is present. A
// missing header leaves the caller anonymous; a present-but-invalid token is
// rejected outright rather than silently downgraded to guest.
func (m *Auth) Identify(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Bearer token required."})
		return
	}

	id, err := m.Auth.IdentityFromToken(c.Request.Context(), parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Invalid access token."})
		return
	}

	c.Set(identityKey, id)
	c.Next()
}

// RequireAuth aborts anonymous requests.
func (m *Auth) RequireAuth(c *gin.Context) {
	id, ok := GetIdentity(c)
	if !ok || !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}
	c.Next()
}

// RequireRole aborts requests whose identity lacks the role.
func (m *Auth) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok || !id.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "error_description": "Insufficient permissions."})
			return
		}
		c.Next()
	}
}

// GetIdentity exposes the resolved identity to handlers.
func GetIdentity(c *gin.Context) (identity.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return identity.Guest(), false
	}
	id, ok := value.(identity.Identity)
	if !ok {
		return identity.Guest(), false
	}
	return id, true
}
