package middleware

import (
	"net/http" // HTTP status codes

	"walletledger/internal/domain" // Permission checks

	"github.com/gin-gonic/gin" // Gin web framework
)

// RequirePermission lets the request through only if the caller holds permission
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get(ContextPermissions)
		perms, _ := v.([]string)
		if domain.HasPermission(perms, permission) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Missing permission: " + permission})
	}
}

// SessionOnly rejects API key callers, for routes that manage keys themselves
func SessionOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextAuthMethod) != AuthMethodJWT {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "This endpoint requires a user session"})
			return
		}
		c.Next()
	}
}
