package middleware

import (
	"context"  // Context for key lookups
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"walletledger/internal/apikey" // API key principals
	"walletledger/internal/domain" // Permission names
	"walletledger/internal/utils"  // JWT utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // User identifiers
	"github.com/sirupsen/logrus" // Logging
)

// Context keys set by Authenticate
const (
	ContextUserID      = "userID"
	ContextPermissions = "permissions"
	ContextAuthMethod  = "authMethod"
	ContextAPIKeyID    = "apiKeyID"

	AuthMethodJWT    = "jwt"
	AuthMethodAPIKey = "api_key"

	APIKeyHeader = "x-api-key"
)

// KeyAuthenticator resolves an API key to its principal
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, plain string) (*apikey.Principal, error)
}

// Authenticate accepts either an x-api-key header or a bearer JWT.
// JWT sessions hold every permission, API keys only the ones they were issued.
func Authenticate(secret string, keys KeyAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if plain := c.GetHeader(APIKeyHeader); plain != "" && keys != nil {
			p, err := keys.Authenticate(c.Request.Context(), plain)
			switch {
			case errors.Is(err, apikey.ErrKeyExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key has expired"})
				return
			case errors.Is(err, apikey.ErrInvalidKey):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
				return
			case err != nil:
				logrus.WithError(err).Error("API key lookup failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			c.Set(ContextUserID, p.UserID)           // Store userID in context
			c.Set(ContextPermissions, p.Permissions) // Issued scope only
			c.Set(ContextAuthMethod, AuthMethodAPIKey)
			c.Set(ContextAPIKeyID, p.KeyID)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string and parse it
		claims, err := utils.ParseJWT(tokenStr, secret)       // Parse the JWT token
		if err != nil {
			// If parsing fails, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		userID, err := claims.UserUUID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(ContextUserID, userID)                     // Store userID in context
		c.Set(ContextPermissions, domain.AllPermissions) // Sessions act with full rights
		c.Set(ContextAuthMethod, AuthMethodJWT)
		c.Next() // Proceed to the next handler
	}
}

// CurrentUserID returns the authenticated user, if any
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
