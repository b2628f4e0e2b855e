package api

import (
	"net/http" // HTTP status codes

	"walletledger/internal/apikey" // API key management

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/google/uuid"   // Key identifiers
)

// CreateKeyRequest represents a request for a new API key
type CreateKeyRequest struct {
	Name        string   `json:"name" binding:"required"`        // Label shown to the owner
	Permissions []string `json:"permissions" binding:"required"` // Subset of deposit, transfer, read
	Expiry      string   `json:"expiry" binding:"required"`      // 1H, 1D, 1M or 1Y
}

// RolloverKeyRequest represents a request to replace an expired key
type RolloverKeyRequest struct {
	ExpiredKeyID string `json:"expired_key_id" binding:"required"` // Key to replace
	Expiry       string `json:"expiry" binding:"required"`         // Expiry of the new key
}

// CreateKeyHandler issues a new API key to the caller
func CreateKeyHandler(keys *apikey.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req CreateKeyRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		issued, err := keys.Create(c.Request.Context(), userID, req.Name, req.Permissions, req.Expiry)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, issued) // The plaintext key is only ever shown here
	}
}

// RolloverKeyHandler replaces one of the caller's expired keys
func RolloverKeyHandler(keys *apikey.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req RolloverKeyRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		oldID, err := uuid.Parse(req.ExpiredKeyID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expired_key_id must be a UUID"})
			return
		}
		issued, err := keys.Rollover(c.Request.Context(), userID, oldID, req.Expiry)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, issued)
	}
}
