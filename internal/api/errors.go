package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"walletledger/internal/apikey"     // API key errors
	"walletledger/internal/identity"   // Login errors
	"walletledger/internal/ledger"     // Ledger errors
	"walletledger/internal/middleware" // Caller identity

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // User identifiers
	"github.com/sirupsen/logrus" // Logging library
)

// respondError maps a service error to its HTTP status and body
func respondError(c *gin.Context, err error) {
	var (
		vErr         *ledger.ValidationError
		insufficient *ledger.InsufficientBalanceError
		gwErr        *ledger.GatewayError
	)
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "field": vErr.Field})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Insufficient balance",
			"available": insufficient.Available,
			"required":  insufficient.Required,
			"shortfall": insufficient.Shortfall(),
		})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable, please try again"})
	case errors.Is(err, ledger.ErrSelfTransfer),
		errors.Is(err, ledger.ErrMalformedWebhook),
		errors.Is(err, apikey.ErrKeyLimitReached),
		errors.Is(err, apikey.ErrKeyNotExpired),
		errors.Is(err, apikey.ErrKeyRolledOver),
		errors.Is(err, apikey.ErrInvalidExpiry),
		errors.Is(err, apikey.ErrInvalidName),
		errors.Is(err, apikey.ErrInvalidScope):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidSignature),
		errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrInvalidGoogleToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrForbidden),
		errors.Is(err, apikey.ErrNotKeyOwner),
		errors.Is(err, identity.ErrEmailNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrRecipientNotFound),
		errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, apikey.ErrKeyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrConcurrentUpdate),
		errors.Is(err, identity.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// currentUser returns the authenticated caller or writes 401
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.CurrentUserID(c) // Get userID from context
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return userID, ok
}

// pagination reads page and page_size with the defaults and bounds of list endpoints
func pagination(c *gin.Context) (int, int) {
	page := 1                          // Default page number
	pageSize := ledger.DefaultPageSize // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	// Check and set page size within limits
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= ledger.MaxPageSize {
			pageSize = v // Set page size
		}
	}
	return page, pageSize
}
