package api

import (
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"     // Time durations

	"walletledger/internal/domain" // Importing domain models
	"walletledger/internal/ledger" // Wallet ledger
	"walletledger/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/google/uuid"       // Identifiers
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

const adminCacheTTL = 60 * time.Second

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID     uuid.UUID      `json:"id"`     // User ID
	Email  string         `json:"email"`  // Email
	Name   string         `json:"name"`   // Display name
	Role   string         `json:"role"`   // User role
	Wallet *domain.Wallet `json:"wallet"` // Associated wallet
}

// adminPage is the cached shape of admin list responses
type adminPage[T any] struct {
	Items      []T   `json:"items"`       // Page content
	Page       int   `json:"page"`        // Current page
	PageSize   int   `json:"page_size"`   // Page size
	Total      int64 `json:"total"`       // Total number of rows
	TotalPages int   `json:"total_pages"` // Total pages
}

// ListUsersHandler returns all users with their wallet info
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := pagination(c) // Parse pagination parameters
		// Create a cache key based on pagination parameters
		cacheKey := "admin:users:page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
		var cached adminPage[UserAdminResponse]
		// If cached data found, return it
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"users": cached.Items, "page": cached.Page, "page_size": cached.PageSize, "total": cached.Total, "total_pages": cached.TotalPages, "cached": true})
			return
		}
		var total int64 // Total user count
		if err := db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"}) // Return on error
			return
		}
		var users []domain.User // Slice to hold users
		// Preload Wallet relation, apply offset and limit for pagination
		if err := db.WithContext(ctx).Preload("Wallet").Order("created_at").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"}) // Return on error
			return
		}
		resp := adminPage[UserAdminResponse]{
			Items:      make([]UserAdminResponse, len(users)),
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: (int(total) + pageSize - 1) / pageSize, // Calculate total pages
		}
		// Map users to response format
		for i, u := range users {
			resp.Items[i] = UserAdminResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Wallet: u.Wallet}
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, adminCacheTTL)
		c.JSON(http.StatusOK, gin.H{"users": resp.Items, "page": resp.Page, "page_size": resp.PageSize, "total": resp.Total, "total_pages": resp.TotalPages, "cached": false})
	}
}

// ListTransactionsHandler returns all ledger entries, with optional filtering by wallet, type, status or date
func ListTransactionsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := pagination(c) // Parse pagination parameters
		// Build cache key from all query params
		keyParts := []string{"page=" + strconv.Itoa(page), "page_size=" + strconv.Itoa(pageSize)}
		for _, k := range []string{"wallet_id", "type", "status", "from", "to"} {
			keyParts = append(keyParts, k+"="+c.Query(k)) // Append key-value pair
		}
		cacheKey := "admin:txs:" + strings.Join(keyParts, ":")
		var cached adminPage[domain.Transaction]
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"transactions": cached.Items, "page": cached.Page, "page_size": cached.PageSize, "total": cached.Total, "total_pages": cached.TotalPages, "cached": true})
			return
		}

		query := db.WithContext(ctx).Model(&domain.Transaction{}) // Start building the query
		if walletID := c.Query("wallet_id"); walletID != "" {
			query = query.Where("wallet_id = ?", walletID) // Filter by wallet
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", txType) // Filter by transaction type
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status) // Filter by status
		}
		if from := c.Query("from"); from != "" {
			t, err := time.Parse(time.RFC3339, from)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
				return
			}
			query = query.Where("created_at >= ?", t.UTC()) // Filter by start date
		}
		if to := c.Query("to"); to != "" {
			t, err := time.Parse(time.RFC3339, to)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
				return
			}
			query = query.Where("created_at <= ?", t.UTC()) // Filter by end date
		}
		var total int64 // Total transaction count
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		var txs []domain.Transaction // Slice to hold transactions
		if err := query.Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&txs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		resp := adminPage[domain.Transaction]{Items: txs, Page: page, PageSize: pageSize, Total: total, TotalPages: (int(total) + pageSize - 1) / pageSize}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, adminCacheTTL)
		c.JSON(http.StatusOK, gin.H{"transactions": resp.Items, "page": resp.Page, "page_size": resp.PageSize, "total": resp.Total, "total_pages": resp.TotalPages, "cached": false})
	}
}

// PendingDepositsHandler lists deposits still waiting for gateway confirmation
func PendingDepositsHandler(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		olderThan := time.Duration(0)
		if v := c.Query("older_than"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "older_than must be a duration such as 30m"})
				return
			}
			olderThan = d
		}
		_, limit := pagination(c)
		deposits, err := l.PendingDeposits(c.Request.Context(), olderThan, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deposits": deposits, "count": len(deposits)})
	}
}

// ReconcileHandler runs one sweep over stale pending deposits
func ReconcileHandler(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := l.SweepPendingDeposits(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		logrus.WithField("report", report).Info("Manual reconciliation finished")
		c.JSON(http.StatusOK, report)
	}
}
