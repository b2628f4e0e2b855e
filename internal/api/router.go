package api

import (
	"context"  // Health check deadlines
	"net/http" // HTTP status codes
	"time"     // Rate limit windows

	"walletledger/internal/apikey"     // API key management
	"walletledger/internal/config"     // Configuration
	"walletledger/internal/domain"     // Permission names
	"walletledger/internal/identity"   // Identity resolution
	"walletledger/internal/ledger"     // Wallet ledger
	"walletledger/internal/metrics"    // Prometheus metrics
	"walletledger/internal/middleware" // Custom middleware

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps carries everything the HTTP layer needs
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client // Optional, disables caching and rate limiting when nil
	Ledger   *ledger.Service
	Identity *identity.Service
	Keys     *apikey.Service
	Metrics  *metrics.Metrics // Optional
}

// NewRouter wires every route of the service
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.Metrics(d.Metrics))

	// Set trusted proxies for Gin
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.GET("/health", HealthHandler(d.DB, d.Redis)) // Liveness and dependency check
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler())) // Prometheus scrape endpoint
	}

	// The gateway calls the webhook with no credentials; the signature authenticates it
	r.POST("/wallet/paystack/webhook", PaystackWebhookHandler(d.Ledger))

	global := middleware.RateLimit(d.Redis, "global", cfg.RateLimitGlobal, time.Minute)

	// Auth routes
	authGroup := r.Group("/auth", global)
	authGroup.POST("/register", RegisterHandler(d.Identity))  // Registration endpoint
	authGroup.POST("/login", LoginHandler(d.Identity))        // Login endpoint
	authGroup.POST("/google", GoogleLoginHandler(d.Identity)) // Google sign-in endpoint

	authenticate := middleware.Authenticate(cfg.JWTSecret, d.Keys)

	// Wallet routes, reachable with a session or an API key holding the permission
	walletGroup := r.Group("/wallet", authenticate, global)
	read := middleware.RequirePermission(domain.PermissionRead)
	deposit := middleware.RequirePermission(domain.PermissionDeposit)
	walletGroup.GET("/balance", read, BalanceHandler(d.Ledger))                         // Balance endpoint
	walletGroup.GET("/transactions", read, GetTransactionHistoryHandler(d.Ledger))      // Transaction history endpoint
	walletGroup.GET("/resolve/:number", read, ResolveWalletHandler(d.Ledger))           // Wallet number lookup
	walletGroup.POST("/deposit", deposit, DepositHandler(d.Ledger))                     // Deposit endpoint
	walletGroup.GET("/deposit/:reference/status", read, DepositStatusHandler(d.Ledger)) // Deposit status endpoint
	walletGroup.POST("/transfer",
		middleware.RequirePermission(domain.PermissionTransfer),
		middleware.RateLimit(d.Redis, "transfers", cfg.RateLimitTransfers, time.Minute),
		TransferHandler(d.Ledger)) // Transfer endpoint

	// Key management requires a user session
	keyGroup := r.Group("/keys", authenticate, middleware.SessionOnly(), global)
	keyGroup.POST("/create", middleware.RateLimit(d.Redis, "keys", cfg.RateLimitKeys, time.Minute), CreateKeyHandler(d.Keys))
	keyGroup.POST("/rollover", RolloverKeyHandler(d.Keys))

	// Admin routes (session and admin role)
	adminGroup := r.Group("/admin", authenticate, middleware.SessionOnly(), middleware.AdminOnlyMiddleware(d.DB))
	adminGroup.GET("/users", ListUsersHandler(d.DB, d.Redis))               // List users endpoint
	adminGroup.GET("/transactions", ListTransactionsHandler(d.DB, d.Redis)) // List transactions endpoint
	adminGroup.GET("/deposits/pending", PendingDepositsHandler(d.Ledger))   // Deposits awaiting confirmation
	adminGroup.POST("/deposits/reconcile", ReconcileHandler(d.Ledger))      // Run one sweep now

	return r
}

// HealthHandler reports whether the database and Redis answer
func HealthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{"database": "ok"}
		healthy := true
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			healthy = false
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unavailable" // Reported, not fatal
			}
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"healthy": healthy, "checks": checks})
	}
}
