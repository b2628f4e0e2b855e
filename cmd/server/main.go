package main

import (
	"context"   // context package is needed for Redis operations and shutdown
	"errors"    // Error matching
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal handling
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"walletledger/internal/api"      // Custom package for API handlers
	"walletledger/internal/apikey"   // Custom package for API keys
	"walletledger/internal/config"   // Custom package for configuration
	"walletledger/internal/db"       // Custom package for database access
	"walletledger/internal/gateway"  // Custom package for the payment gateway
	"walletledger/internal/identity" // Custom package for sign-in
	"walletledger/internal/ledger"   // Custom package for the wallet ledger
	"walletledger/internal/metrics"  // Custom package for Prometheus metrics

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{}) // Machine readable logs in production
	}
	if cfg.JWTSecret == "" || cfg.PaystackSecretKey == "" || cfg.APIKeySecret == "" {
		logrus.Fatal("JWT_SECRET, PAYSTACK_SECRET_KEY and API_KEY_SECRET must be set")
	}

	// Connect to the database
	database, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	paystack := gateway.NewPaystack(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.GatewayTimeout)
	opts := ledger.DefaultOptions()
	opts.MaxAmount = cfg.MaxAmount
	opts.GatewayTimeout = cfg.GatewayTimeout
	opts.PendingDepositTTL = cfg.PendingDepositTTL
	opts.PendingDepositMaxAge = cfg.PendingDepositMaxAge
	wallets := ledger.NewService(database, paystack, gateway.NewWebhookVerifier(cfg.PaystackSecretKey), redisClient, m, opts)

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		DB:       database,
		Redis:    redisClient,
		Ledger:   wallets,
		Identity: identity.NewService(database, wallets, identity.NewGoogleVerifier(cfg.GoogleClientID), cfg.JWTSecret),
		Keys:     apikey.NewService(database, cfg.APIKeySecret),
		Metrics:  m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go wallets.RunSweeper(ctx, cfg.SweepInterval) // Reconcile deposits whose webhook never came

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
	_ = redisClient.Close()
}
