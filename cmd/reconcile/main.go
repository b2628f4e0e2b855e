package main

import (
	"context" // Sweep deadline
	"time"    // Timeout

	"walletledger/internal/config"  // Custom import path (Config)
	"walletledger/internal/db"      // Custom import path (Database)
	"walletledger/internal/gateway" // Custom import path (Gateway)
	"walletledger/internal/ledger"  // Custom import path (Ledger)

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// Runs one pending deposit sweep and exits, for use from cron
func main() {
	cfg := config.LoadConfig() // Load configuration
	database, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err)
	}

	// Redis is only used to drop stale cached balances here
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
	defer redisClient.Close()

	opts := ledger.DefaultOptions()
	opts.GatewayTimeout = cfg.GatewayTimeout
	opts.PendingDepositTTL = cfg.PendingDepositTTL
	opts.PendingDepositMaxAge = cfg.PendingDepositMaxAge
	paystack := gateway.NewPaystack(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.GatewayTimeout)
	wallets := ledger.NewService(database, paystack, gateway.NewWebhookVerifier(cfg.PaystackSecretKey), redisClient, nil, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	report, err := wallets.SweepPendingDeposits(ctx)
	if err != nil {
		logrus.Fatalf("sweep failed: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"examined": report.Examined,
		"settled":  report.Settled,
		"failed":   report.Failed,
		"pending":  report.Pending,
	}).Info("Sweep completed.")
}
