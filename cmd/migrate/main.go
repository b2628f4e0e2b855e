package main

import (
	"walletledger/internal/config" // Custom import path (Config)
	"walletledger/internal/db"     // Custom import path (Database)
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	db.Migrate(cfg)
}
