package db

import (
	"fmt"
	"time"

	"walletledger/internal/config" // Configuration
	"walletledger/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql"    // MySQL driver for GORM
	"gorm.io/driver/postgres" // PostgreSQL driver for GORM (pgx)
	"gorm.io/gorm"            // GORM ORM library
	"gorm.io/gorm/logger"
)

// Models lists every table owned by the service, in dependency order
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Wallet{},
		&domain.Transaction{},
		&domain.Transfer{},
		&domain.WebhookEvent{},
		&domain.APIKey{},
	}
}

// Open connects to the configured database
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql", "":
		dialector = mysql.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	gcfg := &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() }, // Store every timestamp in UTC
		TranslateError: true,                                         // Surface gorm.ErrDuplicatedKey
	}
	if cfg.IsProd {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	return gorm.Open(dialector, gcfg)
}

// AutoMigrate creates or updates every table, column and index
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// Migrate performs automatic migration for the database schema
func Migrate(cfg *config.Config) {
	db, err := Open(cfg) // Open a connection to the database
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := AutoMigrate(db); err != nil {
		logrus.Fatalf("migration failed: %v", err) // Log fatal error if migration fails
	}
	logrus.WithField("driver", cfg.DBDriver).Info("Migration completed.") // Log successful migration
}
