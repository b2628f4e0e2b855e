package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wallet Model
type Wallet struct {
	ID           uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`                   // Primary key
	UserID       uuid.UUID       `gorm:"type:char(36);uniqueIndex;not null" json:"user_id"`    // One wallet per user
	WalletNumber string          `gorm:"size:20;uniqueIndex;not null" json:"wallet_number"`    // Shareable, immutable number
	Balance      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"balance"` // Never negative
	Version      int64           `gorm:"not null;default:0" json:"-"`                          // Optimistic concurrency token
	CreatedAt    time.Time       `json:"created_at"`                                           // Creation timestamp
	UpdatedAt    time.Time       `json:"updated_at"`                                           // Last balance change
}

// BeforeCreate assigns a primary key when none was set
func (w *Wallet) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
