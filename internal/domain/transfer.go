package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transfer links the debit and credit entries written together for one transfer
type Transfer struct {
	ID                  uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	Reference           string          `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	SenderWalletID      uuid.UUID       `gorm:"type:char(36);not null;index" json:"sender_wallet_id"`
	RecipientWalletID   uuid.UUID       `gorm:"type:char(36);not null;index" json:"recipient_wallet_id"`
	Amount              decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	DebitTransactionID  uuid.UUID       `gorm:"type:char(36);not null;uniqueIndex" json:"debit_transaction_id"`
	CreditTransactionID uuid.UUID       `gorm:"type:char(36);not null;uniqueIndex" json:"credit_transaction_id"`
	Description         string          `gorm:"size:500" json:"description,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// BeforeCreate assigns a primary key when none was set
func (t *Transfer) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
