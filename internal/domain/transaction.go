package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType is the kind of balance-affecting event an entry records
type TransactionType string

const (
	TransactionDeposit        TransactionType = "Deposit"
	TransactionTransferDebit  TransactionType = "TransferDebit"
	TransactionTransferCredit TransactionType = "TransferCredit"
)

// TransactionStatus is the settlement state of an entry. Pending is the only non-terminal state.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "Pending"
	StatusSuccess TransactionStatus = "Success"
	StatusFailed  TransactionStatus = "Failed"
)

// Terminal reports whether no further transition is allowed
func (s TransactionStatus) Terminal() bool {
	return s != StatusPending
}

// Transaction Model (a ledger entry)
type Transaction struct {
	ID               uuid.UUID         `gorm:"type:char(36);primaryKey" json:"id"`
	Reference        string            `gorm:"size:64;uniqueIndex;not null" json:"reference"` // Idempotency key
	Type             TransactionType   `gorm:"size:20;not null" json:"type"`
	Amount           decimal.Decimal   `gorm:"type:decimal(18,4);not null" json:"amount"`
	WalletID         uuid.UUID         `gorm:"type:char(36);not null;index:idx_wallet_created,priority:1" json:"wallet_id"`
	Status           TransactionStatus `gorm:"size:10;not null;index" json:"status"`
	Description      string            `gorm:"size:500" json:"description,omitempty"`
	GatewayReference *string           `gorm:"size:100" json:"gateway_reference,omitempty"`
	TransferID       *uuid.UUID        `gorm:"type:char(36);index" json:"transfer_id,omitempty"`
	SettledAt        *time.Time        `json:"settled_at,omitempty"`
	CreatedAt        time.Time         `gorm:"index:idx_wallet_created,priority:2" json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// BeforeCreate assigns a primary key when none was set
func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
