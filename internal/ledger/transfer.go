package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"walletledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	minWalletNumberLen = 10
	maxWalletNumberLen = 50
	maxDescriptionLen  = 500
)

// TransferRequest moves Amount from the caller's wallet to WalletNumber
type TransferRequest struct {
	WalletNumber string
	Amount       decimal.Decimal
	Description  string
}

// TransferResult describes a committed transfer
type TransferResult struct {
	TransferReference     string          `json:"transfer_reference"`
	SenderWalletNumber    string          `json:"sender_wallet_number"`
	RecipientWalletNumber string          `json:"recipient_wallet_number"`
	Amount                decimal.Decimal `json:"amount"`
	NewBalance            decimal.Decimal `json:"new_balance"`
	TransferredAt         time.Time       `json:"transferred_at"`
	Description           string          `json:"description,omitempty"`
}

func (s *Service) validateTransfer(req *TransferRequest) error {
	if err := s.validateAmount(req.Amount); err != nil {
		return err
	}
	req.WalletNumber = strings.TrimSpace(req.WalletNumber)
	if n := len(req.WalletNumber); n < minWalletNumberLen || n > maxWalletNumberLen {
		return &ValidationError{Field: "wallet_number", Message: fmt.Sprintf("must be between %d and %d characters", minWalletNumberLen, maxWalletNumberLen)}
	}
	if len(req.Description) > maxDescriptionLen {
		return &ValidationError{Field: "description", Message: fmt.Sprintf("must not exceed %d characters", maxDescriptionLen)}
	}
	return nil
}

// Transfer debits the caller and credits the recipient in one database
// transaction. Either both entries and both balance changes commit or none do.
func (s *Service) Transfer(ctx context.Context, userID uuid.UUID, req TransferRequest) (*TransferResult, error) {
	if err := s.validateTransfer(&req); err != nil {
		s.metrics.ObserveTransfer("rejected")
		return nil, err
	}

	sender, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.store.WalletByNumber(ctx, req.WalletNumber)
	if errors.Is(err, ErrWalletNotFound) {
		s.metrics.ObserveTransfer("rejected")
		return nil, fmt.Errorf("%w: %s", ErrRecipientNotFound, req.WalletNumber)
	}
	if err != nil {
		return nil, err
	}
	if sender.ID == recipient.ID {
		s.metrics.ObserveTransfer("rejected")
		return nil, ErrSelfTransfer
	}
	if sender.Balance.LessThan(req.Amount) {
		s.metrics.ObserveTransfer("insufficient_balance")
		return nil, &InsufficientBalanceError{Available: sender.Balance, Required: req.Amount}
	}

	now := s.now()
	ref := NewTransferReference()
	transfer := &domain.Transfer{
		ID:                  uuid.New(),
		Reference:           ref,
		SenderWalletID:      sender.ID,
		RecipientWalletID:   recipient.ID,
		Amount:              req.Amount,
		DebitTransactionID:  uuid.New(),
		CreditTransactionID: uuid.New(),
		Description:         req.Description,
		CreatedAt:           now,
	}
	debit := &domain.Transaction{
		ID:          transfer.DebitTransactionID,
		Reference:   DebitReference(ref),
		Type:        domain.TransactionTransferDebit,
		Amount:      req.Amount,
		WalletID:    sender.ID,
		Status:      domain.StatusSuccess,
		Description: entryDescription(req.Description, "Transfer to "+recipient.WalletNumber),
		TransferID:  &transfer.ID,
		SettledAt:   &now,
		CreatedAt:   now,
	}
	credit := &domain.Transaction{
		ID:          transfer.CreditTransactionID,
		Reference:   CreditReference(ref),
		Type:        domain.TransactionTransferCredit,
		Amount:      req.Amount,
		WalletID:    recipient.ID,
		Status:      domain.StatusSuccess,
		Description: entryDescription(req.Description, "Transfer from "+sender.WalletNumber),
		TransferID:  &transfer.ID,
		SettledAt:   &now,
		CreatedAt:   now,
	}

	log := logrus.WithFields(logrus.Fields{
		"reference": ref,
		"sender":    sender.WalletNumber,
		"recipient": recipient.WalletNumber,
		"amount":    req.Amount.String(),
	})

	err = s.store.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(debit).Error; err != nil {
			return fmt.Errorf("create debit entry: %w", err)
		}
		if err := tx.Create(credit).Error; err != nil {
			return fmt.Errorf("create credit entry: %w", err)
		}
		if err := tx.Create(transfer).Error; err != nil {
			return fmt.Errorf("create transfer record: %w", err)
		}
		// Wallets are always written in ascending ID order.
		updates := []struct {
			wallet  *domain.Wallet
			balance decimal.Decimal
		}{
			{sender, sender.Balance.Sub(req.Amount)},
			{recipient, recipient.Balance.Add(req.Amount)},
		}
		if updates[1].wallet.ID.String() < updates[0].wallet.ID.String() {
			updates[0], updates[1] = updates[1], updates[0]
		}
		for _, u := range updates {
			if err := applyBalance(tx, u.wallet, u.balance, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentUpdate) || errors.Is(err, ErrNegativeBalance) {
			s.metrics.ObserveConflict("transfer")
			s.metrics.ObserveTransfer("conflict")
			log.WithError(err).Warn("Transfer rolled back by a concurrent update")
			return nil, ErrConcurrentUpdate
		}
		s.metrics.ObserveTransfer("error")
		log.WithError(err).Error("Transfer failed")
		return nil, fmt.Errorf("transfer %s: %w", ref, err)
	}

	s.invalidateWallet(ctx, sender)
	s.invalidateWallet(ctx, recipient)
	s.metrics.ObserveTransfer("success")
	log.Info("Transfer completed")

	return &TransferResult{
		TransferReference:     ref,
		SenderWalletNumber:    sender.WalletNumber,
		RecipientWalletNumber: recipient.WalletNumber,
		Amount:                req.Amount,
		NewBalance:            sender.Balance,
		TransferredAt:         now,
		Description:           req.Description,
	}, nil
}

func entryDescription(given, fallback string) string {
	if strings.TrimSpace(given) != "" {
		return given
	}
	return fallback
}
