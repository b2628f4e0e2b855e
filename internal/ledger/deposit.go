package ledger

import (
	"context"
	"fmt"
	"time"

	"walletledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const depositDescription = "Deposit via Paystack"

// DepositResult is what the customer needs to complete payment at the gateway
type DepositResult struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code"`
	Amount           decimal.Decimal `json:"amount"`
}

// InitiateDeposit records a Pending deposit and opens a charge for it at the
// gateway. The balance only changes later, when the charge is confirmed.
func (s *Service) InitiateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*DepositResult, error) {
	if err := s.validateAmount(amount); err != nil {
		return nil, err
	}
	wallet, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	entry := &domain.Transaction{
		Reference:   NewDepositReference(),
		Type:        domain.TransactionDeposit,
		Amount:      amount,
		WalletID:    wallet.ID,
		Status:      domain.StatusPending,
		Description: depositDescription,
	}
	if err := s.store.CreateTransaction(ctx, entry); err != nil {
		return nil, fmt.Errorf("create deposit entry: %w", err)
	}
	s.invalidateWallet(ctx, wallet)

	log := logrus.WithFields(logrus.Fields{
		"reference": entry.Reference,
		"wallet_id": wallet.ID,
		"amount":    amount.String(),
	})

	gctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	started := time.Now()
	charge, err := s.gateway.OpenCharge(gctx, amount, user.Email, entry.Reference)
	cancel()
	s.metrics.ObserveGateway("open_charge", started, err)
	if err != nil {
		// The request may already be cancelled, the entry must still leave Pending.
		if _, ferr := s.store.MarkFailed(context.WithoutCancel(ctx), entry.ID, s.now()); ferr != nil {
			log.WithError(ferr).Error("Failed to mark deposit as failed")
		}
		s.invalidateWallet(ctx, wallet)
		s.metrics.ObserveDeposit("gateway_error")
		log.WithError(err).Warn("Gateway rejected deposit initiation")
		return nil, &GatewayError{Op: "open charge", Err: err}
	}

	if charge.Reference != "" {
		if err := s.store.SetGatewayReference(context.WithoutCancel(ctx), entry.ID, charge.Reference); err != nil {
			log.WithError(err).Warn("Failed to store gateway reference")
		}
	}

	s.metrics.ObserveDeposit("initiated")
	log.Info("Deposit initiated")
	return &DepositResult{
		Reference:        entry.Reference,
		AuthorizationURL: charge.AuthorizationURL,
		AccessCode:       charge.AccessCode,
		Amount:           amount,
	}, nil
}
