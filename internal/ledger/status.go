package ledger

import (
	"context"
	"time"

	"walletledger/internal/domain"
	"walletledger/internal/gateway"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DepositStatus is the local record of a deposit next to the gateway's view
type DepositStatus struct {
	Reference     string                   `json:"reference"`
	Amount        decimal.Decimal          `json:"amount"`
	Status        domain.TransactionStatus `json:"status"`
	GatewayStatus string                   `json:"gateway_status"`
	CreatedAt     time.Time                `json:"created_at"`
	SettledAt     *time.Time               `json:"settled_at,omitempty"`
}

// DepositStatus reports a deposit owned by the caller. It never changes state,
// settlement only happens through webhooks and the sweeper.
func (s *Service) DepositStatus(ctx context.Context, userID uuid.UUID, reference string) (*DepositStatus, error) {
	entry, err := s.store.TransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if entry.Type != domain.TransactionDeposit {
		return nil, ErrTransactionNotFound
	}
	wallet, err := s.store.WalletByID(ctx, entry.WalletID)
	if err != nil {
		return nil, err
	}
	if wallet.UserID != userID {
		logrus.WithFields(logrus.Fields{
			"reference": reference,
			"user_id":   userID,
		}).Warn("Deposit status requested by a non-owner")
		return nil, ErrForbidden
	}

	return &DepositStatus{
		Reference:     entry.Reference,
		Amount:        entry.Amount,
		Status:        entry.Status,
		GatewayStatus: s.gatewayStatus(ctx, reference),
		CreatedAt:     entry.CreatedAt,
		SettledAt:     entry.SettledAt,
	}, nil
}

// gatewayStatus asks the gateway under the configured timeout and degrades to
// "unknown" on any failure.
func (s *Service) gatewayStatus(ctx context.Context, reference string) string {
	if s.gateway == nil {
		return gateway.StatusUnknown
	}
	gctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()
	started := time.Now()
	status, err := s.gateway.QueryCharge(gctx, reference)
	s.metrics.ObserveGateway("query_charge", started, err)
	if err != nil || status == "" {
		if err != nil {
			logrus.WithError(err).WithField("reference", reference).Warn("Gateway status unavailable")
		}
		return gateway.StatusUnknown
	}
	return status
}
