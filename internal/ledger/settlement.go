package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"walletledger/internal/domain"
	"walletledger/internal/gateway"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const chargeSuccessEvent = "charge.success"

// WebhookOutcome says what a delivery did to the ledger
type WebhookOutcome string

const (
	OutcomeCredited  WebhookOutcome = "credited"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeNotFound  WebhookOutcome = "not_found"
)

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

// ProcessWebhook settles a deposit from a gateway notification. Deliveries
// may repeat and race each other, the wallet is credited at most once per
// reference. A returned error means the gateway should redeliver.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.metrics.ObserveWebhookRejected("malformed")
		return "", fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	log := logrus.WithFields(logrus.Fields{
		"event":     p.Event,
		"reference": p.Data.Reference,
	})
	if p.Event != chargeSuccessEvent {
		log.Info("Ignoring webhook event")
		return OutcomeIgnored, nil
	}
	if p.Data.Status != gateway.StatusSuccess {
		log.WithField("status", p.Data.Status).Warn("Ignoring charge event that did not succeed")
		return OutcomeIgnored, nil
	}

	if s.verifier == nil || !s.verifier.Verify(payload, signature) {
		s.metrics.ObserveWebhookRejected("signature")
		log.Warn("Rejected webhook with invalid signature")
		return "", ErrInvalidSignature
	}
	if p.Data.Reference == "" {
		s.metrics.ObserveWebhookRejected("malformed")
		return "", fmt.Errorf("%w: missing reference", ErrMalformedWebhook)
	}

	event := &domain.WebhookEvent{
		EventType: p.Event,
		Reference: p.Data.Reference,
		Payload:   string(payload),
		Signature: signature,
	}
	if err := s.store.RecordWebhookEvent(ctx, event); err != nil {
		// Settlement proceeds without the audit row.
		log.WithError(err).Error("Failed to record webhook event")
		event = nil
	}

	outcome, err := s.settle(ctx, p.Data.Reference, "webhook", p.Data.Amount)

	if event != nil {
		note := ""
		if outcome == OutcomeNotFound {
			note = "no deposit with this reference"
		}
		if merr := s.store.MarkWebhookEvent(context.WithoutCancel(ctx), event.ID, err, note, s.now()); merr != nil {
			log.WithError(merr).Error("Failed to update webhook event")
		}
	}
	return outcome, err
}

// settle credits a Pending deposit exactly once. It is shared by webhook
// deliveries and the sweeper. minorAmount is the gateway's view of the amount
// in kobo, 0 when unknown.
func (s *Service) settle(ctx context.Context, reference, source string, minorAmount int64) (WebhookOutcome, error) {
	log := logrus.WithFields(logrus.Fields{
		"reference": reference,
		"source":    source,
	})

	entry, err := s.store.TransactionByReference(ctx, reference)
	if errors.Is(err, ErrTransactionNotFound) {
		log.Warn("Settlement for unknown reference")
		s.metrics.ObserveSettlement(source, string(OutcomeNotFound))
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", err
	}
	if entry.Type != domain.TransactionDeposit {
		log.WithField("type", entry.Type).Warn("Settlement for a non-deposit entry")
		s.metrics.ObserveSettlement(source, string(OutcomeIgnored))
		return OutcomeIgnored, nil
	}
	if entry.Status.Terminal() {
		log.WithField("status", entry.Status).Info("Deposit already settled")
		s.metrics.ObserveSettlement(source, string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}
	if minorAmount > 0 && minorAmount != gateway.ToMinorUnits(entry.Amount) {
		log.WithFields(logrus.Fields{
			"expected": gateway.ToMinorUnits(entry.Amount),
			"received": minorAmount,
		}).Warn("Gateway amount differs from the recorded deposit")
	}

	var (
		wallet    domain.Wallet
		duplicate bool
	)
	now := s.now()
	err = s.store.DB(ctx).Transaction(func(tx *gorm.DB) error {
		flipped, err := markSettled(tx, entry.ID, now)
		if err != nil {
			return err
		}
		if !flipped {
			duplicate = true
			return nil
		}
		if err := tx.Where("id = ?", entry.WalletID).First(&wallet).Error; err != nil {
			return fmt.Errorf("load wallet %s: %w", entry.WalletID, err)
		}
		return applyBalance(tx, &wallet, wallet.Balance.Add(entry.Amount), now)
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentUpdate) {
			s.metrics.ObserveConflict("settlement")
		}
		s.metrics.ObserveSettlement(source, "error")
		log.WithError(err).Error("Deposit settlement rolled back")
		return "", err
	}
	if duplicate {
		s.metrics.ObserveSettlement(source, string(OutcomeDuplicate))
		log.Info("Deposit settled by a concurrent delivery")
		return OutcomeDuplicate, nil
	}

	s.invalidateWallet(ctx, &wallet)
	s.metrics.ObserveSettlement(source, string(OutcomeCredited))
	log.WithFields(logrus.Fields{
		"wallet_id":   wallet.ID,
		"amount":      entry.Amount.String(),
		"new_balance": wallet.Balance.String(),
	}).Info("Deposit credited")
	return OutcomeCredited, nil
}
