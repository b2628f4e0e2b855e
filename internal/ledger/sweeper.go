package ledger

import (
	"context"
	"time"

	"walletledger/internal/domain"
	"walletledger/internal/gateway"

	"github.com/sirupsen/logrus"
)

// SweepReport summarizes one pass over stale Pending deposits
type SweepReport struct {
	Examined int `json:"examined"`
	Settled  int `json:"settled"`
	Failed   int `json:"failed"`
	Pending  int `json:"pending"`
}

// SweepPendingDeposits reconciles deposits that stayed Pending longer than
// the configured TTL. A deposit is only credited when the gateway confirms it,
// age alone can fail a deposit but never credit one. Entries are read in
// batches of SweepBatchSize, each batch starting after the last entry of the
// previous one, so deposits left Pending never hide newer stale ones.
func (s *Service) SweepPendingDeposits(ctx context.Context) (*SweepReport, error) {
	now := s.now()
	cutoff := now.Add(-s.opts.PendingDepositTTL)
	expiry := now.Add(-s.opts.PendingDepositMaxAge)
	report := &SweepReport{}

	var cursor *domain.Transaction
	for ctx.Err() == nil {
		entries, err := s.store.PendingDepositsAfter(ctx, cutoff, cursor, s.opts.SweepBatchSize)
		if err != nil {
			s.metrics.ObserveSweep(report.Settled, report.Failed, report.Pending, err)
			return nil, err
		}
		for i := range entries {
			if ctx.Err() != nil {
				break
			}
			report.Examined++
			s.sweepOne(ctx, &entries[i], now, expiry, report)
		}
		if len(entries) < s.opts.SweepBatchSize {
			break
		}
		cursor = &entries[len(entries)-1]
	}

	s.metrics.ObserveSweep(report.Settled, report.Failed, report.Pending, nil)
	if report.Examined > 0 {
		logrus.WithFields(logrus.Fields{
			"examined": report.Examined,
			"settled":  report.Settled,
			"failed":   report.Failed,
			"pending":  report.Pending,
		}).Info("Pending deposit sweep finished")
	}
	return report, nil
}

func (s *Service) sweepOne(ctx context.Context, e *domain.Transaction, now, expiry time.Time, report *SweepReport) {
	log := logrus.WithFields(logrus.Fields{
		"reference": e.Reference,
		"age":       now.Sub(e.CreatedAt).Round(time.Second).String(),
	})

	status := s.gatewayStatus(ctx, e.Reference)
	switch status {
	case gateway.StatusSuccess:
		outcome, err := s.settle(ctx, e.Reference, "sweeper", 0)
		if err != nil {
			log.WithError(err).Warn("Sweeper could not settle confirmed deposit")
			report.Pending++
			return
		}
		if outcome == OutcomeCredited {
			report.Settled++
		}
	case gateway.StatusFailed, gateway.StatusAbandoned, gateway.StatusReversed:
		s.failStale(ctx, log, e, status, report)
	default:
		if e.CreatedAt.Before(expiry) {
			s.failStale(ctx, log, e, status, report)
			return
		}
		report.Pending++
	}
}

func (s *Service) failStale(ctx context.Context, log *logrus.Entry, e *domain.Transaction, status string, report *SweepReport) {
	failed, err := s.store.MarkFailed(ctx, e.ID, s.now())
	switch {
	case err != nil:
		log.WithError(err).Error("Sweeper could not fail deposit")
		report.Pending++
	case failed:
		s.invalidateHistory(ctx, e.WalletID)
		log.WithField("gateway_status", status).Info("Deposit marked failed")
		report.Failed++
	}
}

// RunSweeper sweeps every interval until ctx is cancelled
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepPendingDeposits(ctx); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Error("Pending deposit sweep failed")
			}
		}
	}
}
