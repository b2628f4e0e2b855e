package ledger

import (
	"context"
	"time"

	"walletledger/internal/gateway"
	"walletledger/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Gateway opens and queries charges at the external payment gateway
type Gateway interface {
	OpenCharge(ctx context.Context, amount decimal.Decimal, email, reference string) (*gateway.Charge, error)
	QueryCharge(ctx context.Context, reference string) (string, error)
}

// SignatureVerifier authenticates a raw webhook body
type SignatureVerifier interface {
	Verify(payload []byte, signature string) bool
}

// Options tunes limits and timings of the ledger
type Options struct {
	MaxAmount            decimal.Decimal
	GatewayTimeout       time.Duration
	PendingDepositTTL    time.Duration
	PendingDepositMaxAge time.Duration
	CacheTTL             time.Duration
	SweepBatchSize       int
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{
		MaxAmount:            decimal.NewFromInt(10_000_000),
		GatewayTimeout:       15 * time.Second,
		PendingDepositTTL:    30 * time.Minute,
		PendingDepositMaxAge: 24 * time.Hour,
		CacheTTL:             60 * time.Second,
		SweepBatchSize:       100,
	}
}

// Service is the wallet ledger: deposits, settlement, transfers and reads.
// It holds no per-wallet state, all coordination happens in the database.
type Service struct {
	store    *Store
	gateway  Gateway
	verifier SignatureVerifier
	rdb      *redis.Client
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time
}

// NewService wires the ledger. rdb and m may be nil.
func NewService(db *gorm.DB, gw Gateway, verifier SignatureVerifier, rdb *redis.Client, m *metrics.Metrics, opts Options) *Service {
	def := DefaultOptions()
	if !opts.MaxAmount.IsPositive() {
		opts.MaxAmount = def.MaxAmount
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = def.GatewayTimeout
	}
	if opts.PendingDepositTTL <= 0 {
		opts.PendingDepositTTL = def.PendingDepositTTL
	}
	if opts.PendingDepositMaxAge <= 0 {
		opts.PendingDepositMaxAge = def.PendingDepositMaxAge
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.SweepBatchSize <= 0 {
		opts.SweepBatchSize = def.SweepBatchSize
	}
	return &Service{
		store:    NewStore(db),
		gateway:  gw,
		verifier: verifier,
		rdb:      rdb,
		metrics:  m,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Store exposes the persistence layer for collaborators that only read
func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if amount.GreaterThan(s.opts.MaxAmount) {
		return &ValidationError{Field: "amount", Message: "must not exceed " + s.opts.MaxAmount.String()}
	}
	if !amount.Equal(amount.Round(2)) {
		return &ValidationError{Field: "amount", Message: "must have at most two decimal places"}
	}
	return nil
}
