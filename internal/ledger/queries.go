package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"walletledger/internal/domain"
	"walletledger/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Balance is the caller's wallet summary
type Balance struct {
	WalletID     uuid.UUID       `json:"wallet_id"`
	WalletNumber string          `json:"wallet_number"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TransactionPage is one page of a wallet's history
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	Total        int64                `json:"total"`
	TotalPages   int                  `json:"total_pages"`
}

// ResolvedWallet lets a sender confirm who they are paying
type ResolvedWallet struct {
	WalletNumber string `json:"wallet_number"`
	AccountName  string `json:"account_name"`
}

func balanceKey(userID uuid.UUID) string {
	return "wallet:balance:" + userID.String()
}

func historyPrefix(walletID uuid.UUID) string {
	return "txhistory:" + walletID.String() + ":"
}

func historyKey(walletID uuid.UUID, page, pageSize int) string {
	return fmt.Sprintf("%s%d:%d", historyPrefix(walletID), page, pageSize)
}

// invalidateWallet drops every cached read of w. Cache errors are logged only,
// the database stays authoritative.
func (s *Service) invalidateWallet(ctx context.Context, w *domain.Wallet) {
	ctx = context.WithoutCancel(ctx)
	if err := utils.DeleteCache(ctx, s.rdb, balanceKey(w.UserID)); err != nil {
		logrus.WithError(err).WithField("wallet_id", w.ID).Warn("Failed to invalidate balance cache")
	}
	s.invalidateHistory(ctx, w.ID)
}

// invalidateHistory drops the cached history pages of a wallet. Entry status
// changes that leave the balance alone only need this.
func (s *Service) invalidateHistory(ctx context.Context, walletID uuid.UUID) {
	if err := utils.DeleteCachePrefix(context.WithoutCancel(ctx), s.rdb, historyPrefix(walletID)); err != nil {
		logrus.WithError(err).WithField("wallet_id", walletID).Warn("Failed to invalidate history cache")
	}
}

// Balance returns the caller's wallet summary
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	var cached Balance
	if ok, err := utils.GetCache(ctx, s.rdb, balanceKey(userID), &cached); err == nil && ok {
		return &cached, nil
	}
	w, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	b := &Balance{WalletID: w.ID, WalletNumber: w.WalletNumber, Balance: w.Balance, CreatedAt: w.CreatedAt}
	s.cacheBalance(ctx, w, b)
	return b, nil
}

// cacheBalance stores b read from w, then drops it again if the wallet moved
// past w.Version meanwhile. Writers invalidate after commit, so whichever of
// the two runs last leaves no stale balance behind.
func (s *Service) cacheBalance(ctx context.Context, w *domain.Wallet, b *Balance) {
	if s.rdb == nil {
		return
	}
	key := balanceKey(w.UserID)
	if err := utils.SetCache(ctx, s.rdb, key, b, s.opts.CacheTTL); err != nil {
		logrus.WithError(err).Warn("Failed to cache balance")
		return
	}
	current, err := s.store.WalletByID(ctx, w.ID)
	if err == nil && current.Version == w.Version {
		return
	}
	if derr := utils.DeleteCache(context.WithoutCancel(ctx), s.rdb, key); derr != nil {
		logrus.WithError(derr).WithField("wallet_id", w.ID).Warn("Failed to drop stale balance cache")
	}
}

// Transactions lists the caller's entries, newest first
func (s *Service) Transactions(ctx context.Context, userID uuid.UUID, page, pageSize int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	w, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := historyKey(w.ID, page, pageSize)
	var cached TransactionPage
	if ok, err := utils.GetCache(ctx, s.rdb, key, &cached); err == nil && ok {
		return &cached, nil
	}

	txs, total, err := s.store.ListTransactions(ctx, w.ID, page, pageSize)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	result := &TransactionPage{
		Transactions: txs,
		Page:         page,
		PageSize:     pageSize,
		Total:        total,
		TotalPages:   int(math.Ceil(float64(total) / float64(pageSize))),
	}
	if err := utils.SetCache(ctx, s.rdb, key, result, s.opts.CacheTTL); err != nil {
		logrus.WithError(err).Warn("Failed to cache transaction history")
	}
	return result, nil
}

// ResolveWalletNumber returns the display name behind a wallet number
func (s *Service) ResolveWalletNumber(ctx context.Context, number string) (*ResolvedWallet, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, &ValidationError{Field: "wallet_number", Message: "is required"}
	}
	w, err := s.store.WalletByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	u, err := s.store.UserByID(ctx, w.UserID)
	if err != nil {
		return nil, fmt.Errorf("load wallet owner: %w", err)
	}
	name := u.Name
	if name == "" {
		name = u.Email
	}
	return &ResolvedWallet{WalletNumber: w.WalletNumber, AccountName: name}, nil
}

// PendingDeposits lists deposits still waiting for confirmation, oldest first
func (s *Service) PendingDeposits(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.store.PendingDeposits(ctx, s.now().Add(-olderThan), limit)
}
