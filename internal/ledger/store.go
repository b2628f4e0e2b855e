package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"walletledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxWalletNumberAttempts = 5

// Store is the gorm-backed persistence for wallets, entries and transfers
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the handle scoped to ctx
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// CreateWallet assigns a fresh wallet number and inserts a zero-balance wallet.
// tx may be an open transaction so that user and wallet are created together.
func (s *Store) CreateWallet(tx *gorm.DB, userID uuid.UUID) (*domain.Wallet, error) {
	for attempt := 0; attempt < maxWalletNumberAttempts; attempt++ {
		number, err := newWalletNumber()
		if err != nil {
			return nil, err
		}
		var taken int64
		if err := tx.Model(&domain.Wallet{}).Where("wallet_number = ?", number).Count(&taken).Error; err != nil {
			return nil, err
		}
		if taken > 0 {
			continue
		}
		wallet := domain.Wallet{UserID: userID, WalletNumber: number, Balance: decimal.Zero}
		if err := tx.Create(&wallet).Error; err != nil {
			return nil, err
		}
		return &wallet, nil
	}
	return nil, errors.New("could not allocate a unique wallet number")
}

// WalletByUser returns the wallet owned by userID
func (s *Store) WalletByUser(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	return s.findWallet(s.DB(ctx), "user_id = ?", userID)
}

// WalletByNumber returns the wallet with the given shareable number
func (s *Store) WalletByNumber(ctx context.Context, number string) (*domain.Wallet, error) {
	return s.findWallet(s.DB(ctx), "wallet_number = ?", number)
}

// WalletByID returns a wallet by primary key
func (s *Store) WalletByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return s.findWallet(s.DB(ctx), "id = ?", id)
}

func (s *Store) findWallet(q *gorm.DB, cond string, arg any) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := q.Where(cond, arg).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// UserByID loads a user
func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	if err := s.DB(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// TransactionByReference returns the entry with the unique reference
func (s *Store) TransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := s.DB(ctx).Where("reference = ?", reference).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

// CreateTransaction inserts a ledger entry
func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	return s.DB(ctx).Create(t).Error
}

// SetGatewayReference records the gateway's identifier for a deposit
func (s *Store) SetGatewayReference(ctx context.Context, id uuid.UUID, ref string) error {
	return s.DB(ctx).Model(&domain.Transaction{}).Where("id = ?", id).
		Update("gateway_reference", ref).Error
}

// MarkFailed moves a Pending entry to Failed. It reports false when the entry
// had already left Pending.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := s.DB(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(map[string]any{"status": string(domain.StatusFailed), "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListTransactions returns one page of a wallet's entries, newest first
func (s *Store) ListTransactions(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error) {
	var total int64
	q := s.DB(ctx).Model(&domain.Transaction{}).Where("wallet_id = ?", walletID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []domain.Transaction
	err := s.DB(ctx).Where("wallet_id = ?", walletID).
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// PendingDeposits returns Pending deposit entries created before cutoff, oldest first
func (s *Store) PendingDeposits(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	return s.PendingDepositsAfter(ctx, cutoff, nil, limit)
}

// PendingDepositsAfter continues PendingDeposits past after, ordered by
// (created_at, id). A nil after starts from the oldest entry.
func (s *Store) PendingDepositsAfter(ctx context.Context, cutoff time.Time, after *domain.Transaction, limit int) ([]domain.Transaction, error) {
	q := s.DB(ctx).
		Where("type = ? AND status = ? AND created_at < ?",
			string(domain.TransactionDeposit), string(domain.StatusPending), cutoff)
	if after != nil {
		q = q.Where("created_at > ? OR (created_at = ? AND id > ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var txs []domain.Transaction
	err := q.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&txs).Error
	return txs, err
}

// RecordWebhookEvent stores an authenticated delivery
func (s *Store) RecordWebhookEvent(ctx context.Context, ev *domain.WebhookEvent) error {
	return s.DB(ctx).Create(ev).Error
}

// MarkWebhookEvent stores the processing outcome of a delivery
func (s *Store) MarkWebhookEvent(ctx context.Context, id uuid.UUID, processErr error, note string, now time.Time) error {
	updates := map[string]any{"processed": processErr == nil, "processed_at": now}
	switch {
	case processErr != nil:
		updates["processing_error"] = truncate(processErr.Error(), 1000)
	case note != "":
		updates["processing_error"] = note
	}
	return s.DB(ctx).Model(&domain.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// applyBalance writes newBalance if the wallet still carries the version that
// was read. It must run inside tx.
func applyBalance(tx *gorm.DB, w *domain.Wallet, newBalance decimal.Decimal, now time.Time) error {
	if newBalance.IsNegative() {
		return ErrNegativeBalance
	}
	res := tx.Model(&domain.Wallet{}).
		Where("id = ? AND version = ?", w.ID, w.Version).
		Updates(map[string]any{
			"balance":    newBalance,
			"version":    gorm.Expr("version + ?", 1),
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("update wallet %s: %w", w.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	w.Balance = newBalance
	w.Version++
	w.UpdatedAt = now
	return nil
}

// markSettled flips a Pending entry to Success. It reports false when another
// settlement already moved the entry out of Pending.
func markSettled(tx *gorm.DB, id uuid.UUID, now time.Time) (bool, error) {
	res := tx.Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(map[string]any{
			"status":     string(domain.StatusSuccess),
			"settled_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
