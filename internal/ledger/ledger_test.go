package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	storage "walletledger/internal/db"
	"walletledger/internal/domain"
	"walletledger/internal/gateway"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const webhookSecret = "sk_test_secret"

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) OpenCharge(ctx context.Context, amount decimal.Decimal, email, reference string) (*gateway.Charge, error) {
	args := m.Called(ctx, amount, email, reference)
	charge, _ := args.Get(0).(*gateway.Charge)
	return charge, args.Error(1)
}

func (m *mockGateway) QueryCharge(ctx context.Context, reference string) (string, error) {
	args := m.Called(ctx, reference)
	return args.String(0), args.Error(1)
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	gw       *mockGateway
	verifier *gateway.WebhookVerifier
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, storage.AutoMigrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	gw := new(mockGateway)
	verifier := gateway.NewWebhookVerifier(webhookSecret)
	opts := DefaultOptions()
	opts.GatewayTimeout = time.Second
	svc := NewService(db, gw, verifier, nil, nil, opts)
	return &fixture{svc: svc, db: db, gw: gw, verifier: verifier}
}

// newAccount onboards a user and funds the wallet directly
func (f *fixture) newAccount(t *testing.T, email string, balance int64) (*domain.User, *domain.Wallet) {
	t.Helper()
	user := &domain.User{Email: email, Name: strings.Split(email, "@")[0]}
	wallet, err := f.svc.Onboard(context.Background(), user)
	require.NoError(t, err)
	if balance > 0 {
		require.NoError(t, f.db.Model(&domain.Wallet{}).Where("id = ?", wallet.ID).
			Update("balance", decimal.NewFromInt(balance)).Error)
		wallet.Balance = decimal.NewFromInt(balance)
	}
	return user, wallet
}

func (f *fixture) balance(t *testing.T, walletID uuid.UUID) decimal.Decimal {
	t.Helper()
	w, err := f.svc.store.WalletByID(context.Background(), walletID)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) entry(t *testing.T, reference string) *domain.Transaction {
	t.Helper()
	e, err := f.svc.store.TransactionByReference(context.Background(), reference)
	require.NoError(t, err)
	return e
}

// pendingDeposit inserts a Pending deposit created at the given time
func (f *fixture) pendingDeposit(t *testing.T, walletID uuid.UUID, amount int64, createdAt time.Time) *domain.Transaction {
	t.Helper()
	e := &domain.Transaction{
		Reference: NewDepositReference(),
		Type:      domain.TransactionDeposit,
		Amount:    decimal.NewFromInt(amount),
		WalletID:  walletID,
		Status:    domain.StatusPending,
		CreatedAt: createdAt,
	}
	require.NoError(t, f.db.Create(e).Error)
	return e
}

func (f *fixture) signedWebhook(event, reference, status string, amount int64) ([]byte, string) {
	payload := []byte(fmt.Sprintf(`{"event":%q,"data":{"reference":%q,"status":%q,"amount":%d,"customer":{"email":"a@b.co"}}}`,
		event, reference, status, amount))
	return payload, f.verifier.Sign(payload)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
