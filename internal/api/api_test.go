package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"walletledger/internal/api"
	"walletledger/internal/apikey"
	"walletledger/internal/config"
	storage "walletledger/internal/db"
	"walletledger/internal/domain"
	"walletledger/internal/gateway"
	"walletledger/internal/identity"
	"walletledger/internal/ledger"
	"walletledger/internal/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	jwtSecret     = "jwt-secret"
	paystackKey   = "sk_test_secret"
	apiKeySecret  = "key-secret"
	transferLimit = 3
)

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

type noGoogle struct{}

func (noGoogle) Validate(context.Context, string) (*identity.GoogleProfile, error) {
	return nil, identity.ErrInvalidGoogleToken
}

type server struct {
	router   http.Handler
	db       *gorm.DB
	gw       *mockGateway
	verifier *gateway.WebhookVerifier
	ledger   *ledger.Service
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T) *server {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, storage.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		JWTSecret:          jwtSecret,
		RateLimitGlobal:    1000,
		RateLimitTransfers: transferLimit,
		RateLimitKeys:      100,
	}
	gw := new(mockGateway)
	verifier := gateway.NewWebhookVerifier(paystackKey)
	m := metrics.New()
	l := ledger.NewService(db, gw, verifier, rdb, m, ledger.DefaultOptions())
	router := api.NewRouter(api.Deps{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Ledger:   l,
		Identity: identity.NewService(db, l, noGoogle{}, jwtSecret),
		Keys:     apikey.NewService(db, apiKeySecret),
		Metrics:  m,
	})
	return &server{router: router, db: db, gw: gw, verifier: verifier, ledger: l}
}

func (s *server) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

type account struct {
	Token        string
	WalletNumber string
	UserID       string
}

// register signs a user up through the API
func (s *server) register(t *testing.T, email string) account {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/auth/register", gin.H{"email": email, "name": "Test", "password": "correct-horse"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var session identity.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	return account{Token: session.Token, WalletNumber: session.WalletNumber, UserID: session.User.ID.String()}
}

// fund credits a wallet directly in the database
func (s *server) fund(t *testing.T, walletNumber string, amount int64) {
	t.Helper()
	require.NoError(t, s.db.Model(&domain.Wallet{}).Where("wallet_number = ?", walletNumber).
		Update("balance", decimal.NewFromInt(amount)).Error)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestAuthRoutes(t *testing.T) {
	s := newServer(t)
	a := s.register(t, "ada@example.com")
	assert.Len(t, a.WalletNumber, 13)

	rr := s.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "correct-horse"}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = s.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ada@example.com", "password": "correct-horse"}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = s.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ada@example.com", "password": "wrong-horse"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(t, http.MethodPost, "/auth/google", gin.H{"id_token": "bogus"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestWalletRequiresAuthentication(t *testing.T) {
	s := newServer(t)
	rr := s.do(t, http.MethodGet, "/wallet/balance", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = s.do(t, http.MethodGet, "/wallet/balance", nil, bearer("not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBalanceAndTransfer(t *testing.T) {
	s := newServer(t)
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")
	s.fund(t, alice.WalletNumber, 1000)

	rr := s.do(t, http.MethodGet, "/wallet/balance", nil, bearer(alice.Token))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1000", decode(t, rr)["balance"])

	rr = s.do(t, http.MethodGet, "/wallet/resolve/"+bob.WalletNumber, nil, bearer(alice.Token))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Test", decode(t, rr)["account_name"])

	rr = s.do(t, http.MethodPost, "/wallet/transfer", gin.H{"wallet_number": bob.WalletNumber, "amount": "250.50", "description": "rent"}, bearer(alice.Token))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "749.5", body["new_balance"])
	assert.True(t, strings.HasPrefix(body["transfer_reference"].(string), "TRF_"))

	// The cached balance read above is invalidated by the transfer
	rr = s.do(t, http.MethodGet, "/wallet/balance", nil, bearer(alice.Token))
	assert.Equal(t, "749.5", decode(t, rr)["balance"])
	rr = s.do(t, http.MethodGet, "/wallet/balance", nil, bearer(bob.Token))
	assert.Equal(t, "250.5", decode(t, rr)["balance"])

	rr = s.do(t, http.MethodGet, "/wallet/transactions?page=1&page_size=10", nil, bearer(alice.Token))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decode(t, rr)["total"])
}

func TestTransferErrors(t *testing.T) {
	s := newServer(t)
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")
	s.fund(t, alice.WalletNumber, 100)

	rr := s.do(t, http.MethodPost, "/wallet/transfer", gin.H{"wallet_number": bob.WalletNumber, "amount": "500"}, bearer(alice.Token))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "400", body["shortfall"])
	assert.Equal(t, "100", body["available"])

	rr = s.do(t, http.MethodPost, "/wallet/transfer", gin.H{"wallet_number": alice.WalletNumber, "amount": "10"}, bearer(alice.Token))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Bob has not spent any of his transfer allowance yet
	rr = s.do(t, http.MethodPost, "/wallet/transfer", gin.H{"wallet_number": "9999999999999", "amount": "10"}, bearer(bob.Token))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTransferRateLimit(t *testing.T) {
	s := newServer(t)
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")
	s.fund(t, alice.WalletNumber, 100)

	for i := 0; i < transferLimit; i++ {
		rr := s.do(t, http.MethodPost, "/wallet/transfer", gin.H{"wallet_number": bob.WalletNumber, "amount": "1"}, bearer(alice.Token))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := s.do(t, http.MethodPost, "/wallet/transfer", gin.H{"wallet_number": bob.WalletNumber, "amount": "1"}, bearer(alice.Token))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestDepositAndWebhook(t *testing.T) {
	s := newServer(t)
	alice := s.register(t, "alice@example.com")

	s.gw.On("OpenCharge", mock.Anything, mock.Anything, "alice@example.com", mock.AnythingOfType("string")).
		Return(&gateway.Charge{AuthorizationURL: "https://checkout.example/x", AccessCode: "code"}, nil).Once()
	rr := s.do(t, http.MethodPost, "/wallet/deposit", gin.H{"amount": "5000"}, bearer(alice.Token))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reference := decode(t, rr)["reference"].(string)

	payload := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"status":"success","amount":500000}}`, reference))

	rr = s.do(t, http.MethodPost, "/wallet/paystack/webhook", payload, map[string]string{gateway.SignatureHeader: "deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	signed := map[string]string{gateway.SignatureHeader: s.verifier.Sign(payload)}
	rr = s.do(t, http.MethodPost, "/wallet/paystack/webhook", payload, signed)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "credited", decode(t, rr)["outcome"])

	rr = s.do(t, http.MethodPost, "/wallet/paystack/webhook", payload, signed)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "duplicate", decode(t, rr)["outcome"])

	rr = s.do(t, http.MethodGet, "/wallet/balance", nil, bearer(alice.Token))
	assert.Equal(t, "5000", decode(t, rr)["balance"])

	s.gw.On("QueryCharge", mock.Anything, reference).Return(gateway.StatusSuccess, nil).Once()
	rr = s.do(t, http.MethodGet, "/wallet/deposit/"+reference+"/status", nil, bearer(alice.Token))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, string(domain.StatusSuccess), body["status"])
	assert.Equal(t, gateway.StatusSuccess, body["gateway_status"])
	s.gw.AssertExpectations(t)
}

func TestDepositGatewayFailure(t *testing.T) {
	s := newServer(t)
	alice := s.register(t, "alice@example.com")
	s.gw.On("OpenCharge", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("connection refused")).Once()

	rr := s.do(t, http.MethodPost, "/wallet/deposit", gin.H{"amount": "100"}, bearer(alice.Token))
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr = s.do(t, http.MethodPost, "/wallet/deposit", gin.H{"amount": "-5"}, bearer(alice.Token))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPIKeyPermissions(t *testing.T) {
	s := newServer(t)
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")
	s.fund(t, alice.WalletNumber, 100)

	rr := s.do(t, http.MethodPost, "/keys/create", gin.H{"name": "reporting", "permissions": []string{"read"}, "expiry": "1D"}, bearer(alice.Token))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	key := decode(t, rr)["api_key"].(string)
	withKey := map[string]string{"x-api-key": key}

	rr = s.do(t, http.MethodGet, "/wallet/balance", nil, withKey)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPost, "/wallet/transfer", gin.H{"wallet_number": bob.WalletNumber, "amount": "1"}, withKey)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Keys cannot mint keys
	rr = s.do(t, http.MethodPost, "/keys/create", gin.H{"name": "x", "permissions": []string{"read"}, "expiry": "1D"}, withKey)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodPost, "/keys/create", gin.H{"name": "x", "permissions": []string{"admin"}, "expiry": "1D"}, bearer(alice.Token))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/keys/rollover", gin.H{"expired_key_id": "nope", "expiry": "1D"}, bearer(alice.Token))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t)
	alice := s.register(t, "alice@example.com")
	admin := s.register(t, "root@example.com")
	require.NoError(t, s.db.Model(&domain.User{}).Where("email = ?", "root@example.com").Update("role", domain.RoleAdmin).Error)

	rr := s.do(t, http.MethodGet, "/admin/users", nil, bearer(alice.Token))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodGet, "/admin/users", nil, bearer(admin.Token))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.EqualValues(t, 2, body["total"])
	assert.Equal(t, false, body["cached"])

	rr = s.do(t, http.MethodGet, "/admin/users", nil, bearer(admin.Token))
	assert.Equal(t, true, decode(t, rr)["cached"])

	rr = s.do(t, http.MethodGet, "/admin/transactions?from=yesterday", nil, bearer(admin.Token))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodGet, "/admin/deposits/pending?older_than=0s", nil, bearer(admin.Token))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 0, decode(t, rr)["count"])

	rr = s.do(t, http.MethodPost, "/admin/deposits/reconcile", nil, bearer(admin.Token))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 0, decode(t, rr)["examined"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	rr := s.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["healthy"])

	rr = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "walletledger_http_requests_total")
}
