package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"walletledger/internal/apikey"
	"walletledger/internal/domain"
	"walletledger/internal/middleware"
	"walletledger/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const secret = "jwt-secret"

type mockKeys struct {
	mock.Mock
}

func (m *mockKeys) Authenticate(ctx context.Context, plain string) (*apikey.Principal, error) {
	args := m.Called(ctx, plain)
	p, _ := args.Get(0).(*apikey.Principal)
	return p, args.Error(1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(keys middleware.KeyAuthenticator, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{middleware.Authenticate(secret, keys)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id, _ := middleware.CurrentUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.String(), "method": c.GetString(middleware.ContextAuthMethod)})
	})
	r.GET("/p", handlers...)
	return r
}

func do(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestAuthenticate(t *testing.T) {
	userID := uuid.New()
	token, err := utils.GenerateJWT(userID, "a@b.co", secret)
	require.NoError(t, err)

	t.Run("Bearer", func(t *testing.T) {
		rr := do(newRouter(nil), "Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), userID.String())
	})

	t.Run("MissingHeader", func(t *testing.T) {
		rr := do(newRouter(nil), "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("BadToken", func(t *testing.T) {
		rr := do(newRouter(nil), "Authorization", "Bearer nope")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("APIKey", func(t *testing.T) {
		keys := new(mockKeys)
		keys.On("Authenticate", mock.Anything, "pwk_good").
			Return(&apikey.Principal{KeyID: uuid.New(), UserID: userID, Permissions: []string{"read"}}, nil)
		rr := do(newRouter(keys), middleware.APIKeyHeader, "pwk_good")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), middleware.AuthMethodAPIKey)
		keys.AssertExpectations(t)
	})

	t.Run("ExpiredAPIKey", func(t *testing.T) {
		keys := new(mockKeys)
		keys.On("Authenticate", mock.Anything, "pwk_old").Return(nil, apikey.ErrKeyExpired)
		rr := do(newRouter(keys), middleware.APIKeyHeader, "pwk_old")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "expired")
	})

	t.Run("UnknownAPIKey", func(t *testing.T) {
		keys := new(mockKeys)
		keys.On("Authenticate", mock.Anything, "pwk_bad").Return(nil, apikey.ErrInvalidKey)
		rr := do(newRouter(keys), middleware.APIKeyHeader, "pwk_bad")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	userID := uuid.New()
	keys := new(mockKeys)
	keys.On("Authenticate", mock.Anything, "pwk_reader").
		Return(&apikey.Principal{UserID: userID, Permissions: []string{domain.PermissionRead}}, nil)
	token, err := utils.GenerateJWT(userID, "a@b.co", secret)
	require.NoError(t, err)

	transfer := newRouter(keys, middleware.RequirePermission(domain.PermissionTransfer))
	assert.Equal(t, http.StatusForbidden, do(transfer, middleware.APIKeyHeader, "pwk_reader").Code)
	assert.Equal(t, http.StatusOK, do(transfer, "Authorization", "Bearer "+token).Code)

	read := newRouter(keys, middleware.RequirePermission(domain.PermissionRead))
	assert.Equal(t, http.StatusOK, do(read, middleware.APIKeyHeader, "pwk_reader").Code)

	session := newRouter(keys, middleware.SessionOnly())
	assert.Equal(t, http.StatusForbidden, do(session, middleware.APIKeyHeader, "pwk_reader").Code)
	assert.Equal(t, http.StatusOK, do(session, "Authorization", "Bearer "+token).Code)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := gin.New()
	r.GET("/p", middleware.RateLimit(rdb, "test", 3, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		rr := do(r, "", "")
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := do(r, "", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, do(r, "", "").Code)
}

func TestRateLimitWithoutRedis(t *testing.T) {
	r := gin.New()
	r.GET("/p", middleware.RateLimit(nil, "test", 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(r, "", "").Code)
	}
}
