package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"walletledger/internal/gateway"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCharge(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/transaction/initialize", r.URL.Path)
			assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, float64(500050), body["amount"])
			assert.Equal(t, "DEP_1", body["reference"])
			assert.Equal(t, "a@b.co", body["email"])

			_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://checkout/x","access_code":"ac_1","reference":"DEP_1"}}`))
		}))
		defer srv.Close()

		p := gateway.NewPaystack(srv.URL, "sk_test", time.Second)
		charge, err := p.OpenCharge(context.Background(), decimal.RequireFromString("5000.50"), "a@b.co", "DEP_1")
		require.NoError(t, err)
		assert.Equal(t, "https://checkout/x", charge.AuthorizationURL)
		assert.Equal(t, "ac_1", charge.AccessCode)
		assert.Equal(t, "DEP_1", charge.Reference)
	})

	t.Run("Non2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
		}))
		defer srv.Close()

		p := gateway.NewPaystack(srv.URL, "sk_test", time.Second)
		_, err := p.OpenCharge(context.Background(), decimal.NewFromInt(10), "a@b.co", "DEP_2")
		assert.ErrorContains(t, err, "400")
	})

	t.Run("Timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		p := gateway.NewPaystack(srv.URL, "sk_test", 50*time.Millisecond)
		_, err := p.OpenCharge(context.Background(), decimal.NewFromInt(10), "a@b.co", "DEP_3")
		assert.Error(t, err)
	})
}

func TestQueryCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/DEP_9", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"status":"Abandoned","reference":"DEP_9"}}`))
	}))
	defer srv.Close()

	p := gateway.NewPaystack(srv.URL, "sk_test", time.Second)
	status, err := p.QueryCharge(context.Background(), "DEP_9")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusAbandoned, status)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(500000), gateway.ToMinorUnits(decimal.NewFromInt(5000)))
	assert.Equal(t, int64(1), gateway.ToMinorUnits(decimal.RequireFromString("0.01")))
	assert.Equal(t, int64(1234), gateway.ToMinorUnits(decimal.RequireFromString("12.344")))
}

func TestWebhookVerifier(t *testing.T) {
	v := gateway.NewWebhookVerifier("sk_test")
	payload := []byte(`{"event":"charge.success","data":{"reference":"DEP_1","status":"success"}}`)
	sig := v.Sign(payload)

	assert.True(t, v.Verify(payload, sig))
	assert.False(t, v.Verify(payload, ""))
	assert.False(t, v.Verify(payload, "not-hex"))
	assert.False(t, v.Verify(append(payload, ' '), sig))
	assert.False(t, gateway.NewWebhookVerifier("other").Verify(payload, sig))
	assert.False(t, gateway.NewWebhookVerifier("").Verify(payload, sig))
}
