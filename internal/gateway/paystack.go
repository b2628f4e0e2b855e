package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Gateway charge statuses that end a deposit without crediting it
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusReversed  = "reversed"
	StatusUnknown   = "unknown"
)

// Charge is an open payment session at the gateway
type Charge struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Paystack talks to the Paystack transaction API
type Paystack struct {
	baseURL    string
	secretKey  string
	currency   string
	httpClient *http.Client
}

// NewPaystack builds a client. The timeout bounds each call on top of the caller's context.
func NewPaystack(baseURL, secretKey string, timeout time.Duration) *Paystack {
	return &Paystack{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		currency:   "NGN",
		httpClient: &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ToMinorUnits converts a major-unit amount (naira) to kobo
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// OpenCharge initializes a transaction the customer completes on the gateway's page
func (p *Paystack) OpenCharge(ctx context.Context, amount decimal.Decimal, email, reference string) (*Charge, error) {
	body := map[string]any{
		"email":     email,
		"amount":    ToMinorUnits(amount),
		"reference": reference,
		"currency":  p.currency,
	}
	data, err := p.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	var charge Charge
	if err := json.Unmarshal(data, &charge); err != nil {
		return nil, fmt.Errorf("failed to parse charge: %w", err)
	}
	if charge.AuthorizationURL == "" {
		return nil, fmt.Errorf("gateway returned no authorization url for %s", reference)
	}
	return &charge, nil
}

// QueryCharge returns the gateway's status string for a reference
func (p *Paystack) QueryCharge(ctx context.Context, reference string) (string, error) {
	data, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return "", err
	}
	var tx struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &tx); err != nil {
		return "", fmt.Errorf("failed to parse verification: %w", err)
	}
	return strings.ToLower(tx.Status), nil
}

func (p *Paystack) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logrus.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("Gateway request rejected")
		return nil, fmt.Errorf("gateway responded %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}
	if !env.Status {
		return nil, fmt.Errorf("gateway refused request: %s", env.Message)
	}
	return env.Data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
