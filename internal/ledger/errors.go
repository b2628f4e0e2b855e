package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrRecipientNotFound   = errors.New("recipient wallet not found")
	ErrSelfTransfer        = errors.New("cannot transfer to your own wallet")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrForbidden           = errors.New("you do not have access to this transaction")
	ErrConcurrentUpdate    = errors.New("wallet was modified by a concurrent operation, please try again")
	ErrNegativeBalance     = errors.New("balance cannot become negative")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedWebhook    = errors.New("malformed webhook payload")
)

// ValidationError rejects a request before any state change
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// InsufficientBalanceError carries enough context for the caller to correct the amount
type InsufficientBalanceError struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

// Shortfall is how much the sender is missing
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, required %s, short by %s",
		e.Available.StringFixed(2), e.Required.StringFixed(2), e.Shortfall().StringFixed(2))
}

// GatewayError wraps a failure of the external payment gateway
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return "payment gateway " + e.Op + " failed: " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
