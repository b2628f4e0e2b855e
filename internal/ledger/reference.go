package ledger

import (
	"crypto/rand"
	"math/big"

	"github.com/oklog/ulid/v2"
)

const (
	depositPrefix  = "DEP_"
	transferPrefix = "TRF_"
	debitSuffix    = "_DEBIT"
	creditSuffix   = "_CREDIT"

	walletNumberDigits = 13
)

// NewDepositReference returns a fresh idempotency key for a deposit entry.
// ulid.Make is safe for concurrent use and monotonic within a millisecond.
func NewDepositReference() string {
	return depositPrefix + ulid.Make().String()
}

// NewTransferReference returns a fresh transfer-level reference
func NewTransferReference() string {
	return transferPrefix + ulid.Make().String()
}

// DebitReference derives the sender entry reference from a transfer reference
func DebitReference(transferRef string) string {
	return transferRef + debitSuffix
}

// CreditReference derives the recipient entry reference from a transfer reference
func CreditReference(transferRef string) string {
	return transferRef + creditSuffix
}

// newWalletNumber draws a 13 digit number that never starts with zero
func newWalletNumber() (string, error) {
	buf := make([]byte, walletNumberDigits)
	for i := range buf {
		max := int64(10)
		if i == 0 {
			max = 9
		}
		n, err := rand.Int(rand.Reader, big.NewInt(max))
		if err != nil {
			return "", err
		}
		d := byte(n.Int64())
		if i == 0 {
			d++
		}
		buf[i] = '0' + d
	}
	return string(buf), nil
}
