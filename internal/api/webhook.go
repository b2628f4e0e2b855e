package api

import (
	"io"       // Body reading
	"net/http" // HTTP status codes

	"walletledger/internal/gateway" // Signature header
	"walletledger/internal/ledger"  // Settlement

	"github.com/gin-gonic/gin" // Gin web framework
)

const maxWebhookBody = 1 << 20

// PaystackWebhookHandler settles deposits from gateway notifications. The raw
// body is passed through untouched because the signature covers its exact bytes.
func PaystackWebhookHandler(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil || len(body) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		outcome, err := l.ProcessWebhook(c.Request.Context(), body, c.GetHeader(gateway.SignatureHeader))
		if err != nil {
			// Settlement failures answer non-2xx so that the gateway redelivers
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": true, "outcome": outcome})
	}
}
