package api

import (
	"net/http" // HTTP status codes

	"walletledger/internal/ledger" // Wallet ledger

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Fixed-point amounts
)

// DepositRequest represents a deposit request
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"` // Amount in naira, validated by the ledger
}

// TransferRequest represents a transfer request
type TransferRequest struct {
	WalletNumber string          `json:"wallet_number" binding:"required"` // Recipient wallet number
	Amount       decimal.Decimal `json:"amount"`                           // Transfer amount
	Description  string          `json:"description"`                      // Optional note
}

// BalanceHandler returns the caller's wallet number and balance
func BalanceHandler(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		balance, err := l.Balance(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, balance)
	}
}

// GetTransactionHistoryHandler returns the caller's transactions with pagination
func GetTransactionHistoryHandler(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		page, pageSize := pagination(c) // Parse pagination parameters
		result, err := l.Transactions(c.Request.Context(), userID, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ResolveWalletHandler shows whose wallet a number belongs to
func ResolveWalletHandler(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolved, err := l.ResolveWalletNumber(c.Request.Context(), c.Param("number"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resolved)
	}
}

// DepositHandler opens a gateway charge for the caller's wallet
func DepositHandler(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req DepositRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		result, err := l.InitiateDeposit(c.Request.Context(), userID, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

// DepositStatusHandler reports a deposit owned by the caller
func DepositStatusHandler(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		status, err := l.DepositStatus(c.Request.Context(), userID, c.Param("reference"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// TransferHandler allows a user to transfer funds to another wallet
func TransferHandler(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req TransferRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		result, err := l.Transfer(c.Request.Context(), userID, ledger.TransferRequest{
			WalletNumber: req.WalletNumber,
			Amount:       req.Amount,
			Description:  req.Description,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
