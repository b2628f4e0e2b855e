package api

import (
	"net/http" // HTTP status codes

	"walletledger/internal/identity" // Identity resolution

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request and Response structs
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Name     string `json:"name"`                        // Display name
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Request struct for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Request struct for Google sign-in
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"` // Google ID token from the client
}

// RegisterHandler creates a local account with its wallet and signs it in
func RegisterHandler(ids *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		session, err := ids.Register(c.Request.Context(), req.Email, req.Name, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, session) // Return the session
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(ids *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		session, err := ids.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session) // Return the token in the response
	}
}

// GoogleLoginHandler exchanges a Google ID token for a session, onboarding first-time users
func GoogleLoginHandler(ids *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GoogleLoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		session, err := ids.GoogleLogin(c.Request.Context(), req.IDToken)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}
