package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"walletledger/internal/domain"
	"walletledger/internal/ledger"
	"walletledger/internal/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidGoogleToken = errors.New("invalid google token")
	ErrEmailNotVerified   = errors.New("google account email is not verified")
)

// Session is what a successful login hands back to the client
type Session struct {
	Token        string       `json:"token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *domain.User `json:"user"`
	WalletNumber string       `json:"wallet_number"`
}

// Service resolves callers to users and issues session tokens
type Service struct {
	db        *gorm.DB
	ledger    *ledger.Service
	google    TokenValidator
	jwtSecret string
}

func NewService(db *gorm.DB, l *ledger.Service, google TokenValidator, jwtSecret string) *Service {
	return &Service{db: db, ledger: l, google: google, jwtSecret: jwtSecret}
}

// isValidPassword checks if the password length is between 8 and 72 characters (bcrypt limit)
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72
}

// Register creates a local account with its wallet
func (s *Service) Register(ctx context.Context, email, name, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &ledger.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	if !isValidPassword(password) {
		return nil, &ledger.ValidationError{Field: "password", Message: "must be 8-72 characters"}
	}
	var taken int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{Email: email, Name: strings.TrimSpace(name), PasswordHash: string(hash), Role: domain.RoleUser}
	wallet, err := s.ledger.Onboard(ctx, user)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return s.issue(user, wallet)
}

// Login checks a local password
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials // Google-only account
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	wallet, err := s.ledger.EnsureWallet(ctx, &user)
	if err != nil {
		return nil, err
	}
	return s.issue(&user, wallet)
}

// GoogleLogin signs in with a Google ID token. The first login creates the
// user and wallet, a later one links an existing local account by email.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, &ledger.ValidationError{Field: "id_token", Message: "is required"}
	}
	profile, err := s.google.Validate(ctx, idToken)
	if err != nil {
		logrus.WithError(err).Warn("Google token rejected")
		return nil, ErrInvalidGoogleToken
	}
	if profile.Subject == "" || profile.Email == "" {
		return nil, ErrInvalidGoogleToken
	}
	if !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	var user domain.User
	err = s.db.WithContext(ctx).Where("google_id = ?", profile.Subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.db.WithContext(ctx).Where("email = ?", profile.Email).First(&user).Error
		if err == nil {
			sub := profile.Subject
			if err := s.db.WithContext(ctx).Model(&user).Update("google_id", sub).Error; err != nil {
				return nil, err
			}
			user.GoogleID = &sub
			logrus.WithField("user_id", user.ID).Info("Linked Google identity to existing account")
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub := profile.Subject
		user = domain.User{Email: profile.Email, Name: profile.Name, GoogleID: &sub, Role: domain.RoleUser}
		wallet, err := s.ledger.Onboard(ctx, &user)
		if err != nil {
			return nil, err
		}
		return s.issue(&user, wallet)
	}
	if err != nil {
		return nil, err
	}

	wallet, err := s.ledger.EnsureWallet(ctx, &user)
	if err != nil {
		return nil, err
	}
	return s.issue(&user, wallet)
}

func (s *Service) issue(user *domain.User, wallet *domain.Wallet) (*Session, error) {
	token, err := utils.GenerateJWT(user.ID, user.Email, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{
		Token:        token,
		ExpiresAt:    time.Now().Add(utils.TokenTTL),
		User:         user,
		WalletNumber: wallet.WalletNumber,
	}, nil
}
