package apikey

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"walletledger/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// MaxActiveKeys caps the active keys a user may hold at once
	MaxActiveKeys = 5

	keyPrefix     = "pwk_"
	randomSuffix  = 12
	maxNameLength = 100
	alphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	ErrKeyLimitReached = errors.New("maximum of 5 active API keys allowed per user")
	ErrKeyNotFound     = errors.New("API key not found")
	ErrNotKeyOwner     = errors.New("you can only rollover your own API keys")
	ErrKeyNotExpired   = errors.New("API key must be expired before it can be rolled over")
	ErrKeyRolledOver   = errors.New("API key has already been rolled over")
	ErrInvalidKey      = errors.New("invalid API key")
	ErrKeyExpired      = errors.New("API key has expired")
	ErrInvalidExpiry   = errors.New("expiry must be one of: 1H, 1D, 1M, 1Y")
	ErrInvalidName     = errors.New("API key name is required and cannot exceed 100 characters")
	ErrInvalidScope    = errors.New("permissions must be a non-empty subset of: deposit, transfer, read")
)

var expiries = map[string]time.Duration{
	"1H": time.Hour,
	"1D": 24 * time.Hour,
	"1M": 30 * 24 * time.Hour,
	"1Y": 365 * 24 * time.Hour,
}

// ParseExpiry maps an expiry code to a duration
func ParseExpiry(code string) (time.Duration, error) {
	d, ok := expiries[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return 0, ErrInvalidExpiry
	}
	return d, nil
}

// Issued is returned once, at creation, with the only copy of the plaintext key
type Issued struct {
	APIKey      string    `json:"api_key"`
	KeyID       uuid.UUID `json:"key_id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Principal is an authenticated API key caller
type Principal struct {
	KeyID       uuid.UUID
	UserID      uuid.UUID
	Permissions []string
}

// Service manages scoped machine credentials
type Service struct {
	db     *gorm.DB
	secret []byte
	now    func() time.Time
}

func NewService(db *gorm.DB, secret string) *Service {
	return &Service{db: db, secret: []byte(secret), now: func() time.Time { return time.Now().UTC() }}
}

// Hash derives the stored form of a plaintext key
func (s *Service) Hash(plain string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(plain))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func generate() (string, error) {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	b.WriteByte('_')
	for i := 0; i < randomSuffix; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

func normalizePermissions(perms []string) ([]string, error) {
	if len(perms) == 0 {
		return nil, ErrInvalidScope
	}
	seen := make(map[string]bool, len(perms))
	var out []string
	for _, p := range perms {
		p = strings.ToLower(strings.TrimSpace(p))
		switch p {
		case domain.PermissionDeposit, domain.PermissionTransfer, domain.PermissionRead:
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, p)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}

// Create issues a new key for userID
func (s *Service) Create(ctx context.Context, userID uuid.UUID, name string, permissions []string, expiry string) (*Issued, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, ErrInvalidName
	}
	perms, err := normalizePermissions(permissions)
	if err != nil {
		return nil, err
	}
	ttl, err := ParseExpiry(expiry)
	if err != nil {
		return nil, err
	}

	var active int64
	if err := s.db.WithContext(ctx).Model(&domain.APIKey{}).
		Where("user_id = ? AND active = ?", userID, true).Count(&active).Error; err != nil {
		return nil, err
	}
	if active >= MaxActiveKeys {
		logrus.WithField("user_id", userID).Warn("API key limit reached")
		return nil, ErrKeyLimitReached
	}

	return s.issue(s.db.WithContext(ctx), userID, name, perms, ttl)
}

// Rollover replaces one of the caller's expired keys with a fresh key that
// carries the same name and permissions.
func (s *Service) Rollover(ctx context.Context, userID, oldKeyID uuid.UUID, expiry string) (*Issued, error) {
	ttl, err := ParseExpiry(expiry)
	if err != nil {
		return nil, err
	}

	var issued *Issued
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old domain.APIKey
		if err := tx.Where("id = ?", oldKeyID).First(&old).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		if old.UserID != userID {
			logrus.WithFields(logrus.Fields{"user_id": userID, "key_id": oldKeyID}).
				Warn("Rollover attempted on a key owned by another user")
			return ErrNotKeyOwner
		}
		if !old.Expired(s.now()) {
			return ErrKeyNotExpired
		}
		// Only the rollover that deactivates the key may issue its replacement
		res := tx.Model(&domain.APIKey{}).Where("id = ? AND active = ?", old.ID, true).Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrKeyRolledOver
		}
		k, ierr := s.issue(tx, userID, old.Name, old.PermissionList(), ttl)
		issued = k
		return ierr
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"old_key_id": oldKeyID, "new_key_id": issued.KeyID}).Info("API key rolled over")
	return issued, nil
}

func (s *Service) issue(tx *gorm.DB, userID uuid.UUID, name string, perms []string, ttl time.Duration) (*Issued, error) {
	plain, err := generate()
	if err != nil {
		return nil, err
	}
	key := domain.APIKey{
		UserID:      userID,
		Name:        name,
		KeyHash:     s.Hash(plain),
		Permissions: strings.Join(perms, ","),
		ExpiresAt:   s.now().Add(ttl),
		Active:      true,
	}
	if err := tx.Create(&key).Error; err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"key_id":      key.ID,
		"permissions": key.Permissions,
	}).Info("API key created")
	return &Issued{APIKey: plain, KeyID: key.ID, Name: key.Name, Permissions: perms, ExpiresAt: key.ExpiresAt}, nil
}

// Authenticate resolves a plaintext key to its owner and permissions
func (s *Service) Authenticate(ctx context.Context, plain string) (*Principal, error) {
	if !strings.HasPrefix(plain, keyPrefix) {
		return nil, ErrInvalidKey
	}
	var key domain.APIKey
	err := s.db.WithContext(ctx).Where("key_hash = ? AND active = ?", s.Hash(plain), true).First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, err
	}
	now := s.now()
	if key.Expired(now) {
		logrus.WithField("key_id", key.ID).Warn("Expired API key used")
		return nil, ErrKeyExpired
	}

	go s.touch(key.ID, now)

	return &Principal{KeyID: key.ID, UserID: key.UserID, Permissions: key.PermissionList()}, nil
}

// touch stamps last use outside the request path
func (s *Service) touch(id uuid.UUID, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.db.WithContext(ctx).Model(&domain.APIKey{}).Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error; err != nil {
		logrus.WithError(err).WithField("key_id", id).Error("Failed to update API key last use")
	}
}
