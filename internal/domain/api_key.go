package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Capabilities an API key can be granted
const (
	PermissionRead     = "read"
	PermissionDeposit  = "deposit"
	PermissionTransfer = "transfer"
)

// AllPermissions lists every capability, which is also what a JWT session holds
var AllPermissions = []string{PermissionDeposit, PermissionTransfer, PermissionRead}

// APIKey Model
type APIKey struct {
	ID          uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:char(36);not null;index" json:"user_id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	KeyHash     string     `gorm:"size:100;uniqueIndex;not null" json:"-"`
	Permissions string     `gorm:"size:100;not null" json:"-"` // Comma separated
	ExpiresAt   time.Time  `json:"expires_at"`
	Active      bool       `gorm:"not null;default:true" json:"active"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeCreate assigns a primary key when none was set
func (k *APIKey) BeforeCreate(*gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}

// PermissionList splits the stored permission set
func (k *APIKey) PermissionList() []string {
	if k.Permissions == "" {
		return nil
	}
	return strings.Split(k.Permissions, ",")
}

// HasPermission reports whether granted includes permission
func HasPermission(granted []string, permission string) bool {
	for _, p := range granted {
		if strings.EqualFold(p, permission) {
			return true
		}
	}
	return false
}

// Expired reports whether the key is past its expiry at the given time
func (k *APIKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
