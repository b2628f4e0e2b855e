package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles a user can hold
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User Model
type User struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"` // Primary key
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:255" json:"name"`
	GoogleID     *string   `gorm:"size:64;uniqueIndex" json:"-"` // Subject of the Google identity, if any
	PasswordHash string    `gorm:"size:100" json:"-"`            // Only set for local accounts
	Role         string    `gorm:"size:20;default:user" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Wallet       *Wallet   `gorm:"foreignKey:UserID" json:"wallet,omitempty"` // Has one wallet
}

// BeforeCreate assigns a primary key when none was set
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
