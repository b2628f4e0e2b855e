package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent keeps every authenticated gateway notification for audit
type WebhookEvent struct {
	ID              uuid.UUID  `gorm:"type:char(36);primaryKey"`
	EventType       string     `gorm:"size:100;not null"`
	Reference       string     `gorm:"size:64;index"`
	Payload         string     `gorm:"type:text;not null"` // Raw body exactly as received
	Signature       string     `gorm:"size:500"`
	Processed       bool       `gorm:"not null;default:false;index"`
	ProcessedAt     *time.Time
	ProcessingError string     `gorm:"size:1000"`
	CreatedAt       time.Time  `gorm:"index"`
}

// BeforeCreate assigns a primary key when none was set
func (e *WebhookEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
