package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LoginEvent is an append-only record of a successful login.
type LoginEvent struct {
	ID        string            `gorm:"primaryKey;size:36" json:"id"`
	UserID    int64             `gorm:"not null;index" json:"user_id"`
	RoleClass string            `gorm:"size:32;not null" json:"role_class"`
	ClientIP  string            `gorm:"size:64" json:"client_ip"`
	UserAgent string            `gorm:"size:512" json:"user_agent"`
	Meta      datatypes.JSONMap `json:"meta,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

func (e *LoginEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
