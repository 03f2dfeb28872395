package models

import (
	"time"
)

// Session is one login: the current token pair bound to a session id.
type Session struct {
	SessionID        string    `gorm:"primaryKey;size:64" json:"session_id"`
	UserID           int64     `gorm:"not null;index" json:"user_id"`
	RoleClass        string    `gorm:"size:32;not null" json:"role_class"`
	AccessToken      string    `gorm:"type:text;not null" json:"-"`
	AccessExpiresAt  time.Time `gorm:"not null" json:"access_expires_at"`
	RefreshToken     string    `gorm:"type:text;not null" json:"-"`
	RefreshExpiresAt time.Time `gorm:"not null;index" json:"refresh_expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName keeps session rows apart from any framework-provided sessions table.
func (Session) TableName() string {
	return "auth_sessions"
}
