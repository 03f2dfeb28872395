package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the profile-service account row. The auth core only reads credentials from it and
// writes the last-login summary.
type User struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"size:64;index" json:"name"`
	Phone    string `gorm:"size:32;index" json:"phone"`
	Email    string `gorm:"size:128;index" json:"email"`
	Nickname string `gorm:"size:64" json:"nickname"`
	Avatar   string `gorm:"size:255" json:"avatar"`

	Salt     string `gorm:"size:32;not null" json:"-"`
	Password string `gorm:"size:128;not null" json:"-"`
	Enabled  bool   `gorm:"not null" json:"enabled"`

	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginRef string     `gorm:"size:64" json:"last_login_ref"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
