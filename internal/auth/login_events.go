package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauth/internal/models"
)

// LoginEvent describes one successful login.
type LoginEvent struct {
	UserID    int64
	Role      RoleClass
	Surface   Surface
	SessionID string
	ClientIP  string
	UserAgent string
	At        time.Time
}

// LoginEventSink appends login events. Callers treat failures as non-fatal.
type LoginEventSink interface {
	Record(ctx context.Context, event LoginEvent) error
}

// GormLoginEventSink writes login_events and the user's last-login summary in one transaction.
type GormLoginEventSink struct {
	db *gorm.DB
}

// NewLoginEventSink builds a sink over the primary database.
func NewLoginEventSink(db *gorm.DB) (*GormLoginEventSink, error) {
	if db == nil {
		return nil, errors.New("login event sink: db is required")
	}
	return &GormLoginEventSink{db: db}, nil
}

func (s *GormLoginEventSink) Record(ctx context.Context, event LoginEvent) error {
	at := event.At.UTC()
	row := models.LoginEvent{
		UserID:    event.UserID,
		RoleClass: string(event.Role),
		ClientIP:  event.ClientIP,
		UserAgent: event.UserAgent,
		Meta: datatypes.JSONMap{
			"surface":    string(event.Surface),
			"session_id": event.SessionID,
		},
		CreatedAt: at,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("login event: insert: %w", err)
		}
		res := tx.Model(&models.User{}).Where("id = ?", event.UserID).Updates(map[string]any{
			"last_login_at":  at,
			"last_login_ref": row.ID,
		})
		if res.Error != nil {
			return fmt.Errorf("login event: update user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("login event: %w", ErrUserNotFound)
		}
		return nil
	})
}
