package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/cmsauth/internal/models"
)

// TokenUpdate carries the fields rewritten by a refresh. Refresh fields are written only when set.
type TokenUpdate struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     *string
	RefreshExpiresAt *time.Time
	UpdatedAt        time.Time
}

// SessionStore persists session rows keyed by session id.
type SessionStore interface {
	Insert(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	UpdateTokens(ctx context.Context, sessionID string, update TokenUpdate) error
	// Delete is idempotent and reports whether a row was removed.
	Delete(ctx context.Context, sessionID string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]string, error)
}

// GormSessionStore implements SessionStore on the auth_sessions table.
type GormSessionStore struct {
	db             *gorm.DB
	acquireTimeout time.Duration
}

// NewGormSessionStore builds the store. acquireTimeout bounds every call; zero disables it.
func NewGormSessionStore(db *gorm.DB, acquireTimeout time.Duration) (*GormSessionStore, error) {
	if db == nil {
		return nil, errors.New("session store: db is required")
	}
	return &GormSessionStore{db: db, acquireTimeout: acquireTimeout}, nil
}

func (s *GormSessionStore) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.acquireTimeout <= 0 {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	return s.db.WithContext(ctx), cancel
}

func (s *GormSessionStore) Insert(ctx context.Context, session *models.Session) error {
	if session == nil || session.SessionID == "" {
		return errors.New("session store: session id is required")
	}

	row := *session
	row.AccessExpiresAt = row.AccessExpiresAt.UTC()
	row.RefreshExpiresAt = row.RefreshExpiresAt.UTC()
	row.CreatedAt = row.CreatedAt.UTC()
	row.UpdatedAt = row.UpdatedAt.UTC()

	db, cancel := s.conn(ctx)
	defer cancel()

	if err := db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrSessionConflict, session.SessionID)
		}
		return fmt.Errorf("session store: insert: %w", err)
	}
	return nil
}

func (s *GormSessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var row models.Session
	err := db.Take(&row, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session store: get: %w", err)
	}
	return &row, nil
}

func (s *GormSessionStore) UpdateTokens(ctx context.Context, sessionID string, update TokenUpdate) error {
	updates := map[string]any{
		"access_token":      update.AccessToken,
		"access_expires_at": update.AccessExpiresAt.UTC(),
		"updated_at":        update.UpdatedAt.UTC(),
	}
	if update.RefreshToken != nil {
		updates["refresh_token"] = *update.RefreshToken
	}
	if update.RefreshExpiresAt != nil {
		updates["refresh_expires_at"] = update.RefreshExpiresAt.UTC()
	}

	db, cancel := s.conn(ctx)
	defer cancel()

	res := db.Model(&models.Session{}).Where("session_id = ?", sessionID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("session store: update tokens: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Some drivers report changed rather than matched rows, so an identical rewrite counts 0.
	var count int64
	if err := db.Model(&models.Session{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		return fmt.Errorf("session store: update tokens: %w", err)
	}
	if count == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *GormSessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	res := db.Where("session_id = ?", sessionID).Delete(&models.Session{})
	if res.Error != nil {
		return false, fmt.Errorf("session store: delete: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormSessionStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	res := db.Where("refresh_expires_at < ?", before.UTC()).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("session store: delete expired: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormSessionStore) ListByUser(ctx context.Context, userID int64) ([]string, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var ids []string
	if err := db.Model(&models.Session{}).Where("user_id = ?", userID).Order("created_at").Pluck("session_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("session store: list by user: %w", err)
	}
	return ids, nil
}
