package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/cmsauth/internal/models"
)

// AutoMigrate creates or updates the tables owned or read by the auth service.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.LoginEvent{},
		&models.CacheEntry{},
	)
}
