package models

import "time"

// CacheEntry is one row of the database-backed allowlist. Keys are either
// "jwt:<session id>" markers or rate-limit counters; Value holds the marker
// payload or the decimal count.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table shared by every cache row.
func (CacheEntry) TableName() string {
	return "cache_entries"
}

// Expired reports whether the entry is dead at now. A zero ExpiresAt never expires.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}
