package app

import (
	"strings"
	"time"

	"github.com/charlesng35/cmsauth/internal/auth"
	"github.com/charlesng35/cmsauth/internal/middleware"
)

const (
	minAccessDays  = 1
	maxAccessDays  = 30
	minRefreshDays = 30
	maxRefreshDays = 365

	defaultAccessDays  = 7
	defaultRefreshDays = 365
)

// AccessLifetime returns the access token lifetime, clamped to [1, 30] days.
func (c AuthConfig) AccessLifetime() time.Duration {
	return auth.Days(clampDays(c.AccessDays, defaultAccessDays, minAccessDays, maxAccessDays))
}

// RefreshLifetime returns the refresh token lifetime, clamped to [30, 365] days.
func (c AuthConfig) RefreshLifetime() time.Duration {
	return auth.Days(clampDays(c.RefreshDays, defaultRefreshDays, minRefreshDays, maxRefreshDays))
}

// TokenCodecConfig converts AuthConfig into token signing parameters.
func (c AuthConfig) TokenCodecConfig() auth.TokenCodecConfig {
	return auth.TokenCodecConfig{
		Secret: c.JWT.Secret,
		Issuer: strings.TrimSpace(c.JWT.Issuer),
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig(clock auth.Clock) auth.SessionConfig {
	window := c.RotationWindow
	if window <= 0 {
		window = auth.DefaultRotationWindow
	}
	return auth.SessionConfig{
		AccessLifetime:  c.AccessLifetime(),
		RefreshLifetime: c.RefreshLifetime(),
		RotationWindow:  window,
		Clock:           clock,
	}
}

// PasswordHasher builds the configured password digest.
func (c AuthConfig) PasswordHasher() (auth.PasswordHasher, error) {
	return auth.NewPasswordHasher(strings.ToLower(strings.TrimSpace(c.Password.Algorithm)))
}

// LoginRateLimit converts the login throttle settings for the rate limit middleware.
func (c AuthConfig) LoginRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Limit:  c.LoginRate.Limit,
		Window: c.LoginRate.Window,
	}
}

func clampDays(value, fallback, lo, hi int) int {
	if value == 0 {
		value = fallback
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
