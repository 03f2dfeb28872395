package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/cmsauth/internal/auth"
)

// ApplyRuntimeDefaults fills settings that must never be empty at runtime. It returns the keys
// that fell back to a built-in value so callers can log them without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	fallbacks := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		cfg.Auth.JWT.Secret = auth.DefaultSecret
		fallbacks["auth.jwt.secret"] = true
	} else if cfg.Auth.JWT.Secret == auth.DefaultSecret {
		fallbacks["auth.jwt.secret"] = true
	}

	if strings.TrimSpace(cfg.Auth.Password.Algorithm) == "" {
		cfg.Auth.Password.Algorithm = auth.PasswordSHA256
	}

	if strings.TrimSpace(cfg.Database.Driver) == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && strings.TrimSpace(cfg.Database.Path) == "" && strings.TrimSpace(cfg.Database.DSN) == "" {
		cfg.Database.Path = "./data/cms.sqlite"
		fallbacks["database.path"] = true
	}

	cfg.Cache.Driver = cfg.Cache.DriverName()

	return fallbacks, nil
}
