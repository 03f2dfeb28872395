package app

import (
	"strings"

	"github.com/charlesng35/cmsauth/internal/database"
)

// OpenConfig converts the database section into database.Open parameters. Host parameters
// come from the section matching the driver.
func (c DatabaseConfig) OpenConfig() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	cfg := database.Config{
		Driver:   driver,
		Path:     strings.TrimSpace(c.Path),
		DSN:      strings.TrimSpace(c.DSN),
		LogLevel: c.LogLevel,
		Pool: database.PoolConfig{
			MaxOpen:         c.Pool.MaxOpen,
			MaxIdle:         c.Pool.MaxIdle,
			ConnMaxLifetime: c.Pool.ConnMaxLifetime,
			ConnectTimeout:  c.Pool.ConnectTimeout,
			AcquireTimeout:  c.Pool.AcquireTimeout,
		},
	}

	var host DBAuthConfig
	switch driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql", "mariadb":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = strings.TrimSpace(host.Host)
	cfg.Port = host.Port
	cfg.Name = strings.TrimSpace(host.Database)
	cfg.User = strings.TrimSpace(host.Username)
	cfg.Password = host.Password
	cfg.Options = host.Options
	return cfg
}
