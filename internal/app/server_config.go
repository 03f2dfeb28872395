package app

import (
	"fmt"
	"strings"
	"time"
)

const defaultShutdownTimeout = 15 * time.Second

// Location resolves the timezone used to render token expiry strings.
func (c ServerConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: server.timezone: %w", err)
	}
	return loc, nil
}

// Address returns the listen address for the HTTP server.
func (c ServerConfig) Address() string {
	port := c.Port
	if port <= 0 {
		port = 8000
	}
	return fmt.Sprintf(":%d", port)
}

// GracePeriod bounds how long shutdown waits for in-flight requests.
func (c ServerConfig) GracePeriod() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return defaultShutdownTimeout
	}
	return c.ShutdownTimeout
}
