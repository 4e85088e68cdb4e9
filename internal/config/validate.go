package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url is not a valid URL: %v", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server.url scheme must be ws or wss, got %q", u.Scheme)
	}

	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts cannot be negative")
	}
	if c.Retry.Interval < 0 {
		return fmt.Errorf("retry.interval cannot be negative")
	}
	if c.Ack.Timeout <= 0 {
		return fmt.Errorf("ack.timeout must be positive")
	}
	if c.Heartbeat.PingInterval <= 0 {
		return fmt.Errorf("heartbeat.ping_interval must be positive")
	}
	if c.Heartbeat.StaleAfter <= c.Heartbeat.PingInterval {
		return fmt.Errorf("heartbeat.stale_after (%v) must exceed ping_interval (%v)",
			c.Heartbeat.StaleAfter, c.Heartbeat.PingInterval)
	}

	return nil
}
