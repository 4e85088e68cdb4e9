package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultMaxAttempts      = 5
	DefaultRetryInterval    = 3 * time.Second
	DefaultAckTimeout       = 10 * time.Second
	DefaultPingInterval     = 15 * time.Second
	DefaultStaleAfter       = 60 * time.Second
)

func (c *Config) applyDefaults() {
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Retry.Interval == 0 {
		c.Retry.Interval = DefaultRetryInterval
	}
	if c.Ack.Timeout == 0 {
		c.Ack.Timeout = DefaultAckTimeout
	}
	if c.Heartbeat.PingInterval == 0 {
		c.Heartbeat.PingInterval = DefaultPingInterval
	}
	if c.Heartbeat.StaleAfter == 0 {
		c.Heartbeat.StaleAfter = DefaultStaleAfter
	}
}
