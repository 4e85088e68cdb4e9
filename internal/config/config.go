package config

import "time"

// Config is the root configuration for the desk channel client.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Retry     RetryConfig     `yaml:"retry"`
	Ack       AckConfig       `yaml:"ack"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

// ServerConfig locates the desk event server.
type ServerConfig struct {
	URL              string        `yaml:"url"` // ws:// or wss://
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// RetryConfig bounds reconnection for one session.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"` // fixed delay, no backoff
}

// AckConfig tunes acknowledged emits.
type AckConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// HeartbeatConfig tunes the keepalive ping.
type HeartbeatConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	StaleAfter   time.Duration `yaml:"stale_after"`
}
