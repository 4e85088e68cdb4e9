package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "channel.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
server:
  url: wss://desk.example.com/events
retry:
  max_attempts: 7
  interval: 2s
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URL != "wss://desk.example.com/events" {
		t.Errorf("Server.URL = %q, want %q", cfg.Server.URL, "wss://desk.example.com/events")
	}
	if cfg.Retry.MaxAttempts != 7 {
		t.Errorf("Retry.MaxAttempts = %d, want 7", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Interval != 2*time.Second {
		t.Errorf("Retry.Interval = %v, want 2s", cfg.Retry.Interval)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DESK_HOST", "desk.internal")

	yaml := `
server:
  url: wss://${TEST_DESK_HOST}/events
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URL != "wss://desk.internal/events" {
		t.Errorf("Server.URL = %q, want %q", cfg.Server.URL, "wss://desk.internal/events")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
server:
  url: wss://desk.example.com/events
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Retry.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Retry.MaxAttempts = %d, want default %d", cfg.Retry.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Retry.Interval != DefaultRetryInterval {
		t.Errorf("Retry.Interval = %v, want default %v", cfg.Retry.Interval, DefaultRetryInterval)
	}
	if cfg.Ack.Timeout != DefaultAckTimeout {
		t.Errorf("Ack.Timeout = %v, want default %v", cfg.Ack.Timeout, DefaultAckTimeout)
	}
	if cfg.Heartbeat.StaleAfter != DefaultStaleAfter {
		t.Errorf("Heartbeat.StaleAfter = %v, want default %v", cfg.Heartbeat.StaleAfter, DefaultStaleAfter)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server: ServerConfig{URL: "wss://desk.example.com/events"},
			Retry:  RetryConfig{MaxAttempts: 5, Interval: time.Second},
			Ack:    AckConfig{Timeout: 10 * time.Second},
			Heartbeat: HeartbeatConfig{
				PingInterval: 15 * time.Second,
				StaleAfter:   60 * time.Second,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing server url",
			mutate:  func(c *Config) { c.Server.URL = "" },
			wantErr: "server.url is required",
		},
		{
			name:    "http scheme rejected",
			mutate:  func(c *Config) { c.Server.URL = "https://desk.example.com/events" },
			wantErr: `server.url scheme must be ws or wss, got "https"`,
		},
		{
			name:    "negative retry interval",
			mutate:  func(c *Config) { c.Retry.Interval = -time.Second },
			wantErr: "retry.interval cannot be negative",
		},
		{
			name:    "zero ack timeout",
			mutate:  func(c *Config) { c.Ack.Timeout = 0 },
			wantErr: "ack.timeout must be positive",
		},
		{
			name: "stale_after not past ping_interval",
			mutate: func(c *Config) {
				c.Heartbeat.PingInterval = 30 * time.Second
				c.Heartbeat.StaleAfter = 30 * time.Second
			},
			wantErr: "heartbeat.stale_after (30s) must exceed ping_interval (30s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}
