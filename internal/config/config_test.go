package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
client:
  host: 192.168.1.5
  port: 9000
  auto_reconnect: false
connection:
  reconnect_initial_delay: 500ms
  reconnect_max_delay: 20s
journal:
  enabled: true
  database:
    host: localhost
    name: padlink
    user: padlink
    password: secret
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Client.Host != "192.168.1.5" {
		t.Errorf("Client.Host = %q, want %q", cfg.Client.Host, "192.168.1.5")
	}
	if cfg.Client.Port != 9000 {
		t.Errorf("Client.Port = %d, want 9000", cfg.Client.Port)
	}
	if cfg.Client.AutoReconnectEnabled() {
		t.Error("Client.AutoReconnectEnabled() = true, want false")
	}
	if cfg.Connection.ReconnectInitialDelay != 500*time.Millisecond {
		t.Errorf("Connection.ReconnectInitialDelay = %v, want 500ms", cfg.Connection.ReconnectInitialDelay)
	}
	if !cfg.Journal.Enabled {
		t.Error("Journal.Enabled = false, want true")
	}
	if cfg.Journal.Database.Host != "localhost" {
		t.Errorf("Journal.Database.Host = %q, want %q", cfg.Journal.Database.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_PC_HOST", "10.0.0.4")

	yaml := `
client:
  host: ${TEST_PC_HOST}
journal:
  database:
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Client.Host != "10.0.0.4" {
		t.Errorf("Client.Host = %q, want %q", cfg.Client.Host, "10.0.0.4")
	}
	if cfg.Journal.Database.Password != "secret123" {
		t.Errorf("Journal.Database.Password = %q, want %q", cfg.Journal.Database.Password, "secret123")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "client:\n  host: pc.local\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Client.Port != DefaultPort {
		t.Errorf("Client.Port = %d, want default %d", cfg.Client.Port, DefaultPort)
	}
	if !cfg.Client.AutoReconnectEnabled() {
		t.Error("Client.AutoReconnectEnabled() = false, want default true")
	}
	if cfg.Connection.ReconnectInitialDelay != DefaultReconnectInitialDelay {
		t.Errorf("Connection.ReconnectInitialDelay = %v, want default %v", cfg.Connection.ReconnectInitialDelay, DefaultReconnectInitialDelay)
	}
	if cfg.Connection.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("Connection.ReconnectMaxDelay = %v, want default %v", cfg.Connection.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Connection.PingTimeout != 0 {
		t.Errorf("Connection.PingTimeout = %v, want 0", cfg.Connection.PingTimeout)
	}
	if cfg.Resume.Path == "" {
		t.Error("Resume.Path should have a default")
	}
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want default %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.Peer.MaxPlayers != DefaultMaxPlayers {
		t.Errorf("Peer.MaxPlayers = %d, want default %d", cfg.Peer.MaxPlayers, DefaultMaxPlayers)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "client:\n  port: 70000\n")

	if _, err := LoadAndValidate(path); err == nil {
		t.Error("LoadAndValidate() expected error for out-of-range port")
	}
}

func TestValidate(t *testing.T) {
	validDB := DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 4, MinConns: 1}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "defaults",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Client.Port = 70000 },
			wantErr: "client.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "deadzone too large",
			mutate:  func(c *Config) { c.Client.Deadzone = 1 },
			wantErr: "client.deadzone must be in [0, 1)",
		},
		{
			name: "max delay below initial",
			mutate: func(c *Config) {
				c.Connection.ReconnectInitialDelay = 5 * time.Second
				c.Connection.ReconnectMaxDelay = time.Second
			},
			wantErr: "connection.reconnect_max_delay (1s) cannot be below reconnect_initial_delay (5s)",
		},
		{
			name:    "multiplier below one",
			mutate:  func(c *Config) { c.Connection.ReconnectMultiplier = 0.5 },
			wantErr: "connection.reconnect_multiplier must be >= 1",
		},
		{
			name:    "journal missing host",
			mutate:  func(c *Config) { c.Journal.Enabled = true },
			wantErr: "journal.database.host is required",
		},
		{
			name: "journal min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Database = validDB
				c.Journal.Database.MinConns = 10
			},
			wantErr: "journal.database.min_conns (10) cannot exceed max_conns (4)",
		},
		{
			name: "journal valid",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Database = validDB
			},
			wantErr: "",
		},
		{
			name:    "disabled journal skips database",
			mutate:  func(c *Config) { c.Journal.Database = DBConfig{} },
			wantErr: "",
		},
		{
			name:    "no players",
			mutate:  func(c *Config) { c.Peer.MaxPlayers = -1 },
			wantErr: "peer.max_players must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
