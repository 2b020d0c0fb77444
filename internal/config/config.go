package config

import "time"

// Config is the root configuration for a padlink process.
type Config struct {
	Client     ClientConfig     `yaml:"client"`
	Connection ConnectionConfig `yaml:"connection"`
	Resume     ResumeConfig     `yaml:"resume"`
	Journal    JournalConfig    `yaml:"journal"`
	Peer       PeerConfig       `yaml:"peer"`
}

// ClientConfig holds handheld-side settings.
type ClientConfig struct {
	Host          string  `yaml:"host"` // Optional; the pair command or --host can supply it
	Port          int     `yaml:"port"`
	AutoReconnect *bool   `yaml:"auto_reconnect"` // nil = enabled
	MaxInputRate  float64 `yaml:"max_input_rate"` // Input frames per second, negative = unlimited
	Deadzone      float64 `yaml:"deadzone"`       // Radial stick deadzone, 0..1
}

// ConnectionConfig holds WebSocket session settings.
type ConnectionConfig struct {
	ReconnectInitialDelay time.Duration `yaml:"reconnect_initial_delay"`
	ReconnectMaxDelay     time.Duration `yaml:"reconnect_max_delay"`
	ReconnectMultiplier   float64       `yaml:"reconnect_multiplier"`
	PingInterval          time.Duration `yaml:"ping_interval"`
	PingTimeout           time.Duration `yaml:"ping_timeout"` // 0 = no stale detection
	HandshakeTimeout      time.Duration `yaml:"handshake_timeout"`
	WriteTimeout          time.Duration `yaml:"write_timeout"`
	BufferSize            int           `yaml:"buffer_size"`
}

// ResumeConfig controls the reconnect checkpoint file.
type ResumeConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	MaxAge  time.Duration `yaml:"max_age"`
}

// JournalConfig controls recording of state changes to PostgreSQL.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PeerConfig holds reference peer settings.
type PeerConfig struct {
	Listen     string `yaml:"listen"`
	MaxPlayers int    `yaml:"max_players"`
}

// AutoReconnectEnabled resolves the optional auto_reconnect flag.
func (c ClientConfig) AutoReconnectEnabled() bool {
	return c.AutoReconnect == nil || *c.AutoReconnect
}
