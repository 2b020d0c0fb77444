package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultPort                  = 8765
	DefaultMaxInputRate          = 120
	DefaultDeadzone              = 0.1
	DefaultReconnectInitialDelay = 1 * time.Second
	DefaultReconnectMaxDelay     = 30 * time.Second
	DefaultReconnectMultiplier   = 2.0
	DefaultPingInterval          = 15 * time.Second
	DefaultHandshakeTimeout      = 10 * time.Second
	DefaultWriteTimeout          = 5 * time.Second
	DefaultBufferSize            = 64
	DefaultResumeMaxAge          = 10 * time.Minute
	DefaultResumeFile            = "resume.cbor"
	DefaultDBPort                = 5432
	DefaultDBSSLMode             = "prefer"
	DefaultMaxConns              = 4
	DefaultMinConns              = 1
	DefaultBatchSize             = 100
	DefaultFlushInterval         = 2 * time.Second
	DefaultPeerListen            = ":8765"
	DefaultMaxPlayers            = 4
)

func (c *Config) applyDefaults() {
	// Client defaults
	if c.Client.Port == 0 {
		c.Client.Port = DefaultPort
	}
	if c.Client.MaxInputRate == 0 {
		c.Client.MaxInputRate = DefaultMaxInputRate
	}
	if c.Client.Deadzone == 0 {
		c.Client.Deadzone = DefaultDeadzone
	}

	// Connection defaults
	if c.Connection.ReconnectInitialDelay == 0 {
		c.Connection.ReconnectInitialDelay = DefaultReconnectInitialDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.ReconnectMultiplier == 0 {
		c.Connection.ReconnectMultiplier = DefaultReconnectMultiplier
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Resume defaults
	if c.Resume.Path == "" {
		c.Resume.Path = defaultResumePath()
	}
	if c.Resume.MaxAge == 0 {
		c.Resume.MaxAge = DefaultResumeMaxAge
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	applyDBDefaults(&c.Journal.Database)

	// Peer defaults
	if c.Peer.Listen == "" {
		c.Peer.Listen = DefaultPeerListen
	}
	if c.Peer.MaxPlayers == 0 {
		c.Peer.MaxPlayers = DefaultMaxPlayers
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// defaultResumePath places the checkpoint in the user's cache directory,
// falling back to the working directory.
func defaultResumePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return DefaultResumeFile
	}
	return filepath.Join(dir, "padlink", DefaultResumeFile)
}
