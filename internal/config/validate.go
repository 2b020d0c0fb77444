package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Client.Port < 1 || c.Client.Port > 65535 {
		return fmt.Errorf("client.port must be between 1 and 65535, got %d", c.Client.Port)
	}
	if c.Client.Deadzone < 0 || c.Client.Deadzone >= 1 {
		return errors.New("client.deadzone must be in [0, 1)")
	}

	if c.Connection.ReconnectInitialDelay <= 0 {
		return errors.New("connection.reconnect_initial_delay must be > 0")
	}
	if c.Connection.ReconnectMaxDelay < c.Connection.ReconnectInitialDelay {
		return fmt.Errorf("connection.reconnect_max_delay (%s) cannot be below reconnect_initial_delay (%s)",
			c.Connection.ReconnectMaxDelay, c.Connection.ReconnectInitialDelay)
	}
	if c.Connection.ReconnectMultiplier < 1 {
		return errors.New("connection.reconnect_multiplier must be >= 1")
	}
	if c.Connection.PingTimeout < 0 {
		return errors.New("connection.ping_timeout must be >= 0")
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	if c.Resume.Enabled && c.Resume.Path == "" {
		return errors.New("resume.path is required when resume is enabled")
	}

	if c.Journal.Enabled {
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
	}

	if c.Peer.MaxPlayers < 1 {
		return errors.New("peer.max_players must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
