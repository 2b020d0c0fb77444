package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	opt "github.com/repeale/fp-go/option"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/padlink/internal/backoff"
	"github.com/rickgao/padlink/internal/config"
	"github.com/rickgao/padlink/internal/connection"
	"github.com/rickgao/padlink/internal/database"
	"github.com/rickgao/padlink/internal/journal"
	"github.com/rickgao/padlink/internal/pairing"
	"github.com/rickgao/padlink/internal/resume"
)

// ErrNoTarget is returned when neither flags, config nor a checkpoint name a peer.
var ErrNoTarget = errors.New("no peer to connect to: pass --host or --pair")

var errQuit = errors.New("quit")

type connectOptions struct {
	Host     string
	Port     int
	Pair     string
	NoResume bool
}

// resolveTarget picks the peer from --pair, then --host/--port, then the config file.
// A zero Target means none was given.
func resolveTarget(cfg config.ClientConfig, opts connectOptions) (pairing.Target, error) {
	if opts.Pair != "" {
		t, err := pairing.Parse(opts.Pair)
		if err != nil {
			return pairing.Target{}, fmt.Errorf("pairing payload: %w", err)
		}
		return t, nil
	}

	host := cfg.Host
	if opts.Host != "" {
		host = opts.Host
	}
	if host == "" {
		return pairing.Target{}, nil
	}

	port := cfg.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	if port == 0 {
		port = pairing.DefaultPort
	}

	t := pairing.Target{Host: host, Port: port}
	if err := t.Validate(); err != nil {
		return pairing.Target{}, err
	}
	return t, nil
}

// managerConfig maps file configuration onto the connection manager.
func managerConfig(cfg *config.Config) connection.ManagerConfig {
	mc := connection.DefaultManagerConfig()
	mc.Reconnect = backoff.Policy{
		Initial:    cfg.Connection.ReconnectInitialDelay,
		Max:        cfg.Connection.ReconnectMaxDelay,
		Multiplier: cfg.Connection.ReconnectMultiplier,
	}
	mc.AutoReconnect = cfg.Client.AutoReconnectEnabled()
	mc.MaxInputRate = cfg.Client.MaxInputRate
	if mc.MaxInputRate < 0 {
		mc.MaxInputRate = 0
	}
	mc.Client.PingInterval = cfg.Connection.PingInterval
	mc.Client.PingTimeout = cfg.Connection.PingTimeout
	mc.Client.HandshakeTimeout = cfg.Connection.HandshakeTimeout
	mc.Client.WriteTimeout = cfg.Connection.WriteTimeout
	mc.Client.BufferSize = cfg.Connection.BufferSize
	return mc
}

func connectCommand(ctx context.Context, cfg *config.Config, opts connectOptions, in io.Reader, out io.Writer, logger *slog.Logger) error {
	target, err := resolveTarget(cfg.Client, opts)
	if err != nil {
		return err
	}

	var mopts []connection.Option
	if cfg.Resume.Enabled {
		store := resume.NewFileStore(cfg.Resume.Path, cfg.Resume.MaxAge)
		mopts = append(mopts, connection.WithCheckpoints(store))
		logger.Debug("resume checkpoints enabled", "path", store.Path())
	}

	m := connection.NewManager(managerConfig(cfg), logger, mopts...)
	defer m.Close()

	if cfg.Journal.Enabled {
		stopJournal, err := startJournal(ctx, cfg.Journal, m, logger)
		if err != nil {
			return err
		}
		defer stopJournal()
	}

	states, unsubscribe := m.Subscribe()
	defer unsubscribe()

	switch {
	case !target.IsZero():
		if err := m.Connect(target.Host, target.Port); err != nil {
			return err
		}
	case cfg.Resume.Enabled && !opts.NoResume && m.Resume():
		logger.Info("resuming from checkpoint", "target", m.Target().String())
	default:
		return ErrNoTarget
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watchStates(gctx, states, logger)
	})

	g.Go(func() error {
		return runConsole(gctx, in, out, m, newConsole(cfg.Client.Deadzone), logger)
	})

	err = g.Wait()
	if errors.Is(err, errQuit) {
		m.Disconnect()
		return nil
	}
	return err
}

// startJournal connects to PostgreSQL and starts recording m's state changes.
func startJournal(ctx context.Context, cfg config.JournalConfig, m connection.Manager, logger *slog.Logger) (func(), error) {
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("journal database: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	w := journal.NewWriter(journal.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, m, pool, logger)
	if err := w.Start(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.Stop(shutdownCtx); err != nil {
			logger.Warn("journal stop failed", "error", err)
		}
		pool.Close()
	}, nil
}

// watchStates logs every state the manager settles in.
func watchStates(ctx context.Context, states <-chan connection.State, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-states:
			if !ok {
				return nil
			}
			switch s := s.(type) {
			case connection.Connected:
				logger.Info("connected", "player_id", s.PlayerID)
			case connection.Reconnecting:
				logger.Info("reconnecting", "attempt", s.Attempt, "delay", s.Delay)
			case connection.Error:
				logger.Warn("connection error", "message", s.Message)
			default:
				logger.Info(connection.Name(s))
			}
		}
	}
}

// runConsole applies lines read from in until ctx ends or quit is typed.
// End of input leaves the session running.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, m connection.Manager, c *console, logger *slog.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				logger.Debug("console input closed")
				<-ctx.Done()
				return ctx.Err()
			}
			act, err := c.Apply(line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if err := dispatch(act, out, m, c, logger); err != nil {
				return err
			}
		}
	}
}

// dispatch carries out one console action against the manager.
func dispatch(act action, out io.Writer, m connection.Manager, c *console, logger *slog.Logger) error {
	if act.snapshot {
		m.SendInput(c.Snapshot())
	}
	for _, msg := range act.messages {
		if err := m.SendRaw(msg); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			break
		}
	}

	switch act.control {
	case controlStatus:
		printStatus(out, m)
	case controlDisconnect:
		m.Disconnect()
	case controlReconnect:
		t := m.Target()
		if t.IsZero() {
			fmt.Fprintln(out, "error: no previous target")
			return nil
		}
		if err := m.Connect(t.Host, t.Port); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	case controlCancel:
		m.CancelReconnect()
	case controlAutoOn:
		m.SetAutoReconnect(true)
	case controlAutoOff:
		m.SetAutoReconnect(false)
	case controlQuit:
		logger.Debug("quit requested")
		return errQuit
	}
	return nil
}

func printStatus(out io.Writer, m connection.Manager) {
	stats := m.Stats()
	player := "-"
	if id := m.PlayerID(); opt.IsSome(id) {
		player = fmt.Sprint(id.Value)
	}
	fmt.Fprintf(out, "state=%s target=%s player=%s auto_reconnect=%t sessions=%d frames=%d send_errors=%d overwritten=%d\n",
		connection.Name(stats.State),
		m.Target(),
		player,
		m.AutoReconnect(),
		stats.Sessions,
		stats.FramesSent,
		stats.SendErrors,
		stats.Input.TotalOverwritten,
	)
}
