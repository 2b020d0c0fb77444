package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/rickgao/padlink/internal/config"
	"github.com/rickgao/padlink/internal/version"
)

var CLI struct {
	Config string `help:"Path to a YAML config file." type:"path" short:"c"`
	Debug  bool   `help:"Whether to enable debug logging."`

	Connect struct {
		Host     string `help:"Peer host. Overrides client.host."`
		Port     int    `help:"Peer port. Overrides client.port."`
		Pair     string `help:"Pairing payload, URL or host[:port] as scanned from the peer."`
		NoResume bool   `help:"Ignore a saved reconnect checkpoint." name:"no-resume"`
	} `cmd:"" help:"Connect to a peer and forward input typed on standard input."`

	Peer struct {
		Listen     string `help:"Listen address. Overrides peer.listen."`
		MaxPlayers int    `help:"Controller slots. Overrides peer.max_players." name:"max-players"`
		Advertise  string `help:"Host to put in the pairing payload. Defaults to the first non-loopback address."`
	} `cmd:"" help:"Run a reference peer that accepts controllers."`

	Pair struct {
		Payload string `arg:"" help:"Pairing payload, URL or host[:port]."`
	} `cmd:"" help:"Parse a pairing payload and print its canonical form."`

	Version struct {
	} `cmd:"" help:"Print version information and exit."`
}

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("padlink"),
		kong.Description("a realtime gamepad link to a PC peer"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	level := slog.LevelInfo
	if CLI.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if kctx.Command() == "version" {
		fmt.Printf("%s %s\n", version.Product, version.String())
		return
	}

	if kctx.Command() == "pair <payload>" {
		if err := pairCommand(os.Stdout, CLI.Pair.Payload); err != nil {
			writeError(err)
		}
		return
	}

	cfg, err := loadConfig(CLI.Config)
	if err != nil {
		writeError(err)
	}

	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch kctx.Command() {
	case "connect":
		opts := connectOptions{
			Host:     CLI.Connect.Host,
			Port:     CLI.Connect.Port,
			Pair:     CLI.Connect.Pair,
			NoResume: CLI.Connect.NoResume,
		}
		err = connectCommand(ctx, cfg, opts, os.Stdin, os.Stdout, logger)
	case "peer":
		opts := peerOptions{
			Listen:     CLI.Peer.Listen,
			MaxPlayers: CLI.Peer.MaxPlayers,
			Advertise:  CLI.Peer.Advertise,
		}
		err = peerCommand(ctx, cfg, opts, os.Stdout, logger)
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

// loadConfig reads path, or returns defaults when no file was given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
