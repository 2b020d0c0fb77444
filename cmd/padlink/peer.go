package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"

	"github.com/rickgao/padlink/internal/config"
	"github.com/rickgao/padlink/internal/pairing"
	"github.com/rickgao/padlink/internal/peer"
	"github.com/rickgao/padlink/internal/protocol"
)

type peerOptions struct {
	Listen     string
	MaxPlayers int
	Advertise  string
}

func peerCommand(ctx context.Context, cfg *config.Config, opts peerOptions, out io.Writer, logger *slog.Logger) error {
	listen := cfg.Peer.Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}

	pcfg := peer.DefaultConfig()
	pcfg.MaxPlayers = cfg.Peer.MaxPlayers
	if opts.MaxPlayers > 0 {
		pcfg.MaxPlayers = opts.MaxPlayers
	}
	pcfg.WriteTimeout = cfg.Connection.WriteTimeout
	pcfg.Handler = func(playerID int, msg protocol.Outbound) {
		logger.Debug("controller message", "player_id", playerID, "message", fmt.Sprintf("%T%+v", msg, msg))
	}

	target, err := advertisedTarget(listen, opts.Advertise)
	if err != nil {
		return err
	}
	payload, err := pairing.Encode(target)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "pair with: %s\n", payload)

	srv := peer.NewServer(pcfg, logger)
	return srv.ListenAndServe(ctx, listen)
}

// advertisedTarget is the address controllers should dial to reach listen.
func advertisedTarget(listen, host string) (pairing.Target, error) {
	listenHost, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return pairing.Target{}, fmt.Errorf("listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return pairing.Target{}, fmt.Errorf("listen port %q: %w", portStr, err)
	}

	if host == "" {
		host = listenHost
	}
	if host == "" || net.ParseIP(host).IsUnspecified() {
		host = localAddress()
	}

	t := pairing.Target{Host: host, Port: port}
	return t, t.Validate()
}

// localAddress returns the first non-loopback IPv4 address, or loopback if none.
func localAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
