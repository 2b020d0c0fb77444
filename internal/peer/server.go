package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/rickgao/padlink/internal/input"
	"github.com/rickgao/padlink/internal/protocol"
)

// DefaultMaxPlayers is the number of controller slots.
const DefaultMaxPlayers = 4

// Config configures the peer.
type Config struct {
	MaxPlayers   int
	PingInterval time.Duration // Control ping period (0 = none)
	WriteTimeout time.Duration

	// Handler, if set, is called for every decoded message after it is recorded.
	Handler func(playerID int, msg protocol.Outbound)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxPlayers:   DefaultMaxPlayers,
		PingInterval: 20 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Player is a snapshot of one connected controller.
type Player struct {
	ID          int
	RemoteAddr  string
	ConnectedAt time.Time
	LastInputAt time.Time
	LastInput   input.Snapshot
	Messages    int64
}

type player struct {
	Player
	conn *websocket.Conn
}

// Server accepts controller connections.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	players map[int]*player
}

// NewServer creates a peer.
func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPlayers < 1 {
		cfg.MaxPlayers = DefaultMaxPlayers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		players: make(map[int]*player),
	}
}

// ServerFullMessage is sent before closing when every slot is taken.
func (s *Server) ServerFullMessage() string {
	return fmt.Sprintf("Server is full (max %d players)", s.cfg.MaxPlayers)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "operational fault")

	ctx := r.Context()

	id, ok := s.addPlayer(c, r.RemoteAddr)
	if !ok {
		s.logger.Warn("server full, rejecting", "remote", r.RemoteAddr)
		s.send(ctx, c, protocol.Error{Message: s.ServerFullMessage()})
		c.Close(websocket.StatusNormalClosure, "server full")
		return
	}
	defer s.removePlayer(id)

	logger := s.logger.With("player_id", id, "remote", r.RemoteAddr)
	logger.Info("player connected")

	if err := s.send(ctx, c, protocol.Connected{PlayerID: id}); err != nil {
		logger.Warn("failed to send welcome", "error", err)
		return
	}

	if s.cfg.PingInterval > 0 {
		pingCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go s.pingLoop(pingCtx, c, logger)
	}

	err = s.readLoop(ctx, id, c, logger)
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		logger.Info("player disconnected")
	default:
		logger.Warn("player connection lost", "error", err)
	}
}

// readLoop handles messages until the connection ends. A nil return means
// the player asked to disconnect.
func (s *Server) readLoop(ctx context.Context, id int, c *websocket.Conn, logger *slog.Logger) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		msg, err := protocol.DecodeOutbound(data)
		if err != nil {
			logger.Warn("invalid message", "error", err, "size", len(data))
			continue
		}
		s.record(id, msg)

		switch msg.(type) {
		case protocol.Ping:
			if err := s.send(ctx, c, protocol.Pong{}); err != nil {
				return err
			}
		case protocol.Disconnect:
			c.Close(websocket.StatusNormalClosure, "")
			return nil
		}

		if s.cfg.Handler != nil {
			s.cfg.Handler(id, msg)
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, c *websocket.Conn, logger *slog.Logger) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.cfg.PingInterval/2)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("ping failed, closing", "error", err)
					c.Close(websocket.StatusGoingAway, "ping timeout")
				}
				return
			}
		}
	}
}

func (s *Server) send(ctx context.Context, c *websocket.Conn, msg protocol.Inbound) error {
	data, err := protocol.EncodeInbound(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, data)
}

// addPlayer assigns the lowest free slot.
func (s *Server) addPlayer(c *websocket.Conn, remote string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := 1; id <= s.cfg.MaxPlayers; id++ {
		if _, taken := s.players[id]; taken {
			continue
		}
		now := time.Now()
		s.players[id] = &player{
			Player: Player{ID: id, RemoteAddr: remote, ConnectedAt: now},
			conn:   c,
		}
		return id, true
	}
	return 0, false
}

func (s *Server) removePlayer(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
}

func (s *Server) record(id int, msg protocol.Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return
	}
	p.Messages++
	if in, ok := msg.(protocol.Input); ok {
		p.LastInput = in.Snapshot
		p.LastInputAt = time.Now()
	}
}

// Players returns the connected players ordered by id.
func (s *Server) Players() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p.Player)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Player returns one connected player.
func (s *Server) Player(id int) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return p.Player, true
}

// Kick closes a player's connection from the PC side.
func (s *Server) Kick(id int) bool {
	s.mu.Lock()
	p, ok := s.players[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	go p.conn.Close(websocket.StatusGoingAway, "kicked")
	return true
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.players))
	for _, p := range s.players {
		conns = append(conns, p.conn)
	}
	s.mu.Unlock()

	for _, c := range conns {
		go c.Close(websocket.StatusGoingAway, "shutting down")
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(l)
	}()

	s.logger.Info("peer listening", "addr", l.Addr().String(), "max_players", s.cfg.MaxPlayers)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		// Hijacked websocket connections are not tracked by Shutdown
		s.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
