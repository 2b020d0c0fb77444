package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	opt "github.com/repeale/fp-go/option"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/time/rate"

	"github.com/rickgao/padlink/internal/backoff"
	"github.com/rickgao/padlink/internal/conflate"
	"github.com/rickgao/padlink/internal/input"
	"github.com/rickgao/padlink/internal/pairing"
	"github.com/rickgao/padlink/internal/protocol"
	"github.com/rickgao/padlink/internal/resume"
)

// Manager owns the session to the PC peer and its observable state.
type Manager interface {
	// Connect opens a session to host:port. It is a no-op while a session is
	// connecting or connected. Any pending retry is cancelled and backoff is
	// reset.
	Connect(host string, port int) error

	// Disconnect closes the session on purpose. No retry follows.
	Disconnect()

	// CancelReconnect drops a pending retry and settles in Disconnected.
	CancelReconnect()

	// SendInput offers a snapshot to the conflating input slot. Only the
	// latest offered snapshot is sent when the sender is next free.
	SendInput(snap input.Snapshot) bool

	// SendRaw encodes msg and writes it immediately.
	SendRaw(msg protocol.Outbound) error

	// State returns the current state.
	State() State

	// PlayerID returns the assigned slot while connected.
	PlayerID() opt.Option[int]

	// Subscribe returns a channel carrying the latest state. Observers that
	// fall behind only ever see the newest value. The returned func
	// unsubscribes and closes the channel.
	Subscribe() (<-chan State, func())

	// SetAutoReconnect enables or disables retries. Disabling cancels any
	// pending retry.
	SetAutoReconnect(enabled bool)

	// AutoReconnect reports whether retries are enabled.
	AutoReconnect() bool

	// Target returns the last requested target.
	Target() pairing.Target

	// Resume schedules a retry toward the checkpointed target, continuing its
	// backoff position. Returns false if there was nothing to resume.
	Resume() bool

	// Stats returns current counters.
	Stats() ManagerStats

	// Close disconnects and releases all resources.
	Close() error
}

// CheckpointStore persists the reconnect position across restarts.
type CheckpointStore interface {
	Save(cp resume.Checkpoint) error
	Load() (resume.Checkpoint, error)
	Clear() error
}

// Option configures optional Manager collaborators.
type Option func(*manager)

// WithClock replaces the clock driving retry timers.
func WithClock(clock backoff.Clock) Option {
	return func(m *manager) { m.clock = clock }
}

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(m *manager) { m.newClient = f }
}

// WithCheckpoints enables checkpointing of the reconnect position.
func WithCheckpoints(store CheckpointStore) Option {
	return func(m *manager) { m.checkpoints = store }
}

// WithTransitionHook calls fn for every published transition.
// fn runs with the state lock held and must not call back into the Manager.
func WithTransitionHook(fn func(prev, next State)) Option {
	return func(m *manager) { m.onTransition = fn }
}

// session is one attempt at a socket. Events from a session that is no longer
// current are ignored.
type session struct {
	id     uuid.UUID
	target pairing.Target
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	client     Client        // Set once open, guarded by manager.mu
	senderDone chan struct{} // Closed when this session's sender exits
}

// manager implements the Manager interface.
type manager struct {
	cfg         ManagerConfig
	logger      *slog.Logger
	clock       backoff.Clock
	newClient   ClientFactory
	checkpoints CheckpointStore

	sched   *backoff.Scheduler
	inputs  *conflate.Slot[input.Snapshot]
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu            deadlock.Mutex
	state         State
	target        pairing.Target
	autoReconnect bool
	manual        bool     // Last teardown was user-initiated
	current       *session // nil when no socket is open or opening
	lastSender    chan struct{}
	closed        bool
	watchers      map[int]chan State
	nextWatcher   int
	onTransition  func(prev, next State) // Called under mu

	sessions   atomic.Int64
	framesSent atomic.Int64
	sendErrors atomic.Int64
	lastPongAt atomic.Int64 // unix nanos
}

// NewManager creates a new Connection Manager in the Disconnected state.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...Option) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		cfg:           cfg,
		logger:        logger,
		newClient:     NewClient,
		inputs:        conflate.New[input.Snapshot](),
		state:         Disconnected{},
		autoReconnect: cfg.AutoReconnect,
		watchers:      make(map[int]chan State),
	}
	for _, o := range opts {
		o(m)
	}

	m.sched = backoff.NewScheduler(cfg.Reconnect, m.clock)
	if cfg.MaxInputRate > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.MaxInputRate), 1)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	return m
}

// Connect opens a session to host:port.
func (m *manager) Connect(host string, port int) error {
	target := pairing.Target{Host: host, Port: port}
	if err := target.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if IsActive(m.state) {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug("connect ignored", "state", Name(state), "target", target.String())
		return nil
	}

	m.sched.Cancel()
	m.sched.Reset()
	m.manual = false
	m.target = target

	// A socket may still be open in the Error state
	stale := m.detachLocked()
	s := m.startSessionLocked(target)
	m.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	m.logger.Info("connecting", "target", target.String(), "session", s.id)
	go m.run(s)
	return nil
}

// Disconnect closes the session on purpose.
func (m *manager) Disconnect() {
	m.mu.Lock()
	m.manual = true
	m.sched.Cancel()
	client := m.detachLocked()
	m.setStateLocked(Disconnected{})
	m.mu.Unlock()

	m.clearCheckpoint()

	if client == nil {
		return
	}

	m.sendDisconnect(client)
	m.logger.Info("disconnected by user")
}

// sendDisconnect tells the peer the session is ending, then closes client.
func (m *manager) sendDisconnect(client Client) {
	if data, err := protocol.Encode(protocol.Disconnect{}); err == nil {
		if err := client.Send(data); err != nil {
			m.logger.Debug("disconnect notice not sent", "error", err)
		}
	}
	client.Close()
}

// CancelReconnect drops a pending retry.
func (m *manager) CancelReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancelled := m.sched.Cancel()
	if _, ok := m.state.(Reconnecting); ok {
		m.setStateLocked(Disconnected{})
	}
	if cancelled {
		m.logger.Info("reconnect cancelled")
	}
}

// SendInput offers a snapshot to the input slot.
func (m *manager) SendInput(snap input.Snapshot) bool {
	return m.inputs.Push(snap)
}

// SendRaw encodes msg and writes it on the open socket.
func (m *manager) SendRaw(msg protocol.Outbound) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	var client Client
	if m.current != nil {
		client = m.current.client
	}
	m.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}
	if err := client.Send(data); err != nil {
		return fmt.Errorf("send %T: %w", msg, err)
	}
	return nil
}

// State returns the current state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PlayerID returns the assigned slot while connected.
func (m *manager) PlayerID() opt.Option[int] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.state.(Connected); ok {
		return opt.Some(c.PlayerID)
	}
	return opt.None[int]()
}

// Subscribe returns a latest-value channel of states.
func (m *manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	if m.closed {
		close(ch)
		m.mu.Unlock()
		return ch, func() {}
	}
	m.watchers[id] = ch
	ch <- m.state
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(c)
		}
	}
}

// SetAutoReconnect enables or disables retries.
func (m *manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.autoReconnect = enabled
	if enabled {
		return
	}
	m.sched.Cancel()
	if _, ok := m.state.(Reconnecting); ok {
		m.setStateLocked(Disconnected{})
	}
}

// AutoReconnect reports whether retries are enabled.
func (m *manager) AutoReconnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoReconnect
}

// Target returns the last requested target.
func (m *manager) Target() pairing.Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// Resume schedules a retry toward the checkpointed target.
func (m *manager) Resume() bool {
	if m.checkpoints == nil {
		return false
	}

	cp, err := m.checkpoints.Load()
	if err != nil {
		if !errors.Is(err, resume.ErrNoCheckpoint) {
			m.logger.Warn("failed to load checkpoint", "error", err)
		}
		return false
	}

	target := pairing.Target{Host: cp.Host, Port: cp.Port}
	if err := target.Validate(); err != nil {
		m.logger.Warn("ignoring checkpoint", "error", err)
		return false
	}

	m.mu.Lock()
	if m.closed || m.current != nil || IsActive(m.state) {
		m.mu.Unlock()
		return false
	}
	if _, ok := m.state.(Reconnecting); ok {
		m.mu.Unlock()
		return false
	}

	m.target = target
	m.manual = false
	m.sched.Restore(cp.Attempt, cp.Delay)
	next, ok := m.scheduleRetryLocked()
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.saveCheckpoint(next)
	m.logger.Info("resuming",
		"target", target.String(),
		"attempt", next.Attempt,
		"delay", next.Delay,
		"checkpoint_age", cp.Age(time.Now()).Round(time.Second),
	)
	return true
}

// Stats returns current counters.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	state := m.state
	var current uuid.UUID
	if m.current != nil {
		current = m.current.id
	}
	m.mu.Unlock()

	stats := ManagerStats{
		State:      state,
		Session:    current,
		Sessions:   m.sessions.Load(),
		FramesSent: m.framesSent.Load(),
		SendErrors: m.sendErrors.Load(),
		Input:      m.inputs.Stats(),
	}
	if ns := m.lastPongAt.Load(); ns > 0 {
		stats.LastPongAt = time.Unix(0, ns)
	}
	return stats
}

// Close disconnects and releases all resources.
func (m *manager) Close() error {
	// The checkpoint is kept so the next process can resume
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.manual = true
	m.sched.Cancel()
	client := m.detachLocked()
	m.setStateLocked(Disconnected{})
	m.closed = true
	for id, ch := range m.watchers {
		delete(m.watchers, id)
		close(ch)
	}
	m.mu.Unlock()

	if client != nil {
		m.sendDisconnect(client)
	}

	m.inputs.Close()
	m.cancel()
	return nil
}

// startSessionLocked creates the current session and enters Connecting.
// Must be called with mu held.
func (m *manager) startSessionLocked(target pairing.Target) *session {
	ctx, cancel := context.WithCancel(m.ctx)
	id := uuid.New()

	s := &session{
		id:         id,
		target:     target,
		ctx:        ctx,
		cancel:     cancel,
		logger:     m.logger.With("session", id.String(), "target", target.String()),
		senderDone: make(chan struct{}),
	}
	m.current = s
	m.sessions.Add(1)
	m.setStateLocked(Connecting{})
	return s
}

// detachLocked forgets the current session and returns its client, if open.
// Must be called with mu held.
func (m *manager) detachLocked() Client {
	s := m.current
	if s == nil {
		return nil
	}
	m.current = nil
	s.cancel()
	return s.client
}

// setStateLocked publishes a new state. Must be called with mu held.
func (m *manager) setStateLocked(next State) {
	prev := m.state
	m.state = next

	for _, ch := range m.watchers {
		// Drop the unread value; only the latest matters
		select {
		case <-ch:
		default:
		}
		ch <- next
	}

	if m.onTransition != nil {
		m.onTransition(prev, next)
	}
	if prev != next {
		m.logger.Debug("state changed", "from", Name(prev), "to", Name(next))
	}
}

// scheduleRetryLocked arms a retry toward m.target and enters Reconnecting.
// When retries are disabled it settles in Disconnected instead. Must be
// called with mu held.
func (m *manager) scheduleRetryLocked() (resume.Checkpoint, bool) {
	if m.closed || m.manual || !m.autoReconnect || m.target.IsZero() {
		m.setStateLocked(Disconnected{})
		return resume.Checkpoint{}, false
	}

	attempt, delay := m.sched.Schedule(m.retry)
	m.setStateLocked(Reconnecting{Attempt: attempt, Delay: delay})

	return resume.Checkpoint{
		Host:    m.target.Host,
		Port:    m.target.Port,
		Attempt: attempt,
		Delay:   delay,
	}, true
}

// retry is the scheduler callback. It dials without resetting backoff so
// consecutive failures keep growing the delay.
func (m *manager) retry() {
	m.mu.Lock()
	if m.closed || m.manual || !m.autoReconnect || m.current != nil || m.target.IsZero() {
		m.mu.Unlock()
		return
	}
	reconnecting, ok := m.state.(Reconnecting)
	if !ok {
		m.mu.Unlock()
		return
	}
	s := m.startSessionLocked(m.target)
	m.mu.Unlock()

	s.logger.Info("reconnecting", "attempt", reconnecting.Attempt)
	go m.run(s)
}

// run dials the session and then handles its inbound events until it ends.
func (m *manager) run(s *session) {
	cfg := m.cfg.Client
	cfg.URL = s.target.URL()
	if cfg.PingInterval > 0 && cfg.Heartbeat == nil {
		if data, err := protocol.Encode(protocol.Ping{}); err == nil {
			cfg.Heartbeat = data
		}
	}

	client := m.newClient(cfg, s.logger)
	if err := client.Connect(s.ctx); err != nil {
		client.Close()
		m.handleDrop(s, err)
		return
	}

	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		client.Close()
		return
	}
	s.client = client
	m.sched.Reset()
	prev := m.lastSender
	m.lastSender = s.senderDone
	m.mu.Unlock()

	m.saveCheckpoint(resume.Checkpoint{Host: s.target.Host, Port: s.target.Port})
	s.logger.Info("socket open, awaiting handshake", "url", cfg.URL)

	go m.sendLoop(s, client, prev)
	m.readLoop(s, client)
}

// readLoop handles inbound frames and transport errors for one session.
func (m *manager) readLoop(s *session, client Client) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case err := <-client.Errors():
			// Frames queued ahead of the failure still apply, in order
			m.drainFrames(s, client)
			m.handleDrop(s, err)
			return
		case msg := <-client.Messages():
			m.handleFrame(s, msg)
		}
	}
}

// drainFrames applies every frame already buffered on client.
func (m *manager) drainFrames(s *session, client Client) {
	for {
		select {
		case msg := <-client.Messages():
			m.handleFrame(s, msg)
		default:
			return
		}
	}
}

// handleFrame applies one inbound frame.
func (m *manager) handleFrame(s *session, msg TimestampedMessage) {
	switch in := protocol.Decode(msg.Data).(type) {
	case protocol.Connected:
		m.mu.Lock()
		if m.current == s {
			m.setStateLocked(Connected{PlayerID: in.PlayerID})
		}
		m.mu.Unlock()
		s.logger.Info("handshake confirmed", "player_id", in.PlayerID)

	case protocol.Error:
		m.mu.Lock()
		if m.current == s {
			m.setStateLocked(Error{Message: in.Message})
		}
		m.mu.Unlock()
		s.logger.Warn("peer reported error", "message", in.Message)

	case protocol.Pong:
		m.lastPongAt.Store(msg.ReceivedAt.UnixNano())

	case protocol.Unknown:
		s.logger.Debug("ignoring frame", "type", in.Type, "size", len(msg.Data))
	}
}

// handleDrop ends the session after a dial failure, transport error or peer
// close, and schedules a retry unless the teardown was manual.
func (m *manager) handleDrop(s *session, cause error) {
	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return
	}
	client := m.detachLocked()

	if errors.Is(cause, ErrPeerClosed) {
		m.setStateLocked(Disconnected{})
	} else {
		m.setStateLocked(Error{Message: cause.Error()})
	}
	next, scheduled := m.scheduleRetryLocked()
	m.mu.Unlock()

	if client != nil {
		client.Close()
	}

	if scheduled {
		m.saveCheckpoint(next)
		s.logger.Warn("session ended, retry scheduled",
			"error", cause,
			"attempt", next.Attempt,
			"delay", next.Delay,
		)
		return
	}
	s.logger.Warn("session ended", "error", cause)
}

// sendLoop writes the latest input snapshot whenever the socket is free.
// It waits for the previous session's sender so at most one sender runs.
func (m *manager) sendLoop(s *session, client Client, prev chan struct{}) {
	defer close(s.senderDone)

	if prev != nil {
		select {
		case <-prev:
		case <-s.ctx.Done():
			return
		}
	}

	for {
		if m.limiter != nil {
			if err := m.limiter.Wait(s.ctx); err != nil {
				return
			}
		}

		snap, err := m.inputs.Drain(s.ctx)
		if err != nil {
			return
		}
		if s.ctx.Err() != nil {
			// Hand the snapshot to the next session
			m.inputs.Offer(snap)
			return
		}

		data, err := protocol.Encode(protocol.Input{PlayerID: m.playerIDOrDefault(), Snapshot: snap})
		if err != nil {
			s.logger.Error("failed to encode input", "error", err)
			continue
		}

		if err := client.Send(data); err != nil {
			m.sendErrors.Add(1)
			m.inputs.Offer(snap)
			m.handleDrop(s, fmt.Errorf("send input: %w", err))
			return
		}
		m.framesSent.Add(1)
	}
}

// playerIDOrDefault returns the assigned slot, or protocol.DefaultPlayerID
// before the handshake completes.
func (m *manager) playerIDOrDefault() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.state.(Connected); ok {
		return c.PlayerID
	}
	return protocol.DefaultPlayerID
}

func (m *manager) saveCheckpoint(cp resume.Checkpoint) {
	if m.checkpoints == nil {
		return
	}
	if err := m.checkpoints.Save(cp); err != nil {
		m.logger.Warn("failed to save checkpoint", "error", err)
	}
}

func (m *manager) clearCheckpoint() {
	if m.checkpoints == nil {
		return
	}
	if err := m.checkpoints.Clear(); err != nil {
		m.logger.Warn("failed to clear checkpoint", "error", err)
	}
}
