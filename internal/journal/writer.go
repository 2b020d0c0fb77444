package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/padlink/internal/connection"
	"github.com/rickgao/padlink/internal/pairing"
)

// Source is the part of connection.Manager the writer observes.
type Source interface {
	Subscribe() (<-chan connection.State, func())
	Target() pairing.Target
	Stats() connection.ManagerStats
}

// DB is the subset of *pgxpool.Pool used for inserts.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config configures batching.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
	}
}

// Metrics counts writer activity.
type Metrics struct {
	Observed int64
	Inserts  int64
	Errors   int64
	Flushes  int64
}

// eventRow is one connection_events row.
type eventRow struct {
	ObservedAt time.Time
	SessionID  *string
	Host       string
	Port       int
	State      string
	PlayerID   *int
	Attempt    *int
	DelayMs    *int64
	Message    *string
}

// Writer consumes state changes and writes them to connection_events.
// It writes the states it observes, not every state published.
type Writer struct {
	cfg    Config
	logger *slog.Logger
	source Source
	db     DB
	now    func() time.Time

	// Batching
	batch       []eventRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup

	metrics Metrics
}

// NewWriter creates a new Writer.
func NewWriter(cfg Config, source Source, db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Writer{
		cfg:    cfg,
		logger: logger,
		source: source,
		db:     db,
		now:    time.Now,
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Start subscribes to the source and begins writing.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	states, unsubscribe := w.source.Subscribe()
	w.unsubscribe = unsubscribe

	w.wg.Add(1)
	go w.consumeLoop(states)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer and flushes what is pending.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("journal writer stopped")
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// Final flush
	w.flushWith(ctx)

	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop appends every observed state to the batch.
func (w *Writer) consumeLoop(states <-chan connection.State) {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			w.handleState(state)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flushWith(w.ctx)
		}
	}
}

// handleState stamps state with the source's current session and target.
func (w *Writer) handleState(state connection.State) {
	stats := w.source.Stats()
	row := w.transform(state, w.source.Target(), stats.Session)

	w.batchMu.Lock()
	w.metrics.Observed++
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flushWith(w.ctx)
	}
}

// transform converts a state into a row. Variant fields that do not apply
// stay NULL.
func (w *Writer) transform(state connection.State, target pairing.Target, session uuid.UUID) eventRow {
	row := eventRow{
		ObservedAt: w.now().UTC(),
		Host:       target.Host,
		Port:       target.Port,
		State:      connection.Name(state),
	}
	if session != uuid.Nil {
		id := session.String()
		row.SessionID = &id
	}

	switch s := state.(type) {
	case connection.Connected:
		row.PlayerID = &s.PlayerID
	case connection.Reconnecting:
		attempt := s.Attempt
		delay := s.Delay.Milliseconds()
		row.Attempt = &attempt
		row.DelayMs = &delay
	case connection.Error:
		msg := s.Message
		row.Message = &msg
	case connection.Disconnected, connection.Connecting:
	}
	return row
}

// flushWith writes the current batch to the database.
func (w *Writer) flushWith(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed connection events",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch.
func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO connection_events (observed_at, session_id, host, port, state, player_id, attempt, delay_ms, message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, r.ObservedAt, r.SessionID, r.Host, r.Port, r.State, r.PlayerID, r.Attempt, r.DelayMs, r.Message)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
