package conflate

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Drain once the slot is closed and empty.
var ErrClosed = errors.New("slot closed")

// Slot is a thread-safe mailbox of capacity one with overwrite-on-push semantics.
type Slot[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	value  T
	full   bool
	closed bool

	// Stats
	totalPushed      int64
	totalDelivered   int64
	totalOverwritten int64
}

// New creates an empty slot.
func New[T any]() *Slot[T] {
	s := &Slot[T]{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Push stores v, replacing any value still waiting. It never blocks.
// Returns false if the slot is closed.
func (s *Slot[T]) Push(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	if s.full {
		s.totalOverwritten++
	}
	s.value = v
	s.full = true
	s.totalPushed++

	s.cond.Signal()
	return true
}

// Offer stores v only if the slot is empty, so a newer value is never replaced.
// Returns false if the slot was full or closed.
func (s *Slot[T]) Offer(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.full {
		return false
	}
	s.value = v
	s.full = true
	s.totalPushed++

	s.cond.Signal()
	return true
}

// Drain blocks until a value is available and takes it, leaving the slot empty.
// Returns ctx.Err() if the context ends first, or ErrClosed once the slot is
// closed and holds nothing.
func (s *Slot[T]) Drain(ctx context.Context) (T, error) {
	// Wake the waiter when the context ends. Taking the lock before
	// broadcasting guarantees the waiter is either parked or will see ctx.Err().
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.full && !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}

	if s.full {
		return s.takeLocked(), nil
	}

	var zero T
	if s.closed {
		return zero, ErrClosed
	}
	return zero, ctx.Err()
}

// TryDrain takes the waiting value without blocking.
func (s *Slot[T]) TryDrain() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.full {
		var zero T
		return zero, false
	}
	return s.takeLocked(), true
}

// takeLocked must be called with the lock held and the slot full.
func (s *Slot[T]) takeLocked() T {
	v := s.value
	var zero T
	s.value = zero // Clear reference for GC
	s.full = false
	s.totalDelivered++
	return v
}

// Pending reports whether a value is waiting.
func (s *Slot[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full
}

// Close closes the slot. Pushes fail afterwards; a value already waiting can
// still be drained.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cond.Broadcast()
}

// Stats returns slot statistics.
func (s *Slot[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Pending:          s.full,
		TotalPushed:      s.totalPushed,
		TotalDelivered:   s.totalDelivered,
		TotalOverwritten: s.totalOverwritten,
	}
}

// Stats contains slot statistics.
type Stats struct {
	Pending          bool
	TotalPushed      int64
	TotalDelivered   int64
	TotalOverwritten int64
}
