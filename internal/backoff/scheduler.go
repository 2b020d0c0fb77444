package backoff

import (
	"math"
	"sync"
	"time"
)

// Policy configures the delay progression.
type Policy struct {
	Initial    time.Duration // Delay before the first retry of a failure episode
	Max        time.Duration // Upper bound for any delay
	Multiplier float64       // Growth factor between consecutive delays
}

// DefaultPolicy returns 1s initial, 30s cap, doubling.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    1 * time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
	}
}

// normalize fills in unusable fields from DefaultPolicy.
func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if p.Initial <= 0 {
		p.Initial = def.Initial
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// next returns the delay following d.
func (p Policy) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * p.Multiplier)
	if n > p.Max || n < d {
		return p.Max
	}
	return n
}

// AttemptForDelay derives a display attempt number from a delay, as
// floor(log_multiplier(delay/initial)) + 1. It plateaus once the cap is reached
// and is only meant for display when the real counter is unavailable.
func (p Policy) AttemptForDelay(d time.Duration) int {
	p = p.normalize()
	if d <= p.Initial || p.Multiplier == 1 {
		return 1
	}
	ratio := float64(d) / float64(p.Initial)
	return int(math.Floor(math.Log(ratio)/math.Log(p.Multiplier)+1e-9)) + 1
}

// Scheduler runs a callback after an exponentially growing delay.
// At most one callback is pending at any time.
type Scheduler struct {
	policy Policy
	clock  Clock

	mu      sync.Mutex
	delay   time.Duration // Delay the next Schedule will use
	attempt int           // Attempt number of the last Schedule in this episode
	timer   Timer
	gen     uint64 // Incremented on every Schedule/Cancel to invalidate stale timers
}

// NewScheduler creates a Scheduler. A nil clock means RealClock.
func NewScheduler(policy Policy, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	policy = policy.normalize()
	return &Scheduler{
		policy: policy,
		clock:  clock,
		delay:  policy.Initial,
	}
}

// Policy returns the effective policy.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Schedule arms a timer that calls fn after the current delay, replacing any
// pending timer. It returns the attempt number and delay used, then advances
// the delay for the next call.
func (s *Scheduler) Schedule(fn func()) (attempt int, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	s.attempt++
	attempt = s.attempt
	delay = s.delay
	s.delay = s.policy.next(s.delay)

	gen := s.gen
	s.timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()

		fn()
	})

	return attempt, delay
}

// Cancel stops the pending timer. Returns true if one was pending.
// Safe to call at any time.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// stopLocked must be called with the lock held.
func (s *Scheduler) stopLocked() bool {
	s.gen++
	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	return true
}

// Reset returns the delay to the initial value and the attempt counter to zero.
// A pending timer is left alone.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delay = s.policy.Initial
	s.attempt = 0
}

// Restore sets the position within a failure episode, as if attempt retries
// had already been scheduled with the last one using delay.
func (s *Scheduler) Restore(attempt int, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt <= 0 || delay <= 0 {
		s.delay = s.policy.Initial
		s.attempt = 0
		return
	}
	if delay > s.policy.Max {
		delay = s.policy.Max
	}
	s.attempt = attempt
	s.delay = s.policy.next(delay)
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Peek returns the attempt number and delay the next Schedule would use.
func (s *Scheduler) Peek() (attempt int, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt + 1, s.delay
}
