package retry

import (
	"sync"
	"time"
)

// Reason classifies why a connection ended. Only server-initiated closes
// and transport failures are retryable; a manual disconnect never is.
type Reason string

const (
	ReasonServerInitiated Reason = "server_initiated"
	ReasonTransportClosed Reason = "transport_closed"
	ReasonManual          Reason = "manual"
	ReasonOther           Reason = "other"
)

// Retryable reports whether a disconnect with this reason may be retried.
func (r Reason) Retryable() bool {
	return r == ReasonServerInitiated || r == ReasonTransportClosed
}

// Policy decides whether another connection attempt should be scheduled.
// The delay is a fixed interval, not an exponential backoff.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// Decision is the outcome of a single policy evaluation.
type Decision struct {
	Retry  bool          // schedule another attempt
	Wait   time.Duration // delay before the attempt
	GiveUp bool          // retry budget exhausted, stop for this session
}

// Decide evaluates the policy for a disconnect after attempt prior attempts.
func (p Policy) Decide(attempt int, reason Reason) Decision {
	if !reason.Retryable() {
		return Decision{}
	}
	if attempt >= p.MaxAttempts {
		return Decision{GiveUp: true}
	}
	return Decision{Retry: true, Wait: p.Interval}
}

// Scheduler owns the single outstanding retry timer. Scheduling a new
// attempt cancels any pending one, so duplicate connection attempts
// cannot stack up.
type Scheduler struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Schedule arranges for fn to run after d, replacing any pending timer.
func (s *Scheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, fn)
}

// Cancel stops any pending timer. Safe to call when none is outstanding.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
