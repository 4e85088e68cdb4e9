// Package status holds the observable connection state of the channel.
package status

import (
	"log/slog"
	"sync"
)

// Status is the connection state of the channel. Exactly one value holds at
// any time; transitions happen only through the Connection Manager.
type Status string

const (
	Disconnected Status = "disconnected"
	Connecting   Status = "connecting"
	Connected    Status = "connected"
)

// Observer is called synchronously on every state change.
type Observer func(s Status, err error)

// Store is the single source of truth for channel connection state.
// Any status may follow any other; the only writer is the Connection Manager.
type Store struct {
	logger *slog.Logger

	mu       sync.RWMutex
	status   Status
	lastErr  error
	nextID   int64
	watchers map[int64]Observer
	order    []int64
}

// NewStore creates a store in the Disconnected state.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:   logger,
		status:   Disconnected,
		watchers: make(map[int64]Observer),
	}
}

// Status returns the current connection status.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastError returns the error recorded with the most recent transition,
// or nil. A successful connect clears it.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Set records a new status and optional error, then notifies observers
// synchronously in registration order.
func (s *Store) Set(status Status, err error) {
	s.mu.Lock()
	s.status = status
	s.lastErr = err
	obs := make([]Observer, 0, len(s.order))
	for _, id := range s.order {
		if w, ok := s.watchers[id]; ok {
			obs = append(obs, w)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("connection status changed", "status", status, "error", err)

	for _, w := range obs {
		w(status, err)
	}
}

// Watch registers an observer and returns a function that removes it.
// Removing twice is a no-op.
func (s *Store) Watch(obs Observer) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = obs
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}
