package registry

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nkoval/deskchannel/internal/transport"
)

// Binder is the slice of a transport the registry needs: per-event handler
// registration. Satisfied by transport.Transport.
type Binder interface {
	On(event string, h transport.Handler)
	Off(event string)
}

// entry is one registered handler. Entries keep insertion order, which is
// also delivery order.
type entry struct {
	id int64
	fn transport.Handler
}

// Registry maps event names to ordered handler lists and decouples feature
// code from the physical transport. Handlers survive reconnects: AttachAll
// rebinds them to each new transport.
type Registry struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID int64
	subs   map[string][]entry
	bound  Binder // current live transport, nil while detached
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		subs:   make(map[string][]entry),
	}
}

// Subscribe registers a handler for an event and returns a function that
// removes exactly that handler. Calling it twice is a no-op.
func (r *Registry) Subscribe(event string, h transport.Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	first := len(r.subs[event]) == 0
	r.subs[event] = append(r.subs[event], entry{id: id, fn: h})

	if first && r.bound != nil {
		r.bind(r.bound, event)
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		entries := r.subs[event]
		removed := false
		for i, e := range entries {
			if e.id == id {
				r.subs[event] = append(entries[:i], entries[i+1:]...)
				removed = true
				break
			}
		}
		if removed && len(r.subs[event]) == 0 {
			delete(r.subs, event)
			if r.bound != nil {
				r.bound.Off(event)
			}
		}
	}
}

// AttachAll binds every registered event to a live transport. Safe to call
// repeatedly and across reconnects: each event gets exactly one dispatcher
// on the transport, so handlers never see an event twice.
func (r *Registry) AttachAll(t Binder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bound != nil && r.bound != t {
		r.detachLocked()
	}
	r.bound = t
	for event := range r.subs {
		r.bind(t, event)
	}

	r.logger.Debug("subscriptions attached", "events", len(r.subs))
}

// DetachAll unbinds every event from the current transport, preventing a
// discarded transport from firing into stale handlers.
func (r *Registry) DetachAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked()
}

func (r *Registry) detachLocked() {
	if r.bound == nil {
		return
	}
	for event := range r.subs {
		r.bound.Off(event)
	}
	r.bound = nil
}

// bind installs the dispatcher for one event. Caller holds r.mu.
func (r *Registry) bind(t Binder, event string) {
	t.On(event, func(payload json.RawMessage) {
		r.dispatch(event, payload)
	})
}

// dispatch delivers a payload to every handler for an event, in
// subscription order.
func (r *Registry) dispatch(event string, payload json.RawMessage) {
	r.mu.Lock()
	entries := r.subs[event]
	handlers := make([]transport.Handler, len(entries))
	for i, e := range entries {
		handlers[i] = e.fn
	}
	r.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

// Len returns the number of registered handlers across all events.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, entries := range r.subs {
		n += len(entries)
	}
	return n
}
