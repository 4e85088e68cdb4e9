// Package authbind bridges the authentication state to the channel
// lifecycle: sign-in connects, sign-out disconnects.
package authbind

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nkoval/deskchannel/internal/auth"
	"github.com/nkoval/deskchannel/internal/status"
)

// Connector is the slice of the Connection Manager the binding drives.
type Connector interface {
	Connect(ctx context.Context, credential string) error
	Disconnect()
	Status() status.Status
}

// Source is the authentication collaborator the binding observes.
type Source interface {
	Current() (string, bool)
	Changes() <-chan auth.Change
}

// Binding reacts to credential changes by starting and stopping the
// channel. Overlapping change notifications are applied one at a time, so
// two transports can never be opened by racing sign-ins.
type Binding struct {
	mgr    Connector
	src    Source
	logger *slog.Logger

	mu sync.Mutex // serializes apply
}

// New creates a binding. It does nothing until Run is called.
func New(mgr Connector, src Source, logger *slog.Logger) *Binding {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binding{mgr: mgr, src: src, logger: logger}
}

// Run applies the current credential state, then follows changes until ctx
// is canceled. It blocks; run it on its own goroutine.
func (b *Binding) Run(ctx context.Context) {
	b.apply(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-b.src.Changes():
			if !ok {
				return
			}
			b.apply(ctx)
		}
	}
}

// apply reconciles the channel with the credential state. The change event
// itself is only a wake-up; the source is re-read here so coalesced
// notifications converge on the latest state.
func (b *Binding) apply(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	token, ok := b.src.Current()
	st := b.mgr.Status()

	switch {
	case ok:
		if st == status.Connecting || st == status.Connected {
			return
		}
		b.logger.Info("signed in, opening channel")
		if err := b.mgr.Connect(ctx, token); err != nil {
			b.logger.Warn("channel connect failed", "error", err)
		}
	default:
		if st == status.Disconnected {
			return
		}
		b.logger.Info("signed out, closing channel")
		b.mgr.Disconnect()
	}
}
