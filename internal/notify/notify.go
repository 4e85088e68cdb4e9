package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkoval/deskchannel/internal/status"
	"github.com/nkoval/deskchannel/internal/transport"
)

// Event names the inbox listens on and emits.
const (
	EventNew  = "notification:new"
	EventRead = "notification:read"
)

// Notification is one desk notification as carried on the wire.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"` // "incident", "equipment", "system"
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// readReceipt is the payload of a notification:read exchange.
type readReceipt struct {
	ID uuid.UUID `json:"id"`
}

// Channel is the surface the inbox consumes from the Connection Manager.
type Channel interface {
	Subscribe(event string, h transport.Handler) func()
	EmitWithAck(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error)
	Status() status.Status
}

// Inbox caches notifications delivered over the channel and tracks the
// unread count for the badge. While the channel is down it keeps serving
// the cached view; live updates simply stop until the channel recovers.
type Inbox struct {
	ch     Channel
	logger *slog.Logger

	mu     sync.RWMutex
	items  map[uuid.UUID]Notification
	unsubs []func()
}

// NewInbox creates an empty inbox. Call Start to begin receiving events.
func NewInbox(ch Channel, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{
		ch:     ch,
		logger: logger,
		items:  make(map[uuid.UUID]Notification),
	}
}

// Start subscribes the inbox to notification events.
func (i *Inbox) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.unsubs) > 0 {
		return
	}
	i.unsubs = append(i.unsubs,
		i.ch.Subscribe(EventNew, i.onNew),
		i.ch.Subscribe(EventRead, i.onRead),
	)
}

// Stop revokes the inbox's subscriptions. The cached notifications remain
// readable.
func (i *Inbox) Stop() {
	i.mu.Lock()
	unsubs := i.unsubs
	i.unsubs = nil
	i.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// List returns the cached notifications, newest first. It works regardless
// of connection state.
func (i *Inbox) List() []Notification {
	i.mu.RLock()
	out := make([]Notification, 0, len(i.items))
	for _, n := range i.items {
		out = append(out, n)
	}
	i.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// Unread returns the number of cached unread notifications.
func (i *Inbox) Unread() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	n := 0
	for _, item := range i.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// MarkRead reports a notification as read to the server and, once the
// server acknowledges, updates the cached copy.
func (i *Inbox) MarkRead(ctx context.Context, id uuid.UUID) error {
	i.mu.RLock()
	_, known := i.items[id]
	i.mu.RUnlock()
	if !known {
		return fmt.Errorf("unknown notification %s", id)
	}
	if st := i.ch.Status(); st != status.Connected {
		return fmt.Errorf("mark read %s: channel is %s", id, st)
	}

	if _, err := i.ch.EmitWithAck(ctx, EventRead, readReceipt{ID: id}, 0); err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}

	i.markReadLocal(id)
	return nil
}

func (i *Inbox) onNew(payload json.RawMessage) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		i.logger.Warn("discarding malformed notification", "error", err)
		return
	}
	if n.ID == uuid.Nil {
		i.logger.Warn("discarding notification without id")
		return
	}

	i.mu.Lock()
	i.items[n.ID] = n
	i.mu.Unlock()

	i.logger.Debug("notification received", "id", n.ID, "kind", n.Kind)
}

// onRead handles read receipts pushed by the server, e.g. when the same
// user read the notification in another tab.
func (i *Inbox) onRead(payload json.RawMessage) {
	var r readReceipt
	if err := json.Unmarshal(payload, &r); err != nil {
		i.logger.Warn("discarding malformed read receipt", "error", err)
		return
	}
	i.markReadLocal(r.ID)
}

func (i *Inbox) markReadLocal(id uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if n, ok := i.items[id]; ok && !n.Read {
		n.Read = true
		i.items[id] = n
	}
}
