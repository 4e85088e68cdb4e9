package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nkoval/deskchannel/internal/status"
	"github.com/nkoval/deskchannel/internal/transport"
)

// fakeChannel implements Channel with a controllable connection state.
type fakeChannel struct {
	st       status.Status
	handlers map[string][]transport.Handler
	acks     []string // events sent via EmitWithAck
	ackErr   error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		st:       status.Connected,
		handlers: make(map[string][]transport.Handler),
	}
}

func (c *fakeChannel) Subscribe(event string, h transport.Handler) func() {
	c.handlers[event] = append(c.handlers[event], h)
	idx := len(c.handlers[event]) - 1
	return func() { c.handlers[event][idx] = nil }
}

func (c *fakeChannel) EmitWithAck(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error) {
	if c.ackErr != nil {
		return nil, c.ackErr
	}
	c.acks = append(c.acks, event)
	return json.RawMessage(`{}`), nil
}

func (c *fakeChannel) Status() status.Status { return c.st }

func (c *fakeChannel) deliver(event string, payload string) {
	for _, h := range c.handlers[event] {
		if h != nil {
			h(json.RawMessage(payload))
		}
	}
}

func notificationJSON(id uuid.UUID, title string, createdAt time.Time) string {
	return fmt.Sprintf(`{"id":%q,"kind":"incident","title":%q,"created_at":%q}`,
		id, title, createdAt.Format(time.RFC3339))
}

func TestInbox_CachesAndCounts(t *testing.T) {
	ch := newFakeChannel()
	inbox := NewInbox(ch, nil)
	inbox.Start()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := uuid.New()
	second := uuid.New()
	ch.deliver(EventNew, notificationJSON(first, "printer down", base))
	ch.deliver(EventNew, notificationJSON(second, "vpn restored", base.Add(time.Minute)))

	if got := inbox.Unread(); got != 2 {
		t.Errorf("Unread() = %d, want 2", got)
	}

	list := inbox.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d items, want 2", len(list))
	}
	if list[0].ID != second {
		t.Errorf("List() is not newest-first: got %q first, want %q", list[0].Title, "vpn restored")
	}
}

func TestInbox_ServesCacheWhileDisconnected(t *testing.T) {
	ch := newFakeChannel()
	inbox := NewInbox(ch, nil)
	inbox.Start()

	id := uuid.New()
	ch.deliver(EventNew, notificationJSON(id, "printer down", time.Now()))

	ch.st = status.Disconnected

	if got := len(inbox.List()); got != 1 {
		t.Errorf("List() while disconnected returned %d items, want 1", got)
	}
	if got := inbox.Unread(); got != 1 {
		t.Errorf("Unread() while disconnected = %d, want 1", got)
	}

	// Writes need the channel; reads never do.
	id2 := inbox.List()[0].ID
	if err := inbox.MarkRead(context.Background(), id2); err == nil {
		t.Error("MarkRead succeeded while disconnected")
	}
}

func TestInbox_MarkRead(t *testing.T) {
	ch := newFakeChannel()
	inbox := NewInbox(ch, nil)
	inbox.Start()

	id := uuid.New()
	ch.deliver(EventNew, notificationJSON(id, "printer down", time.Now()))

	if err := inbox.MarkRead(context.Background(), id); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if got := inbox.Unread(); got != 0 {
		t.Errorf("Unread() after MarkRead = %d, want 0", got)
	}
	if len(ch.acks) != 1 || ch.acks[0] != EventRead {
		t.Errorf("acked emits = %v, want [%s]", ch.acks, EventRead)
	}
}

func TestInbox_MarkReadFailureKeepsUnread(t *testing.T) {
	ch := newFakeChannel()
	ch.ackErr = errors.New("channel not connected")
	inbox := NewInbox(ch, nil)
	inbox.Start()

	id := uuid.New()
	ch.deliver(EventNew, notificationJSON(id, "printer down", time.Now()))

	if err := inbox.MarkRead(context.Background(), id); err == nil {
		t.Fatal("MarkRead succeeded despite a failing channel")
	}
	if got := inbox.Unread(); got != 1 {
		t.Errorf("Unread() after failed MarkRead = %d, want 1", got)
	}
}

func TestInbox_MarkReadUnknownID(t *testing.T) {
	ch := newFakeChannel()
	inbox := NewInbox(ch, nil)
	inbox.Start()

	if err := inbox.MarkRead(context.Background(), uuid.New()); err == nil {
		t.Error("MarkRead of unknown notification succeeded")
	}
	if len(ch.acks) != 0 {
		t.Errorf("unknown notification still emitted %v", ch.acks)
	}
}

func TestInbox_ServerReadReceipt(t *testing.T) {
	ch := newFakeChannel()
	inbox := NewInbox(ch, nil)
	inbox.Start()

	id := uuid.New()
	ch.deliver(EventNew, notificationJSON(id, "printer down", time.Now()))
	ch.deliver(EventRead, fmt.Sprintf(`{"id":%q}`, id))

	if got := inbox.Unread(); got != 0 {
		t.Errorf("Unread() after server read receipt = %d, want 0", got)
	}
}

func TestInbox_MalformedPayloadIgnored(t *testing.T) {
	ch := newFakeChannel()
	inbox := NewInbox(ch, nil)
	inbox.Start()

	ch.deliver(EventNew, `{not json`)
	ch.deliver(EventNew, `{"title":"missing id"}`)

	if got := len(inbox.List()); got != 0 {
		t.Errorf("List() = %d items after malformed payloads, want 0", got)
	}
}

func TestInbox_StopRevokesSubscriptions(t *testing.T) {
	ch := newFakeChannel()
	inbox := NewInbox(ch, nil)
	inbox.Start()
	inbox.Stop()

	ch.deliver(EventNew, notificationJSON(uuid.New(), "late", time.Now()))

	if got := len(inbox.List()); got != 0 {
		t.Errorf("stopped inbox cached %d items, want 0", got)
	}
}
