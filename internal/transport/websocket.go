package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer returns a Factory that opens WebSocket transports with the given
// tuning. The credential is attached as a bearer token on the handshake.
func Dialer(cfg Config, logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, url, credential string) (Transport, error) {
		header := http.Header{}
		header.Set("Accept", "application/json")
		if credential != "" {
			header.Set("Authorization", "Bearer "+credential)
		}

		dialer := websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		}

		conn, _, err := dialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}

		t := newWSTransport(conn, cfg, logger)
		t.start()

		logger.Debug("websocket transport opened", "url", url)
		return t, nil
	}
}

// wsTransport is a single live WebSocket connection.
type wsTransport struct {
	conn   *websocket.Conn
	cfg    Config
	logger *slog.Logger

	closed chan CloseInfo
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	handlerMu  sync.RWMutex
	handlers   map[string]Handler
	ackHandler AckHandler

	mu         sync.Mutex
	lastSeenAt time.Time
	stopped    bool
}

func newWSTransport(conn *websocket.Conn, cfg Config, logger *slog.Logger) *wsTransport {
	return &wsTransport{
		conn:       conn,
		cfg:        cfg,
		logger:     logger,
		closed:     make(chan CloseInfo, 1),
		done:       make(chan struct{}),
		handlers:   make(map[string]Handler),
		lastSeenAt: time.Now(),
	}
}

func (t *wsTransport) start() {
	// Server pings keep the connection fresh; answer with a pong.
	t.conn.SetPingHandler(func(data string) error {
		t.touch()
		return t.conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})
	t.conn.SetPongHandler(func(string) error {
		t.touch()
		return nil
	})

	go t.readLoop()
	go t.heartbeatLoop()
}

func (t *wsTransport) touch() {
	t.mu.Lock()
	t.lastSeenAt = time.Now()
	t.mu.Unlock()
}

// On sets the handler for a named event, replacing any previous one.
func (t *wsTransport) On(event string, h Handler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.handlers[event] = h
}

// Off removes the handler for a named event.
func (t *wsTransport) Off(event string) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	delete(t.handlers, event)
}

// OnAck sets the acknowledgement handler.
func (t *wsTransport) OnAck(h AckHandler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.ackHandler = h
}

// Emit sends a fire-and-forget event.
func (t *wsTransport) Emit(event string, payload any) error {
	return t.send(event, payload, "")
}

// EmitWithAck sends an event tagged with a correlation ID.
func (t *wsTransport) EmitWithAck(event string, payload any, ackID string) error {
	return t.send(event, payload, ackID)
}

func (t *wsTransport) send(event string, payload any, ackID string) error {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return ErrNotConnected
	}

	raw, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("encode payload for %q: %w", event, err)
	}

	data, err := json.Marshal(Frame{
		Type:    FrameEvent,
		Event:   event,
		Payload: raw,
		Ack:     ackID,
	})
	if err != nil {
		return fmt.Errorf("encode frame for %q: %w", event, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		return json.Marshal(payload)
	}
}

// Closed delivers at most one CloseInfo for an abnormal end.
func (t *wsTransport) Closed() <-chan CloseInfo {
	return t.closed
}

// Disconnect closes the transport locally. Closed() never fires afterwards.
func (t *wsTransport) Disconnect() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	t.mu.Unlock()

	close(t.done)

	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := t.conn.Close()
	close(t.closed)
	return err
}

// fail records an abnormal end exactly once and closes the socket.
func (t *wsTransport) fail(reason CloseReason, err error) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	close(t.done)
	t.conn.Close()

	t.closed <- CloseInfo{Reason: reason, Err: err}
	close(t.closed)
}

// readLoop reads frames and dispatches them on this goroutine, so event
// order is preserved exactly as the server delivered it.
func (t *wsTransport) readLoop() {
	for {
		select {
		case <-t.done:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				// Local Disconnect already ran; swallow the read error.
				return
			default:
			}
			reason := CloseTransportError
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = CloseServerInitiated
			}
			t.fail(reason, err)
			return
		}
		t.touch()

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.logger.Warn("discarding malformed frame", "error", err)
			continue
		}

		switch frame.Type {
		case FrameAck:
			t.handlerMu.RLock()
			h := t.ackHandler
			t.handlerMu.RUnlock()
			if h != nil {
				h(Ack{ID: frame.ID, Payload: frame.Payload, Err: frame.Error})
			}

		case FrameEvent:
			t.handlerMu.RLock()
			h := t.handlers[frame.Event]
			t.handlerMu.RUnlock()
			if h != nil {
				h(frame.Payload)
			}

		default:
			t.logger.Warn("discarding frame with unknown type", "type", frame.Type)
		}
	}
}

// heartbeatLoop pings the server and fails the transport when it goes quiet.
func (t *wsTransport) heartbeatLoop() {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.cfg.WriteTimeout)
			if err := t.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}

			t.mu.Lock()
			lastSeen := t.lastSeenAt
			t.mu.Unlock()

			if time.Since(lastSeen) > t.cfg.StaleAfter {
				t.logger.Warn("transport stale, closing",
					"last_seen", lastSeen,
					"stale_after", t.cfg.StaleAfter,
				)
				t.fail(CloseTransportError, ErrStaleTransport)
				return
			}
		}
	}
}
