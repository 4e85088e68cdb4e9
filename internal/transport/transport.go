package transport

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected   = errors.New("transport not connected")
	ErrStaleTransport = errors.New("transport stale (no ping)")
	ErrAlreadyClosed  = errors.New("transport already closed")
)

// Handler receives the payload of a named event.
type Handler func(payload json.RawMessage)

// Ack is a correlated acknowledgement for a single emitted event.
type Ack struct {
	ID      string          // correlation ID assigned by the emitter
	Payload json.RawMessage // server response payload, may be nil
	Err     string          // server-reported failure, empty on success
}

// AckHandler receives every acknowledgement frame from the server.
type AckHandler func(ack Ack)

// CloseReason classifies how a transport ended.
type CloseReason string

const (
	// CloseServerInitiated means the peer sent a close frame.
	CloseServerInitiated CloseReason = "server_initiated"
	// CloseTransportError means the connection failed (network error, stale ping).
	CloseTransportError CloseReason = "transport_error"
)

// CloseInfo describes why a transport stopped.
type CloseInfo struct {
	Reason CloseReason
	Err    error
}

// Transport is one live bidirectional connection exchanging named events.
// Its identity is not stable across reconnects; the Connection Manager owns
// it exclusively and replaces it on every reconnect.
type Transport interface {
	// On sets the handler for a named event, replacing any previous one.
	// The handler runs on the read goroutine, so inbound event order is
	// preserved per event.
	On(event string, h Handler)

	// Off removes the handler for a named event.
	Off(event string)

	// OnAck sets the handler for acknowledgement frames.
	OnAck(h AckHandler)

	// Emit sends a fire-and-forget event.
	Emit(event string, payload any) error

	// EmitWithAck sends an event tagged with a correlation ID. The matching
	// acknowledgement, if any, arrives via the AckHandler.
	EmitWithAck(event string, payload any, ackID string) error

	// Closed delivers at most one CloseInfo when the transport ends
	// abnormally, then the channel is closed. A manual Disconnect closes
	// the channel without delivering a CloseInfo.
	Closed() <-chan CloseInfo

	// Disconnect closes the transport locally. Idempotent.
	Disconnect() error
}

// Factory opens a transport to a server. The credential travels out of band
// (an Authorization header), never inside event payloads.
type Factory func(ctx context.Context, url, credential string) (Transport, error)

// Frame is the wire format: one JSON object per WebSocket text message.
type Frame struct {
	Type    string          `json:"type"`              // "event" or "ack"
	Event   string          `json:"event,omitempty"`   // event name (type "event")
	Payload json.RawMessage `json:"payload,omitempty"` // event or ack payload
	Ack     string          `json:"ack,omitempty"`     // correlation ID requested (type "event")
	ID      string          `json:"id,omitempty"`      // correlation ID answered (type "ack")
	Error   string          `json:"error,omitempty"`   // server failure (type "ack")
}

// Frame type values.
const (
	FrameEvent = "event"
	FrameAck   = "ack"
)

// Config tunes a WebSocket transport.
type Config struct {
	HandshakeTimeout time.Duration // dial deadline
	WriteTimeout     time.Duration // write deadline per send
	PingInterval     time.Duration // keepalive ping cadence
	StaleAfter       time.Duration // max silence before the connection is stale
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     15 * time.Second,
		StaleAfter:       60 * time.Second,
	}
}
