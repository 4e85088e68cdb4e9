package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkoval/deskchannel/internal/registry"
	"github.com/nkoval/deskchannel/internal/retry"
	"github.com/nkoval/deskchannel/internal/status"
	"github.com/nkoval/deskchannel/internal/transport"
)

// Errors
var (
	ErrNoCredential         = errors.New("no credential")
	ErrNotConnected         = errors.New("channel not connected")
	ErrAckTimeout           = errors.New("acknowledgement timeout")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// Config tunes the Connection Manager.
type Config struct {
	URL           string        // event server URL (ws:// or wss://)
	MaxAttempts   int           // retry budget per session
	RetryInterval time.Duration // fixed delay between attempts
	AckTimeout    time.Duration // default EmitWithAck deadline
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		RetryInterval: 3 * time.Second,
		AckTimeout:    10 * time.Second,
	}
}

// ackResult settles one EmitWithAck call.
type ackResult struct {
	payload json.RawMessage
	errMsg  string // server-reported failure
	err     error  // local failure (transport went away)
}

// Manager owns the single live transport and orchestrates connects,
// disconnects, retries, and subscription re-attachment. It is the only
// component that touches the transport; everything else goes through its
// public operations.
type Manager struct {
	cfg    Config
	store  *status.Store
	reg    *registry.Registry
	policy retry.Policy
	sched  retry.Scheduler
	dial   transport.Factory
	logger *slog.Logger

	mu         sync.Mutex
	state      status.Status
	tr         transport.Transport
	ctx        context.Context
	credential string
	attempts   int
	manual     bool

	pendingMu sync.Mutex
	pending   map[string]chan ackResult
}

// New creates a Connection Manager. The caller owns the store and registry
// and injects them here; there is no package-level instance.
func New(cfg Config, store *status.Store, reg *registry.Registry, dial transport.Factory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		store:   store,
		reg:     reg,
		policy:  retry.Policy{MaxAttempts: cfg.MaxAttempts, Interval: cfg.RetryInterval},
		dial:    dial,
		logger:  logger,
		state:   status.Disconnected,
		pending: make(map[string]chan ackResult),
	}
}

// Connect opens the channel with the given credential. A call while the
// channel is Connecting or Connected is a no-op, which makes overlapping
// triggers from the authentication binding safe. The context is retained
// for retry dials within this session.
func (m *Manager) Connect(ctx context.Context, credential string) error {
	if credential == "" {
		m.logger.Warn("connect refused: no credential")
		return ErrNoCredential
	}

	m.mu.Lock()
	if m.state == status.Connecting || m.state == status.Connected {
		st := m.state
		m.mu.Unlock()
		m.logger.Debug("connect ignored", "status", st)
		return nil
	}
	m.sched.Cancel()
	m.ctx = ctx
	m.credential = credential
	m.manual = false
	m.attempts = 0
	m.state = status.Connecting
	m.mu.Unlock()

	m.store.Set(status.Connecting, nil)
	return m.open(ctx)
}

// Disconnect tears the channel down for this session: cancels any pending
// retry timer, closes the transport, and marks the disconnect as manual so
// no retry fires.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manual = true
	tr := m.tr
	m.tr = nil
	m.state = status.Disconnected
	m.mu.Unlock()

	m.sched.Cancel()
	m.reg.DetachAll()
	if tr != nil {
		tr.Disconnect()
	}
	m.failPending(ErrNotConnected)
	m.store.Set(status.Disconnected, nil)

	m.logger.Info("channel disconnected")
}

// Status returns the current connection status.
func (m *Manager) Status() status.Status {
	return m.store.Status()
}

// Subscribe registers a handler for a named event. The subscription
// survives reconnects until the returned function is called.
func (m *Manager) Subscribe(event string, h transport.Handler) func() {
	return m.reg.Subscribe(event, h)
}

// Emit sends a fire-and-forget event. It reports false, with a logged
// warning, when the channel is not connected or the write fails. This is a
// best-effort contract, not guaranteed delivery.
func (m *Manager) Emit(event string, payload any) bool {
	m.mu.Lock()
	tr := m.tr
	m.mu.Unlock()

	if tr == nil {
		m.logger.Warn("emit dropped: channel not connected", "event", event)
		return false
	}
	if err := tr.Emit(event, payload); err != nil {
		m.logger.Warn("emit failed", "event", event, "error", err)
		return false
	}
	return true
}

// EmitWithAck sends an event and waits for its correlated acknowledgement.
// Exactly one of the response, the timeout, or ctx cancellation settles the
// call; the pending entry is removed on every outcome. A timeout does not
// affect connection status. A timeout of zero or less uses the configured
// default.
func (m *Manager) EmitWithAck(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error) {
	m.mu.Lock()
	tr := m.tr
	m.mu.Unlock()

	if tr == nil {
		return nil, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = m.cfg.AckTimeout
	}

	id := uuid.NewString()
	ch := make(chan ackResult, 1)

	m.pendingMu.Lock()
	m.pending[id] = ch
	m.pendingMu.Unlock()
	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, id)
		m.pendingMu.Unlock()
	}()

	if err := tr.EmitWithAck(event, payload, id); err != nil {
		return nil, fmt.Errorf("emit %q: %w", event, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: no response to %q within %v", ErrAckTimeout, event, timeout)
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.errMsg != "" {
			return nil, fmt.Errorf("server rejected %q: %s", event, res.errMsg)
		}
		return res.payload, nil
	}
}

// Transport returns the current underlying transport, or nil. Its identity
// is not stable across reconnects; callers must not hold it.
func (m *Manager) Transport() transport.Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tr
}

// open dials the server and installs the resulting transport.
func (m *Manager) open(ctx context.Context) error {
	m.mu.Lock()
	credential := m.credential
	m.mu.Unlock()

	tr, err := m.dial(ctx, m.cfg.URL, credential)
	if err != nil {
		err = fmt.Errorf("open transport: %w", err)
		m.mu.Lock()
		m.state = status.Disconnected
		m.mu.Unlock()
		m.store.Set(status.Disconnected, err)
		m.logger.Warn("transport open failed", "url", m.cfg.URL, "error", err)
		m.scheduleRetry(retry.ReasonTransportClosed)
		return err
	}

	m.mu.Lock()
	if m.manual {
		// Disconnect raced the dial; discard the fresh transport.
		m.mu.Unlock()
		tr.Disconnect()
		return nil
	}
	m.tr = tr
	m.attempts = 0
	m.state = status.Connected
	m.mu.Unlock()

	tr.OnAck(m.settleAck)
	m.reg.AttachAll(tr)
	m.store.Set(status.Connected, nil)
	go m.watch(tr)

	m.logger.Info("channel connected", "url", m.cfg.URL)
	return nil
}

// watch waits for the transport to end and hands the disconnect to the
// retry policy. One watch goroutine exists per live transport.
func (m *Manager) watch(tr transport.Transport) {
	info, ok := <-tr.Closed()
	if !ok {
		// Manual disconnect already handled the teardown.
		return
	}

	m.mu.Lock()
	if m.tr != tr {
		// A stale transport's close must not disturb its replacement.
		m.mu.Unlock()
		return
	}
	m.tr = nil
	m.state = status.Disconnected
	m.mu.Unlock()

	m.reg.DetachAll()
	m.failPending(ErrNotConnected)
	m.store.Set(status.Disconnected, info.Err)

	m.logger.Warn("transport closed", "reason", info.Reason, "error", info.Err)
	m.scheduleRetry(closeReason(info.Reason))
}

// scheduleRetry consults the policy and arms the single retry timer.
func (m *Manager) scheduleRetry(reason retry.Reason) {
	m.mu.Lock()
	if m.manual {
		m.mu.Unlock()
		return
	}
	decision := m.policy.Decide(m.attempts, reason)
	if decision.GiveUp {
		m.mu.Unlock()
		m.logger.Error("retry budget exhausted", "attempts", m.policy.MaxAttempts)
		m.store.Set(status.Disconnected, ErrRetryBudgetExhausted)
		return
	}
	if !decision.Retry {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	m.logger.Info("scheduling reconnect",
		"attempt", attempt,
		"max_attempts", m.policy.MaxAttempts,
		"wait", decision.Wait,
	)
	m.sched.Schedule(decision.Wait, m.reconnect)
}

// reconnect runs on the retry timer.
func (m *Manager) reconnect() {
	m.mu.Lock()
	if m.manual || m.state != status.Disconnected {
		m.mu.Unlock()
		return
	}
	ctx := m.ctx
	if ctx == nil || ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.state = status.Connecting
	m.mu.Unlock()

	m.store.Set(status.Connecting, nil)
	m.open(ctx)
}

// settleAck resolves the pending entry for a correlated acknowledgement.
// Delete-then-send keeps settlement exactly-once: a late duplicate finds
// no entry and is dropped.
func (m *Manager) settleAck(ack transport.Ack) {
	m.pendingMu.Lock()
	ch, ok := m.pending[ack.ID]
	if ok {
		delete(m.pending, ack.ID)
	}
	m.pendingMu.Unlock()

	if !ok {
		m.logger.Debug("acknowledgement with no pending entry", "id", ack.ID)
		return
	}
	ch <- ackResult{payload: ack.Payload, errMsg: ack.Err}
}

// failPending settles every outstanding EmitWithAck with a local error.
func (m *Manager) failPending(err error) {
	m.pendingMu.Lock()
	for id, ch := range m.pending {
		delete(m.pending, id)
		ch <- ackResult{err: err}
	}
	m.pendingMu.Unlock()
}

func closeReason(r transport.CloseReason) retry.Reason {
	switch r {
	case transport.CloseServerInitiated:
		return retry.ReasonServerInitiated
	case transport.CloseTransportError:
		return retry.ReasonTransportClosed
	default:
		return retry.ReasonOther
	}
}
