package connection

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/limoo-im/limoo-go-driver/internal/auth"
	"github.com/limoo-im/limoo-go-driver/internal/metrics"
)

// Manager owns the WebSocket lifecycle and keeps the event stream connected.
type Manager interface {
	// Start performs the initial connection. It returns an
	// *AuthenticationError if the credentials are rejected, or an
	// *ExhaustedRetriesError once the initial ceiling is reached.
	Start(ctx context.Context) error

	// Close shuts the connection down without reconnecting.
	// Safe to call more than once.
	Close() error

	// Reconnect drops the connection of the given epoch and starts a
	// recovery cycle. It is a no-op unless the manager is connected and
	// epoch is the current one.
	Reconnect(epoch int, reason string)

	// Messages returns channel of raw messages for Message Router.
	// The channel is closed by Close.
	Messages() <-chan RawMessage

	// State returns the current lifecycle state.
	State() State

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	tokens auth.TokenSource
	logger *slog.Logger

	newClient func(ClientConfig, *slog.Logger) Client
	wait      func(ctx context.Context, d time.Duration) error
	onFatal   func(error)

	// Output to Message Router
	router chan RawMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards every state transition.
	mu         sync.Mutex
	state      State
	closed     bool
	client     Client
	epoch      int
	attempts   int
	reconnects int64
	lastErr    error
}

// NewManager creates a new Connection Manager. tokens is consulted on
// every connection attempt.
func NewManager(cfg ManagerConfig, tokens auth.TokenSource, logger *slog.Logger) Manager {
	return newManager(cfg, tokens, logger)
}

func newManager(cfg ManagerConfig, tokens auth.TokenSource, logger *slog.Logger) *manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		cfg:       cfg,
		tokens:    tokens,
		logger:    logger,
		newClient: NewClient,
		wait:      sleepContext,
		onFatal:   cfg.OnFatal,
		router:    make(chan RawMessage, cfg.MessageBufferSize),
		state:     StateDisconnected,
	}
	if m.onFatal == nil {
		m.onFatal = func(err error) {
			logger.Error("connection lost permanently, exiting", "error", err)
			os.Exit(1)
		}
	}
	metrics.SetConnectionState(m.state.String())
	return m
}

// Start performs the initial connection.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	if err := m.connect(m.ctx, PhaseInitial); err != nil {
		m.mu.Lock()
		if !m.closed {
			m.setStateLocked(StateDisconnected)
		}
		m.mu.Unlock()
		m.cancel()
		return err
	}

	m.logger.Info("connection manager started", "url", m.cfg.URL)
	return nil
}

// Close shuts the connection down.
func (m *manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.setStateLocked(StateClosed)
	client := m.client
	m.client = nil
	cancel := m.cancel
	m.mu.Unlock()

	m.logger.Info("closing connection manager")

	if cancel != nil {
		cancel()
	}

	var err error
	if client != nil {
		err = client.Close()
	}

	m.wg.Wait()
	close(m.router)

	m.logger.Info("connection manager closed")
	return err
}

// Reconnect starts a recovery cycle if epoch is still connected.
func (m *manager) Reconnect(epoch int, reason string) {
	m.triggerReconnect(nil, epoch, reason, nil)
}

// Messages returns the output channel for Message Router.
func (m *manager) Messages() <-chan RawMessage {
	return m.router
}

// State returns the current lifecycle state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ManagerStats{
		State:      m.state,
		Epoch:      m.epoch,
		Attempts:   m.attempts,
		Reconnects: m.reconnects,
	}
	if m.lastErr != nil {
		stats.LastError = m.lastErr.Error()
	}
	return stats
}

// setStateLocked records a transition. Must be called with mu held.
func (m *manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("connection state changed", "from", m.state, "to", s)
	m.state = s
	metrics.SetConnectionState(s.String())
}

// connect runs attempts until one succeeds, the credentials are rejected,
// the phase ceiling is reached or ctx is cancelled.
func (m *manager) connect(ctx context.Context, phase Phase) error {
	for {
		m.mu.Lock()
		m.attempts++
		attempt := m.attempts
		m.mu.Unlock()

		client, err := m.attempt(ctx)
		if err == nil {
			if !m.install(client) {
				client.Close()
				return ErrAlreadyClosed
			}
			metrics.RecordConnectAttempt(phase.String(), metrics.ResultSuccess)
			return nil
		}

		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()

		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			metrics.RecordConnectAttempt(phase.String(), metrics.ResultAuthFailed)
			m.logger.Error("websocket authentication rejected",
				"phase", phase,
				"status", authErr.StatusCode,
			)
			return err
		}
		metrics.RecordConnectAttempt(phase.String(), metrics.ResultTransient)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !m.cfg.Policy.ShouldRetry(attempt, phase) {
			return &ExhaustedRetriesError{Attempts: attempt, Phase: phase, Err: err}
		}

		delay := m.cfg.Policy.Delay(attempt)
		m.logger.Warn("connection attempt failed, retrying",
			"phase", phase,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		metrics.RecordBackoff(delay)

		if err := m.wait(ctx, delay); err != nil {
			return err
		}
	}
}

// attempt fetches a fresh token and dials once.
func (m *manager) attempt(ctx context.Context) (Client, error) {
	header := http.Header{}
	if err := auth.SetCookie(ctx, m.tokens, header); err != nil {
		return nil, err
	}

	m.mu.Lock()
	epoch := m.epoch + 1
	m.mu.Unlock()

	client := m.newClient(m.cfg.clientConfig(), m.logger.With("epoch", epoch))
	if err := client.Connect(ctx, header); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// install makes client the current connection and starts forwarding its
// messages. Returns false if the manager was closed meanwhile.
func (m *manager) install(client Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	m.attempts = 0
	m.lastErr = nil
	m.epoch++
	m.client = client
	m.setStateLocked(StateConnected)

	m.wg.Add(1)
	go m.forward(client, m.epoch)
	return true
}

// forward relays one connection's messages until it ends.
func (m *manager) forward(client Client, epoch int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case <-client.Done():
			return

		case err := <-client.Errors():
			// Deliver what was read before the connection dropped.
			m.drain(client, epoch)
			m.triggerReconnect(client, epoch, "closed", err)
			return

		case msg := <-client.Messages():
			if !m.send(msg, epoch) {
				return
			}
		}
	}
}

func (m *manager) drain(client Client, epoch int) {
	for {
		select {
		case msg := <-client.Messages():
			if !m.send(msg, epoch) {
				return
			}
		default:
			return
		}
	}
}

func (m *manager) send(msg TimestampedMessage, epoch int) bool {
	raw := RawMessage{
		Data:       msg.Data,
		ReceivedAt: msg.ReceivedAt,
		Epoch:      epoch,
	}
	select {
	case m.router <- raw:
		return true
	case <-m.ctx.Done():
		return false
	}
}

// triggerReconnect starts a recovery cycle. from is the client reporting
// the failure, or nil for an explicit request. Requests that arrive while
// not connected, or that concern an epoch or client that was already
// replaced, are dropped.
func (m *manager) triggerReconnect(from Client, epoch int, reason string, cause error) bool {
	m.mu.Lock()
	if m.closed || m.state != StateConnected || epoch != m.epoch || (from != nil && from != m.client) {
		state, current := m.state, m.epoch
		m.mu.Unlock()
		m.logger.Debug("reconnect request ignored",
			"reason", reason,
			"state", state,
			"epoch", epoch,
			"current_epoch", current,
		)
		return false
	}
	old := m.client
	m.client = nil
	m.reconnects++
	m.setStateLocked(StateReconnecting)
	m.wg.Add(1)
	m.mu.Unlock()

	metrics.RecordReconnect(reason)
	if cause != nil {
		m.logger.Warn("connection lost, reconnecting", "reason", reason, "error", cause)
	} else {
		m.logger.Warn("reconnecting", "reason", reason)
	}

	go m.reconnect(old)
	return true
}

// reconnect closes the old handle and reconnects in steady phase.
func (m *manager) reconnect(old Client) {
	err := m.recoverConnection(old)
	m.wg.Done()

	// Outside the wait group: onFatal may call Close.
	if err != nil {
		m.onFatal(err)
	}
}

// recoverConnection returns the terminal error, or nil once reconnected
// or closed.
func (m *manager) recoverConnection(old Client) error {
	if old != nil {
		old.Close()
	}

	err := m.connect(m.ctx, PhaseSteady)
	if err == nil {
		m.logger.Info("reconnected", "epoch", m.Stats().Epoch)
		return nil
	}

	if m.ctx.Err() != nil || errors.Is(err, ErrAlreadyClosed) {
		return nil
	}

	m.mu.Lock()
	m.lastErr = err
	m.setStateLocked(StateClosed)
	m.mu.Unlock()

	return err
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
