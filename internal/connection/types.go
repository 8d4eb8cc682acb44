package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrAlreadyStarted  = errors.New("already started")
)

// AuthenticationError is returned when the server rejects the credentials
// during the handshake. It is never retried.
type AuthenticationError struct {
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication rejected (status %d): %v", e.StatusCode, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ExhaustedRetriesError is returned when the retry ceiling for a phase is reached.
type ExhaustedRetriesError struct {
	Attempts int
	Phase    Phase
	Err      error // Last attempt's error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("%s connection failed after %d attempts: %v", e.Phase, e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Err
}

// State is the Connection Manager lifecycle state.
type State int

const (
	StateDisconnected State = iota // Not started, or initial connection failed
	StateConnecting                // Initial connection in progress
	StateConnected                 // Socket open
	StateReconnecting              // Recovering from a lost connection
	StateClosed                    // Closed locally or failed permanently
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a message from Connection Manager to Message Router.
type RawMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when WS Client received message
	Epoch      int       // Connection epoch (increments on every successful connect)
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://web.limoo.im/Limonad/websocket)
	HandshakeTimeout time.Duration // Max time for the HTTP upgrade
	PingInterval     time.Duration // Keepalive ping interval (0 disables heartbeat)
	PingTimeout      time.Duration // Max time without pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for control frames
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL               string        // WebSocket URL
	Policy            Policy        // Retry ceilings and backoff increment
	HandshakeTimeout  time.Duration // Passed to each client
	PingInterval      time.Duration // Passed to each client
	PingTimeout       time.Duration // Passed to each client
	WriteTimeout      time.Duration // Passed to each client
	ClientBufferSize  int           // Per-connection message buffer
	MessageBufferSize int           // Buffer size for output message channel

	// OnFatal receives errors the manager cannot recover from after the
	// initial connection: retry exhaustion or credential rejection while
	// reconnecting. Nil logs the error and exits the process with status 1.
	OnFatal func(error)
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	client := DefaultClientConfig()
	return ManagerConfig{
		Policy:            DefaultPolicy(),
		HandshakeTimeout:  client.HandshakeTimeout,
		PingInterval:      client.PingInterval,
		PingTimeout:       client.PingTimeout,
		WriteTimeout:      client.WriteTimeout,
		ClientBufferSize:  client.BufferSize,
		MessageBufferSize: 10000,
	}
}

// clientConfig derives the per-connection client configuration.
func (c ManagerConfig) clientConfig() ClientConfig {
	return ClientConfig{
		URL:              c.URL,
		HandshakeTimeout: c.HandshakeTimeout,
		PingInterval:     c.PingInterval,
		PingTimeout:      c.PingTimeout,
		WriteTimeout:     c.WriteTimeout,
		BufferSize:       c.ClientBufferSize,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State      State
	Epoch      int    // Successful connections so far
	Attempts   int    // Consecutive failed attempts in the current cycle
	Reconnects int64  // Reconnection cycles started
	LastError  string // Most recent attempt error, "" if none
}
