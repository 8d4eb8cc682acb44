package listener

import (
	"context"
	"errors"

	"github.com/limoo-im/limoo-go-driver/internal/model"
)

// AnyEvent is the handler key used for catch-all handlers in logs and metrics.
const AnyEvent = "*"

// ErrAlreadyStarted is returned by Start when the registry is running.
var ErrAlreadyStarted = errors.New("listener registry already started")

// Handler processes one event.
type Handler interface {
	HandleEvent(ctx context.Context, ev model.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev model.Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, ev model.Event) error {
	return f(ctx, ev)
}

// Config holds configuration for the Registry.
type Config struct {
	BufferSize int // Initial queue capacity. Default: 1000
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize: 1000,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Dispatched    int64 // Events accepted by Dispatch
	Rejected      int64 // Events dispatched after Stop
	Delivered     int64 // Handler invocations that returned nil
	HandlerErrors int64 // Handler errors and recovered panics
	Queue         QueueStats
}
