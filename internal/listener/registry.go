package listener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/limoo-im/limoo-go-driver/internal/metrics"
	"github.com/limoo-im/limoo-go-driver/internal/model"
)

// Registry fans events out to handlers.
type Registry struct {
	cfg    Config
	logger *slog.Logger
	queue  *Queue[model.Event]

	mu       sync.RWMutex
	handlers map[string][]Handler
	catchAll []Handler
	started  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		cfg:      cfg,
		logger:   logger,
		queue:    NewQueue[model.Event](cfg.BufferSize),
		handlers: make(map[string][]Handler),
	}
}

// On registers h for events named event.
func (r *Registry) On(event string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], h)
}

// OnFunc registers f for events named event.
func (r *Registry) OnFunc(event string, f func(ctx context.Context, ev model.Event) error) {
	r.On(event, HandlerFunc(f))
}

// OnAny registers h for every event.
func (r *Registry) OnAny(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catchAll = append(r.catchAll, h)
}

// Dispatch enqueues ev for delivery. It never blocks; events dispatched
// after Stop are discarded.
func (r *Registry) Dispatch(ev model.Event) {
	if !r.queue.Push(ev) {
		r.count(func(s *Stats) { s.Rejected++ })
		r.logger.Debug("registry stopped, discarding event", "event", ev.Name)
		return
	}
	r.count(func(s *Stats) { s.Dispatched++ })
	metrics.SetListenerQueueDepth(r.queue.Len())
}

// Start launches the delivery goroutine.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.wg.Add(1)
	go r.deliverLoop()

	r.logger.Info("listener registry started", "buffer_size", r.cfg.BufferSize)
	return nil
}

// Stop stops accepting events and waits until queued events have been
// delivered or ctx expires. On expiry the handler context is cancelled.
func (r *Registry) Stop(ctx context.Context) error {
	r.logger.Info("stopping listener registry", "pending", r.queue.Len())

	r.queue.Close()

	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()
	if cancel == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		r.logger.Info("listener registry stopped")
		return nil
	case <-ctx.Done():
		cancel()
		r.logger.Warn("listener registry stop timed out", "pending", r.queue.Len())
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (r *Registry) Stats() Stats {
	r.statsMu.Lock()
	s := r.stats
	r.statsMu.Unlock()

	s.Queue = r.queue.Stats()
	return s
}

func (r *Registry) count(fn func(*Stats)) {
	r.statsMu.Lock()
	fn(&r.stats)
	r.statsMu.Unlock()
}

// deliverLoop is the single consumer of the queue.
func (r *Registry) deliverLoop() {
	defer r.wg.Done()

	for {
		ev, ok := r.queue.Pop()
		if !ok {
			return
		}
		metrics.SetListenerQueueDepth(r.queue.Len())
		r.deliver(ev)
	}
}

// deliver calls the handlers for ev in registration order.
func (r *Registry) deliver(ev model.Event) {
	r.mu.RLock()
	named := r.handlers[ev.Name]
	catchAll := r.catchAll
	r.mu.RUnlock()

	for _, h := range named {
		r.invoke(ev.Name, h, ev)
	}
	for _, h := range catchAll {
		r.invoke(AnyEvent, h, ev)
	}
}

func (r *Registry) invoke(key string, h Handler, ev model.Event) {
	err := r.call(h, ev)
	if err == nil {
		r.count(func(s *Stats) { s.Delivered++ })
		return
	}

	r.count(func(s *Stats) { s.HandlerErrors++ })
	metrics.RecordHandlerError(key)
	r.logger.Error("event handler failed",
		"handler", key,
		"event", ev.Name,
		"event_id", ev.ID,
		"error", err,
	)
}

// call runs h, converting a panic into an error.
func (r *Registry) call(h Handler, ev model.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h.HandleEvent(r.ctx, ev)
}
