package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/limoo-im/limoo-go-driver/internal/connection"
	"github.com/limoo-im/limoo-go-driver/internal/metrics"
	"github.com/limoo-im/limoo-go-driver/internal/model"
)

// Router decodes raw WebSocket messages into events and hands them to
// the listener registry.
type Router interface {
	// Start begins routing messages from the input channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Stats returns current router statistics.
	Stats() RouterStats
}

// router is the internal implementation.
type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	// Input from Connection Manager
	input <-chan connection.RawMessage

	resolver    WorkspaceResolver
	dispatcher  Dispatcher
	reconnector Reconnector

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	stats RouterStats
}

// NewRouter creates a new Message Router. resolver and reconnector may be
// nil: events are then dispatched without workspaces, and authentication
// failures are only logged.
func NewRouter(
	cfg RouterConfig,
	input <-chan connection.RawMessage,
	resolver WorkspaceResolver,
	dispatcher Dispatcher,
	reconnector Reconnector,
	logger *slog.Logger,
) Router {
	return newRouter(cfg, input, resolver, dispatcher, reconnector, logger)
}

func newRouter(
	cfg RouterConfig,
	input <-chan connection.RawMessage,
	resolver WorkspaceResolver,
	dispatcher Dispatcher,
	reconnector Reconnector,
	logger *slog.Logger,
) *router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:         cfg,
		logger:      logger,
		input:       input,
		resolver:    resolver,
		dispatcher:  dispatcher,
		reconnector: reconnector,
		ctx:         context.Background(),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started")

	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.cancel != nil {
		r.cancel()
	}

	// Wait for goroutine to finish
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
		return ctx.Err()
	}

	return nil
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// count applies fn to the stats under the lock.
func (r *router) count(fn func(*RouterStats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

// route decodes and dispatches a single message.
func (r *router) route(raw connection.RawMessage) {
	r.count(func(s *RouterStats) { s.MessagesReceived++ })
	metrics.RecordMessageReceived()

	env, err := decodeEnvelope(raw.Data)
	if err != nil {
		reason := DropMalformed
		if errors.Is(err, errNoEvent) {
			reason = DropNoEvent
			r.count(func(s *RouterStats) { s.Dropped++ })
			r.logger.Debug("dropping message without event")
		} else {
			r.count(func(s *RouterStats) { s.ParseErrors++ })
			r.logger.Warn("failed to decode message", "error", err, "epoch", raw.Epoch)
		}
		metrics.RecordMessageDropped(reason)
		return
	}

	if env.Event == EventAuthenticationFailed {
		r.count(func(s *RouterStats) { s.AuthFailures++ })
		r.logger.Error("server reported authentication failure, reconnecting", "epoch", raw.Epoch)
		if r.reconnector != nil {
			r.reconnector.Reconnect(raw.Epoch, EventAuthenticationFailed)
		}
		return
	}

	if env.Data == nil {
		r.count(func(s *RouterStats) { s.Dropped++ })
		r.logger.Debug("dropping event without data", "event", env.Event)
		metrics.RecordMessageDropped(DropNoData)
		return
	}

	workspaces := r.resolveWorkspaces(env)

	r.dispatcher.Dispatch(model.NewEvent(env.Event, env.Data, workspaces, raw.ReceivedAt))

	r.count(func(s *RouterStats) { s.EventsDispatched++ })
	metrics.RecordEventDispatched(env.Event)
}

// resolveWorkspaces resolves every workspace the event refers to.
// Failures are logged and skipped.
func (r *router) resolveWorkspaces(env envelope) []*model.Workspace {
	ids, skipped := workspaceIDs(env.Data)
	if skipped > 0 {
		r.logger.Warn("ignoring unusable workspace_id values",
			"event", env.Event,
			"count", skipped,
		)
	}
	if len(ids) == 0 || r.resolver == nil {
		return nil
	}

	var workspaces []*model.Workspace
	for _, id := range ids {
		ws, err := r.resolve(id)
		if err != nil {
			r.count(func(s *RouterStats) { s.ResolveErrors++ })
			r.logger.Warn("failed to resolve workspace",
				"event", env.Event,
				"workspace_id", id,
				"error", err,
			)
			continue
		}
		if ws != nil {
			workspaces = append(workspaces, ws)
		}
	}
	return workspaces
}

func (r *router) resolve(id string) (*model.Workspace, error) {
	ctx := r.ctx
	if r.cfg.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ResolveTimeout)
		defer cancel()
	}
	return r.resolver.ResolveByID(ctx, id)
}
