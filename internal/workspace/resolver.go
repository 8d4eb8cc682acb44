// Package workspace resolves workspace ids carried by events into
// workspace entities, caching results for a configurable time.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/limoo-im/limoo-go-driver/internal/api"
	"github.com/limoo-im/limoo-go-driver/internal/metrics"
	"github.com/limoo-im/limoo-go-driver/internal/model"
)

// ErrNotFound is returned for ids the server does not know.
var ErrNotFound = errors.New("workspace not found")

// Resolution results, used as metric labels.
const (
	resultHit      = "hit"
	resultFetched  = "fetched"
	resultNotFound = "not_found"
	resultError    = "error"
)

// Fetcher loads a workspace from the server. *api.Client implements it.
type Fetcher interface {
	GetWorkspace(ctx context.Context, id string) (*model.Workspace, error)
}

// Config holds configuration for the Resolver.
type Config struct {
	TTL         time.Duration // How long a fetched workspace is reused. Default: 10m
	NegativeTTL time.Duration // How long an unknown id is remembered. Default: 1m
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		TTL:         10 * time.Minute,
		NegativeTTL: time.Minute,
	}
}

// Stats contains resolver statistics.
type Stats struct {
	Hits     int64
	Fetches  int64
	NotFound int64
	Errors   int64
	Cached   int
}

type entry struct {
	ws        *model.Workspace // nil for a remembered miss
	expiresAt time.Time
}

// Resolver resolves workspace ids with a TTL cache. Concurrent lookups of
// the same id share one request. Returned workspaces are shared and must
// not be modified.
type Resolver struct {
	fetcher Fetcher
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry
	stats   Stats
}

// NewResolver creates a Resolver backed by fetcher.
func NewResolver(fetcher Fetcher, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// ResolveByID returns the workspace with the given id. Unknown ids yield
// an error wrapping ErrNotFound.
func (r *Resolver) ResolveByID(ctx context.Context, id string) (*model.Workspace, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	if e, ok := r.lookup(id); ok {
		if e.ws == nil {
			r.record(resultNotFound, func(s *Stats) { s.NotFound++ })
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		r.record(resultHit, func(s *Stats) { s.Hits++ })
		return e.ws, nil
	}

	ch := r.group.DoChan(id, func() (any, error) {
		// The result is shared by every waiter.
		return r.fetch(context.WithoutCancel(ctx), id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Workspace), nil
	}
}

// Prime caches workspaces fetched elsewhere, e.g. from a workspace listing.
func (r *Resolver) Prime(workspaces ...model.Workspace) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expires := r.now().Add(r.cfg.TTL)
	for i := range workspaces {
		ws := workspaces[i]
		if ws.ID == "" {
			continue
		}
		r.entries[ws.ID] = entry{ws: &ws, expiresAt: expires}
	}
}

// Invalidate drops the cached entry for id.
func (r *Resolver) Invalidate(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Purge drops every cached entry.
func (r *Resolver) Purge() {
	r.mu.Lock()
	r.entries = make(map[string]entry)
	r.mu.Unlock()
}

// Stats returns resolver statistics.
func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.stats
	s.Cached = len(r.entries)
	return s
}

func (r *Resolver) lookup(id string) (entry, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok || !r.now().Before(e.expiresAt) {
		return entry{}, false
	}
	return e, true
}

// fetch loads id from the server and caches the outcome.
func (r *Resolver) fetch(ctx context.Context, id string) (*model.Workspace, error) {
	ws, err := r.fetcher.GetWorkspace(ctx, id)
	switch {
	case err == nil:
		r.store(id, ws, r.cfg.TTL)
		r.record(resultFetched, func(s *Stats) { s.Fetches++ })
		r.logger.Debug("workspace fetched", "workspace_id", id, "name", ws.Key)
		return ws, nil

	case api.IsNotFound(err):
		if r.cfg.NegativeTTL > 0 {
			r.store(id, nil, r.cfg.NegativeTTL)
		}
		r.record(resultNotFound, func(s *Stats) { s.NotFound++ })
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)

	default:
		r.record(resultError, func(s *Stats) { s.Errors++ })
		return nil, fmt.Errorf("resolve workspace %s: %w", id, err)
	}
}

func (r *Resolver) store(id string, ws *model.Workspace, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	r.mu.Lock()
	r.entries[id] = entry{ws: ws, expiresAt: r.now().Add(ttl)}
	r.mu.Unlock()
}

func (r *Resolver) record(result string, fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
	metrics.RecordWorkspaceResolution(result)
}
