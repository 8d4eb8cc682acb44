package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/limoo-im/limoo-go-driver/internal/model"
)

// WorkspaceLister lists the workspaces visible to the session.
type WorkspaceLister interface {
	GetWorkspaces(ctx context.Context) ([]model.Workspace, error)
}

// Primer receives listed workspaces.
type Primer interface {
	Prime(workspaces ...model.Workspace)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Refresh interval, 0 = load once at start
	Timeout  time.Duration // Per-request timeout (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Minute,
		Timeout:  30 * time.Second,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Polls      int64
	Errors     int64
	Workspaces int // Count from the last successful poll
	LastPoll   time.Time
}

// Poller periodically loads workspaces into a Primer.
type Poller struct {
	cfg    Config
	lister WorkspaceLister
	primer Primer
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, lister WorkspaceLister, primer Primer, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Poller{
		cfg:    cfg,
		lister: lister,
		primer: primer,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Start polls once, synchronously, then starts the refresh loop when an
// interval is configured. A failed first poll is logged, not returned:
// the resolver still fetches on demand.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	if err := p.poll(); err != nil {
		p.logger.Warn("initial workspace load failed", "error", err)
	}

	if p.cfg.Interval > 0 {
		p.wg.Add(1)
		go p.run()
	}

	p.logger.Info("workspace poller started", "interval", p.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("workspace poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// run is the refresh loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.poll(); err != nil && p.ctx.Err() == nil {
				p.logger.Warn("workspace refresh failed", "error", err)
			}
		}
	}
}

// poll lists workspaces and primes the cache.
func (p *Poller) poll() error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	workspaces, err := p.lister.GetWorkspaces(ctx)

	p.mu.Lock()
	p.stats.Polls++
	p.stats.LastPoll = start
	if err != nil {
		p.stats.Errors++
	} else {
		p.stats.Workspaces = len(workspaces)
	}
	p.mu.Unlock()

	if err != nil {
		return err
	}

	p.primer.Prime(workspaces...)

	p.logger.Debug("workspace poll complete",
		"workspaces", len(workspaces),
		"duration", time.Since(start),
	)
	return nil
}
