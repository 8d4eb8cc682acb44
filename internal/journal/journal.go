package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/limoo-im/limoo-go-driver/internal/metrics"
	"github.com/limoo-im/limoo-go-driver/internal/model"
)

const insertEvent = `
	INSERT INTO events (id, event, workspace_id, workspace_ids, payload, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING
`

// Batcher sends a batch of queries. *pgxpool.Pool satisfies it.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config holds configuration for the Journal.
type Config struct {
	BatchSize     int           // Rows per insert batch. Default: 500
	FlushInterval time.Duration // Max time a row waits. Default: 1s
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Inserts   int64
	Conflicts int64
	Errors    int64 // Failed batches
	Lost      int64 // Rows in failed batches
	Flushes   int64
}

// Journal buffers events and writes them to the events table.
type Journal struct {
	cfg    Config
	logger *slog.Logger
	db     Batcher

	// Batching
	batch   []eventRow
	batchMu sync.Mutex
	stats   Stats

	// Serializes flushes so batches land in order.
	flushMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type eventRow struct {
	ID           uuid.UUID
	Event        string
	WorkspaceID  *string
	WorkspaceIDs []string
	Payload      json.RawMessage
	ReceivedAt   time.Time
}

// New creates a Journal writing through db.
func New(cfg Config, db Batcher, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	return &Journal{
		cfg:    cfg,
		db:     db,
		logger: logger,
		batch:  make([]eventRow, 0, cfg.BatchSize),
		ctx:    context.Background(),
	}
}

// Start begins the periodic flush loop.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("event journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop halts the flush loop and writes any buffered rows using ctx.
func (j *Journal) Stop(ctx context.Context) error {
	j.logger.Info("stopping event journal")

	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("event journal stop timed out")
		return ctx.Err()
	}

	if err := j.flush(ctx); err != nil {
		return err
	}
	j.logger.Info("event journal stopped")
	return nil
}

// Stats returns current statistics.
func (j *Journal) Stats() Stats {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return j.stats
}

// HandleEvent buffers ev, flushing when the batch is full.
func (j *Journal) HandleEvent(ctx context.Context, ev model.Event) error {
	row := transform(ev)

	j.batchMu.Lock()
	j.batch = append(j.batch, row)
	full := len(j.batch) >= j.cfg.BatchSize
	j.batchMu.Unlock()

	if full {
		return j.flush(ctx)
	}
	return nil
}

func (j *Journal) flushLoop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			// Errors are logged and counted by flush.
			_ = j.flush(j.ctx)
		}
	}
}

func transform(ev model.Event) eventRow {
	row := eventRow{
		ID:           ev.ID,
		Event:        ev.Name,
		WorkspaceIDs: make([]string, 0, len(ev.Workspaces)),
		Payload:      ev.Payload,
		ReceivedAt:   ev.ReceivedAt,
	}
	if id := ev.WorkspaceID(); id != "" {
		row.WorkspaceID = &id
	}
	for _, ws := range ev.Workspaces {
		row.WorkspaceIDs = append(row.WorkspaceIDs, ws.ID)
	}
	return row
}

// flush writes the current batch. Rows of a failed batch are dropped.
func (j *Journal) flush(ctx context.Context) error {
	j.flushMu.Lock()
	defer j.flushMu.Unlock()

	j.batchMu.Lock()
	if len(j.batch) == 0 {
		j.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	rows := j.batch
	j.batch = make([]eventRow, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	start := time.Now()

	conflicts, err := j.batchInsert(ctx, rows)
	if err != nil {
		j.logger.Error("journal batch insert failed", "error", err, "count", len(rows))
		j.batchMu.Lock()
		j.stats.Errors++
		j.stats.Lost += int64(len(rows))
		j.batchMu.Unlock()
		metrics.RecordJournalRows("error", len(rows))
		return err
	}

	inserted := len(rows) - conflicts
	j.batchMu.Lock()
	j.stats.Inserts += int64(inserted)
	j.stats.Conflicts += int64(conflicts)
	j.stats.Flushes++
	j.batchMu.Unlock()
	metrics.RecordJournalRows("inserted", inserted)
	metrics.RecordJournalRows("conflict", conflicts)

	j.logger.Debug("flushed events",
		"count", len(rows),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (j *Journal) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertEvent, r.ID, r.Event, r.WorkspaceID, r.WorkspaceIDs, r.Payload, r.ReceivedAt)
	}

	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
