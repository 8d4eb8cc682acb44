package journal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limoo-im/limoo-go-driver/internal/model"
)

// fakeDB records queued batches. Rows whose id is in existing report
// zero rows affected.
type fakeDB struct {
	mu       sync.Mutex
	batches  [][]*pgx.QueuedQuery
	existing map[string]bool
	err      error
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b.QueuedQueries)
	return &fakeResults{queries: b.QueuedQueries, existing: f.existing, err: f.err}
}

func (f *fakeDB) Batches() [][]*pgx.QueuedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]*pgx.QueuedQuery(nil), f.batches...)
}

type fakeResults struct {
	queries  []*pgx.QueuedQuery
	existing map[string]bool
	err      error
	next     int
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	q := r.queries[r.next]
	r.next++
	id := q.Arguments[0].(uuid.UUID).String()
	if r.existing[id] {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row         { return nil }
func (r *fakeResults) Close() error              { return nil }

func testEvent(name string, workspaces ...string) model.Event {
	var ws []*model.Workspace
	for _, id := range workspaces {
		ws = append(ws, &model.Workspace{ID: id})
	}
	return model.NewEvent(name, json.RawMessage(`{"k":1}`), ws, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestTransform(t *testing.T) {
	ev := testEvent("message_created", "A", "B")

	row := transform(ev)

	assert.Equal(t, ev.ID, row.ID)
	assert.Equal(t, "message_created", row.Event)
	require.NotNil(t, row.WorkspaceID)
	assert.Equal(t, "B", *row.WorkspaceID)
	assert.Equal(t, []string{"A", "B"}, row.WorkspaceIDs)
	assert.JSONEq(t, `{"k":1}`, string(row.Payload))
	assert.Equal(t, ev.ReceivedAt, row.ReceivedAt)
}

func TestTransform_NoWorkspace(t *testing.T) {
	row := transform(testEvent("typing"))

	assert.Nil(t, row.WorkspaceID)
	assert.NotNil(t, row.WorkspaceIDs, "empty array, not NULL")
	assert.Empty(t, row.WorkspaceIDs)
}

func TestJournal_FlushesWhenBatchFull(t *testing.T) {
	db := &fakeDB{}
	j := New(Config{BatchSize: 2, FlushInterval: time.Hour}, db, nil)
	ctx := context.Background()

	require.NoError(t, j.HandleEvent(ctx, testEvent("a")))
	assert.Empty(t, db.Batches())

	require.NoError(t, j.HandleEvent(ctx, testEvent("b", "A")))

	batches := db.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "a", batches[0][0].Arguments[1])
	assert.Equal(t, "b", batches[0][1].Arguments[1])
	assert.Contains(t, batches[0][0].SQL, "ON CONFLICT (id) DO NOTHING")

	stats := j.Stats()
	assert.Equal(t, int64(2), stats.Inserts)
	assert.Equal(t, int64(1), stats.Flushes)
}

func TestJournal_CountsConflicts(t *testing.T) {
	ev := testEvent("dup")
	db := &fakeDB{existing: map[string]bool{ev.ID.String(): true}}
	j := New(Config{BatchSize: 2, FlushInterval: time.Hour}, db, nil)

	require.NoError(t, j.HandleEvent(context.Background(), ev))
	require.NoError(t, j.HandleEvent(context.Background(), testEvent("new")))

	stats := j.Stats()
	assert.Equal(t, int64(1), stats.Inserts)
	assert.Equal(t, int64(1), stats.Conflicts)
}

func TestJournal_FailedBatchIsDropped(t *testing.T) {
	dbErr := errors.New("connection refused")
	db := &fakeDB{err: dbErr}
	j := New(Config{BatchSize: 1, FlushInterval: time.Hour}, db, nil)

	err := j.HandleEvent(context.Background(), testEvent("a"))
	assert.ErrorIs(t, err, dbErr)

	stats := j.Stats()
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, int64(1), stats.Lost)
	assert.Equal(t, int64(0), stats.Inserts)

	// The failed row is not retried on the next flush.
	db.mu.Lock()
	db.err = nil
	db.mu.Unlock()
	require.NoError(t, j.HandleEvent(context.Background(), testEvent("b")))
	batches := db.Batches()
	require.Len(t, batches, 2)
	assert.Len(t, batches[1], 1)
}

func TestJournal_PeriodicFlush(t *testing.T) {
	db := &fakeDB{}
	j := New(Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, db, nil)
	require.NoError(t, j.Start(context.Background()))

	require.NoError(t, j.HandleEvent(context.Background(), testEvent("a")))

	require.Eventually(t, func() bool { return len(db.Batches()) == 1 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, j.Stop(stopCtx))
}

func TestJournal_StopFlushesRemaining(t *testing.T) {
	db := &fakeDB{}
	j := New(Config{BatchSize: 100, FlushInterval: time.Hour}, db, nil)
	require.NoError(t, j.Start(context.Background()))

	for i := 0; i < 3; i++ {
		require.NoError(t, j.HandleEvent(context.Background(), testEvent("a")))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, j.Stop(stopCtx))

	batches := db.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Equal(t, int64(3), j.Stats().Inserts)
}

func TestJournal_StopWithoutStart(t *testing.T) {
	j := New(DefaultConfig(), &fakeDB{}, nil)
	assert.NoError(t, j.Stop(context.Background()))
}

func TestNew_AppliesDefaults(t *testing.T) {
	j := New(Config{}, &fakeDB{}, nil)
	assert.Equal(t, DefaultConfig(), j.cfg)
}
