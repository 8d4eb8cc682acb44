// Package journal persists every dispatched event to PostgreSQL.
//
// The journal is a listener handler. Events are buffered and written in
// batches with INSERT ... ON CONFLICT (id) DO NOTHING, so a batch that is
// retried by hand after a partial failure never duplicates rows.
package journal
