// Package metrics exposes Prometheus metrics for the event stream driver.
//
// Metrics are registered on the default registry at init and are updated
// through small Record*/Set* helpers so callers never touch collectors:
//   - limoo_connection_*: attempts, reconnects, current state, backoff waits
//   - limoo_router_*: received, dispatched and dropped envelopes
//   - limoo_workspace_*: resolver outcomes
//   - limoo_listener_*, limoo_journal_*: delivery and persistence
package metrics
