// Package poller keeps the workspace cache warm.
//
// The poller lists the user's workspaces over REST once at startup and
// then on a fixed interval, loading each into the resolver cache so that
// events rarely wait on a lookup.
package poller
