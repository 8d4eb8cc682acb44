package router

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/limoo-im/limoo-go-driver/internal/model"
)

// EventAuthenticationFailed is pushed by the server when the session's
// token is no longer accepted.
const EventAuthenticationFailed = "authentication_failed"

// Drop reasons, used as metric labels.
const (
	DropMalformed = "malformed"
	DropNoEvent   = "no_event"
	DropNoData    = "no_data"
)

var (
	errNoEvent     = errors.New("envelope has no event")
	errEventNotStr = errors.New("envelope event is not a string")
)

// WorkspaceResolver looks up workspaces referenced by events.
type WorkspaceResolver interface {
	ResolveByID(ctx context.Context, id string) (*model.Workspace, error)
}

// Dispatcher receives normalized events. Dispatch must not block.
type Dispatcher interface {
	Dispatch(ev model.Event)
}

// Reconnector is asked to recycle the connection when the server reports
// an authentication failure. epoch is the connection the notice arrived on;
// notices from a connection that was already replaced are ignored.
type Reconnector interface {
	Reconnect(epoch int, reason string)
}

// RouterConfig holds configuration for the Message Router.
type RouterConfig struct {
	ResolveTimeout time.Duration // Per-lookup timeout. Default: 10s
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ResolveTimeout: 10 * time.Second,
	}
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	EventsDispatched int64
	ParseErrors      int64
	Dropped          int64 // Well-formed but missing "event" or "data"
	ResolveErrors    int64
	AuthFailures     int64
}

// envelope is a decoded wire message. Data is nil when the key is absent;
// an explicit JSON null is kept as the literal "null".
type envelope struct {
	Event string
	Data  json.RawMessage
}

// decodeEnvelope extracts the event name and raw data from a message.
func decodeEnvelope(raw []byte) (envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return envelope{}, err
	}

	eventRaw, ok := fields["event"]
	if !ok || isNull(eventRaw) {
		return envelope{}, errNoEvent
	}

	var env envelope
	if err := json.Unmarshal(eventRaw, &env.Event); err != nil {
		return envelope{}, errEventNotStr
	}
	env.Data = fields["data"]

	return env, nil
}

// workspaceIDs returns the workspace ids referenced by data, in order.
// Elements that are neither strings nor numbers are reported in skipped.
func workspaceIDs(data json.RawMessage) (ids []string, skipped int) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// Not an object (null, array, scalar): nothing to resolve.
		return nil, 0
	}

	ref, ok := fields["workspace_id"]
	if !ok {
		return nil, 0
	}

	var list []json.RawMessage
	if err := json.Unmarshal(ref, &list); err == nil {
		for _, item := range list {
			id, ok := scalarID(item)
			if !ok {
				skipped++
				continue
			}
			ids = append(ids, id)
		}
		return ids, skipped
	}

	if isNull(ref) {
		return nil, 0
	}
	if id, ok := scalarID(ref); ok {
		return []string{id}, 0
	}
	return nil, 1
}

// scalarID reads a string or numeric id.
func scalarID(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
