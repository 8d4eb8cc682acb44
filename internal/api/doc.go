// Package api provides the Limoo REST client used to look up the entities
// referenced by stream events.
//
// Endpoints (relative to the configured base URL, or to a workspace's
// worker node when it advertises one):
//   - workspace/items
//   - workspace/items/{workspace_id}
//   - workspace/items/{workspace_id}/conversation/items
//   - workspace/items/{workspace_id}/conversation/items/{conversation_id}
//
// Requests authenticate with the same ACCESSTOKEN cookie as the event
// stream.
package api
