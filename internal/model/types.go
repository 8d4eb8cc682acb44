package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Entity Types
// -----------------------------------------------------------------------------

// WorkerNode is the server node hosting a workspace.
type WorkerNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// ConversationType is the visibility of a conversation.
type ConversationType string

const (
	ConversationPublic  ConversationType = "public"
	ConversationPrivate ConversationType = "private"
	ConversationDirect  ConversationType = "direct"
)

// Workspace is a Limoo workspace.
type Workspace struct {
	ID                    string      `json:"id"`
	Key                   string      `json:"name"` // URL-safe workspace key
	DisplayName           string      `json:"display_name"`
	DefaultConversationID string      `json:"default_conversation_id"`
	Worker                *WorkerNode `json:"worker_node,omitempty"`
}

// DefaultConversation returns the workspace's default conversation without
// fetching it. Returns nil if the workspace has no default conversation.
func (w *Workspace) DefaultConversation() *Conversation {
	if w == nil || w.DefaultConversationID == "" {
		return nil
	}
	return &Conversation{
		ID:          w.DefaultConversationID,
		Type:        ConversationPublic,
		WorkspaceID: w.ID,
	}
}

// Conversation is a channel or direct chat within a workspace.
type Conversation struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	Type        ConversationType `json:"conversation_type"`
	WorkspaceID string           `json:"workspace_id"`
}

// -----------------------------------------------------------------------------
// Stream Types
// -----------------------------------------------------------------------------

// Event is a decoded server-pushed event, ready for listeners.
type Event struct {
	ID         uuid.UUID       // Assigned locally on normalization
	Name       string          // Envelope "event" field
	Payload    json.RawMessage // Envelope "data" object, undecoded
	Workspace  *Workspace      // Last resolved workspace, nil if none
	Workspaces []*Workspace    // Every resolved workspace in envelope order
	ReceivedAt time.Time       // When the socket read returned
}

// NewEvent builds an Event with a fresh ID.
func NewEvent(name string, payload json.RawMessage, workspaces []*Workspace, receivedAt time.Time) Event {
	ev := Event{
		ID:         uuid.New(),
		Name:       name,
		Payload:    payload,
		Workspaces: workspaces,
		ReceivedAt: receivedAt,
	}
	if n := len(workspaces); n > 0 {
		ev.Workspace = workspaces[n-1]
	}
	return ev
}

// WorkspaceID returns the ID of the attached workspace, or "" if none.
func (e Event) WorkspaceID() string {
	if e.Workspace == nil {
		return ""
	}
	return e.Workspace.ID
}
