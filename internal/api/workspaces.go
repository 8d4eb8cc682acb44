package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/limoo-im/limoo-go-driver/internal/model"
)

const (
	workspacesPath    = "workspace/items"
	workspacePath     = "workspace/items/%s"
	conversationsPath = "workspace/items/%s/conversation/items"
	conversationPath  = "workspace/items/%s/conversation/items/%s"
)

// endpoint returns the base URL serving ws: its worker node if it
// advertises one, the client's base URL otherwise.
func (c *Client) endpoint(ws *model.Workspace) string {
	if ws != nil && ws.Worker != nil && ws.Worker.URL != "" {
		return strings.TrimRight(ws.Worker.URL, "/")
	}
	return c.baseURL
}

// GetWorkspaces lists the workspaces the token's user belongs to.
func (c *Client) GetWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	var workspaces []model.Workspace
	if err := c.get(ctx, c.baseURL, workspacesPath, nil, &workspaces); err != nil {
		return nil, fmt.Errorf("get workspaces: %w", err)
	}
	return workspaces, nil
}

// GetWorkspace fetches a single workspace by ID.
func (c *Client) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	if id == "" {
		return nil, fmt.Errorf("get workspace: empty id")
	}

	var ws model.Workspace
	path := fmt.Sprintf(workspacePath, url.PathEscape(id))
	if err := c.get(ctx, c.baseURL, path, nil, &ws); err != nil {
		return nil, fmt.Errorf("get workspace %s: %w", id, err)
	}
	return &ws, nil
}

// GetConversations lists the conversations of ws visible to the user.
func (c *Client) GetConversations(ctx context.Context, ws *model.Workspace) ([]model.Conversation, error) {
	var conversations []model.Conversation
	path := fmt.Sprintf(conversationsPath, url.PathEscape(ws.ID))
	if err := c.get(ctx, c.endpoint(ws), path, nil, &conversations); err != nil {
		return nil, fmt.Errorf("get conversations of %s: %w", ws.ID, err)
	}

	for i := range conversations {
		if conversations[i].WorkspaceID == "" {
			conversations[i].WorkspaceID = ws.ID
		}
	}
	return conversations, nil
}

// GetConversation fetches one conversation of ws.
func (c *Client) GetConversation(ctx context.Context, ws *model.Workspace, conversationID string) (*model.Conversation, error) {
	var conversation model.Conversation
	path := fmt.Sprintf(conversationPath, url.PathEscape(ws.ID), url.PathEscape(conversationID))
	if err := c.get(ctx, c.endpoint(ws), path, nil, &conversation); err != nil {
		return nil, fmt.Errorf("get conversation %s/%s: %w", ws.ID, conversationID, err)
	}

	if conversation.WorkspaceID == "" {
		conversation.WorkspaceID = ws.ID
	}
	return &conversation, nil
}
