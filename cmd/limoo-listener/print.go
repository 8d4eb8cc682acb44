package main

import (
	"context"
	"log/slog"

	"github.com/limoo-im/limoo-go-driver/internal/listener"
	"github.com/limoo-im/limoo-go-driver/internal/model"
)

// printHandler logs each event with its workspace and raw payload.
func printHandler(logger *slog.Logger) listener.Handler {
	return listener.HandlerFunc(func(ctx context.Context, ev model.Event) error {
		logger.Info("event",
			"id", ev.ID,
			"event", ev.Name,
			"workspace_id", ev.WorkspaceID(),
			"workspaces", len(ev.Workspaces),
			"payload", string(ev.Payload),
		)
		return nil
	})
}
