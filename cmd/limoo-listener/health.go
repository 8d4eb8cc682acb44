package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/limoo-im/limoo-go-driver/internal/connection"
	"github.com/limoo-im/limoo-go-driver/internal/journal"
	"github.com/limoo-im/limoo-go-driver/internal/listener"
	"github.com/limoo-im/limoo-go-driver/internal/router"
	"github.com/limoo-im/limoo-go-driver/internal/version"
	"github.com/limoo-im/limoo-go-driver/internal/workspace"
)

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthSources are the components reported by /health. journal and db
// are nil when the journal is disabled.
type healthSources struct {
	manager  connection.Manager
	router   router.Router
	registry *listener.Registry
	resolver *workspace.Resolver
	journal  *journal.Journal
	db       pinger
}

type healthResponse struct {
	Status     string         `json:"status"`
	Version    version.Info   `json:"version"`
	Components map[string]any `json:"components"`
}

// newHTTPHandler serves /health, /version and Prometheus metrics at metricsPath.
func newHTTPHandler(metricsPath string, src healthSources) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		resp := checkHealth(ctx, src)

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	})

	r.Get("/version", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(version.Get())
	})

	r.Handle(metricsPath, promhttp.Handler())

	return r
}

// checkHealth reports unhealthy unless the stream is connected. A
// reconnecting stream is degraded.
func checkHealth(ctx context.Context, src healthSources) healthResponse {
	resp := healthResponse{
		Status:     "healthy",
		Version:    version.Get(),
		Components: make(map[string]any),
	}

	stats := src.manager.Stats()
	resp.Components["connection"] = map[string]any{
		"state":      stats.State.String(),
		"epoch":      stats.Epoch,
		"reconnects": stats.Reconnects,
		"last_error": stats.LastError,
	}
	switch stats.State {
	case connection.StateConnected:
	case connection.StateReconnecting, connection.StateConnecting:
		resp.Status = "degraded"
	default:
		resp.Status = "unhealthy"
	}

	if src.router != nil {
		resp.Components["router"] = src.router.Stats()
	}
	if src.registry != nil {
		resp.Components["listeners"] = src.registry.Stats()
	}
	if src.resolver != nil {
		resp.Components["workspaces"] = src.resolver.Stats()
	}
	if src.journal != nil {
		resp.Components["journal"] = src.journal.Stats()
	}

	if src.db != nil {
		if err := src.db.Ping(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			resp.Components["database"] = "connected"
		}
	}

	return resp
}
