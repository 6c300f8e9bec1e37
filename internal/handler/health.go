package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger checks a backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the API can reach its database and image store
type HealthHandler struct {
	db      Pinger
	images  Pinger
	timeout time.Duration
}

// NewHealthHandler creates a new health handler. images may be nil.
func NewHealthHandler(db, images Pinger) *HealthHandler {
	return &HealthHandler{db: db, images: images, timeout: 2 * time.Second}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Storage  string `json:"storage,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "connected"}
	if err := h.db.Ping(ctx); err != nil {
		slog.Warn("database health check failed", slog.String("error", err.Error()))
		resp.Status, resp.Database = "error", "unreachable"
	}
	if h.images != nil {
		resp.Storage = "available"
		if err := h.images.Ping(ctx); err != nil {
			slog.Warn("storage health check failed", slog.String("error", err.Error()))
			resp.Status, resp.Storage = "error", "unavailable"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, resp)
}
