package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/pos-backend/internal/http/respond"
	"github.com/hongminglow/pos-backend/internal/storage"
)

const pingTimeout = 2 * time.Second

// HealthHandler returns uptime and database reachability.
type HealthHandler struct {
	startedAt time.Time
	db        storage.Pinger
	logger    *slog.Logger
}

// NewHealthHandler creates a health endpoint handler. db may be nil.
func NewHealthHandler(startedAt time.Time, db storage.Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, db: db, logger: logger}
}

// Register wires the handler into r.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).Truncate(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check ping failed", "error", err)
			body["status"] = "degraded"
			respond.ErrorWithData(w, http.StatusServiceUnavailable, "database unavailable", body)
			return
		}
	}
	respond.JSON(w, http.StatusOK, "server is running", body)
}
