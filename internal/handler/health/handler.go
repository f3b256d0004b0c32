package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/luxbus/backend/pkg/log"
	"github.com/zhouzirui/luxbus/backend/pkg/utils"
)

const pingTimeout = 2 * time.Second

// Pinger is implemented by database-backed stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler reports process and database health.
type Handler struct {
	db Pinger
}

// New creates a health handler. A nil db means the in-memory store is in use.
func New(db Pinger) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes mounts /health on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	if h.db == nil {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"database":  "memory",
			"timestamp": now,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		log.Error("[health] database ping failed", err)
		utils.RespondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": now,
			"error":     "database unreachable",
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"database":  "connected",
		"timestamp": now,
	})
}
