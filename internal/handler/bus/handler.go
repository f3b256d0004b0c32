package bus

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
	"github.com/zhouzirui/luxbus/backend/pkg/log"
	"github.com/zhouzirui/luxbus/backend/pkg/utils"
)

// Handler serves the bus directory.
type Handler struct {
	buses bus.Store
}

// New creates a bus handler.
func New(buses bus.Store) *Handler {
	return &Handler{buses: buses}
}

// RegisterRoutes mounts the bus routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/buses", h.handleListBuses)
	r.Get("/buses/{id}", h.handleGetBus)
	r.Patch("/buses/{id}", h.handleUpdateBus)
}

func (h *Handler) handleListBuses(w http.ResponseWriter, r *http.Request) {
	buses, err := h.buses.List(r.Context())
	if err != nil {
		log.Error("[bus] list failed", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch buses")
		return
	}
	utils.RespondJSON(w, http.StatusOK, buses)
}

func (h *Handler) handleGetBus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, ok, err := h.buses.FindByID(r.Context(), id)
	if err != nil {
		log.Errorf("[bus] lookup id=%s failed: %v", id, err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch bus")
		return
	}
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "Bus not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, found)
}

func (h *Handler) handleUpdateBus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch bus.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid bus update")
		return
	}
	if patch.Empty() {
		utils.RespondError(w, http.StatusBadRequest, "Invalid bus update")
		return
	}
	if err := patch.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, ok, err := h.buses.Update(r.Context(), id, patch)
	if errors.Is(err, bus.ErrInvalidPatch) {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Errorf("[bus] update id=%s failed: %v", id, err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to update bus")
		return
	}
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "Bus not found")
		return
	}

	log.Infow("[bus] updated", "id", id, "status", updated.Status)
	utils.RespondJSON(w, http.StatusOK, updated)
}
