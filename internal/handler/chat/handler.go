package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/luxbus/backend/internal/service/chat"
	"github.com/zhouzirui/luxbus/backend/pkg/log"
	"github.com/zhouzirui/luxbus/backend/pkg/utils"
)

// Handler exposes the assistant query and the chat transcript.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a chat handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the chat routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ai/query", h.handleQuery)
	r.Get("/chat/messages", h.handleListMessages)
}

type queryRequest struct {
	Query *string `json:"query"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var payload queryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Query == nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid query format")
		return
	}

	reply, err := h.chatSvc.HandleQuery(r.Context(), *payload.Query)
	if err != nil {
		if errors.Is(err, chatService.ErrValidation) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid query format")
			return
		}
		log.Error("[chat] query failed", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to process AI query")
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.Messages(r.Context())
	if err != nil {
		log.Error("[chat] list messages failed", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch chat messages")
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}
