package stream

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/luxbus/backend/internal/service/chat"
	"github.com/zhouzirui/luxbus/backend/pkg/log"
	"github.com/zhouzirui/luxbus/backend/pkg/utils"
)

// Handler streams assistant answers via Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a stream handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the stream route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ai/stream", h.handleStream)
}

// StreamResponse is one SSE frame. A "replace" event discards the deltas
// received so far in favour of its content.
type StreamResponse struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if strings.TrimSpace(query) == "" {
		utils.RespondError(w, http.StatusBadRequest, "Invalid query format")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "start"})

	reply, err := h.chatSvc.StreamQuery(r.Context(), query, func(chunk chatService.Chunk) {
		event := "delta"
		if chunk.Replace {
			event = "replace"
		}
		utils.SendSSEChunk(w, flusher, StreamResponse{Event: event, Content: chunk.Text})
	})
	if err != nil {
		log.Error("[stream] query failed", err)
		message := "Failed to process AI query"
		if errors.Is(err, chatService.ErrValidation) {
			message = "Invalid query format"
		}
		utils.SendSSEChunk(w, flusher, StreamResponse{Event: "error", Error: message})
		return
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "message", Content: reply.Text})
	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "end", Finished: true})

	log.Infof("[stream] completed response length=%d", len(reply.Text))
}
