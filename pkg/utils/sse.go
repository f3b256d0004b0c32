package utils

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zhouzirui/luxbus/backend/pkg/log"
)

// SendSSEChunk writes one "data:" frame and flushes it.
func SendSSEChunk(w http.ResponseWriter, flusher http.Flusher, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal sse payload", err)
		return
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		log.Error("failed to write sse payload", err)
		return
	}
	flusher.Flush()
}

// SetupSSEHeaders prepares w for an event stream. CORS headers are left to
// the router middleware.
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
