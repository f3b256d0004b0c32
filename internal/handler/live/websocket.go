package live

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
	"github.com/zhouzirui/luxbus/backend/pkg/log"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	maxReadBytes = 512
)

// Handler pushes bus directory snapshots over a websocket.
type Handler struct {
	buses    bus.Store
	interval time.Duration
	upgrader websocket.Upgrader
}

// New creates a live feed handler that sends a snapshot on connect and
// then every interval. allowedOrigins follows the CORS setting; "*" or an
// empty list accepts any origin.
func New(buses bus.Store, interval time.Duration, allowedOrigins []string) *Handler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Handler{
		buses:    buses,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes mounts the live feed on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/buses/live", h.handleLive)
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	if h.buses == nil {
		http.Error(w, "live feed unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("[live] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.readLoop(conn, cancel)

	log.Infof("[live] client connected remote=%s", r.RemoteAddr)
	defer log.Infof("[live] client disconnected remote=%s", r.RemoteAddr)

	if err := h.sendSnapshot(ctx, conn); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := h.sendSnapshot(ctx, conn); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are processed, and
// cancels the writer once the peer goes away.
func (h *Handler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxReadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warnf("[live] read error: %v", err)
			}
			return
		}
	}
}

func (h *Handler) sendSnapshot(ctx context.Context, conn *websocket.Conn) error {
	msg := outgoingMessage{Type: "snapshot", Timestamp: time.Now().Unix()}

	buses, err := h.buses.List(ctx)
	if err != nil {
		log.Error("[live] snapshot failed", err)
		msg.Type = "error"
		msg.Data = map[string]string{"message": "Failed to fetch buses"}
	} else {
		msg.Data = buses
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		log.Warnf("[live] write failed: %v", err)
		return err
	}
	return nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
