package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
)

type snapshotFrame struct {
	Type      string    `json:"type"`
	Data      []bus.Bus `json:"data"`
	Timestamp int64     `json:"timestamp"`
}

func startServer(t *testing.T, store bus.Store, interval time.Duration) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	New(store, interval, []string{"*"}).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/buses/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) snapshotFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read err: %v", err)
	}
	var frame snapshotFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	return frame
}

func TestLiveSendsSnapshotOnConnect(t *testing.T) {
	srv := startServer(t, bus.NewMemoryStore(bus.Seed()), time.Hour)
	conn := dial(t, srv)

	frame := readFrame(t, conn)
	if frame.Type != "snapshot" || len(frame.Data) != 3 {
		t.Fatalf("unexpected frame %+v", frame)
	}
	if frame.Timestamp == 0 {
		t.Fatal("expected timestamp")
	}
}

func TestLivePushesUpdatesOnInterval(t *testing.T) {
	store := bus.NewMemoryStore(bus.Seed())
	srv := startServer(t, store, 20*time.Millisecond)
	conn := dial(t, srv)

	readFrame(t, conn)

	capacity := 95
	if _, _, err := store.Update(context.Background(), "38", bus.Patch{Capacity: &capacity}); err != nil {
		t.Fatalf("update err: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frame := readFrame(t, conn)
		if frame.Data[0].Capacity == 95 {
			return
		}
	}
	t.Fatal("update never appeared in live feed")
}

func TestLiveUnavailableWithoutStore(t *testing.T) {
	r := chi.NewRouter()
	New(nil, time.Second, nil).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/buses/live", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodGet, "/buses/live", nil)
	if !check(req) {
		t.Fatal("requests without origin should pass")
	}
	req.Header.Set("Origin", "http://localhost:5173")
	if !check(req) {
		t.Fatal("configured origin should pass")
	}
	req.Header.Set("Origin", "http://evil.example")
	if check(req) {
		t.Fatal("unknown origin should be rejected")
	}
}
