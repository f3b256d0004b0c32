package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
	"github.com/zhouzirui/luxbus/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/luxbus/backend/internal/service/chat"
)

type brokenLog struct{}

func (brokenLog) Append(context.Context, chat.Message) (chat.Message, error) {
	return chat.Message{}, errors.New("read-only database")
}

func (brokenLog) List(context.Context) ([]chat.Message, error) {
	return nil, errors.New("read-only database")
}

func setupRouter(messages chat.Store) *chi.Mux {
	chatSvc := chatservice.NewService(bus.NewMemoryStore(bus.Seed()), messages)
	r := chi.NewRouter()
	New(chatSvc).RegisterRoutes(r)
	return r
}

func postQuery(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ai/query", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func listMessages(t *testing.T, r http.Handler) []map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/chat/messages", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	return out
}

func TestQueryReturnsText(t *testing.T) {
	r := setupRouter(chat.NewMemoryStore())

	resp := postQuery(r, `{"query":"Any delays right now?"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var reply struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if !strings.Contains(reply.Text, "Bus 14 (Mission to Bay)") {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
}

func TestQueryInvalidPayloads(t *testing.T) {
	messages := chat.NewMemoryStore()
	r := setupRouter(messages)

	for _, body := range []string{`not json`, `{}`, `{"query":42}`, `{"query":""}`, `{"query":"   "}`} {
		resp := postQuery(r, body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, resp.Code)
		}
		if got := resp.Body.String(); got != "{\"error\":\"Invalid query format\"}\n" {
			t.Fatalf("%s: unexpected body %q", body, got)
		}
	}

	if got := listMessages(t, r); len(got) != 0 {
		t.Fatalf("expected no messages after rejected queries, got %d", len(got))
	}
}

func TestQueryStorageFailure(t *testing.T) {
	r := setupRouter(brokenLog{})

	resp := postQuery(r, `{"query":"fastest"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if got := resp.Body.String(); got != "{\"error\":\"Failed to process AI query\"}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestMessagesNewestFirst(t *testing.T) {
	r := setupRouter(chat.NewMemoryStore())

	postQuery(r, `{"query":"fastest"}`)
	postQuery(r, `{"query":"help"}`)

	got := listMessages(t, r)
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got))
	}
	if got[0]["isUser"] != float64(0) || got[1]["content"] != "help" || got[1]["isUser"] != float64(1) {
		t.Fatalf("unexpected ordering: %+v", got[:2])
	}
	if got[3]["content"] != "fastest" {
		t.Fatalf("expected first query last, got %+v", got[3])
	}
	for _, m := range got {
		if m["id"] == "" || m["timestamp"] == nil {
			t.Fatalf("message missing id or timestamp: %+v", m)
		}
	}
}

func TestMessagesStorageFailure(t *testing.T) {
	r := setupRouter(brokenLog{})

	req := httptest.NewRequest(http.MethodGet, "/chat/messages", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if got := resp.Body.String(); got != "{\"error\":\"Failed to fetch chat messages\"}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}
