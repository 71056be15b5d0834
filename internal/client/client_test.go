package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChatStreamsChunks(t *testing.T) {
	fragments := []string{"HEL", "LO: ", "X"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			SessionID   string `json:"session_id"`
			UserMessage string `json:"user_message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if req.SessionID != "s1" || req.UserMessage != "Hello" {
			http.Error(w, "wrong payload", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, f := range fragments {
			w.Write([]byte(f))
			flusher.Flush()
			time.Sleep(10 * time.Millisecond)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	var rendered []string
	var cumulative strings.Builder
	reply, err := c.Chat(context.Background(), "s1", "Hello", func(chunk string) error {
		cumulative.WriteString(chunk)
		rendered = append(rendered, cumulative.String())
		return nil
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "HELLO: X" {
		t.Fatalf("unexpected reply %q", reply)
	}
	want := []string{"HEL", "HELLO: ", "HELLO: X"}
	if len(rendered) != len(want) {
		t.Fatalf("expected %d renders, got %v", len(want), rendered)
	}
	for i := range want {
		if rendered[i] != want[i] {
			t.Fatalf("render %d: got %q want %q", i, rendered[i], want[i])
		}
	}
}

func TestChatNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "server is busy, please retry"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Chat(context.Background(), "s1", "Hello", nil)
	if err == nil {
		t.Fatalf("expected an error for a non-200 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error should carry the status code: %v", err)
	}
}

func TestJSONEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/health":
			w.Write([]byte(`{"status": "ok"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/session":
			w.Write([]byte(`{"session_id": "abc-123"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/sessions":
			w.Write([]byte(`{"sessions": ["abc-123", "def-456"]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/session/abc-123/history":
			w.Write([]byte(`{"session_id": "abc-123", "messages": [{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}]}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/session/abc-123":
			w.Write([]byte(`{"status": "cleared", "session_id": "abc-123"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
	id, err := c.CreateSession(ctx)
	if err != nil || id != "abc-123" {
		t.Fatalf("create session: id=%q err=%v", id, err)
	}
	ids, err := c.ListSessions(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("list sessions: ids=%v err=%v", ids, err)
	}
	msgs, err := c.History(ctx, "abc-123")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hi" || msgs[1].Content != "hello" {
		t.Fatalf("unexpected history %#v", msgs)
	}
	if err := c.DeleteSession(ctx, "abc-123"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c := New("http://example.test:9000/")
	if c.baseURL != "http://example.test:9000" {
		t.Fatalf("base url not normalized: %q", c.baseURL)
	}
}
