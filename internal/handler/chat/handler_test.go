package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/umayarajkumar17/portfolio/backend/internal/model/chat"
	aiService "github.com/umayarajkumar17/portfolio/backend/internal/service/ai"
	chatservice "github.com/umayarajkumar17/portfolio/backend/internal/service/chat"
)

// manualClock only fires timers when flushed.
type manualClock struct {
	mu      sync.Mutex
	pending []func()
}

type manualTimer struct{}

func (manualTimer) Stop() bool { return true }

func (c *manualClock) Now() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func (c *manualClock) AfterFunc(_ time.Duration, f func()) chatservice.Timer {
	c.mu.Lock()
	c.pending = append(c.pending, f)
	c.mu.Unlock()
	return manualTimer{}
}

// flush runs timers until none are left.
func (c *manualClock) flush() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		f := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		f()
	}
}

type stubReplier struct {
	history []chat.Message
}

func (s *stubReplier) Reply(_ context.Context, text string, history []chat.Message) string {
	s.history = history
	return "You said **" + text + "**"
}

func (s *stubReplier) Status() aiService.Status {
	return aiService.Status{Provider: "fallback"}
}

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service, *manualClock, *stubReplier) {
	t.Helper()
	clock := &manualClock{}
	replier := &stubReplier{}
	chatSvc, err := chatservice.NewService(replier, chatservice.WithClock(clock))
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	t.Cleanup(chatSvc.Close)

	handler := New(chatSvc, replier, replier, nil)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc, clock, replier
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeSession(t *testing.T, resp *httptest.ResponseRecorder) chat.Session {
	t.Helper()
	var s chat.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode session: %v (body %s)", err, resp.Body.String())
	}
	return s
}

func createSession(t *testing.T, r http.Handler) chat.Session {
	t.Helper()
	resp := do(r, http.MethodPost, "/session", "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	return decodeSession(t, resp)
}

func TestCreateSession(t *testing.T) {
	r, chatSvc, _, _ := setupRouter(t)

	session := createSession(t, r)
	if session.ID == "" || session.IsOpen || len(session.Messages) != 0 {
		t.Fatalf("unexpected fresh session: %+v", session)
	}
	if chatSvc.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", chatSvc.Count())
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r, _, _, _ := setupRouter(t)

	if resp := do(r, http.MethodGet, "/session/missing", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestConversationFlow(t *testing.T) {
	r, _, clock, replier := setupRouter(t)
	session := createSession(t, r)
	base := "/session/" + session.ID

	if resp := do(r, http.MethodPost, base+"/messages", `{"text":"hi"}`); resp.Code != http.StatusConflict {
		t.Fatalf("send while closed: expected 409, got %d", resp.Code)
	}

	resp := do(r, http.MethodPost, base+"/open", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("open: expected 200, got %d", resp.Code)
	}
	if got := decodeSession(t, resp); !got.IsOpen || got.Phase != chat.PhaseThinking {
		t.Fatalf("unexpected state after open: %+v", got)
	}
	clock.flush()

	if resp := do(r, http.MethodPost, base+"/messages", `{"text":"   "}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("blank send: expected 400, got %d", resp.Code)
	}

	resp = do(r, http.MethodPost, base+"/messages", `{"text":"Tell me about your projects"}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("send: expected 202, got %d", resp.Code)
	}
	if got := decodeSession(t, resp); len(got.Messages) != 2 || got.Phase != chat.PhaseThinking {
		t.Fatalf("unexpected state after send: %+v", got)
	}

	if resp := do(r, http.MethodPost, base+"/messages", `{"text":"again"}`); resp.Code != http.StatusConflict {
		t.Fatalf("send while busy: expected 409, got %d", resp.Code)
	}

	clock.flush()
	got := decodeSession(t, do(r, http.MethodGet, base, ""))
	if len(got.Messages) != 3 || got.Phase != chat.PhaseIdle {
		t.Fatalf("unexpected state after reply: %+v", got)
	}
	if got.Messages[2].Text != "You said Tell me about your projects" {
		t.Fatalf("unexpected reply text: %q", got.Messages[2].Text)
	}
	if len(replier.history) != 1 {
		t.Fatalf("history must exclude the new message, got %d entries", len(replier.history))
	}
	for _, s := range got.Suggestions {
		if s == "Tell me about your projects" {
			t.Fatal("used suggestion reappeared")
		}
	}
}

func TestSuggestionEndpoint(t *testing.T) {
	r, _, clock, _ := setupRouter(t)
	session := createSession(t, r)
	base := "/session/" + session.ID

	do(r, http.MethodPost, base+"/open", "")
	clock.flush()

	if resp := do(r, http.MethodPost, base+"/suggestions", `{"text":"Sing a song"}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("unknown suggestion: expected 400, got %d", resp.Code)
	}

	resp := do(r, http.MethodPost, base+"/suggestions", `{"text":"What skills do you have?"}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("suggestion: expected 202, got %d", resp.Code)
	}
	if got := decodeSession(t, resp); len(got.UsedSuggestions) != 1 {
		t.Fatalf("expected suggestion to be marked used: %+v", got.UsedSuggestions)
	}
}

func TestClearAndExpand(t *testing.T) {
	r, _, clock, _ := setupRouter(t)
	session := createSession(t, r)
	base := "/session/" + session.ID

	if resp := do(r, http.MethodPost, base+"/clear", ""); resp.Code != http.StatusConflict {
		t.Fatalf("clear while closed: expected 409, got %d", resp.Code)
	}

	do(r, http.MethodPost, base+"/open", "")
	clock.flush()
	do(r, http.MethodPost, base+"/messages", `{"text":"hello"}`)
	clock.flush()

	if resp := do(r, http.MethodPost, base+"/clear", ""); resp.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", resp.Code)
	}
	clock.flush()
	if got := decodeSession(t, do(r, http.MethodGet, base, "")); len(got.Messages) != 1 {
		t.Fatalf("expected only the welcome message, got %d", len(got.Messages))
	}

	if got := decodeSession(t, do(r, http.MethodPost, base+"/expand", "")); !got.IsExpanded {
		t.Fatal("empty expand body must toggle")
	}
	if got := decodeSession(t, do(r, http.MethodPost, base+"/expand", `{"expanded":false}`)); got.IsExpanded {
		t.Fatal("expected collapsed")
	}
}

func TestDeleteAndDiscard(t *testing.T) {
	r, chatSvc, _, _ := setupRouter(t)

	first := createSession(t, r)
	if resp := do(r, http.MethodDelete, "/session/"+first.ID, ""); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.Code)
	}
	second := createSession(t, r)
	if resp := do(r, http.MethodPost, "/session/"+second.ID+"/discard", ""); resp.Code != http.StatusNoContent {
		t.Fatalf("discard: expected 204, got %d", resp.Code)
	}
	if chatSvc.Count() != 0 {
		t.Fatalf("expected no sessions, got %d", chatSvc.Count())
	}
	if resp := do(r, http.MethodDelete, "/session/"+first.ID, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.Code)
	}
}

func TestStatelessReply(t *testing.T) {
	r, _, _, replier := setupRouter(t)

	resp := do(r, http.MethodPost, "/reply", `{"message":"hey","history":[{"sender":"bot","text":"hello"},{"sender":"robot","text":"x"}]}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		Reply     string `json:"reply"`
		Fragments []struct {
			Kind string `json:"kind"`
			Text string `json:"text"`
		} `json:"fragments"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Reply != "You said hey" {
		t.Fatalf("unexpected reply: %q", payload.Reply)
	}
	if len(payload.Fragments) != 2 || payload.Fragments[1].Text != "hey" {
		t.Fatalf("unexpected fragments: %+v", payload.Fragments)
	}
	if len(replier.history) != 1 {
		t.Fatalf("unknown senders must be dropped, got %d", len(replier.history))
	}

	if resp := do(r, http.MethodPost, "/reply", `{"message":" "}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("blank reply: expected 400, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPost, "/reply", `{bad json`); resp.Code != http.StatusBadRequest {
		t.Fatalf("malformed: expected 400, got %d", resp.Code)
	}
}

func TestStatus(t *testing.T) {
	r, _, _, _ := setupRouter(t)
	createSession(t, r)

	resp := do(r, http.MethodGet, "/status", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload struct {
		Sessions int              `json:"sessions"`
		Provider aiService.Status `json:"provider"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Sessions != 1 || payload.Provider.Provider != "fallback" {
		t.Fatalf("unexpected status: %+v", payload)
	}
}
