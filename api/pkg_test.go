package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hitl-relay/api"
	"github.com/xiaot623/hitl-relay/chatclient"
	"github.com/xiaot623/hitl-relay/config"
	"github.com/xiaot623/hitl-relay/directory"
	"github.com/xiaot623/hitl-relay/linkcode"
	"github.com/xiaot623/hitl-relay/policy"
	"github.com/xiaot623/hitl-relay/routing"
	"github.com/xiaot623/hitl-relay/store"
	"github.com/xiaot623/hitl-relay/tests/helpers"
)

// allowedChannel is the single-user allowed chat identity used across tests.
const allowedChannel = "U100"

func newPolicyEngine(t *testing.T) *policy.Engine {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}
	return engine
}

// newSingleHandler builds a handler in single-user mode backed by a memory
// store.
func newSingleHandler(t *testing.T) (*api.Handler, *store.MemoryStore) {
	t.Helper()

	s := helpers.NewTestStore(t)
	cfg := &config.Config{Mode: config.ModeSingle, AllowedChannelID: allowedChannel}
	h := api.NewHandler(s,
		&routing.SingleUser{AllowedChannelID: allowedChannel},
		directory.NewMemoryDirectory(nil),
		linkcode.NewMemoryStore(0),
		chatclient.New("", ""),
		newPolicyEngine(t),
		cfg)
	return h, s
}

// newMultiHandler builds a handler in multi-user mode with the given
// channel->user directory seed.
func newMultiHandler(t *testing.T, seed map[string]string) (*api.Handler, *store.MemoryStore) {
	t.Helper()

	s := helpers.NewTestStore(t)
	dir := directory.NewMemoryDirectory(seed)
	codes := linkcode.NewMemoryStore(0)
	cfg := &config.Config{Mode: config.ModeMulti}
	h := api.NewHandler(s,
		&routing.MultiUser{Directory: dir, Codes: codes},
		dir,
		codes,
		chatclient.New("", ""),
		newPolicyEngine(t),
		cfg)
	return h, s
}

// newJSONContext builds an echo context for a JSON request. principal mimics
// what the auth middleware would have stored.
func newJSONContext(e *echo.Echo, method, target string, body interface{}, principal string) (echo.Context, *httptest.ResponseRecorder) {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("principal", principal)
	return c, rec
}

// postQuestion drives the PostQuestion handler and returns the recorder.
func postQuestion(t *testing.T, e *echo.Echo, h *api.Handler, body api.PostQuestionRequest, principal string) *httptest.ResponseRecorder {
	t.Helper()
	c, rec := newJSONContext(e, http.MethodPost, "/v1/questions", body, principal)
	if err := h.PostQuestion(c); err != nil {
		t.Fatalf("PostQuestion error: %v", err)
	}
	return rec
}

// sendWebhook drives the ChatWebhook handler and returns the ack text.
func sendWebhook(t *testing.T, e *echo.Echo, h *api.Handler, payload interface{}) string {
	t.Helper()
	c, rec := newJSONContext(e, http.MethodPost, "/webhook/chat", payload, "")
	if err := h.ChatWebhook(c); err != nil {
		t.Fatalf("ChatWebhook error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook must always return 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode webhook response: %v", err)
	}
	return resp["text"]
}

// pollReplies drives the PollReplies handler and decodes the response.
func pollReplies(t *testing.T, e *echo.Echo, h *api.Handler, sessionID, query string) api.PollRepliesResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionID+"/replies?"+query, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/sessions/:session_id/replies")
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)

	if err := h.PollReplies(c); err != nil {
		t.Fatalf("PollReplies error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp api.PollRepliesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode poll response: %v", err)
	}
	return resp
}
