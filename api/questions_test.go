package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/hitl-relay/api"
	"github.com/xiaot623/hitl-relay/domain"
)

func TestPostQuestion(t *testing.T) {
	e := echo.New()
	h, s := newSingleHandler(t)

	rec := postQuestion(t, e, h, api.PostQuestionRequest{
		SessionID: "s1",
		Text:      "Deploy?",
		Choices:   []string{"Yes", "No"},
		Severity:  "WARNING",
	}, "")

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp api.PostQuestionResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, domain.StatusWaitingUser, resp.Status)
	assert.True(t, strings.HasPrefix(resp.MessageID, "msg_"))

	sess, err := s.GetSession(context.Background(), "s1")
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingUser, sess.Status)
	assert.Equal(t, resp.MessageID, sess.PendingQuestion.MessageID)
}

func TestPostQuestionValidation(t *testing.T) {
	e := echo.New()
	h, _ := newSingleHandler(t)

	cases := []struct {
		name string
		req  api.PostQuestionRequest
	}{
		{"missing session_id", api.PostQuestionRequest{Text: "x", Severity: "INFO"}},
		{"missing text", api.PostQuestionRequest{SessionID: "s1", Severity: "INFO"}},
		{"bad severity", api.PostQuestionRequest{SessionID: "s1", Text: "x", Severity: "URGENT"}},
		{"missing severity", api.PostQuestionRequest{SessionID: "s1", Text: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postQuestion(t, e, h, tc.req, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// Scenario: a second post while one is pending conflicts and leaves the
// original question in place.
func TestPostQuestionConflict(t *testing.T) {
	e := echo.New()
	h, s := newSingleHandler(t)

	rec := postQuestion(t, e, h, api.PostQuestionRequest{SessionID: "s2", Text: "First?", Severity: "INFO"}, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	var first api.PostQuestionResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = postQuestion(t, e, h, api.PostQuestionRequest{SessionID: "s2", Text: "Second?", Severity: "INFO"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Only the first question's effects are visible.
	sess, err := s.GetSession(context.Background(), "s2")
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingUser, sess.Status)
	assert.Equal(t, first.MessageID, sess.PendingQuestion.MessageID)
	assert.Equal(t, "First?", sess.PendingQuestion.Text)

	resp := pollReplies(t, e, h, "s2", "wait_sec=0")
	assert.Equal(t, domain.StatusWaitingUser, resp.Status)
	assert.Empty(t, resp.Replies)
}

func TestPostQuestionMultiUser(t *testing.T) {
	e := echo.New()
	h, s := newMultiHandler(t, map[string]string{"U1": "alice"})

	// Missing target user.
	rec := postQuestion(t, e, h, api.PostQuestionRequest{SessionID: "s1", Text: "x", Severity: "INFO"}, "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Caller/target mismatch.
	rec = postQuestion(t, e, h, api.PostQuestionRequest{SessionID: "s1", Text: "x", Severity: "INFO", UserID: "bob"}, "alice")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Self-targeted post is accepted and owner-tagged.
	rec = postQuestion(t, e, h, api.PostQuestionRequest{SessionID: "s1", Text: "x", Severity: "INFO", UserID: "alice"}, "alice")
	assert.Equal(t, http.StatusCreated, rec.Code)

	sess, err := s.GetSession(context.Background(), "s1")
	assert.NoError(t, err)
	assert.Equal(t, "alice", sess.OwnerUserID)
}

func TestCancelQuestion(t *testing.T) {
	e := echo.New()
	h, _ := newSingleHandler(t)

	cancel := func(sessionID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+sessionID+"/question", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/sessions/:session_id/question")
		c.SetParamNames("session_id")
		c.SetParamValues(sessionID)
		assert.NoError(t, h.CancelQuestion(c))
		return rec
	}

	// Nothing pending yet.
	assert.Equal(t, http.StatusNotFound, cancel("s1").Code)

	postQuestion(t, e, h, api.PostQuestionRequest{SessionID: "s1", Text: "Deploy?", Severity: "DANGER"}, "")

	rec := cancel("s1")
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := pollReplies(t, e, h, "s1", "wait_sec=0")
	assert.Equal(t, domain.StatusCanceled, resp.Status)
	if assert.Len(t, resp.Replies, 1) {
		assert.Equal(t, domain.ReplyTypeCancel, resp.Replies[0].Type)
	}

	// Second cancel finds nothing pending.
	assert.Equal(t, http.StatusNotFound, cancel("s1").Code)
}

// Full-router smoke test: the agent API sits behind auth, the webhook does
// not.
func TestRegisterRoutesAuth(t *testing.T) {
	e := echo.New()
	h, _ := newSingleHandler(t)

	called := false
	h.RegisterRoutes(e, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			called = true
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/questions", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, called)

	req = httptest.NewRequest(http.MethodPost, "/webhook/chat", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
