package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hitl-relay/auth"
	"github.com/xiaot623/hitl-relay/config"
	"github.com/xiaot623/hitl-relay/domain"
	"github.com/xiaot623/hitl-relay/metrics"
	"github.com/xiaot623/hitl-relay/store"
)

// PostQuestionRequest is the request to post a question to a session.
type PostQuestionRequest struct {
	SessionID  string          `json:"session_id"`
	Text       string          `json:"text"`
	Choices    []string        `json:"choices,omitempty"`
	TimeoutSec int             `json:"timeout_sec,omitempty"`
	Severity   string          `json:"severity"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
}

// PostQuestionResponse acknowledges an accepted question.
type PostQuestionResponse struct {
	SessionID string               `json:"session_id"`
	MessageID string               `json:"message_id"`
	Status    domain.SessionStatus `json:"status"`
}

// PostQuestion accepts a new question for a session.
// POST /v1/questions
func (h *Handler) PostQuestion(c echo.Context) error {
	ctx := c.Request().Context()

	var req PostQuestionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session_id is required"})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}
	severity := domain.Severity(req.Severity)
	if !severity.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "severity must be INFO, WARNING or DANGER"})
	}
	if h.config.Mode == config.ModeMulti && req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	decision, err := h.policyEngine.Evaluate(ctx, map[string]interface{}{
		"mode":        h.config.Mode,
		"caller":      auth.Principal(c),
		"target_user": req.UserID,
		"severity":    req.Severity,
	})
	if err != nil {
		log.Printf("ERROR: failed to evaluate question policy: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to evaluate policy"})
	}
	if decision != "allow" {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not authorized for target user"})
	}

	owner := ""
	if h.config.Mode == config.ModeMulti {
		owner = req.UserID
	}

	question := &domain.PendingQuestion{
		MessageID:  newMessageID(),
		Text:       req.Text,
		Choices:    req.Choices,
		TimeoutSec: req.TimeoutSec,
		Severity:   severity,
		Metadata:   req.Metadata,
		CreatedAt:  time.Now(),
	}

	sess, err := h.store.InstallQuestion(ctx, req.SessionID, owner, question)
	if errors.Is(err, store.ErrQuestionPending) {
		metrics.QuestionConflicts.Inc()
		return c.JSON(http.StatusConflict, map[string]string{"error": "question already pending"})
	}
	if err != nil {
		log.Printf("ERROR: failed to install question: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to install question"})
	}
	metrics.QuestionsPosted.Inc()

	// Delivery is fire-and-forget: the accept response does not wait for the
	// chat provider, and delivery failure is observed only in logs.
	go h.deliverQuestion(sess.SessionID, owner, question)

	return c.JSON(http.StatusCreated, PostQuestionResponse{
		SessionID: sess.SessionID,
		MessageID: question.MessageID,
		Status:    sess.Status,
	})
}

// CancelQuestion withdraws the pending question for a session.
// DELETE /v1/sessions/:session_id/question
func (h *Handler) CancelQuestion(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	reply := &domain.Reply{
		ReplyID:   newReplyID(),
		Type:      domain.ReplyTypeCancel,
		CreatedAt: time.Now(),
	}

	sess, err := h.store.CancelQuestion(ctx, sessionID, reply)
	if errors.Is(err, store.ErrNoPendingQuestion) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no pending question"})
	}
	if err != nil {
		log.Printf("ERROR: failed to cancel question: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to cancel question"})
	}

	metrics.RepliesRecorded.WithLabelValues(string(domain.ReplyTypeCancel)).Inc()
	h.notifier.Wake(sessionID)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sess.SessionID,
		"status":     sess.Status,
	})
}
