package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hitl-relay/domain"
	"github.com/xiaot623/hitl-relay/metrics"
	"github.com/xiaot623/hitl-relay/routing"
)

// queryKeywords are the utterances that re-render the pending question
// instead of answering it. Matched against the trimmed, case-folded text.
var queryKeywords = map[string]bool{
	"question": true,
	"pending":  true,
	"status":   true,
	"?":        true,
}

// chatInbound tolerates the two payload shapes the chat provider delivers:
// the primary nested event schema and a flat fallback.
type chatInbound struct {
	Event *struct {
		User string `json:"user"`
		Text string `json:"text"`
	} `json:"event"`
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// identity extracts the channel identity and utterance, nested schema first.
func (p *chatInbound) identity() (string, string) {
	if p.Event != nil && p.Event.User != "" {
		return p.Event.User, p.Event.Text
	}
	return p.UserID, p.Text
}

// ChatWebhook interprets one inbound chat message. It always acknowledges
// with 200 and a human-readable text; error statuses would make the chat
// provider retry aggressively.
// POST /webhook/chat
func (h *Handler) ChatWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	var payload chatInbound
	if err := c.Bind(&payload); err != nil {
		metrics.WebhookMessages.WithLabelValues("unparseable").Inc()
		return ack(c, "Sorry, I could not read that message.")
	}

	channelID, text := payload.identity()
	if channelID == "" {
		metrics.WebhookMessages.WithLabelValues("no_identity").Inc()
		return ack(c, "Sorry, I could not identify you.")
	}

	res := h.strategy.Resolve(ctx, channelID)
	switch res.Kind {
	case routing.KindRejected:
		metrics.WebhookMessages.WithLabelValues("rejected").Inc()
		return ack(c, "You are not permitted to use this bot.")
	case routing.KindNeedsLinking:
		metrics.WebhookMessages.WithLabelValues("needs_linking").Inc()
		metrics.LinkCodesIssued.Inc()
		return ack(c, fmt.Sprintf("Your account is not linked yet. Use code %s to link it, then send your answer again.", res.LinkCode))
	}

	sess, err := h.store.FindMostRecentWaiting(ctx, res.Scope())
	if err != nil {
		log.Printf("ERROR: failed to scan for waiting session: %v", err)
		metrics.WebhookMessages.WithLabelValues("error").Inc()
		return ack(c, "Something went wrong, please try again.")
	}
	if sess == nil || sess.PendingQuestion == nil {
		metrics.WebhookMessages.WithLabelValues("no_pending").Inc()
		return ack(c, "There is no pending question right now.")
	}

	trimmed := strings.TrimSpace(text)
	if queryKeywords[strings.ToLower(trimmed)] {
		// Read-only peek; repeatable indefinitely.
		metrics.WebhookMessages.WithLabelValues("query").Inc()
		return ack(c, renderQuestion(sess.PendingQuestion))
	}

	reply := &domain.Reply{
		ReplyID:   newReplyID(),
		Type:      domain.ReplyTypeText,
		Text:      trimmed,
		CreatedAt: time.Now(),
	}
	if choice, ok := domain.MatchChoice(sess.PendingQuestion.Choices, text); ok {
		reply.Type = domain.ReplyTypeChoice
		reply.Choice = choice
	}

	if _, err := h.store.AddReply(ctx, sess.SessionID, reply); err != nil {
		log.Printf("ERROR: failed to record reply: %v", err)
		metrics.WebhookMessages.WithLabelValues("error").Inc()
		return ack(c, "Something went wrong, please try again.")
	}

	metrics.WebhookMessages.WithLabelValues("answered").Inc()
	metrics.RepliesRecorded.WithLabelValues(string(reply.Type)).Inc()
	h.notifier.Wake(sess.SessionID)

	return ack(c, "Got it, passing your answer along.")
}

// renderQuestion formats the pending question for chat display.
func renderQuestion(q *domain.PendingQuestion) string {
	var b strings.Builder
	if q.Severity != domain.SeverityInfo {
		fmt.Fprintf(&b, "[%s] ", q.Severity)
	}
	b.WriteString(q.Text)
	if len(q.Choices) > 0 {
		fmt.Fprintf(&b, "\nOptions: %s", strings.Join(q.Choices, " / "))
	}
	return b.String()
}

// ack responds with the chat-formatted acknowledgment. Always 200.
func ack(c echo.Context, text string) error {
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}
