package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/xiaot623/hitl-relay/chatclient"
	"github.com/xiaot623/hitl-relay/domain"
	"github.com/xiaot623/hitl-relay/metrics"
)

// newMessageID generates a question message id.
func newMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}

// newReplyID generates a reply id. ULIDs sort in creation order, which keeps
// the since cursor cheap to reason about.
func newReplyID() string {
	return ulid.Make().String()
}

// deliverQuestion pushes the question to the user's chat channel. It runs
// detached from the request that accepted the question; failures are logged
// and counted, never surfaced.
func (h *Handler) deliverQuestion(sessionID, ownerUserID string, q *domain.PendingQuestion) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	channelID := ""
	if ownerUserID != "" {
		var err error
		channelID, err = h.directory.ChannelForUser(ctx, ownerUserID)
		if err != nil {
			log.Printf("WARN: no chat channel for user %s, skipping delivery for session %s", ownerUserID, sessionID)
			return
		}
	}

	notification := &chatclient.Notification{
		ChannelID: channelID,
		Text:      fmt.Sprintf("%s\n(session %s)", renderQuestion(q), sessionID),
		Choices:   q.Choices,
		Severity:  q.Severity,
	}
	if err := h.chatClient.Send(ctx, notification); err != nil {
		metrics.DeliveryFailures.Inc()
		log.Printf("WARN: failed to deliver question %s to chat: %v", q.MessageID, err)
	}
}
