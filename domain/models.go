// Package domain defines the core domain models for the relay.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Session is the unit of one question/answer exchange. A session is created
// implicitly on first reference: WAITING_USER when created by a question
// post, IDLE when created by a reply poll.
type Session struct {
	SessionID       string           `json:"session_id"`
	Status          SessionStatus    `json:"status"`
	PendingQuestion *PendingQuestion `json:"pending_question,omitempty"`
	Replies         []Reply          `json:"replies"`
	OwnerUserID     string           `json:"owner_user_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// PendingQuestion is the single outstanding question awaiting a reply.
// Present iff Status == WAITING_USER.
type PendingQuestion struct {
	MessageID  string          `json:"message_id"`
	Text       string          `json:"text"`
	Choices    []string        `json:"choices,omitempty"`
	TimeoutSec int             `json:"timeout_sec,omitempty"`
	Severity   Severity        `json:"severity"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Reply is one inbound answer. Replies are append-only; insertion order is
// arrival order.
type Reply struct {
	ReplyID   string    `json:"reply_id"`
	Type      ReplyType `json:"type"`
	Text      string    `json:"text,omitempty"`
	Choice    string    `json:"choice,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchChoice matches an utterance against the candidate choices. Matching is
// a case-insensitive exact comparison of the trimmed utterance; the returned
// choice keeps the candidate's original casing.
func MatchChoice(choices []string, utterance string) (string, bool) {
	trimmed := strings.TrimSpace(utterance)
	for _, choice := range choices {
		if strings.EqualFold(choice, trimmed) {
			return choice, true
		}
	}
	return "", false
}
