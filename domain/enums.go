// Package domain defines the core domain models for the relay.
package domain

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	StatusIdle        SessionStatus = "IDLE"
	StatusWaitingUser SessionStatus = "WAITING_USER"
	StatusResolved    SessionStatus = "RESOLVED"
	StatusExpired     SessionStatus = "EXPIRED"
	StatusCanceled    SessionStatus = "CANCELED"
)

// ReplyType classifies an inbound reply.
type ReplyType string

const (
	ReplyTypeText   ReplyType = "TEXT"
	ReplyTypeChoice ReplyType = "CHOICE"
	ReplyTypeCancel ReplyType = "CANCEL"
)

// Severity indicates how urgent a question is when rendered in chat.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityDanger  Severity = "DANGER"
)

// Valid reports whether s is a known severity value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityDanger:
		return true
	}
	return false
}
