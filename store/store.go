// Package store defines the session storage interface and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/xiaot623/hitl-relay/domain"
)

var (
	// ErrQuestionPending is returned by InstallQuestion when the session
	// already has an outstanding question.
	ErrQuestionPending = errors.New("question already pending")

	// ErrNoPendingQuestion is returned by CancelQuestion when there is
	// nothing to cancel.
	ErrNoPendingQuestion = errors.New("no pending question")
)

// Store is the authoritative session store. Implementations must make each
// mutation an atomic unit: InstallQuestion in particular is a compare-and-set
// on the pending slot, so two concurrent installs on one session resolve to
// exactly one winner and one ErrQuestionPending.
type Store interface {
	// GetOrCreateSession returns the existing session unchanged, or creates
	// one with the given initial status and owner tag.
	GetOrCreateSession(ctx context.Context, sessionID string, initial domain.SessionStatus, ownerUserID string) (*domain.Session, error)

	// GetSession returns the session, or nil if it does not exist.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// InstallQuestion installs q as the pending question and moves the
	// session to WAITING_USER, creating the session if needed. Returns
	// ErrQuestionPending (and leaves the existing question untouched) if one
	// is already outstanding.
	InstallQuestion(ctx context.Context, sessionID, ownerUserID string, q *domain.PendingQuestion) (*domain.Session, error)

	// AddReply appends the reply, clears the pending question and moves the
	// session to RESOLVED. This is the only transition that resolves a
	// session; it is deliberately unconditional.
	AddReply(ctx context.Context, sessionID string, reply *domain.Reply) (*domain.Session, error)

	// CancelQuestion clears the pending question, records the CANCEL reply
	// and moves the session to CANCELED. Returns ErrNoPendingQuestion when
	// no question is outstanding.
	CancelQuestion(ctx context.Context, sessionID string, reply *domain.Reply) (*domain.Session, error)

	// FindMostRecentWaiting returns the WAITING_USER session with the
	// largest updated_at, or nil if there is none. An empty ownerUserID
	// scans globally; otherwise only that owner's sessions are considered.
	FindMostRecentWaiting(ctx context.Context, ownerUserID string) (*domain.Session, error)

	// ExpireStale moves WAITING_USER sessions whose pending question has
	// outlived its timeout (or defaultTTL when the question carries none) to
	// EXPIRED. Returns the number of sessions expired.
	ExpireStale(ctx context.Context, now time.Time, defaultTTL time.Duration) (int, error)

	// Lifecycle
	Close() error
}
