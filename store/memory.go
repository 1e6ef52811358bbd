package store

import (
	"context"
	"sync"
	"time"

	"github.com/xiaot623/hitl-relay/domain"
)

// MemoryStore implements Store with an in-process map. This is the reference
// backend: volatile, single-node, no external dependencies.
//
// The outer RWMutex only guards the map; each session mutates under its own
// lock, so writes to different sessions proceed in parallel.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
}

type sessionRecord struct {
	mu   sync.Mutex
	sess domain.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*sessionRecord)}
}

// record returns the session record, creating it with the given initial state
// when absent. The initial status and owner are ignored for existing sessions.
func (s *MemoryStore) record(sessionID string, initial domain.SessionStatus, ownerUserID string) *sessionRecord {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[sessionID]; ok {
		return rec
	}
	now := time.Now()
	rec = &sessionRecord{sess: domain.Session{
		SessionID:   sessionID,
		Status:      initial,
		Replies:     []domain.Reply{},
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
	s.sessions[sessionID] = rec
	return rec
}

// snapshot copies the session so callers never alias store-owned state.
func (r *sessionRecord) snapshot() *domain.Session {
	out := r.sess
	out.Replies = append([]domain.Reply{}, r.sess.Replies...)
	if r.sess.PendingQuestion != nil {
		q := *r.sess.PendingQuestion
		out.PendingQuestion = &q
	}
	return &out
}

func (s *MemoryStore) GetOrCreateSession(ctx context.Context, sessionID string, initial domain.SessionStatus, ownerUserID string) (*domain.Session, error) {
	rec := s.record(sessionID, initial, ownerUserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshot(), nil
}

func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshot(), nil
}

func (s *MemoryStore) InstallQuestion(ctx context.Context, sessionID, ownerUserID string, q *domain.PendingQuestion) (*domain.Session, error) {
	rec := s.record(sessionID, domain.StatusWaitingUser, ownerUserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.sess.PendingQuestion != nil {
		return nil, ErrQuestionPending
	}

	question := *q
	rec.sess.PendingQuestion = &question
	rec.sess.Status = domain.StatusWaitingUser
	rec.sess.UpdatedAt = time.Now()
	return rec.snapshot(), nil
}

func (s *MemoryStore) AddReply(ctx context.Context, sessionID string, reply *domain.Reply) (*domain.Session, error) {
	rec := s.record(sessionID, domain.StatusIdle, "")
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.sess.Replies = append(rec.sess.Replies, *reply)
	rec.sess.PendingQuestion = nil
	rec.sess.Status = domain.StatusResolved
	rec.sess.UpdatedAt = time.Now()
	return rec.snapshot(), nil
}

func (s *MemoryStore) CancelQuestion(ctx context.Context, sessionID string, reply *domain.Reply) (*domain.Session, error) {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoPendingQuestion
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.sess.PendingQuestion == nil {
		return nil, ErrNoPendingQuestion
	}

	rec.sess.Replies = append(rec.sess.Replies, *reply)
	rec.sess.PendingQuestion = nil
	rec.sess.Status = domain.StatusCanceled
	rec.sess.UpdatedAt = time.Now()
	return rec.snapshot(), nil
}

func (s *MemoryStore) FindMostRecentWaiting(ctx context.Context, ownerUserID string) (*domain.Session, error) {
	s.mu.RLock()
	records := make([]*sessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	var best *domain.Session
	for _, rec := range records {
		rec.mu.Lock()
		if rec.sess.Status == domain.StatusWaitingUser &&
			(ownerUserID == "" || rec.sess.OwnerUserID == ownerUserID) &&
			(best == nil || rec.sess.UpdatedAt.After(best.UpdatedAt)) {
			best = rec.snapshot()
		}
		rec.mu.Unlock()
	}
	return best, nil
}

func (s *MemoryStore) ExpireStale(ctx context.Context, now time.Time, defaultTTL time.Duration) (int, error) {
	s.mu.RLock()
	records := make([]*sessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	expired := 0
	for _, rec := range records {
		rec.mu.Lock()
		q := rec.sess.PendingQuestion
		if rec.sess.Status == domain.StatusWaitingUser && q != nil {
			ttl := defaultTTL
			if q.TimeoutSec > 0 {
				ttl = time.Duration(q.TimeoutSec) * time.Second
			}
			if ttl > 0 && now.Sub(q.CreatedAt) >= ttl {
				rec.sess.PendingQuestion = nil
				rec.sess.Status = domain.StatusExpired
				rec.sess.UpdatedAt = now
				expired++
			}
		}
		rec.mu.Unlock()
	}
	return expired, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
