package linkcode

import (
	"context"
	"log"
	"sync"
	"time"
)

// MemoryStore keeps codes in process memory. Expired codes are rejected on
// redeem and removed by the periodic sweep.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]entry
	ttl   time.Duration
}

type entry struct {
	channelID string
	expiresAt time.Time
}

// NewMemoryStore creates a memory-backed code store. A non-positive ttl falls
// back to DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{codes: make(map[string]entry), ttl: ttl}
}

func (s *MemoryStore) Issue(ctx context.Context, channelID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		code, err := newCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.codes[code]; taken {
			continue
		}
		s.codes[code] = entry{channelID: channelID, expiresAt: time.Now().Add(s.ttl)}
		return code, nil
	}
}

func (s *MemoryStore) Redeem(ctx context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.codes[code]
	if !ok {
		return "", ErrCodeNotFound
	}
	delete(s.codes, code)
	if time.Now().After(e.expiresAt) {
		return "", ErrCodeNotFound
	}
	return e.channelID, nil
}

// Sweep removes expired codes and returns how many were dropped.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for code, e := range s.codes {
		if now.After(e.expiresAt) {
			delete(s.codes, code)
			dropped++
		}
	}
	return dropped
}

// RunSweeper sweeps expired codes at the given interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := s.Sweep(time.Now()); dropped > 0 {
				log.Printf("INFO: swept %d expired link codes", dropped)
			}
		}
	}
}
