package memory

import (
	"context"
	"sync"
	"time"

	"exam-session-service/internal/domain"
)

// ResultStore keeps submitted results for a limited time so the results view
// can fetch them after the session is gone.
type ResultStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	results map[string]storedResult
}

type storedResult struct {
	result    domain.Result
	expiresAt time.Time
}

// NewResultStore creates a store. A non-positive ttl keeps results forever.
func NewResultStore(ttl time.Duration) *ResultStore {
	return &ResultStore{
		ttl:     ttl,
		clock:   time.Now,
		results: make(map[string]storedResult),
	}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := storedResult{result: result.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.clock().Add(s.ttl)
	}
	s.results[result.SessionID] = entry
	s.sweepLocked()
	return nil
}

func (s *ResultStore) GetResult(_ context.Context, sessionID string) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.results[sessionID]
	if !ok || s.expiredLocked(entry) {
		delete(s.results, sessionID)
		return domain.Result{}, domain.ErrResultNotFound
	}
	return entry.result.Clone(), nil
}

func (s *ResultStore) expiredLocked(entry storedResult) bool {
	return !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.clock())
}

func (s *ResultStore) sweepLocked() {
	for id, entry := range s.results {
		if s.expiredLocked(entry) {
			delete(s.results, id)
		}
	}
}
