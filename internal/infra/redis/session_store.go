package redis

import (
	"context"
	"sync"
	"time"

	"exam-session-service/internal/app"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions own a running timer, so the live objects stay in process; Redis
// holds a liveness marker per session (exam, learner, start time) so other
// instances and operators can see which attempts are open.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	log      zerolog.Logger
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      log.With().Str("component", "session_store").Logger(),
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	// best-effort liveness marker
	ctx := context.Background()
	key := sessionKey(session.ID())
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"exam_id", session.ExamID(),
		"learner_id", session.LearnerID(),
		"started_at", session.StartedAt().UTC().Format(time.RFC3339),
	)
	if ttl := s.markerTTL(session); ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID()).Msg("mark session live")
	}
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if err := s.client.Del(context.Background(), sessionKey(sessionID)).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("clear session marker")
	}
}

// LiveCount returns the number of session markers visible in Redis across
// all instances.
func (s *SessionStore) LiveCount(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "exam:session:*", 100).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

// markerTTL keeps the marker alive for at least the exam's time limit.
func (s *SessionStore) markerTTL(session *app.Session) time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	if limit := session.TimeLimit(); limit > s.ttl {
		return limit
	}
	return s.ttl
}

func sessionKey(sessionID string) string {
	return "exam:session:" + sessionID
}
