package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exam-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ResultStore hands graded results to the results view through Redis.
// Results live under exam:result:{sessionID} for ttl.
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl}
}

func (s *ResultStore) SaveResult(ctx context.Context, result domain.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := s.client.Set(ctx, resultKey(result.SessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *ResultStore) GetResult(ctx context.Context, sessionID string) (domain.Result, error) {
	raw, err := s.client.Get(ctx, resultKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("load result: %w", err)
	}
	var result domain.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}

func resultKey(sessionID string) string {
	return "exam:result:" + sessionID
}
