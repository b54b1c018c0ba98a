package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"exam-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ExamLoader fetches exam content from a backing store (e.g., Postgres).
type ExamLoader interface {
	LoadExam(ctx context.Context, examID string) (domain.Exam, error)
}

// ExamRepository caches whole exams in Redis and falls back to a loader on
// cache miss. Exams are stored as JSON under exam:{examID}:payload.
type ExamRepository struct {
	client *redis.Client
	loader ExamLoader
	ttl    time.Duration
	log    zerolog.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewExamRepository(client *redis.Client, loader ExamLoader, ttl time.Duration, log zerolog.Logger) *ExamRepository {
	return &ExamRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log.With().Str("component", "exam_cache").Logger(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ExamRepository) GetExam(ctx context.Context, examID string) (domain.Exam, error) {
	if exam, ok := r.cached(ctx, examID); ok {
		return exam, nil
	}

	result, err, _ := r.sf.Do(examID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if exam, ok := r.cached(ctx, examID); ok {
			return exam, nil
		}

		exam, err := r.loader.LoadExam(ctx, examID)
		if err != nil {
			return domain.Exam{}, err
		}

		payload, err := json.Marshal(exam)
		if err != nil {
			return domain.Exam{}, err
		}
		if err := r.client.Set(ctx, payloadKey(examID), payload, r.ttlWithJitter()).Err(); err != nil {
			r.log.Warn().Err(err).Str("exam_id", examID).Msg("cache exam")
		}
		return exam, nil
	})
	if err != nil {
		return domain.Exam{}, err
	}
	return result.(domain.Exam), nil
}

// Invalidate drops a cached exam so the next read goes to the loader.
func (r *ExamRepository) Invalidate(ctx context.Context, examID string) error {
	return r.client.Del(ctx, payloadKey(examID)).Err()
}

func (r *ExamRepository) cached(ctx context.Context, examID string) (domain.Exam, bool) {
	raw, err := r.client.Get(ctx, payloadKey(examID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("exam_id", examID).Msg("read cached exam")
		}
		return domain.Exam{}, false
	}
	var exam domain.Exam
	if err := json.Unmarshal(raw, &exam); err != nil {
		r.log.Warn().Err(err).Str("exam_id", examID).Msg("decode cached exam")
		return domain.Exam{}, false
	}
	return exam, true
}

func payloadKey(examID string) string {
	return "exam:" + examID + ":payload"
}

func (r *ExamRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
