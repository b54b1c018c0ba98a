package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"exam-session-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ExamLoader fetches exam content from a backing store (e.g., Postgres).
type ExamLoader interface {
	LoadExam(ctx context.Context, examID string) (domain.Exam, error)
}

// ExamRepository caches exams with TTL to avoid repeated DB hits.
type ExamRepository struct {
	loader ExamLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedExam
}

type cachedExam struct {
	exam      domain.Exam
	expiresAt time.Time
}

func NewExamRepository(loader ExamLoader, ttl time.Duration) *ExamRepository {
	return &ExamRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedExam),
	}
}

func (r *ExamRepository) GetExam(ctx context.Context, examID string) (domain.Exam, error) {
	if exam, ok := r.cached(examID); ok {
		return exam, nil
	}

	result, err, _ := r.sf.Do(examID, func() (interface{}, error) {
		if exam, ok := r.cached(examID); ok {
			return exam, nil
		}

		exam, err := r.loader.LoadExam(ctx, examID)
		if err != nil {
			return domain.Exam{}, err
		}

		r.mu.Lock()
		r.cache[examID] = cachedExam{
			exam:      exam,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return exam, nil
	})
	if err != nil {
		return domain.Exam{}, err
	}
	return result.(domain.Exam), nil
}

// Invalidate drops a cached exam so the next read goes to the loader.
func (r *ExamRepository) Invalidate(examID string) {
	r.mu.Lock()
	delete(r.cache, examID)
	r.mu.Unlock()
}

func (r *ExamRepository) cached(examID string) (domain.Exam, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[examID]; ok && entry.expiresAt.After(now) {
		return entry.exam, true
	}
	return domain.Exam{}, false
}

func (r *ExamRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticExamLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticExamLoader struct {
	mu    sync.RWMutex
	exams map[string]domain.Exam
}

func NewStaticExamLoader(exams map[string]domain.Exam) *StaticExamLoader {
	copied := make(map[string]domain.Exam, len(exams))
	for id, exam := range exams {
		copied[id] = exam
	}
	return &StaticExamLoader{exams: copied}
}

func (l *StaticExamLoader) LoadExam(_ context.Context, examID string) (domain.Exam, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if exam, ok := l.exams[examID]; ok {
		return exam, nil
	}
	return domain.Exam{}, domain.ErrExamNotFound
}

// UpsertExam stores or replaces an exam.
func (l *StaticExamLoader) UpsertExam(_ context.Context, exam domain.Exam) error {
	l.mu.Lock()
	l.exams[exam.ID] = exam
	l.mu.Unlock()
	return nil
}
