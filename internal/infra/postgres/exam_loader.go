package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"exam-session-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ExamStore loads and saves exam JSONB in Postgres.
type ExamStore struct {
	pool *pgxpool.Pool
}

func NewExamStore(pool *pgxpool.Pool) *ExamStore {
	return &ExamStore{pool: pool}
}

func (s *ExamStore) LoadExam(ctx context.Context, examID string) (domain.Exam, error) {
	var (
		title string
		raw   []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT title, data FROM exams WHERE id=$1`, examID).Scan(&title, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Exam{}, fmt.Errorf("%w: %s", domain.ErrExamNotFound, examID)
	}
	if err != nil {
		return domain.Exam{}, fmt.Errorf("load exam: %w", err)
	}
	var exam domain.Exam
	if err := json.Unmarshal(raw, &exam); err != nil {
		return domain.Exam{}, fmt.Errorf("unmarshal exam: %w", err)
	}
	exam.ID = examID
	if exam.Title == "" {
		exam.Title = title
	}
	return exam, nil
}

// UpsertExam inserts an exam or replaces the stored copy.
func (s *ExamStore) UpsertExam(ctx context.Context, exam domain.Exam) error {
	data, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO exams (id, title, time_limit_minutes, data)
VALUES ($1, $2, $3, $4::jsonb)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title,
    time_limit_minutes = EXCLUDED.time_limit_minutes,
    data = EXCLUDED.data,
    updated_at = now()`,
		exam.ID, exam.Title, exam.TimeLimitMinutes, string(data))
	if err != nil {
		return fmt.Errorf("upsert exam: %w", err)
	}
	return nil
}
