package memory

import (
	"context"
	"testing"
	"time"

	"exam-session-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStoreRoundTrip(t *testing.T) {
	store := NewResultStore(time.Minute)
	ctx := context.Background()

	_, err := store.GetResult(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrResultNotFound)

	result := domain.Result{SessionID: "s1", ExamID: "exam-1", Score: 1, Total: 2}
	require.NoError(t, store.SaveResult(ctx, result))

	got, err := store.GetResult(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, result, got)
}

func TestResultStoreExpires(t *testing.T) {
	store := NewResultStore(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	store.clock = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.SaveResult(ctx, domain.Result{SessionID: "s1"}))
	now = now.Add(59 * time.Second)
	_, err := store.GetResult(ctx, "s1")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.GetResult(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrResultNotFound)
}

func TestResultStoreHandsOutCopies(t *testing.T) {
	store := NewResultStore(time.Minute)
	ctx := context.Background()

	result := domain.Result{
		SessionID: "s1",
		PerQuestion: []domain.QuestionResult{{
			Question:   domain.Question{ID: "q1", Options: []domain.Option{{ID: "o1", Text: "One"}}},
			UserAnswer: "o1",
			IsCorrect:  true,
		}},
	}
	require.NoError(t, store.SaveResult(ctx, result))
	result.PerQuestion[0].UserAnswer = "o2"

	got, err := store.GetResult(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.PerQuestion[0].UserAnswer)

	got.PerQuestion[0].Question.Options[0].Text = "Two"
	again, err := store.GetResult(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "One", again.PerQuestion[0].Question.Options[0].Text)
}
