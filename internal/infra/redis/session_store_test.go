package redis

import (
	"context"
	"testing"
	"time"

	"exam-session-service/internal/app"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewSessionStore(newClient(mr), time.Minute, zerolog.Nop())

	session := app.NewSession(app.SessionConfig{
		ID:           "s1",
		LearnerID:    "learner-1",
		Exam:         sampleExam(),
		TickInterval: time.Hour,
	})
	t.Cleanup(func() { _ = session.Close() })

	store.Put(session)
	require.True(t, mr.Exists("exam:session:s1"), "expected redis key to be set")
	assert.Equal(t, "exam-1", mr.HGet("exam:session:s1", "exam_id"))
	assert.Equal(t, "learner-1", mr.HGet("exam:session:s1", "learner_id"))
	// marker outlives the 5 minute exam even though the store ttl is shorter
	assert.Equal(t, 5*time.Minute, mr.TTL("exam:session:s1"))

	got, ok := store.Get("s1")
	require.True(t, ok)
	assert.Same(t, session, got)

	count, err := store.LiveCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	store.Delete("s1")
	assert.False(t, mr.Exists("exam:session:s1"), "expected redis key to be removed")
	_, ok = store.Get("s1")
	assert.False(t, ok)
}

func TestSessionStoreMarkerKeepsLongerStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewSessionStore(newClient(mr), 3*time.Hour, zerolog.Nop())

	session := app.NewSession(app.SessionConfig{ID: "s2", Exam: sampleExam(), TickInterval: time.Hour})
	t.Cleanup(func() { _ = session.Close() })

	store.Put(session)
	assert.Equal(t, 3*time.Hour, mr.TTL("exam:session:s2"))
}
