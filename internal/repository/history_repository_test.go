package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

// Тесты работают с настоящим Postgres и пропускаются без PLAGEXIT_TEST_DATABASE_DSN.
// Схема должна быть применена заранее: go run . migrate -direction up.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("PLAGEXIT_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("PLAGEXIT_TEST_DATABASE_DSN is not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))

	return db
}

func TestHistoryRepository_RecordAndList(t *testing.T) {
	db := openTestDB(t)
	repo := NewHistoryRepository(db, zerolog.Nop())
	ctx := context.Background()

	actorID := uuid.NewString()
	started := time.Now().UTC().Truncate(time.Millisecond)
	score := 72.5

	completed := models.SubmissionFinishedEvent{
		TrackerID:       uuid.NewString(),
		ActorID:         actorID,
		SubmissionID:    "sub-1",
		AssignmentID:    "a1",
		FileName:        "answer.pdf",
		FileSHA256:      "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		State:           "Completed",
		PlagiarismScore: &score,
		Polls:           3,
		StartedAt:       started,
		FinishedAt:      started.Add(6 * time.Second),
	}
	cancelled := models.SubmissionFinishedEvent{
		TrackerID:    uuid.NewString(),
		ActorID:      actorID,
		AssignmentID: "a2",
		State:        "Cancelled",
		Reason:       "cancelled",
		StartedAt:    started,
		FinishedAt:   started.Add(10 * time.Second),
	}

	require.NoError(t, repo.Record(ctx, completed))
	require.NoError(t, repo.Record(ctx, cancelled))
	// повторная запись того же трекера игнорируется
	require.NoError(t, repo.Record(ctx, completed))

	events, total, err := repo.ListByActor(ctx, actorID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, events, 2)

	assert.Equal(t, cancelled.TrackerID, events[0].TrackerID)
	assert.Nil(t, events[0].PlagiarismScore)
	assert.Equal(t, "cancelled", events[0].Reason)

	assert.Equal(t, completed.TrackerID, events[1].TrackerID)
	require.NotNil(t, events[1].PlagiarismScore)
	assert.Equal(t, 72.5, *events[1].PlagiarismScore)
	assert.Equal(t, "sub-1", events[1].SubmissionID)
	assert.Equal(t, completed.FileSHA256, events[1].FileSHA256)

	counts, err := repo.CountByState(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Completed": 1, "Cancelled": 1}, counts)

	require.NoError(t, repo.Ping(ctx))
}
