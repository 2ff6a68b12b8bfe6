package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

// HistoryRepository журнал завершенных отправок.
type HistoryRepository interface {
	Record(ctx context.Context, event models.SubmissionFinishedEvent) error
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]models.SubmissionFinishedEvent, int, error)
	CountByState(ctx context.Context, actorID string) (map[string]int, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	Ping(ctx context.Context) error
}

type historyRepository struct {
	*PostgresRepository
}

func NewHistoryRepository(db *sql.DB, logger zerolog.Logger) HistoryRepository {
	return &historyRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *historyRepository) Record(ctx context.Context, event models.SubmissionFinishedEvent) error {
	query := `
		INSERT INTO submission_history (
			tracker_id, actor_id, submission_id, assignment_id, file_name, file_sha256, state,
			plagiarism_score, processing_error, reason, polls, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (tracker_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		event.TrackerID,
		event.ActorID,
		nullString(event.SubmissionID),
		event.AssignmentID,
		nullString(event.FileName),
		nullString(event.FileSHA256),
		event.State,
		event.PlagiarismScore,
		nullString(event.ProcessingError),
		nullString(event.Reason),
		event.Polls,
		event.StartedAt,
		event.FinishedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("failed to record submission history (%s): %w", pqErr.Code.Name(), err)
		}
		return fmt.Errorf("failed to record submission history: %w", err)
	}

	r.logger.Debug().
		Str("tracker_id", event.TrackerID).
		Str("state", event.State).
		Msg("Submission history recorded")

	return nil
}

func (r *historyRepository) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]models.SubmissionFinishedEvent, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submission_history WHERE actor_id = $1`, actorID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count submission history: %w", err)
	}

	query := `
		SELECT tracker_id, actor_id, submission_id, assignment_id, file_name, file_sha256, state,
			plagiarism_score, processing_error, reason, polls, started_at, finished_at
		FROM submission_history
		WHERE actor_id = $1
		ORDER BY finished_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, actorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query submission history: %w", err)
	}
	defer rows.Close()

	var events []models.SubmissionFinishedEvent
	for rows.Next() {
		var (
			ev                                                        models.SubmissionFinishedEvent
			submissionID, fileName, fileHash, processingError, reason sql.NullString
			score                                                     sql.NullFloat64
		)

		if err := rows.Scan(
			&ev.TrackerID,
			&ev.ActorID,
			&submissionID,
			&ev.AssignmentID,
			&fileName,
			&fileHash,
			&ev.State,
			&score,
			&processingError,
			&reason,
			&ev.Polls,
			&ev.StartedAt,
			&ev.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan submission history: %w", err)
		}

		ev.SubmissionID = submissionID.String
		ev.FileName = fileName.String
		ev.FileSHA256 = fileHash.String
		ev.ProcessingError = processingError.String
		ev.Reason = reason.String
		if score.Valid {
			v := score.Float64
			ev.PlagiarismScore = &v
		}
		ev.Timestamp = ev.FinishedAt.Unix()

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate submission history: %w", err)
	}

	return events, total, nil
}

func (r *historyRepository) CountByState(ctx context.Context, actorID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM submission_history WHERE actor_id = $1 GROUP BY state`, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to count submission history by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[state] = n
	}

	return counts, rows.Err()
}

func (r *historyRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM submission_history WHERE finished_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune submission history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
