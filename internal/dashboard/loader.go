package dashboard

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/apiclient"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

type Guard interface {
	EnsureRole(ctx context.Context, expected models.Role) (models.Session, error)
}

type API interface {
	ProfessorAssignments(ctx context.Context) ([]models.Assignment, error)
	StudentAssignments(ctx context.Context) ([]models.Assignment, error)
	AssignmentSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error)
}

type SubmissionView struct {
	models.Submission
	Severity Level `json:"severity,omitempty"`
}

type ProfessorDashboard struct {
	User        models.User                 `json:"user"`
	Assignments []models.Assignment         `json:"assignments"`
	Submissions map[string][]SubmissionView `json:"submissions"`
	Stats       Stats                       `json:"stats"`
	// FailedAssignments задания, список отправок которых загрузить не удалось.
	FailedAssignments []string `json:"failedAssignments,omitempty"`
}

type StudentDashboard struct {
	User        models.User         `json:"user"`
	Assignments []models.Assignment `json:"assignments"`
	Courses     []string            `json:"courses"`
	Filter      Filter              `json:"filter"`
	Stats       StudentStats        `json:"stats"`
	Total       int                 `json:"total"`
}

type Loader struct {
	guard       Guard
	api         API
	concurrency int
	logger      zerolog.Logger
}

func NewLoader(guard Guard, api API, concurrency int, logger zerolog.Logger) *Loader {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Loader{
		guard:       guard,
		api:         api,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "dashboard").Logger(),
	}
}

// Professor загружает задания и отправки по каждому заданию параллельно.
// Ошибка одного списка не ломает дашборд, кроме истекшей сессии.
func (l *Loader) Professor(ctx context.Context) (*ProfessorDashboard, error) {
	sess, err := l.guard.EnsureRole(ctx, models.RoleProfessor)
	if err != nil {
		return nil, err
	}

	assignments, err := l.api.ProfessorAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}

	lists := make([][]models.Submission, len(assignments))
	failed := make([]bool, len(assignments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, a := range assignments {
		i, a := i, a
		g.Go(func() error {
			subs, err := l.api.AssignmentSubmissions(gctx, a.ID)
			if err != nil {
				if apiclient.IsSessionExpired(err) {
					return err
				}
				l.logger.Warn().
					Err(err).
					Str("assignment_id", a.ID).
					Msg("Failed to load submissions")
				failed[i] = true
				return nil
			}
			lists[i] = subs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw := make(map[string][]models.Submission, len(assignments))
	views := make(map[string][]SubmissionView, len(assignments))
	var failedIDs []string

	for i, a := range assignments {
		if failed[i] {
			failedIDs = append(failedIDs, a.ID)
		}
		raw[a.ID] = lists[i]

		views[a.ID] = newViews(lists[i])
	}

	return &ProfessorDashboard{
		User:              sess.User,
		Assignments:       assignments,
		Submissions:       views,
		Stats:             ComputeStats(assignments, raw),
		FailedAssignments: failedIDs,
	}, nil
}

func (l *Loader) Student(ctx context.Context, f Filter) (*StudentDashboard, error) {
	sess, err := l.guard.EnsureRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, err
	}

	assignments, err := l.api.StudentAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}

	return &StudentDashboard{
		User:        sess.User,
		Assignments: FilterAssignments(assignments, f),
		Courses:     Courses(assignments),
		Filter:      f,
		Stats:       ComputeStudentStats(assignments),
		Total:       len(assignments),
	}, nil
}

// Submissions отправки одного задания для преподавателя.
func (l *Loader) Submissions(ctx context.Context, assignmentID string) ([]SubmissionView, error) {
	if _, err := l.guard.EnsureRole(ctx, models.RoleProfessor); err != nil {
		return nil, err
	}

	subs, err := l.api.AssignmentSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	return newViews(subs), nil
}

// newViews размечает оценки по тому же правилу, что и ComputeStats.
func newViews(subs []models.Submission) []SubmissionView {
	out := make([]SubmissionView, 0, len(subs))
	for _, s := range subs {
		v := SubmissionView{Submission: s}
		if score, ok := s.Score(); ok {
			v.Severity = Severity(score)
		}
		out = append(out, v)
	}
	return out
}
