package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/apiclient"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

func score(v float64) *float64 {
	return &v
}

func TestComputeStats_Example(t *testing.T) {
	assignments := []models.Assignment{
		{ID: "a1", Status: models.AssignmentStatusActive},
		{ID: "a2", Status: models.AssignmentStatusClosed},
	}
	submissions := map[string][]models.Submission{
		"a1": {{PlagiarismScore: score(50)}, {PlagiarismScore: score(10)}},
		"a2": {},
	}

	stats := ComputeStats(assignments, submissions)

	assert.Equal(t, Stats{
		TotalAssignments:    2,
		ActiveAssignments:   1,
		TotalSubmissions:    2,
		HighPlagiarismCount: 1,
	}, stats)
}

func TestComputeStats_OnlyFinishedScoresCount(t *testing.T) {
	submissions := map[string][]models.Submission{
		"a1": {
			{ProcessingStatus: models.ProcessingCompleted, PlagiarismScore: score(40)},
			{ProcessingStatus: models.ProcessingProcessing, PlagiarismScore: score(95)},
			{ProcessingStatus: models.ProcessingFailed, ProcessingError: "boom"},
			{ProcessingStatus: models.ProcessingPending},
			{ProcessingStatus: models.ProcessingCompleted, PlagiarismScore: score(39.9)},
		},
	}

	stats := ComputeStats(nil, submissions)

	assert.Equal(t, 5, stats.TotalSubmissions)
	assert.Equal(t, 1, stats.HighPlagiarismCount)
	assert.Equal(t, 0, stats.TotalAssignments)
}

func TestComputeStats_Deterministic(t *testing.T) {
	assignments := []models.Assignment{{ID: "a1", Status: models.AssignmentStatusActive}}
	submissions := map[string][]models.Submission{"a1": {{PlagiarismScore: score(80)}}}

	first := ComputeStats(assignments, submissions)
	second := ComputeStats(assignments, submissions)
	assert.Equal(t, first, second)
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{100, LevelHigh},
		{70, LevelHigh},
		{69.9, LevelMedium},
		{40, LevelMedium},
		{39.99, LevelLow},
		{0, LevelLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Severity(tt.score), "score %v", tt.score)
	}
}

func TestComputeStudentStats(t *testing.T) {
	assignments := []models.Assignment{
		{Status: models.AssignmentStatusActive},
		{Status: ""},
		{Status: models.AssignmentStatusSubmitted, Score: score(80)},
		{Status: models.AssignmentStatusGraded, Score: score(91)},
		{Status: models.AssignmentStatusClosed},
	}

	stats := ComputeStudentStats(assignments)

	assert.Equal(t, 2, stats.PendingAssignments)
	assert.Equal(t, 2, stats.CompletedAssignments)
	// (80 + 91) / 5 = 34.2
	assert.Equal(t, 34, stats.AverageScore)

	assert.Equal(t, StudentStats{}, ComputeStudentStats(nil))
}

func TestComputeStudentStats_RoundsHalfUp(t *testing.T) {
	stats := ComputeStudentStats([]models.Assignment{{Score: score(50)}, {Score: score(51)}})
	assert.Equal(t, 51, stats.AverageScore)
}

func TestFilterAssignments(t *testing.T) {
	assignments := []models.Assignment{
		{ID: "1", Course: "CS101", Status: models.AssignmentStatusActive},
		{ID: "2", Course: "CS102", Status: models.AssignmentStatusActive},
		{ID: "3", Course: "CS101", Status: models.AssignmentStatusGraded},
	}

	ids := func(list []models.Assignment) []string {
		out := []string{}
		for _, a := range list {
			out = append(out, a.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids(FilterAssignments(assignments, Filter{Status: "All Statuses", Course: "All Courses"})))
	assert.Equal(t, []string{"1", "2", "3"}, ids(FilterAssignments(assignments, Filter{})))
	assert.Equal(t, []string{"1", "3"}, ids(FilterAssignments(assignments, Filter{Course: "CS101"})))
	assert.Equal(t, []string{"1"}, ids(FilterAssignments(assignments, Filter{Status: "Active", Course: "CS101"})))
	assert.Empty(t, FilterAssignments(assignments, Filter{Status: "Closed"}))

	assert.Equal(t, []string{"CS101", "CS102"}, Courses(assignments))
}

type fakeGuard struct {
	role  models.Role
	err   error
	calls int32
}

func (g *fakeGuard) EnsureRole(ctx context.Context, expected models.Role) (models.Session, error) {
	atomic.AddInt32(&g.calls, 1)
	if g.err != nil {
		return models.Session{}, g.err
	}
	user := models.User{UserID: "u1", UserType: g.role}
	return models.NewSession(user, g.role, time.Now()), nil
}

type fakeAPI struct {
	mu          sync.Mutex
	assignments []models.Assignment
	submissions map[string][]models.Submission
	failFor     map[string]error
	requests    int32
	inflight    int32
	maxInflight int32
}

func (f *fakeAPI) ProfessorAssignments(ctx context.Context) ([]models.Assignment, error) {
	atomic.AddInt32(&f.requests, 1)
	return f.assignments, nil
}

func (f *fakeAPI) StudentAssignments(ctx context.Context) ([]models.Assignment, error) {
	atomic.AddInt32(&f.requests, 1)
	return f.assignments, nil
}

func (f *fakeAPI) AssignmentSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	atomic.AddInt32(&f.requests, 1)
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)

	f.mu.Lock()
	if n > f.maxInflight {
		f.maxInflight = n
	}
	f.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	if err, ok := f.failFor[assignmentID]; ok {
		return nil, err
	}
	return f.submissions[assignmentID], nil
}

func TestLoader_ProfessorAggregates(t *testing.T) {
	api := &fakeAPI{
		assignments: []models.Assignment{
			{ID: "a1", Status: models.AssignmentStatusActive},
			{ID: "a2", Status: models.AssignmentStatusClosed},
			{ID: "a3", Status: models.AssignmentStatusActive},
		},
		submissions: map[string][]models.Submission{
			"a1": {
				{ID: "s1", ProcessingStatus: models.ProcessingCompleted, PlagiarismScore: score(72)},
				{ID: "s2", ProcessingStatus: models.ProcessingCompleted, PlagiarismScore: score(12)},
			},
			"a2": {{ID: "s3", ProcessingStatus: models.ProcessingPending}},
		},
		failFor: map[string]error{"a3": &apiclient.APIError{Kind: apiclient.KindServer, Status: 500}},
	}
	loader := NewLoader(&fakeGuard{role: models.RoleProfessor}, api, 2, zerolog.Nop())

	dash, err := loader.Professor(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{TotalAssignments: 3, ActiveAssignments: 2, TotalSubmissions: 3, HighPlagiarismCount: 1}, dash.Stats)
	assert.Equal(t, []string{"a3"}, dash.FailedAssignments)
	require.Len(t, dash.Submissions["a1"], 2)
	assert.Equal(t, LevelHigh, dash.Submissions["a1"][0].Severity)
	assert.Equal(t, LevelLow, dash.Submissions["a1"][1].Severity)
	assert.Equal(t, Level(""), dash.Submissions["a2"][0].Severity)
	assert.LessOrEqual(t, api.maxInflight, int32(2))
}

func TestLoader_SessionExpiredAbortsProfessorLoad(t *testing.T) {
	api := &fakeAPI{
		assignments: []models.Assignment{{ID: "a1"}, {ID: "a2"}},
		failFor:     map[string]error{"a2": &apiclient.APIError{Kind: apiclient.KindSessionExpired, Status: 401}},
	}
	loader := NewLoader(&fakeGuard{role: models.RoleProfessor}, api, 4, zerolog.Nop())

	_, err := loader.Professor(context.Background())
	assert.True(t, apiclient.IsSessionExpired(err))
}

func TestLoader_GuardRunsFirst(t *testing.T) {
	api := &fakeAPI{}
	guard := &fakeGuard{err: errors.New("not authenticated")}
	loader := NewLoader(guard, api, 4, zerolog.Nop())

	_, err := loader.Professor(context.Background())
	assert.Error(t, err)
	_, err = loader.Student(context.Background(), Filter{})
	assert.Error(t, err)
	_, err = loader.Submissions(context.Background(), "a1")
	assert.Error(t, err)

	assert.Equal(t, int32(0), atomic.LoadInt32(&api.requests))
	assert.Equal(t, int32(3), atomic.LoadInt32(&guard.calls))
}

func TestLoader_StudentFilters(t *testing.T) {
	api := &fakeAPI{
		assignments: []models.Assignment{
			{ID: "1", Course: "CS101", Status: models.AssignmentStatusActive},
			{ID: "2", Course: "MA201", Status: models.AssignmentStatusGraded, Score: score(88)},
		},
	}
	loader := NewLoader(&fakeGuard{role: models.RoleStudent}, api, 4, zerolog.Nop())

	dash, err := loader.Student(context.Background(), Filter{Course: "MA201"})
	require.NoError(t, err)

	require.Len(t, dash.Assignments, 1)
	assert.Equal(t, "2", dash.Assignments[0].ID)
	assert.Equal(t, 2, dash.Total)
	assert.Equal(t, []string{"CS101", "MA201"}, dash.Courses)
	assert.Equal(t, StudentStats{PendingAssignments: 1, CompletedAssignments: 1, AverageScore: 44}, dash.Stats)
}

func TestLoader_SeverityMatchesHighPlagiarismCount(t *testing.T) {
	api := &fakeAPI{
		assignments: []models.Assignment{{ID: "a1", Status: models.AssignmentStatusActive}},
		submissions: map[string][]models.Submission{
			"a1": {
				{ID: "s1", PlagiarismScore: score(55)},
				{ID: "s2", ProcessingStatus: models.ProcessingProcessing, PlagiarismScore: score(90)},
			},
		},
	}
	loader := NewLoader(&fakeGuard{role: models.RoleProfessor}, api, 2, zerolog.Nop())

	dash, err := loader.Professor(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, dash.Stats.HighPlagiarismCount)
	require.Len(t, dash.Submissions["a1"], 2)
	assert.Equal(t, LevelMedium, dash.Submissions["a1"][0].Severity)
	assert.Equal(t, Level(""), dash.Submissions["a1"][1].Severity)

	views, err := loader.Submissions(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, LevelMedium, views[0].Severity)
}
