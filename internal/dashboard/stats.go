package dashboard

import (
	"math"
	"sort"
	"strings"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

const (
	highThreshold   = 70.0
	mediumThreshold = 40.0
)

type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Severity уровень похожести для отображения оценки.
func Severity(score float64) Level {
	switch {
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

type Stats struct {
	TotalAssignments    int `json:"totalAssignments"`
	ActiveAssignments   int `json:"activeAssignments"`
	TotalSubmissions    int `json:"totalSubmissions"`
	HighPlagiarismCount int `json:"highPlagiarismCount"`
}

// ComputeStats считает статистику заново из входных данных при каждом вызове.
func ComputeStats(assignments []models.Assignment, submissions map[string][]models.Submission) Stats {
	stats := Stats{TotalAssignments: len(assignments)}

	for _, a := range assignments {
		if a.Status == models.AssignmentStatusActive {
			stats.ActiveAssignments++
		}
	}

	for _, list := range submissions {
		stats.TotalSubmissions += len(list)
		for _, s := range list {
			if score, ok := s.Score(); ok && score >= mediumThreshold {
				stats.HighPlagiarismCount++
			}
		}
	}

	return stats
}

type StudentStats struct {
	PendingAssignments   int `json:"pendingAssignments"`
	CompletedAssignments int `json:"completedAssignments"`
	AverageScore         int `json:"averageScore"`
}

func ComputeStudentStats(assignments []models.Assignment) StudentStats {
	var stats StudentStats
	if len(assignments) == 0 {
		return stats
	}

	var total float64
	for _, a := range assignments {
		switch a.Status {
		case "", models.AssignmentStatusActive:
			stats.PendingAssignments++
		case models.AssignmentStatusSubmitted, models.AssignmentStatusGraded:
			stats.CompletedAssignments++
		}
		if a.Score != nil {
			total += *a.Score
		}
	}

	stats.AverageScore = int(math.Floor(total/float64(len(assignments)) + 0.5))
	return stats
}

type Filter struct {
	Status string `json:"status,omitempty"`
	Course string `json:"course,omitempty"`
}

// isAll пустое значение и варианты "All ..." означают отсутствие фильтра.
func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "all") || strings.HasPrefix(strings.ToLower(v), "all ")
}

func FilterAssignments(assignments []models.Assignment, f Filter) []models.Assignment {
	out := make([]models.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if !isAll(f.Status) && string(a.Status) != f.Status {
			continue
		}
		if !isAll(f.Course) && a.Course != f.Course {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Courses отсортированный список курсов для фильтра.
func Courses(assignments []models.Assignment) []string {
	seen := make(map[string]struct{}, len(assignments))
	out := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if a.Course == "" {
			continue
		}
		if _, ok := seen[a.Course]; ok {
			continue
		}
		seen[a.Course] = struct{}{}
		out = append(out, a.Course)
	}
	sort.Strings(out)
	return out
}
