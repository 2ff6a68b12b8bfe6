package models

type AssignmentStatus string

const (
	AssignmentStatusActive    AssignmentStatus = "Active"
	AssignmentStatusClosed    AssignmentStatus = "Closed"
	AssignmentStatusSubmitted AssignmentStatus = "Submitted"
	AssignmentStatusGraded    AssignmentStatus = "Graded"
)

type Assignment struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Course      string           `json:"course"`
	Description string           `json:"description"`
	DueDate     string           `json:"due_date"`
	Status      AssignmentStatus `json:"status"`
	ProfessorID string           `json:"professor_id,omitempty"`
	Sections    []string         `json:"sections,omitempty"`
	// Score заполняется backend только в списке студента.
	Score *float64 `json:"score,omitempty"`
}
