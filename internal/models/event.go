package models

import "time"

// SubmissionFinishedEvent публикуется и сохраняется, когда трекер доходит до конечного состояния.
type SubmissionFinishedEvent struct {
	TrackerID       string    `json:"tracker_id"`
	ActorID         string    `json:"actor_id"`
	SubmissionID    string    `json:"submission_id,omitempty"`
	AssignmentID    string    `json:"assignment_id"`
	FileName        string    `json:"file_name,omitempty"`
	FileSHA256      string    `json:"file_sha256,omitempty"`
	State           string    `json:"state"`
	PlagiarismScore *float64  `json:"plagiarism_score,omitempty"`
	ProcessingError string    `json:"processing_error,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Polls           int       `json:"polls"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Timestamp       int64     `json:"timestamp"`
}
