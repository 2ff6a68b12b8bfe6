package models

import (
	"encoding/json"
	"fmt"
)

type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "Pending"
	ProcessingProcessing ProcessingStatus = "Processing"
	ProcessingCompleted  ProcessingStatus = "Completed"
	ProcessingFailed     ProcessingStatus = "Failed"
)

func (s ProcessingStatus) String() string {
	return string(s)
}

func (s ProcessingStatus) Valid() bool {
	switch s {
	case ProcessingPending, ProcessingProcessing, ProcessingCompleted, ProcessingFailed:
		return true
	default:
		return false
	}
}

func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingCompleted || s == ProcessingFailed
}

type Submission struct {
	ID                string           `json:"id"`
	AssignmentID      string           `json:"assignment_id"`
	AssignmentName    string           `json:"assignment_name,omitempty"`
	StudentID         string           `json:"student_id"`
	StudentName       string           `json:"student_name,omitempty"`
	SubmittedAt       string           `json:"submitted_at,omitempty"`
	ProcessingStatus  ProcessingStatus `json:"processing_status"`
	PlagiarismScore   *float64         `json:"plagiarism_score,omitempty"`
	// PlagiarismDetails backend заполняет только у Completed.
	PlagiarismDetails json.RawMessage  `json:"plagiarism_details,omitempty"`
	ProcessingError   string           `json:"processing_error,omitempty"`
	Status            string           `json:"status,omitempty"`
	Grade             *float64         `json:"grade,omitempty"`
	Feedback          string           `json:"feedback,omitempty"`
	GradedAt          string           `json:"graded_at,omitempty"`
}

// Score оценка завершенной проверки. Строка без статуса, но с оценкой,
// считается завершенной: backend не всегда присылает статус в списках.
func (s Submission) Score() (float64, bool) {
	if s.PlagiarismScore == nil {
		return 0, false
	}
	switch s.ProcessingStatus {
	case ProcessingCompleted, "":
		return *s.PlagiarismScore, true
	default:
		return 0, false
	}
}

// StatusReport ответ GET /submissions/{id}/status.
type StatusReport struct {
	ProcessingStatus  ProcessingStatus `json:"processing_status"`
	PlagiarismScore   *float64         `json:"plagiarism_score,omitempty"`
	PlagiarismDetails json.RawMessage  `json:"plagiarism_details,omitempty"`
	ProcessingError   string           `json:"processing_error,omitempty"`
}

// Normalize проверяет статус и оставляет только поля, допустимые для него:
// score и details только у Completed, error только у Failed.
func (r StatusReport) Normalize() (StatusReport, error) {
	if !r.ProcessingStatus.Valid() {
		return StatusReport{}, fmt.Errorf("unknown processing status %q", r.ProcessingStatus)
	}

	out := StatusReport{ProcessingStatus: r.ProcessingStatus}
	switch r.ProcessingStatus {
	case ProcessingCompleted:
		if r.PlagiarismScore == nil {
			return StatusReport{}, fmt.Errorf("completed status without plagiarism score")
		}
		score := *r.PlagiarismScore
		if score < 0 || score > 100 {
			return StatusReport{}, fmt.Errorf("plagiarism score %.2f out of range", score)
		}
		out.PlagiarismScore = &score
		out.PlagiarismDetails = r.PlagiarismDetails
	case ProcessingFailed:
		out.ProcessingError = r.ProcessingError
		if out.ProcessingError == "" {
			out.ProcessingError = "processing failed"
		}
	}
	return out, nil
}

// FileUpload файл, выбранный пользователем. Size заявленный размер.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Content     []byte
}
