package tracker

import (
	"encoding/json"
	"time"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

type State string

const (
	StateIdle         State = "Idle"
	StateUploading    State = "Uploading"
	StateUploadFailed State = "UploadFailed"
	StateQueued       State = "Queued"
	StatePolling      State = "Polling"
	StateCompleted    State = "Completed"
	StateFailed       State = "Failed"
	StateCancelled    State = "Cancelled"
)

func (s State) String() string {
	return string(s)
}

func (s State) IsTerminal() bool {
	switch s {
	case StateUploadFailed, StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

const (
	ReasonCancelled         = "cancelled"
	ReasonSessionExpired    = "session expired"
	ReasonPollLimit         = "status polling limit reached"
	ReasonShutdown          = "portal shutting down"
	ReasonInvalidReport     = "invalid completed report"
	defaultProcessingFailed = "processing failed"
)

// Snapshot состояние трекера на момент чтения.
type Snapshot struct {
	ID                string                  `json:"id"`
	AssignmentID      string                  `json:"assignment_id"`
	SubmissionID      string                  `json:"submission_id,omitempty"`
	FileName          string                  `json:"file_name,omitempty"`
	FileSHA256        string                  `json:"file_sha256,omitempty"`
	State             State                   `json:"state"`
	ProcessingStatus  models.ProcessingStatus `json:"processing_status,omitempty"`
	PlagiarismScore   *float64                `json:"plagiarism_score,omitempty"`
	PlagiarismDetails json.RawMessage         `json:"plagiarism_details,omitempty"`
	ProcessingError   string                  `json:"processing_error,omitempty"`
	Error             string                  `json:"error,omitempty"`
	ErrorCode         string                  `json:"error_code,omitempty"`
	Polls             int                     `json:"polls"`
	StartedAt         time.Time               `json:"started_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	FinishedAt        *time.Time              `json:"finished_at,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.PlagiarismScore != nil {
		score := *s.PlagiarismScore
		out.PlagiarismScore = &score
	}
	if s.PlagiarismDetails != nil {
		out.PlagiarismDetails = append(json.RawMessage(nil), s.PlagiarismDetails...)
	}
	if s.FinishedAt != nil {
		at := *s.FinishedAt
		out.FinishedAt = &at
	}
	return out
}

// Event переводит конечный снимок в событие для истории и очереди.
func (s Snapshot) Event(actorID string) models.SubmissionFinishedEvent {
	ev := models.SubmissionFinishedEvent{
		TrackerID:       s.ID,
		ActorID:         actorID,
		SubmissionID:    s.SubmissionID,
		AssignmentID:    s.AssignmentID,
		FileName:        s.FileName,
		FileSHA256:      s.FileSHA256,
		State:           s.State.String(),
		PlagiarismScore: s.PlagiarismScore,
		ProcessingError: s.ProcessingError,
		Reason:          s.Error,
		Polls:           s.Polls,
		StartedAt:       s.StartedAt,
		FinishedAt:      s.UpdatedAt,
	}
	if s.FinishedAt != nil {
		ev.FinishedAt = *s.FinishedAt
	}
	ev.Timestamp = ev.FinishedAt.Unix()
	return ev
}
