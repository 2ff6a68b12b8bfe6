package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/apiclient"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/validate"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/pkg/hash"
)

const (
	subscriberBuffer = 16
	// maxClientErrors подряд идущих 4xx на опросе статуса завершают трекер.
	maxClientErrors = 2
)

var ErrAlreadyStarted = errors.New("tracker already started")

type API interface {
	SubmitAssignment(ctx context.Context, assignmentID string, file *models.FileUpload) (*models.SubmitResponse, error)
	SubmissionStatus(ctx context.Context, submissionID string) (*models.StatusReport, error)
}

type Config struct {
	PollInterval time.Duration
	// MaxPolls 0 означает без ограничения.
	MaxPolls int
}

type Hooks struct {
	// OnFinish вызывается ровно один раз с конечным снимком.
	OnFinish func(Snapshot)
	// OnSessionExpired вызывается, когда backend ответил 401.
	OnSessionExpired func()
}

// Tracker ведет одну отправку от загрузки файла до конечного статуса.
// Опрос статуса выполняет одна горутина, запросы строго последовательны.
type Tracker struct {
	api       API
	validator *validate.Validator
	cfg       Config
	hooks     Hooks
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	snap    Snapshot
	started bool
	subs    map[int]chan Snapshot
	nextSub int

	// clientErrors трогает только горутина опроса.
	clientErrors int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func New(
	id, assignmentID string,
	api API,
	validator *validate.Validator,
	cfg Config,
	hooks Hooks,
	logger zerolog.Logger,
) *Tracker {
	now := time.Now()
	return &Tracker{
		api:       api,
		validator: validator,
		cfg:       cfg,
		hooks:     hooks,
		logger: logger.With().
			Str("tracker_id", id).
			Str("assignment_id", assignmentID).
			Logger(),
		now: time.Now,
		snap: Snapshot{
			ID:           id,
			AssignmentID: assignmentID,
			State:        StateIdle,
			StartedAt:    now,
			UpdatedAt:    now,
		},
		subs: make(map[int]chan Snapshot),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (t *Tracker) ID() string {
	return t.snap.ID
}

func (t *Tracker) AssignmentID() string {
	return t.snap.AssignmentID
}

// Start проверяет файл и запускает загрузку с опросом в отдельной горутине.
// Невалидный файл сразу переводит трекер в UploadFailed, запрос в backend не уходит.
func (t *Tracker) Start(ctx context.Context, file *models.FileUpload) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	if file != nil {
		t.snap.FileName = file.Name
	}
	t.mu.Unlock()

	if err := t.validator.PDF(file); err != nil {
		code := string(validate.CodeInvalid)
		var verr *validate.Error
		if errors.As(err, &verr) {
			code = string(verr.Code)
		}
		t.set(func(s *Snapshot) {
			s.State = StateUploadFailed
			s.Error = err.Error()
			s.ErrorCode = code
		})
		close(t.done)
		return err
	}

	digest := hash.SHA256Sum(file.Content)
	if !t.set(func(s *Snapshot) {
		s.State = StateUploading
		s.FileSHA256 = string(digest)
	}) {
		// отменен до начала загрузки
		close(t.done)
		return nil
	}

	go t.run(ctx, file)
	return nil
}

// Cancel останавливает опрос. Ответ, пришедший после отмены, отбрасывается.
func (t *Tracker) Cancel() bool {
	applied := t.set(func(s *Snapshot) {
		s.State = StateCancelled
		s.Error = ReasonCancelled
	})
	t.stopOnce.Do(func() { close(t.stop) })
	return applied
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap.clone()
}

// Done закрывается, когда горутина трекера завершилась.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Subscribe возвращает канал снимков. Первым приходит текущий снимок,
// канал закрывается после конечного состояния или вызова отписки.
func (t *Tracker) Subscribe() (<-chan Snapshot, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan Snapshot, subscriberBuffer)
	ch <- t.snap.clone()

	if t.snap.State.IsTerminal() {
		close(ch)
		return ch, func() {}
	}

	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
}

func (t *Tracker) run(ctx context.Context, file *models.FileUpload) {
	defer close(t.done)

	resp, err := t.api.SubmitAssignment(ctx, t.snap.AssignmentID, file)
	if err != nil {
		if ctx.Err() != nil {
			t.set(func(s *Snapshot) {
				s.State = StateCancelled
				s.Error = ReasonShutdown
			})
			return
		}

		expired := apiclient.IsSessionExpired(err)
		applied := t.set(func(s *Snapshot) {
			s.State = StateUploadFailed
			s.Error = errorMessage(err)
			s.ErrorCode = string(apiclient.KindOf(err))
		})
		if applied && expired && t.hooks.OnSessionExpired != nil {
			t.hooks.OnSessionExpired()
		}
		return
	}

	status := resp.ProcessingStatus
	if !status.Valid() {
		status = models.ProcessingPending
	}

	queued := t.set(func(s *Snapshot) {
		s.State = StateQueued
		s.SubmissionID = resp.ID
		s.ProcessingStatus = status
	})
	if !queued {
		return
	}

	if status == models.ProcessingFailed {
		t.set(func(s *Snapshot) {
			s.State = StateFailed
			s.ProcessingError = defaultProcessingFailed
		})
		return
	}

	// у Completed без опроса нет оценки, поэтому статус все равно запрашивается
	t.poll(ctx, resp.ID)
}

func (t *Tracker) poll(ctx context.Context, submissionID string) {
	if !t.set(func(s *Snapshot) { s.State = StatePolling }) {
		return
	}

	for n := 1; ; n++ {
		report, err := t.api.SubmissionStatus(ctx, submissionID)
		if t.applyPoll(n, report, err) {
			return
		}

		if t.cfg.MaxPolls > 0 && n >= t.cfg.MaxPolls {
			t.set(func(s *Snapshot) {
				s.State = StateFailed
				s.Error = ReasonPollLimit
			})
			return
		}

		if !t.wait(ctx) {
			return
		}
	}
}

// applyPoll применяет ответ опроса и возвращает true, если опрос закончен.
func (t *Tracker) applyPoll(n int, report *models.StatusReport, err error) bool {
	if err != nil {
		if apiclient.IsSessionExpired(err) {
			applied := t.set(func(s *Snapshot) {
				s.Polls = n
				s.State = StateCancelled
				s.Error = ReasonSessionExpired
			})
			if applied && t.hooks.OnSessionExpired != nil {
				t.hooks.OnSessionExpired()
			}
			return true
		}

		if apiclient.KindOf(err) == apiclient.KindClient {
			t.clientErrors++
			if t.clientErrors >= maxClientErrors {
				t.set(func(s *Snapshot) {
					s.Polls = n
					s.State = StateFailed
					s.Error = errorMessage(err)
					s.ErrorCode = string(apiclient.KindClient)
				})
				return true
			}
		} else {
			t.clientErrors = 0
		}

		t.logger.Warn().
			Err(err).
			Int("poll", n).
			Msg("Status poll failed, retrying next interval")
		return !t.set(func(s *Snapshot) { s.Polls = n })
	}
	t.clientErrors = 0

	if report == nil {
		report = &models.StatusReport{}
	}
	norm, err := report.Normalize()
	if err != nil {
		t.logger.Warn().
			Err(err).
			Int("poll", n).
			Msg("Malformed status report")

		// конечный статус с битым содержимым все равно конечный
		if report.ProcessingStatus.IsTerminal() {
			t.set(func(s *Snapshot) {
				s.Polls = n
				s.ProcessingStatus = report.ProcessingStatus
				s.State = StateFailed
				s.Error = ReasonInvalidReport
			})
			return true
		}
		return !t.set(func(s *Snapshot) { s.Polls = n })
	}

	finished := false
	applied := t.set(func(s *Snapshot) {
		s.Polls = n
		s.ProcessingStatus = norm.ProcessingStatus
		switch norm.ProcessingStatus {
		case models.ProcessingCompleted:
			s.State = StateCompleted
			s.PlagiarismScore = norm.PlagiarismScore
			s.PlagiarismDetails = norm.PlagiarismDetails
			finished = true
		case models.ProcessingFailed:
			s.State = StateFailed
			s.ProcessingError = norm.ProcessingError
			finished = true
		}
	})

	return !applied || finished
}

func (t *Tracker) wait(ctx context.Context) bool {
	timer := time.NewTimer(t.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-t.stop:
		return false
	case <-ctx.Done():
		t.set(func(s *Snapshot) {
			s.State = StateCancelled
			s.Error = ReasonShutdown
		})
		return false
	case <-timer.C:
		return true
	}
}

// set единственная точка изменения снимка. Завершенный трекер не меняется,
// поэтому устаревшие ответы после отмены просто отбрасываются.
func (t *Tracker) set(mutate func(*Snapshot)) bool {
	t.mu.Lock()
	if t.snap.State.IsTerminal() {
		t.mu.Unlock()
		return false
	}

	prev := t.snap.State
	mutate(&t.snap)
	t.snap.UpdatedAt = t.now()

	terminal := t.snap.State.IsTerminal()
	if terminal {
		at := t.snap.UpdatedAt
		t.snap.FinishedAt = &at
	}

	snap := t.snap.clone()
	t.broadcast(snap, terminal)
	t.mu.Unlock()

	if prev != snap.State {
		t.logger.Debug().
			Str("from", prev.String()).
			Str("to", snap.State.String()).
			Msg("Tracker state changed")
	}

	if terminal {
		t.logFinished(snap)
		if t.hooks.OnFinish != nil {
			t.hooks.OnFinish(snap)
		}
	}

	return true
}

func (t *Tracker) broadcast(snap Snapshot, terminal bool) {
	for id, ch := range t.subs {
		select {
		case ch <- snap:
		default:
			// медленный подписчик получает последние снимки
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}

		if terminal {
			close(ch)
			delete(t.subs, id)
		}
	}
}

func (t *Tracker) logFinished(snap Snapshot) {
	event := t.logger.Info()
	if snap.State == StateUploadFailed || snap.State == StateFailed {
		event = t.logger.Warn()
	}

	event = event.
		Str("state", snap.State.String()).
		Str("submission_id", snap.SubmissionID).
		Int("polls", snap.Polls)
	if snap.PlagiarismScore != nil {
		event = event.Float64("plagiarism_score", *snap.PlagiarismScore)
	}
	if snap.Error != "" {
		event = event.Str("reason", snap.Error)
	}
	event.Msg("Submission tracking finished")
}

func errorMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
