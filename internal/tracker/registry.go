package tracker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/validate"
)

const sinkTimeout = 10 * time.Second

var (
	ErrNotFound       = errors.New("tracker not found")
	ErrAlreadyRunning = errors.New("submission already in progress for this assignment")
)

// HistoryRecorder сохраняет конечные снимки трекеров.
type HistoryRecorder interface {
	Record(ctx context.Context, event models.SubmissionFinishedEvent) error
}

// EventPublisher публикует событие submission.finished.
type EventPublisher interface {
	PublishSubmissionFinished(ctx context.Context, event models.SubmissionFinishedEvent) error
}

type RegistryConfig struct {
	Tracker      Config
	RetentionTTL time.Duration
}

// Registry трекеры одного актора.
type Registry struct {
	actorID   string
	api       API
	validator *validate.Validator
	cfg       RegistryConfig
	history   HistoryRecorder
	events    EventPublisher
	logger    zerolog.Logger

	// baseCtx живет дольше HTTP запроса, который запустил трекер.
	baseCtx          context.Context
	onSessionExpired func()

	mu       sync.Mutex
	trackers map[string]*Tracker
	sinks    sync.WaitGroup
}

type RegistryOption func(*Registry)

func WithHistory(h HistoryRecorder) RegistryOption {
	return func(r *Registry) {
		r.history = h
	}
}

func WithEvents(p EventPublisher) RegistryOption {
	return func(r *Registry) {
		r.events = p
	}
}

func WithSessionExpiredHook(fn func()) RegistryOption {
	return func(r *Registry) {
		r.onSessionExpired = fn
	}
}

func NewRegistry(
	baseCtx context.Context,
	actorID string,
	api API,
	validator *validate.Validator,
	cfg RegistryConfig,
	logger zerolog.Logger,
	opts ...RegistryOption,
) *Registry {
	r := &Registry{
		actorID:   actorID,
		api:       api,
		validator: validator,
		cfg:       cfg,
		logger:    logger.With().Str("actor_id", actorID).Logger(),
		baseCtx:   baseCtx,
		trackers:  make(map[string]*Tracker),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start создает трекер и запускает загрузку. Второй трекер для задания,
// по которому еще идет отправка, не создается.
func (r *Registry) Start(assignmentID string, file *models.FileUpload) (*Tracker, error) {
	r.mu.Lock()
	r.evictLocked(time.Now())
	for _, t := range r.trackers {
		if t.AssignmentID() == assignmentID && !t.Snapshot().State.IsTerminal() {
			r.mu.Unlock()
			return t, ErrAlreadyRunning
		}
	}

	t := New(uuid.New().String(), assignmentID, r.api, r.validator, r.cfg.Tracker, Hooks{
		OnFinish:         r.finished,
		OnSessionExpired: r.onSessionExpired,
	}, r.logger)
	r.trackers[t.ID()] = t
	r.mu.Unlock()

	if err := t.Start(r.baseCtx, file); err != nil {
		if errors.Is(err, validate.ErrValidation) {
			// невалидный файл не занимает место в реестре
			r.mu.Lock()
			delete(r.trackers, t.ID())
			r.mu.Unlock()
		}
		return t, err
	}

	r.logger.Info().
		Str("tracker_id", t.ID()).
		Str("assignment_id", assignmentID).
		Msg("Submission tracker started")

	return t, nil
}

func (r *Registry) Get(id string) (*Tracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trackers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// List снимки всех трекеров, новые первыми.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	r.evictLocked(time.Now())
	out := make([]Snapshot, 0, len(r.trackers))
	for _, t := range r.trackers {
		out = append(out, t.Snapshot())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func (r *Registry) Cancel(id string) (Snapshot, error) {
	t, err := r.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	t.Cancel()
	return t.Snapshot(), nil
}

// CancelAll останавливает все активные трекеры, например при выходе пользователя.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	r.mu.Unlock()

	cancelled := 0
	for _, t := range trackers {
		if t.Cancel() {
			cancelled++
		}
	}
	return cancelled
}

// Active количество незавершенных трекеров.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.trackers {
		if !t.Snapshot().State.IsTerminal() {
			n++
		}
	}
	return n
}

// Wait ждет остановки всех трекеров и завершения записи в историю и очередь.
func (r *Registry) Wait() {
	r.mu.Lock()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	r.mu.Unlock()

	for _, t := range trackers {
		<-t.Done()
	}
	r.sinks.Wait()
}

func (r *Registry) evictLocked(now time.Time) {
	if r.cfg.RetentionTTL <= 0 {
		return
	}
	for id, t := range r.trackers {
		snap := t.Snapshot()
		if snap.FinishedAt != nil && now.Sub(*snap.FinishedAt) > r.cfg.RetentionTTL {
			delete(r.trackers, id)
		}
	}
}

func (r *Registry) finished(snap Snapshot) {
	if r.history == nil && r.events == nil {
		return
	}
	// запись после неудачной валидации не нужна, до backend дело не дошло
	if snap.State == StateUploadFailed && isValidationCode(snap.ErrorCode) {
		return
	}

	event := snap.Event(r.actorID)

	r.sinks.Add(1)
	go func() {
		defer r.sinks.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.baseCtx), sinkTimeout)
		defer cancel()

		if r.history != nil {
			if err := r.history.Record(ctx, event); err != nil {
				r.logger.Error().Err(err).Str("tracker_id", event.TrackerID).Msg("Failed to record submission history")
			}
		}
		if r.events != nil {
			if err := r.events.PublishSubmissionFinished(ctx, event); err != nil {
				r.logger.Error().Err(err).Str("tracker_id", event.TrackerID).Msg("Failed to publish submission finished event")
			}
		}
	}()
}

func isValidationCode(code string) bool {
	switch validate.Code(code) {
	case validate.CodeInvalid, validate.CodeTooLarge, validate.CodeUnsupportedType:
		return true
	default:
		return false
	}
}
