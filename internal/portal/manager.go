package portal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/apiclient"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/dashboard"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/session"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/tracker"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/validate"
)

var ErrInvalidActorID = errors.New("invalid actor id")

type Config struct {
	Backend              apiclient.Config
	Tracker              tracker.RegistryConfig
	IdleTTL              time.Duration
	DashboardConcurrency int
}

type Deps struct {
	Store     session.Store
	Validator *validate.Validator
	History   tracker.HistoryRecorder
	Events    tracker.EventPublisher
	// Transport общий пул соединений к backend для всех акторов.
	Transport http.RoundTripper
}

// Manager реестр акторов, ключ это значение portal cookie.
type Manager struct {
	// baseCtx общий контекст трекеров, отменяется в Shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc
	cfg     Config
	deps    Deps
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	actors map[string]*Actor
}

func NewManager(baseCtx context.Context, cfg Config, deps Deps, logger zerolog.Logger) *Manager {
	if deps.Store == nil {
		deps.Store = session.NewMemoryStore()
	}
	if deps.Transport == nil {
		deps.Transport = apiclient.NewTransport(cfg.Backend)
	}

	ctx, cancel := context.WithCancel(baseCtx)
	return &Manager{
		baseCtx: ctx,
		cancel:  cancel,
		cfg:     cfg,
		deps:    deps,
		logger:  logger.With().Str("component", "portal").Logger(),
		now:     time.Now,
		actors:  make(map[string]*Actor),
	}
}

// NewActorID идентификатор для нового portal cookie.
func NewActorID() string {
	return uuid.NewString()
}

// Actor возвращает актора по id, создавая его при первом обращении.
// Сессия нового актора подтягивается из хранилища лениво.
func (m *Manager) Actor(id string) (*Actor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidActorID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.actors[id]; ok {
		a.touch(m.now())
		return a, nil
	}

	a, err := m.newActor(id)
	if err != nil {
		return nil, err
	}
	a.touch(m.now())
	m.actors[id] = a

	m.logger.Debug().Str("actor_id", id).Msg("Actor created")
	return a, nil
}

// Lookup не создает актора.
func (m *Manager) Lookup(id string) (*Actor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.actors[id]
	return a, ok
}

func (m *Manager) newActor(id string) (*Actor, error) {
	logger := m.logger.With().Str("actor_id", id).Logger()

	api, err := apiclient.New(m.cfg.Backend, logger, apiclient.WithTransport(m.deps.Transport))
	if err != nil {
		return nil, err
	}

	sess := session.NewContext(id, m.deps.Store, logger)
	guard := session.NewGuard(sess, api, logger)
	auth := session.NewAuthService(sess, api, m.deps.Validator, logger)

	a := &Actor{
		ID:        id,
		API:       api,
		Session:   sess,
		Guard:     guard,
		Auth:      auth,
		Dashboard: dashboard.NewLoader(guard, api, m.cfg.DashboardConcurrency, logger),
		logger:    logger,
		inflight:  make(map[string]struct{}),
	}

	opts := []tracker.RegistryOption{
		tracker.WithSessionExpiredHook(func() {
			auth.Expire(context.WithoutCancel(m.baseCtx))
		}),
	}
	if m.deps.History != nil {
		opts = append(opts, tracker.WithHistory(m.deps.History))
	}
	if m.deps.Events != nil {
		opts = append(opts, tracker.WithEvents(m.deps.Events))
	}
	a.Trackers = tracker.NewRegistry(m.baseCtx, id, api, m.deps.Validator, m.cfg.Tracker, logger, opts...)

	return a, nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actors)
}

// Sweep удаляет акторов без запросов дольше IdleTTL и без активных трекеров.
// Сессия в хранилище остается, актор восстановится при следующем запросе.
func (m *Manager) Sweep() int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, a := range m.actors {
		if now.Sub(a.LastSeen()) <= m.cfg.IdleTTL || a.Trackers.Active() > 0 {
			continue
		}
		delete(m.actors, id)
		removed++
	}

	if removed > 0 {
		m.logger.Debug().Int("removed", removed).Int("remaining", len(m.actors)).Msg("Idle actors evicted")
	}
	return removed
}

// Run периодически чистит реестр до отмены ctx.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.IdleTTL / 4
	if interval <= 0 {
		return
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Shutdown останавливает все трекеры с причиной завершения работы портала
// и ждет записи их результатов.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	actors := make([]*Actor, 0, len(m.actors))
	active := 0
	for _, a := range m.actors {
		actors = append(actors, a)
		active += a.Trackers.Active()
	}
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		for _, a := range actors {
			a.Trackers.Wait()
		}
		close(done)
	}()

	m.logger.Info().Int("actors", len(actors)).Int("active_trackers", active).Msg("Portal shutting down")

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
