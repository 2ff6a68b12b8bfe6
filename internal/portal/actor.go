package portal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/apiclient"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/dashboard"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/session"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/tracker"
)

var ErrActionInProgress = errors.New("another request of this kind is already in progress")

// Actor все состояние одного пользователя портала: cookie jar клиента,
// кэш сессии, трекеры отправок.
type Actor struct {
	ID        string
	API       *apiclient.Client
	Session   *session.Context
	Guard     *session.Guard
	Auth      *session.AuthService
	Trackers  *tracker.Registry
	Dashboard *dashboard.Loader

	logger   zerolog.Logger
	lastSeen atomic.Int64

	mu       sync.Mutex
	inflight map[string]struct{}
}

func (a *Actor) touch(now time.Time) {
	a.lastSeen.Store(now.UnixNano())
}

// LastSeen время последнего запроса актора.
func (a *Actor) LastSeen() time.Time {
	return time.Unix(0, a.lastSeen.Load())
}

// Begin занимает действие (login, submit и т.п.) на время запроса.
// Повторное нажатие, пока первое не завершилось, получает ErrActionInProgress.
func (a *Actor) Begin(action string) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, busy := a.inflight[action]; busy {
		return nil, ErrActionInProgress
	}
	a.inflight[action] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.inflight, action)
			a.mu.Unlock()
		})
	}, nil
}

// Expire сбрасывает сессию после 401 и останавливает трекеры.
func (a *Actor) Expire(ctx context.Context) {
	a.Auth.Expire(ctx)
	if n := a.Trackers.CancelAll(); n > 0 {
		a.logger.Info().Int("cancelled", n).Msg("Trackers cancelled after session expiry")
	}
}
