package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/apiclient"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

var ErrUnauthenticated = errors.New("not authenticated")

// WrongPortalError пользователь вошел, но открыл дашборд чужой роли.
type WrongPortalError struct {
	Expected models.Role
	Actual   models.Role
}

func (e *WrongPortalError) Error() string {
	return fmt.Sprintf("wrong portal: expected %s, logged in as %s", e.Expected, e.Actual)
}

// Redirect дашборд, соответствующий реальной роли.
func (e *WrongPortalError) Redirect() string {
	return e.Actual.DashboardPath()
}

type SessionChecker interface {
	CheckSession(ctx context.Context) (*models.SessionCheckResponse, error)
}

type Guard struct {
	sess   *Context
	api    SessionChecker
	logger zerolog.Logger
	now    func() time.Time
}

func NewGuard(sess *Context, api SessionChecker, logger zerolog.Logger) *Guard {
	return &Guard{
		sess:   sess,
		api:    api,
		logger: logger.With().Str("component", "session_guard").Logger(),
		now:    time.Now,
	}
}

// EnsureRole сверяет кэшированную сессию с backend. Вызывается перед любой загрузкой
// данных роли, повторный вызов безопасен.
func (g *Guard) EnsureRole(ctx context.Context, expected models.Role) (models.Session, error) {
	snap, err := g.sess.Read(ctx)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to read cached session: %w", err)
	}
	if !snap.Present {
		return models.Session{}, ErrUnauthenticated
	}

	resp, err := g.api.CheckSession(ctx)
	if err != nil {
		if apiclient.IsSessionExpired(err) {
			g.clear(ctx, "session expired")
			return models.Session{}, ErrUnauthenticated
		}
		return models.Session{}, err
	}
	if !resp.LoggedIn {
		g.clear(ctx, "backend reports not logged in")
		return models.Session{}, ErrUnauthenticated
	}

	user := snap.Session.User
	if resp.User != nil {
		user = *resp.User
	}

	role := resp.UserType
	if !role.Valid() {
		role = user.UserType
	}
	if !role.Valid() {
		role = snap.Session.Role
	}
	if user.UserType == "" {
		user.UserType = role
	}

	refreshed := models.NewSession(user, role, g.now())
	applied, err := g.sess.Refresh(ctx, snap.Generation, refreshed)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Failed to persist refreshed session")
	}
	if !applied {
		// пока шла проверка, пользователь вышел
		return models.Session{}, ErrUnauthenticated
	}

	if role != expected {
		return refreshed, &WrongPortalError{Expected: expected, Actual: role}
	}

	return refreshed, nil
}

func (g *Guard) clear(ctx context.Context, reason string) {
	if err := g.sess.Clear(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to clear stored session")
	}
	g.logger.Info().Str("reason", reason).Msg("Session cleared")
}
