package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/validate"
)

var ErrPortalMismatch = errors.New("portal mismatch")

// PortalMismatchError вход через портал другой роли. Сессия не сохраняется.
type PortalMismatchError struct {
	Requested models.Role
	Actual    models.Role
}

func (e *PortalMismatchError) Error() string {
	return fmt.Sprintf("please use the %s portal to login as a %s", e.Actual, e.Actual)
}

func (e *PortalMismatchError) Is(target error) bool {
	return target == ErrPortalMismatch
}

type AuthAPI interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.User, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Logout(ctx context.Context) error
}

type AuthService struct {
	sess      *Context
	api       AuthAPI
	validator *validate.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAuthService(sess *Context, api AuthAPI, validator *validate.Validator, logger zerolog.Logger) *AuthService {
	return &AuthService{
		sess:      sess,
		api:       api,
		validator: validator,
		logger:    logger.With().Str("component", "auth").Logger(),
		now:       time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Session{}, err
	}

	user, err := s.api.Login(ctx, req)
	if err != nil {
		return models.Session{}, err
	}

	requested := models.RoleFor(req.IsStudent)
	if user.UserType != requested {
		s.logger.Warn().
			Str("requested", requested.String()).
			Str("actual", user.UserType.String()).
			Msg("Login through wrong portal")
		return models.Session{}, &PortalMismatchError{Requested: requested, Actual: user.UserType}
	}

	sess := models.NewSession(*user, user.UserType, s.now())
	if err := s.sess.Establish(ctx, sess); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist session")
	}

	s.logger.Info().
		Str("user_id", user.UserID).
		Str("role", user.UserType.String()).
		Msg("User logged in")

	return sess, nil
}

// Register создает аккаунт. Вход после регистрации выполняется отдельно.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if !req.IsStudent {
		req.Section = ""
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.UserID).
		Bool("is_student", req.IsStudent).
		Msg("User registered")

	return user, nil
}

// Logout очищает локальную сессию даже если backend вернул ошибку.
func (s *AuthService) Logout(ctx context.Context) error {
	apiErr := s.api.Logout(ctx)
	if apiErr != nil {
		s.logger.Warn().Err(apiErr).Msg("Backend logout failed, clearing local session anyway")
	}

	if err := s.sess.Clear(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear stored session")
	}

	return apiErr
}

// Expire вызывается, когда любой запрос получил 401.
func (s *AuthService) Expire(ctx context.Context) {
	if err := s.sess.Clear(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear stored session")
	}
	s.logger.Info().Msg("Session expired")
}
