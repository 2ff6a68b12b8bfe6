package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/middleware"
)

const defaultShutdownTimeout = 15 * time.Second

// Server HTTP сервер портала. Маршруты монтируются под общей цепочкой middleware,
// долгие websocket соединения закрываются через хуки OnShutdown.
type Server struct {
	server *http.Server
	cfg    Config
	logger zerolog.Logger

	appRouter  chi.Router
	rootRouter *chi.Mux
	setupOnce  sync.Once

	mu       sync.Mutex
	listener net.Listener
}

type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Middlewares цепочка портала. Пустые поля пропускаются.
type Middlewares struct {
	CORS     func(http.Handler) http.Handler
	Logger   func(http.Handler) http.Handler
	Recovery func(http.Handler) http.Handler
	Timeout  func(http.Handler) http.Handler
}

func New(cfg Config, router chi.Router, logger zerolog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger.With().Str("component", "http").Logger(),
		appRouter:  router,
		rootRouter: chi.NewRouter(),
	}

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.rootRouter,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// SetupMiddleware навешивает цепочку и монтирует маршруты, повторный вызов
// игнорируется. Сжатие и таймаут не трогают websocket upgrade, иначе соединение
// нельзя перехватить.
func (s *Server) SetupMiddleware(mw Middlewares) {
	applied := false
	s.setupOnce.Do(func() {
		s.setup(mw)
		applied = true
	})
	if !applied {
		s.logger.Warn().Msg("Middleware chain already set up")
	}
}

func (s *Server) setup(mw Middlewares) {
	s.rootRouter.Use(chimw.RequestID)
	s.rootRouter.Use(chimw.RealIP)
	s.rootRouter.Use(chimw.StripSlashes)
	s.rootRouter.Use(chimw.CleanPath)
	s.rootRouter.Use(chimw.GetHead)
	s.rootRouter.Use(middleware.SkipWebSocket(chimw.Compress(5)))

	for _, m := range []func(http.Handler) http.Handler{mw.CORS, mw.Timeout, mw.Logger, mw.Recovery} {
		if m != nil {
			s.rootRouter.Use(m)
		}
	}

	s.rootRouter.Mount("/", s.appRouter)
}

// OnShutdown регистрирует функцию, вызываемую в начале Shutdown.
// Перехваченные соединения Shutdown сам не закрывает.
func (s *Server) OnShutdown(fn func()) {
	s.server.RegisterOnShutdown(fn)
}

// Listen занимает адрес заранее. Для ":0" реальный адрес доступен через Addr.
func (s *Server) Listen() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener, nil
	}

	l, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return nil, err
	}
	s.listener = l
	return l, nil
}

func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Address
}

// Start блокируется до остановки сервера. Штатная остановка возвращает nil.
func (s *Server) Start() error {
	l, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(l)
}

func (s *Server) Serve(l net.Listener) error {
	s.logger.Info().Str("address", l.Addr().String()).Msg("Starting server")
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown без дедлайна в ctx ждет не дольше ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	s.logger.Info().Msg("Shutting down server")
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.rootRouter
}
