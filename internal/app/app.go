package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/apiclient"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/config"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/database"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/delivery/httpd"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/integration"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/middleware"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/portal"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/repository"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/server"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/session"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/storage"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/tracker"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/validate"
)

const historyPruneInterval = time.Hour

type App struct {
	server  *server.Server
	portal  *portal.Manager
	history repository.HistoryRepository
	logger  zerolog.Logger
	config  *config.Config

	db     *sql.DB
	redis  *redis.Client
	events integration.EventPublisher

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		logger: log,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := a.init(); err != nil {
		a.closeResources()
		cancel()
		return nil, err
	}

	return a, nil
}

func (a *App) init() error {
	cfg := a.config
	log := a.logger

	backend := apiclient.Config{
		BaseURL:         cfg.Backend.BaseURL,
		Timeout:         cfg.Backend.Timeout,
		UploadTimeout:   cfg.Backend.UploadTimeout,
		HealthTimeout:   cfg.Backend.HealthTimeout,
		HealthCheck:     cfg.Backend.HealthCheck,
		ReadRetryCount:  cfg.Backend.ReadRetryCount,
		ReadRetryDelay:  cfg.Backend.ReadRetryDelay,
		MaxIdleConns:    cfg.Backend.MaxIdleConns,
		IdleConnTimeout: cfg.Backend.IdleConnTimeout,
	}
	transport := apiclient.NewTransport(backend)

	healthClient, err := apiclient.New(backend, log, apiclient.WithTransport(transport))
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	store, err := a.sessionStore()
	if err != nil {
		return err
	}

	deps := portal.Deps{
		Store:     store,
		Validator: validate.New(cfg.Tracker.MaxUploadSize),
		Transport: transport,
	}

	if cfg.Database.Enabled {
		if err := a.initDatabase(); err != nil {
			return err
		}
		deps.History = a.history
	}

	if cfg.RabbitMQ.Enabled {
		events, err := integration.NewRabbitMQPublisher(cfg.RabbitMQ, log)
		if err != nil {
			return err
		}
		a.events = events
		deps.Events = events
	}

	var questions *storage.CachedDownloader
	if cfg.MinIO.Enabled {
		cache, err := storage.NewMinIOQuestionCache(cfg.MinIO, log)
		if err != nil {
			return err
		}
		questions = storage.NewCachedDownloader(cache, log)
	}

	a.portal = portal.NewManager(a.ctx, portal.Config{
		Backend: backend,
		Tracker: tracker.RegistryConfig{
			Tracker: tracker.Config{
				PollInterval: cfg.Tracker.PollInterval,
				MaxPolls:     cfg.Tracker.MaxPolls,
			},
			RetentionTTL: cfg.Tracker.RetentionTTL,
		},
		IdleTTL:              cfg.Portal.ActorIdleTTL,
		DashboardConcurrency: cfg.Portal.DashboardConcurrency,
	}, deps, log)

	h := httpd.NewHandler(a.portal, deps.Validator, questions, a.history, healthClient, httpd.Config{
		CookieName:     cfg.Portal.CookieName,
		CookieSecure:   cfg.Portal.CookieSecure,
		CookieMaxAge:   cfg.Portal.ActorIdleTTL,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, log)

	router := chi.NewRouter()

	a.server = server.New(server.Config{
		Address:         cfg.Server.Address,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, log)

	// middleware навешиваются до регистрации маршрутов
	a.server.SetupMiddleware(server.Middlewares{
		CORS:     middleware.NewCORS(cfg.CORS),
		Logger:   middleware.RequestLogger(log),
		Recovery: middleware.Recovery(log),
		Timeout:  middleware.Timeout(cfg.Server.RequestTimeout),
	})
	a.server.OnShutdown(h.CloseFeeds)

	h.RegisterRoutes(router)

	return nil
}

func (a *App) sessionStore() (session.Store, error) {
	if a.config.Session.Store != "redis" {
		return session.NewMemoryStore(), nil
	}

	client, err := session.NewRedisClient(a.ctx, a.config.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.redis = client

	a.logger.Info().Msg("Session store: redis")
	return session.NewRedisStore(client, a.config.Session.KeyPrefix, a.config.Portal.ActorIdleTTL), nil
}

func (a *App) initDatabase() error {
	if a.config.Database.AutoMigrate {
		if err := database.Migrate(a.config.Database, "up"); err != nil {
			return err
		}
		a.logger.Info().Msg("Database migrations applied")
	}

	db, err := database.NewPostgres(a.config.Database)
	if err != nil {
		return err
	}
	a.db = db
	a.history = repository.NewHistoryRepository(db, a.logger)

	a.logger.Info().Msg("Database connection established")
	return nil
}

func (a *App) Run() error {
	go a.portal.Run(a.ctx)
	if a.history != nil && a.config.Database.HistoryRetention > 0 {
		go a.pruneHistory()
	}

	return a.server.Start()
}

func (a *App) pruneHistory() {
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
			n, err := a.history.DeleteOlderThan(ctx, time.Now().Add(-a.config.Database.HistoryRetention))
			cancel()
			if err != nil {
				a.logger.Error().Err(err).Msg("Failed to prune submission history")
				continue
			}
			if n > 0 {
				a.logger.Info().Int64("deleted", n).Msg("Submission history pruned")
			}
		}
	}
}

// Shutdown сначала перестает принимать запросы, затем останавливает трекеры
// и дожидается записи их результатов, после чего закрывает соединения.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down portal...")

	serverErr := a.server.Shutdown(ctx)
	if serverErr != nil {
		a.logger.Error().Err(serverErr).Msg("Failed to shutdown HTTP server")
	}

	if err := a.portal.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Trackers did not finish in time")
	}

	a.cancel()
	a.closeResources()

	a.logger.Info().Msg("Portal stopped")
	return serverErr
}

func (a *App) closeResources() {
	if a.events != nil {
		a.events.Close()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close Redis connection")
		}
	}
}
