package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/portal"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/repository"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/storage"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/validate"
)

const service = "plagexit-portal"

type Config struct {
	CookieName     string
	CookieSecure   bool
	CookieMaxAge   time.Duration
	AllowedOrigins []string
}

// ReadinessChecker проверяет доступность backend для /ready.
type ReadinessChecker interface {
	CheckReady(ctx context.Context) error
}

type Handler struct {
	portal    *portal.Manager
	validator *validate.Validator
	questions *storage.CachedDownloader
	history   repository.HistoryRepository
	readiness ReadinessChecker
	cfg       Config
	upgrader  websocket.Upgrader
	logger    zerolog.Logger

	// closing закрывается при остановке сервера, websocket ленты завершаются
	closing   chan struct{}
	closeOnce sync.Once
}

func NewHandler(
	portalManager *portal.Manager,
	validator *validate.Validator,
	questions *storage.CachedDownloader,
	history repository.HistoryRepository,
	readiness ReadinessChecker,
	cfg Config,
	logger zerolog.Logger,
) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "plagexit_portal"
	}

	h := &Handler{
		portal:    portalManager,
		validator: validator,
		questions: questions,
		history:   history,
		readiness: readiness,
		cfg:       cfg,
		logger:    logger,
		closing:   make(chan struct{}),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// CloseFeeds завершает все открытые websocket ленты трекеров. Повторный вызов безопасен.
func (h *Handler) CloseFeeds() {
	h.closeOnce.Do(func() { close(h.closing) })
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/ready", h.ReadyCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Use(h.withActor)

		api.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.Session)
		})

		api.Route("/professor", func(r chi.Router) {
			r.Get("/dashboard", h.ProfessorDashboard)
			r.Get("/profile", h.ProfessorProfile)
			r.Put("/profile", h.UpdateProfessorProfile)
			r.Post("/assignments", h.CreateAssignment)
			r.Get("/assignments/{id}/submissions", h.AssignmentSubmissions)
		})

		api.Route("/student", func(r chi.Router) {
			r.Get("/dashboard", h.StudentDashboard)
			r.Post("/assignments/{id}/submit", h.SubmitAssignment)
		})

		api.Get("/assignments/{id}/download", h.DownloadAssignment)

		api.Route("/trackers", func(r chi.Router) {
			r.Get("/", h.ListTrackers)
			r.Get("/{id}", h.GetTracker)
			r.Delete("/{id}", h.CancelTracker)
			r.Get("/{id}/ws", h.TrackerFeed)
		})

		api.Get("/history", h.History)
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   service,
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	backend := "up"

	if h.readiness != nil {
		if err := h.readiness.CheckReady(r.Context()); err != nil {
			h.logger.Warn().Err(err).Msg("Backend readiness check failed")
			status = http.StatusServiceUnavailable
			backend = "down"
		}
	}

	ready := "ready"
	if status != http.StatusOK {
		ready = "not_ready"
	}

	writeJSON(w, status, map[string]interface{}{
		"status":    ready,
		"timestamp": time.Now().UTC(),
		"services": []map[string]string{
			{"name": "backend", "status": backend},
		},
	})
}

type actorKey struct{}

// withActor находит актора по portal cookie, выдавая новую cookie при необходимости.
func (h *Handler) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(h.cfg.CookieName); err == nil {
			id = c.Value
		}

		actor, err := h.portal.Actor(id)
		if errors.Is(err, portal.ErrInvalidActorID) {
			id = portal.NewActorID()
			h.setActorCookie(w, id)
			actor, err = h.portal.Actor(id)
		}
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to resolve portal actor")
			writeError(w, http.StatusInternalServerError, "failed to initialise portal session")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) setActorCookie(w http.ResponseWriter, id string) {
	cookie := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.CookieMaxAge > 0 {
		cookie.MaxAge = int(h.cfg.CookieMaxAge.Seconds())
	}
	http.SetCookie(w, cookie)
}

func actorFrom(r *http.Request) *portal.Actor {
	a, _ := r.Context().Value(actorKey{}).(*portal.Actor)
	return a
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	// same-origin
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func getIntQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{
		Success: false,
		Error:   http.StatusText(status),
		Message: message,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeSuccessStatus(w, http.StatusOK, data)
}

func writeSuccessStatus(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}
