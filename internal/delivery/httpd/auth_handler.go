package httpd

import (
	"net/http"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

type sessionResponse struct {
	User     models.User `json:"user"`
	Role     models.Role `json:"role"`
	Redirect string      `json:"redirect"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	release, err := actor.Begin("login")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer release()

	sess, err := actor.Auth.Login(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, sessionResponse{
		User:     sess.User,
		Role:     sess.Role,
		Redirect: sess.Role.DashboardPath(),
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	release, err := actor.Begin("register")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer release()

	user, err := actor.Auth.Register(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccessStatus(w, http.StatusCreated, map[string]interface{}{
		"user":     user,
		"redirect": loginPath,
	})
}

// Logout всегда очищает локальную сессию и останавливает трекеры,
// ошибка backend только попадает в лог.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	if err := actor.Auth.Logout(r.Context()); err != nil {
		h.logger.Warn().Err(err).Str("actor_id", actor.ID).Msg("Backend logout failed")
	}
	actor.Trackers.CancelAll()

	writeSuccess(w, map[string]string{"redirect": loginPath})
}

// Session сверяет кэшированную сессию с backend для роли, под которой вошел пользователь.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.ensureLoggedIn(r, actorFrom(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, sessionResponse{
		User:     sess.User,
		Role:     sess.Role,
		Redirect: sess.Role.DashboardPath(),
	})
}
