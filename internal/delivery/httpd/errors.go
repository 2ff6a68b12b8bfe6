package httpd

import (
	"context"
	"errors"
	"net/http"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/apiclient"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/portal"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/session"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/tracker"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/validate"
)

const loginPath = "/login"

type errorResponse struct {
	Success   bool              `json:"success"`
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	Redirect  string            `json:"redirect,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func newErrorResponse(status int, code, message string) errorResponse {
	return errorResponse{
		Success: false,
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
	}
}

// handleError переводит ошибки сервисов в HTTP ответы. Истекшая сессия
// сбрасывается у актора перед ответом.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := h.mapError(r, err)

	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	} else {
		h.logger.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request rejected")
	}

	writeJSON(w, status, resp)
}

func (h *Handler) mapError(r *http.Request, err error) (int, errorResponse) {
	var (
		verr     *validate.Error
		wrong    *session.WrongPortalError
		mismatch *session.PortalMismatchError
		apiErr   *apiclient.APIError
	)

	switch {
	case errors.As(err, &verr):
		status := http.StatusBadRequest
		switch verr.Code {
		case validate.CodeTooLarge:
			status = http.StatusRequestEntityTooLarge
		case validate.CodeUnsupportedType:
			status = http.StatusUnsupportedMediaType
		}
		resp := newErrorResponse(status, string(verr.Code), verr.Message)
		resp.Fields = verr.Fields
		return status, resp

	case errors.Is(err, session.ErrUnauthenticated):
		resp := newErrorResponse(http.StatusUnauthorized, "UNAUTHENTICATED", "please log in")
		resp.Redirect = loginPath
		return http.StatusUnauthorized, resp

	case errors.As(err, &wrong):
		resp := newErrorResponse(http.StatusForbidden, "WRONG_PORTAL", err.Error())
		resp.Redirect = wrong.Redirect()
		return http.StatusForbidden, resp

	case errors.As(err, &mismatch):
		return http.StatusForbidden, newErrorResponse(http.StatusForbidden, "PORTAL_MISMATCH", mismatch.Error())

	case errors.Is(err, portal.ErrActionInProgress):
		return http.StatusConflict, newErrorResponse(http.StatusConflict, "ACTION_IN_PROGRESS", "action in progress")

	case errors.Is(err, tracker.ErrAlreadyRunning):
		return http.StatusConflict, newErrorResponse(http.StatusConflict, "ALREADY_RUNNING", err.Error())

	case errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound, newErrorResponse(http.StatusNotFound, "NOT_FOUND", err.Error())

	case errors.As(err, &apiErr):
		return h.mapAPIError(r, apiErr)

	case errors.Is(err, context.DeadlineExceeded):
		resp := newErrorResponse(http.StatusGatewayTimeout, "TIMEOUT", "request timed out")
		resp.Retryable = true
		return http.StatusGatewayTimeout, resp

	default:
		return http.StatusInternalServerError, newErrorResponse(http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func (h *Handler) mapAPIError(r *http.Request, apiErr *apiclient.APIError) (int, errorResponse) {
	message := apiErr.Message
	if message == "" {
		message = http.StatusText(apiErr.Status)
	}

	switch apiErr.Kind {
	case apiclient.KindSessionExpired:
		if actor := actorFrom(r); actor != nil {
			actor.Expire(r.Context())
		}
		resp := newErrorResponse(http.StatusUnauthorized, string(apiErr.Kind), "session expired, please log in again")
		resp.Redirect = loginPath
		return http.StatusUnauthorized, resp

	case apiclient.KindNetwork:
		if errors.Is(apiErr, context.DeadlineExceeded) {
			resp := newErrorResponse(http.StatusGatewayTimeout, "TIMEOUT", "backend did not respond in time")
			resp.Retryable = true
			return http.StatusGatewayTimeout, resp
		}
		resp := newErrorResponse(http.StatusBadGateway, string(apiErr.Kind), message)
		resp.Retryable = true
		return http.StatusBadGateway, resp

	case apiclient.KindServer:
		resp := newErrorResponse(http.StatusBadGateway, string(apiErr.Kind), message)
		resp.Retryable = true
		return http.StatusBadGateway, resp

	case apiclient.KindClient:
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadRequest
		}
		return status, newErrorResponse(status, string(apiErr.Kind), message)

	default:
		return http.StatusBadGateway, newErrorResponse(http.StatusBadGateway, string(apiErr.Kind), "unexpected response from backend")
	}
}
