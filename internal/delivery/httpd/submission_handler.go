package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

// SubmitAssignment запускает трекер отправки и сразу отвечает 202,
// дальнейший прогресс доступен через /trackers/{id} и websocket.
func (h *Handler) SubmitAssignment(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	assignmentID := chi.URLParam(r, "id")

	if _, err := actor.Guard.EnsureRole(r.Context(), models.RoleStudent); err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.parseMultipart(w, r); err != nil {
		h.handleError(w, r, err)
		return
	}

	file, err := formFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	release, err := actor.Begin("submit:" + assignmentID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer release()

	t, err := actor.Trackers.Start(assignmentID, file)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/trackers/"+t.ID())
	writeSuccessStatus(w, http.StatusAccepted, t.Snapshot())
}
