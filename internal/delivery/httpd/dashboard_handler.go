package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/dashboard"
)

func (h *Handler) ProfessorDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := actorFrom(r).Dashboard.Professor(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, dash)
}

func (h *Handler) StudentDashboard(w http.ResponseWriter, r *http.Request) {
	filter := dashboard.Filter{
		Status: r.URL.Query().Get("status"),
		Course: r.URL.Query().Get("course"),
	}

	dash, err := actorFrom(r).Dashboard.Student(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, dash)
}

func (h *Handler) AssignmentSubmissions(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "id")

	subs, err := actorFrom(r).Dashboard.Submissions(r.Context(), assignmentID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]interface{}{
		"assignment_id": assignmentID,
		"submissions":   subs,
		"total":         len(subs),
	})
}
