package httpd

import (
	"net/http"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/validate"
)

func (h *Handler) ProfessorProfile(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	if _, err := actor.Guard.EnsureRole(r.Context(), models.RoleProfessor); err != nil {
		h.handleError(w, r, err)
		return
	}

	profile, err := actor.API.ProfessorProfile(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, profile)
}

// UpdateProfessorProfile передает в backend только присланные поля.
func (h *Handler) UpdateProfessorProfile(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	if _, err := actor.Guard.EnsureRole(r.Context(), models.RoleProfessor); err != nil {
		h.handleError(w, r, err)
		return
	}

	var req models.ProfessorProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Empty() {
		h.handleError(w, r, &validate.Error{Code: validate.CodeInvalid, Message: "nothing to update"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.handleError(w, r, err)
		return
	}

	release, err := actor.Begin("update-profile")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer release()

	profile, err := actor.API.UpdateProfessorProfile(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, profile)
}
