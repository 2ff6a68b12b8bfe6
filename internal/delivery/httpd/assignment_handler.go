package httpd

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/portal"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/session"
)

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	if _, err := actor.Guard.EnsureRole(r.Context(), models.RoleProfessor); err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.parseMultipart(w, r); err != nil {
		h.handleError(w, r, err)
		return
	}

	question, err := formFile(r, "question_file", "questionFile", "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read question file")
		return
	}

	req := models.CreateAssignmentRequest{
		Name:         formValue(r, "name"),
		Course:       formValue(r, "course"),
		Description:  formValue(r, "description"),
		DueDate:      formValue(r, "due_date", "dueDate"),
		Sections:     formList(r, "sections"),
		QuestionFile: question,
	}

	if err := h.validator.Struct(req); err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.validator.PDF(req.QuestionFile); err != nil {
		h.handleError(w, r, err)
		return
	}

	release, err := actor.Begin("create-assignment")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer release()

	assignment, err := actor.API.CreateAssignment(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if h.questions != nil && assignment.ID != "" {
		if err := h.questions.Store(r.Context(), assignment.ID, question.Content); err != nil {
			h.logger.Warn().Err(err).Str("assignment_id", assignment.ID).Msg("Failed to cache question file")
		}
	}

	writeSuccessStatus(w, http.StatusCreated, assignment)
}

func (h *Handler) DownloadAssignment(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	assignmentID := chi.URLParam(r, "id")

	if _, err := h.ensureLoggedIn(r, actor); err != nil {
		h.handleError(w, r, err)
		return
	}

	data, err := h.questions.Download(r.Context(), actor.API, assignmentID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachment("assignment-"+assignmentID+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ensureLoggedIn сверяет сессию с backend для той роли, под которой вошел пользователь.
func (h *Handler) ensureLoggedIn(r *http.Request, actor *portal.Actor) (models.Session, error) {
	cached, ok, err := actor.Session.Current(r.Context())
	if err != nil {
		return models.Session{}, err
	}
	if !ok {
		return models.Session{}, session.ErrUnauthenticated
	}
	return actor.Guard.EnsureRole(r.Context(), cached.Role)
}

// attachment экранирует имя файла, id задания приходит из URL как есть.
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
