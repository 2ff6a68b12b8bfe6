package httpd

import (
	"net/http"
)

const maxHistoryLimit = 100

// History завершенные отправки актора из Postgres.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "submission history is disabled")
		return
	}

	actor := actorFrom(r)
	if _, err := h.ensureLoggedIn(r, actor); err != nil {
		h.handleError(w, r, err)
		return
	}

	limit := getIntQueryParam(r, "limit", 20)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = 20
	}
	offset := getIntQueryParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	events, total, err := h.history.ListByActor(r.Context(), actor.ID, limit, offset)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	counts, err := h.history.CountByState(r.Context(), actor.ID)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count submission history by state")
	}

	writeSuccess(w, map[string]interface{}{
		"items":    events,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
		"by_state": counts,
	})
}
