package httpd

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

func (h *Handler) ListTrackers(w http.ResponseWriter, r *http.Request) {
	list := actorFrom(r).Trackers.List()

	writeSuccess(w, map[string]interface{}{
		"trackers": list,
		"total":    len(list),
	})
}

func (h *Handler) GetTracker(w http.ResponseWriter, r *http.Request) {
	t, err := actorFrom(r).Trackers.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, t.Snapshot())
}

// CancelTracker закрывает трекер. Повторная отмена возвращает тот же конечный снимок.
func (h *Handler) CancelTracker(w http.ResponseWriter, r *http.Request) {
	snap, err := actorFrom(r).Trackers.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, snap)
}

// TrackerFeed отправляет снимки трекера по websocket, пока трекер не завершится
// или клиент не отключится.
func (h *Handler) TrackerFeed(w http.ResponseWriter, r *http.Request) {
	t, err := actorFrom(r).Trackers.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("tracker_id", t.ID()).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := t.Subscribe()
	defer unsubscribe()

	// клиент ничего не присылает, чтение нужно только для pong и закрытия
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return

		case <-h.closing:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "portal shutting down"))
			return

		case snap, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "tracker finished"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Debug().Err(err).Str("tracker_id", t.ID()).Msg("WebSocket write failed")
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
