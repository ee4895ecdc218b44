package www

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"node.town/callsense/task"
)

const writeWait = 10 * time.Second

// watch streams the task's snapshot over a WebSocket: once immediately and,
// if it was still processing, once more when it finishes.
func (h *Handler) watch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade", "task", id, "error", err)
		return
	}
	defer conn.Close()

	snapshot := h.store.Lookup(id)
	if err := writeSnapshot(conn, snapshot); err != nil {
		h.logger.Debug("watch write", "task", id, "error", err)
		return
	}

	if snapshot.Status == task.StatusProcessing {
		done, err := h.store.Done(id)
		if err != nil {
			h.logger.Error("watch", "task", id, "error", err)
			return
		}

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		select {
		case <-done:
		case <-gone:
			h.logger.Debug("watcher left", "task", id)
			return
		}

		if err := writeSnapshot(conn, h.store.Lookup(id)); err != nil {
			h.logger.Debug("watch write", "task", id, "error", err)
			return
		}
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
}

func writeSnapshot(conn *websocket.Conn, t task.Task) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(t)
}
