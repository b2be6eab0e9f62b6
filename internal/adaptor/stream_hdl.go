package adaptor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"event-ticket/internal/live"
	"event-ticket/internal/usecase"
	"event-ticket/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const streamHeartbeat = 15 * time.Second

// StreamHandler serves the live seat map as server-sent events.
type StreamHandler struct {
	events    usecase.EventService
	hub       *live.Hub
	heartbeat time.Duration
	log       *zap.Logger
}

func NewStreamHandler(events usecase.EventService, hub *live.Hub, log *zap.Logger) *StreamHandler {
	return &StreamHandler{
		events:    events,
		hub:       hub,
		heartbeat: streamHeartbeat,
		log:       log.With(zap.String("handler", "stream")),
	}
}

// StreamSeatMap handles GET /api/events/{id}/updates. The first frame is a
// full snapshot; later frames are deltas. A client that falls behind is
// disconnected and has to reconnect for a fresh snapshot.
func (h *StreamHandler) StreamSeatMap(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.ResponseNotFound(w, "event not found")
		return
	}
	key := id.String()

	// subscribe before reading the snapshot so no delta falls in between
	sub := h.hub.Subscribe(key)
	defer h.hub.Unsubscribe(sub)

	detail, err := h.events.Snapshot(r.Context(), key)
	if err != nil {
		handleServiceError(w, h.log, err, "stream seat map")
		return
	}

	rc := http.NewResponseController(w)
	// the server write timeout does not apply to a long-lived stream
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeFrame(w, rc, live.Message{Type: live.TypeSnapshot, Seats: detail.Seats}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.C:
			if !ok {
				h.log.Debug("Stream subscriber dropped", zap.String("event_id", key))
				return
			}
			if err := writeFrame(w, rc, msg); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, rc *http.ResponseController, msg live.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data); err != nil {
		return err
	}
	return rc.Flush()
}
