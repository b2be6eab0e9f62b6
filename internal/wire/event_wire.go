package wire

import (
	"event-ticket/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireEvent(r chi.Router, eventHandler *adaptor.EventHandler, streamHandler *adaptor.StreamHandler) {
	r.Post("/", eventHandler.CreateEvent)
	r.Get("/", eventHandler.ListEvents)
	r.Get("/{id}", eventHandler.GetEvent)

	// GET /api/events/{id}/updates - server-sent seat map stream
	r.Get("/{id}/updates", streamHandler.StreamSeatMap)
}
