package wire

import (
	"event-ticket/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireTicket(r chi.Router, ticketHandler *adaptor.TicketHandler) {
	// POST /api/ticket-validations - door check, always answers 200
	r.Post("/api/ticket-validations", ticketHandler.VerifyTicket)
}
