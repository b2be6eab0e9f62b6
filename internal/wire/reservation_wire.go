package wire

import (
	"event-ticket/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireReservation(r chi.Router, reservationHandler *adaptor.ReservationHandler) {
	// POST /api/events/{id}/reservations - hold up to 8 adjacent seats
	r.Post("/{id}/reservations", reservationHandler.CreateReservation)
}
