package adaptor

import (
	"errors"
	"net/http"

	"event-ticket/internal/live"
	"event-ticket/internal/usecase"
	"event-ticket/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Event       *EventHandler
	Reservation *ReservationHandler
	Ticket      *TicketHandler
	Stream      *StreamHandler
}

func NewHandler(service *usecase.Service, hub *live.Hub, log *zap.Logger) *Handler {
	return &Handler{
		Event:       NewEventHandler(service.Event, log),
		Reservation: NewReservationHandler(service.Reservation, log),
		Ticket:      NewTicketHandler(service.Ticket, log),
		Stream:      NewStreamHandler(service.Event, hub, log),
	}
}

// handleServiceError maps a service error kind to its status code.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var reason *usecase.ReasonError
	errors.As(err, &reason)

	switch {
	case errors.Is(err, usecase.ErrValidation):
		log.Warn(operation+" validation failed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, reasonMessage(reason, "Validation failed"), reasonDetails(reason))

	case errors.Is(err, usecase.ErrNotFound):
		log.Warn(operation+" failed - not found",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseNotFound(w, reasonMessage(reason, "Not found"))

	case errors.Is(err, usecase.ErrConflict):
		log.Info(operation+" failed - conflict",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseConflict(w, reasonMessage(reason, "Conflict"), reasonDetails(reason))

	case errors.Is(err, usecase.ErrTransient):
		log.Error(operation+" failed - dependency unavailable",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseUnavailable(w, "Service temporarily unavailable, please retry")

	default:
		log.Error(operation+" failed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

func reasonMessage(reason *usecase.ReasonError, fallback string) string {
	if reason == nil || reason.Reason == "" {
		return fallback
	}
	return reason.Reason
}

func reasonDetails(reason *usecase.ReasonError) any {
	if reason == nil {
		return nil
	}
	details := map[string]any{"reason": reason.Reason}
	if len(reason.Seats) > 0 {
		details["seats"] = reason.Seats
	}
	if len(reason.Fields) > 0 {
		details["fields"] = reason.Fields
	}
	return details
}
