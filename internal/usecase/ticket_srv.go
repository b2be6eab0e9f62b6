package usecase

import (
	"context"
	"errors"

	"event-ticket/internal/data/entity"
	"event-ticket/internal/data/repository"
	"event-ticket/internal/dto/request"
	"event-ticket/internal/dto/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Verification failure reasons.
const (
	ReasonUnknownTicket     = "unknown ticket"
	ReasonWrongEvent        = "ticket not for this event"
	ReasonEventNotFound     = "event not found"
	ReasonSeatNotConfirmed  = "seat not confirmed"
	ReasonInvalidCredential = "invalid credential"
	ReasonUnavailable       = "verification unavailable"
)

type TicketService interface {
	// VerifyTicket never fails; every problem is reported as valid=false
	// with a reason.
	VerifyTicket(ctx context.Context, req *request.VerifyTicketRequest) *response.TicketValidationResponse
}

type ticketService struct {
	repo   *repository.Repository
	opener CredentialOpener
	log    *zap.Logger
}

func NewTicketService(repo *repository.Repository, opener CredentialOpener, log *zap.Logger) TicketService {
	return &ticketService{
		repo:   repo,
		opener: opener,
		log:    log.With(zap.String("service", "ticket")),
	}
}

func (s *ticketService) VerifyTicket(ctx context.Context, req *request.VerifyTicketRequest) *response.TicketValidationResponse {
	ticketKey := req.TicketID

	if req.CredentialRef != "" {
		if s.opener == nil {
			return invalid(ReasonInvalidCredential)
		}
		payload, err := s.opener.Open(req.CredentialRef)
		if err != nil {
			s.log.Warn("Rejected credential reference", zap.Error(err))
			return invalid(ReasonInvalidCredential)
		}
		if ticketKey != "" && ticketKey != payload.TicketID {
			return invalid(ReasonInvalidCredential)
		}
		ticketKey = payload.TicketID
	}

	ticketID, err := uuid.Parse(ticketKey)
	if err != nil {
		return invalid(ReasonUnknownTicket)
	}

	ticket, err := s.repo.Ticket.FindByID(ctx, ticketID)
	if err != nil {
		s.log.Error("Failed to load ticket", zap.Error(err), zap.String("ticket_id", ticketKey))
		return invalid(ReasonUnavailable)
	}
	if ticket == nil {
		return invalid(ReasonUnknownTicket)
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil || eventID != ticket.EventID {
		return invalid(ReasonWrongEvent)
	}

	ev, err := s.repo.Event.FindByID(ctx, eventID)
	if errors.Is(err, entity.ErrEventNotFound) {
		return invalid(ReasonEventNotFound)
	}
	if err != nil {
		s.log.Error("Failed to load event", zap.Error(err), zap.String("event_id", req.EventID))
		return invalid(ReasonUnavailable)
	}

	if ev.Seats[ticket.SeatID] != entity.SeatStatusConfirmed {
		return invalid(ReasonSeatNotConfirmed)
	}

	return &response.TicketValidationResponse{
		Valid:    true,
		TicketID: ticket.ID.String(),
		EventID:  ticket.EventID.String(),
		Seat:     ticket.SeatID,
	}
}

func invalid(reason string) *response.TicketValidationResponse {
	return &response.TicketValidationResponse{Valid: false, Reason: reason}
}
