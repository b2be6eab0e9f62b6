package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-ticket/internal/credential"
	"event-ticket/internal/data/entity"
	"event-ticket/internal/data/repository"
	"event-ticket/internal/dto/message"
	"event-ticket/internal/live"
	"event-ticket/pkg/cache"
	"event-ticket/pkg/clock"
	"event-ticket/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfirmationResult describes what one payment message changed.
type ConfirmationResult struct {
	EventID   string
	Confirmed []string
	Skipped   []entity.SkippedSeat
	Tickets   []*entity.Ticket
}

type ConfirmationService interface {
	HandlePaymentValidated(ctx context.Context, msg *message.PaymentValidated) (*ConfirmationResult, error)
}

type confirmationService struct {
	repo      *repository.Repository
	publisher Publisher
	feed      LiveFeed
	cache     cache.SeatMapCache
	issuer    credential.Issuer
	clock     clock.Clock
	log       *zap.Logger
}

func NewConfirmationService(repo *repository.Repository, deps Deps, log *zap.Logger) ConfirmationService {
	deps = deps.withDefaults()
	return &confirmationService{
		repo:      repo,
		publisher: deps.Publisher,
		feed:      deps.Feed,
		cache:     deps.Cache,
		issuer:    deps.Issuer,
		clock:     deps.Clock,
		log:       log.With(zap.String("service", "confirmation")),
	}
}

// HandlePaymentValidated confirms the seats of msg that are still held by
// the payer and issues one ticket per confirmed seat. Seats that fail a
// confirmation rule are skipped, so redelivery of the same message confirms
// nothing new. A returned error means nothing was committed and the message
// should be delivered again; ErrValidation means it never will succeed.
func (s *confirmationService) HandlePaymentValidated(ctx context.Context, msg *message.PaymentValidated) (*ConfirmationResult, error) {
	if errs := utils.ValidateStruct(msg); len(errs) > 0 {
		return nil, &ReasonError{Kind: ErrValidation, Reason: utils.FormatValidationErrors(errs), Fields: errs}
	}

	log := s.log.With(
		zap.String("order_id", msg.OrderID),
		zap.String("event_id", msg.EventID),
		zap.String("user_id", msg.UserID),
	)

	eventID, err := uuid.Parse(msg.EventID)
	if err != nil {
		log.Warn("Discarding payment for unparsable event id")
		return &ConfirmationResult{EventID: msg.EventID}, nil
	}

	result := &ConfirmationResult{EventID: eventID.String()}
	seatIDs := make([]string, 0, len(msg.Seats))
	seen := make(map[string]bool, len(msg.Seats))
	for _, raw := range msg.Seats {
		seat, err := entity.ParseSeat(raw)
		if err != nil {
			result.Skipped = append(result.Skipped, entity.SkippedSeat{Seat: raw, Reason: "invalid seat format"})
			continue
		}
		if id := seat.String(); !seen[id] {
			seen[id] = true
			seatIDs = append(seatIDs, id)
		}
	}

	now := s.clock.Now()
	eventMissing := false

	err = s.repo.Tx.WithTx(ctx, func(ctx context.Context) error {
		result.Confirmed, result.Tickets = nil, nil

		ev, err := s.repo.Event.FindByIDForUpdate(ctx, eventID)
		if errors.Is(err, entity.ErrEventNotFound) {
			eventMissing = true
			return nil
		}
		if err != nil {
			return err
		}

		confirmed, skipped := ev.ApplyConfirmation(seatIDs, msg.UserID, msg.ReservationID, now)
		result.Skipped = append(result.Skipped, skipped...)
		if len(confirmed) == 0 {
			return nil
		}

		ev.UpdatedAt = now
		if err := s.repo.Event.SaveSeatMap(ctx, ev); err != nil {
			return err
		}

		for _, seat := range confirmed {
			ticket, err := s.issueTicket(ctx, ev.ID, seat, msg, now)
			if err != nil {
				return err
			}
			result.Tickets = append(result.Tickets, ticket)
		}

		// published inside the transaction: a failed publish rolls the
		// confirmation back and the message is redelivered
		if err := s.publisher.Publish(ctx, message.TopicSeatConfirmed, &message.SeatConfirmed{
			EventID: result.EventID,
			Seats:   confirmed,
		}); err != nil {
			return fmt.Errorf("publish seat.confirmed: %w", err)
		}

		result.Confirmed = confirmed
		return nil
	})
	if err != nil {
		log.Error("Payment confirmation failed, message will be redelivered", zap.Error(err))
		return nil, transient(err)
	}

	if eventMissing {
		log.Warn("Discarding payment for unknown event")
		return result, nil
	}

	for _, skip := range result.Skipped {
		// repeated "hold expired" skips usually mean clock skew
		log.Warn("Seat skipped during confirmation",
			zap.String("seat", skip.Seat),
			zap.String("reason", skip.Reason),
			zap.String("reservation_id", msg.ReservationID),
		)
	}

	if len(result.Confirmed) == 0 {
		log.Info("Payment confirmed no seats")
		return result, nil
	}

	log.Info("Seats confirmed",
		zap.Strings("seats", result.Confirmed),
		zap.Int("tickets", len(result.Tickets)),
	)

	if err := s.cache.Invalidate(ctx, result.EventID); err != nil {
		log.Warn("Failed to invalidate seat map cache", zap.Error(err))
	}
	s.feed.Publish(result.EventID, live.Message{Type: live.TypeConfirmed, Seats: result.Confirmed})

	return result, nil
}

func (s *confirmationService) issueTicket(ctx context.Context, eventID uuid.UUID, seat string, msg *message.PaymentValidated, now time.Time) (*entity.Ticket, error) {
	ticketID := uuid.New()

	ref, err := s.issuer.Issue(ctx, credential.Payload{
		TicketID: ticketID.String(),
		EventID:  eventID.String(),
		Seat:     seat,
	})
	if err != nil {
		return nil, fmt.Errorf("issue credential for seat %s: %w", seat, err)
	}

	ticket := &entity.Ticket{
		ID:            ticketID,
		EventID:       eventID,
		SeatID:        seat,
		OwnerUserID:   msg.UserID,
		OrderID:       msg.OrderID,
		CredentialRef: ref,
		IssuedAt:      now,
	}
	if err := s.repo.Ticket.Create(ctx, ticket); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, message.TopicTicketCreated, &message.TicketCreated{
		TicketID:      ticketID.String(),
		EventID:       eventID.String(),
		Seat:          seat,
		CredentialRef: ref,
		OrderID:       msg.OrderID,
	}); err != nil {
		return nil, fmt.Errorf("publish ticket.created: %w", err)
	}

	return ticket, nil
}
