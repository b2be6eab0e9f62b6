package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-ticket/internal/data/entity"
	"event-ticket/internal/data/repository"
	"event-ticket/internal/dto/message"
	"event-ticket/internal/dto/request"
	"event-ticket/internal/dto/response"
	"event-ticket/internal/live"
	"event-ticket/pkg/cache"
	"event-ticket/pkg/clock"
	"event-ticket/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultHold = 600 * time.Second

type ReservationService interface {
	CreateReservation(ctx context.Context, req *request.CreateReservationRequest) (*response.ReservationResponse, error)
}

type reservationService struct {
	repo      *repository.Repository
	publisher Publisher
	feed      LiveFeed
	cache     cache.SeatMapCache
	clock     clock.Clock
	hold      time.Duration
	log       *zap.Logger
}

func NewReservationService(repo *repository.Repository, deps Deps, hold time.Duration, log *zap.Logger) ReservationService {
	deps = deps.withDefaults()
	if hold <= 0 {
		hold = defaultHold
	}
	return &reservationService{
		repo:      repo,
		publisher: deps.Publisher,
		feed:      deps.Feed,
		cache:     deps.Cache,
		clock:     deps.Clock,
		hold:      hold,
		log:       log.With(zap.String("service", "reservation")),
	}
}

// CreateReservation holds the requested seats for hold duration. Either all
// seats are held or nothing changes. Seats the same user already holds are
// moved to the new reservation and their expiry is refreshed.
func (s *reservationService) CreateReservation(ctx context.Context, req *request.CreateReservationRequest) (*response.ReservationResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create reservation validation failed", zap.Any("errors", errs))
		return nil, &ReasonError{Kind: ErrValidation, Reason: utils.FormatValidationErrors(errs), Fields: errs}
	}

	seatIDs, err := normalizeSeats(req.Seats)
	if err != nil {
		s.log.Info("Reservation rejected",
			zap.String("event_id", req.EventID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	eventID, err := parseEventID(req.EventID)
	if err != nil {
		return nil, err
	}

	eventKey := eventID.String()

	now := s.clock.Now()
	reservationID := uuid.NewString()
	expiresAt := now.Add(s.hold)
	var released []string

	err = s.repo.Tx.WithTx(ctx, func(ctx context.Context) error {
		ev, err := s.repo.Event.FindByIDForUpdate(ctx, eventID)
		if errors.Is(err, entity.ErrEventNotFound) {
			return notFoundError(fmt.Sprintf("event %s not found", eventKey))
		}
		if err != nil {
			return transient(err)
		}

		for _, id := range seatIDs {
			if !ev.HasSeat(id) {
				return validationError("unknown seat "+id, id)
			}
		}

		// expired holds on the target seats are reclaimed here rather than
		// waiting for the sweeper
		released = ev.ReleaseExpiredSeats(seatIDs, now)

		var taken []string
		for _, id := range seatIDs {
			switch ev.Seats[id] {
			case entity.SeatStatusAvailable:
			case entity.SeatStatusReserved:
				if ev.Holders[id] != req.UserID {
					taken = append(taken, id)
				}
			default:
				taken = append(taken, id)
			}
		}
		if len(taken) > 0 {
			return conflictError(fmt.Sprintf("seat %s not available", taken[0]), taken...)
		}

		if err := ev.ApplyReservation(seatIDs, req.UserID, reservationID, expiresAt); err != nil {
			var seatErr *entity.SeatError
			if errors.As(err, &seatErr) {
				return conflictError(fmt.Sprintf("seat %s not available", seatErr.Seat), seatErr.Seat)
			}
			return err
		}

		ev.UpdatedAt = now
		if err := s.repo.Event.SaveSeatMap(ctx, ev); err != nil {
			return transient(err)
		}
		return nil
	})
	if err != nil {
		err = transient(err)
		if errors.Is(err, ErrTransient) {
			s.log.Error("Create reservation failed",
				zap.Error(err),
				zap.String("event_id", eventKey),
			)
		}
		return nil, err
	}

	s.log.Info("Seats reserved",
		zap.String("event_id", eventKey),
		zap.String("reservation_id", reservationID),
		zap.String("user_id", req.UserID),
		zap.Strings("seats", seatIDs),
		zap.Time("expires_at", expiresAt),
	)

	expires := expiresAt.UTC().Format(time.RFC3339)
	s.afterCommit(ctx, eventKey, released, &message.SeatReserved{
		EventID:       eventKey,
		Seats:         seatIDs,
		ReservationID: reservationID,
		ExpiresAt:     expires,
	})

	return &response.ReservationResponse{
		EventID:       eventKey,
		ReservationID: reservationID,
		ReservedSeats: seatIDs,
		ExpiresAt:     expires,
	}, nil
}

// afterCommit notifies listeners. Failures here are logged and never undo
// the reservation.
func (s *reservationService) afterCommit(ctx context.Context, eventID string, released []string, msg *message.SeatReserved) {
	if err := s.publisher.Publish(ctx, message.TopicSeatReserved, msg); err != nil {
		s.log.Error("Failed to publish seat.reserved",
			zap.Error(err),
			zap.String("event_id", eventID),
			zap.String("reservation_id", msg.ReservationID),
		)
	}

	// drop the cached snapshot before subscribers see the delta
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		s.log.Warn("Failed to invalidate seat map cache", zap.Error(err), zap.String("event_id", eventID))
	}

	if len(released) > 0 {
		s.feed.Publish(eventID, live.Message{Type: live.TypeReleased, Seats: released})
	}
	s.feed.Publish(eventID, live.Message{
		Type:          live.TypeReserved,
		Seats:         msg.Seats,
		ReservationID: msg.ReservationID,
	})
}
