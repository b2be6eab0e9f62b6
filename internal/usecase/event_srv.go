package usecase

import (
	"context"
	"errors"
	"fmt"

	"event-ticket/internal/data/entity"
	"event-ticket/internal/data/repository"
	"event-ticket/internal/dto/request"
	"event-ticket/internal/dto/response"
	"event-ticket/pkg/cache"
	"event-ticket/pkg/clock"
	"event-ticket/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventService interface {
	CreateEvent(ctx context.Context, req *request.CreateEventRequest) (*response.EventDetailResponse, error)
	GetEvent(ctx context.Context, eventID string) (*response.EventDetailResponse, error)
	Snapshot(ctx context.Context, eventID string) (*response.EventDetailResponse, error)
	ListEvents(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.EventResponse], error)
}

type eventService struct {
	repo  *repository.Repository
	cache cache.SeatMapCache
	clock clock.Clock
	log   *zap.Logger
}

func NewEventService(repo *repository.Repository, deps Deps, log *zap.Logger) EventService {
	deps = deps.withDefaults()
	return &eventService{
		repo:  repo,
		cache: deps.Cache,
		clock: deps.Clock,
		log:   log.With(zap.String("service", "event")),
	}
}

func (s *eventService) CreateEvent(ctx context.Context, req *request.CreateEventRequest) (*response.EventDetailResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create event validation failed", zap.Any("errors", errs))
		return nil, &ReasonError{Kind: ErrValidation, Reason: utils.FormatValidationErrors(errs), Fields: errs}
	}

	ev := entity.NewEvent(req.Name, req.Rows, req.Cols, req.BasePriceCents, req.UserID, s.clock.Now())
	if err := s.repo.Event.Create(ctx, ev); err != nil {
		return nil, transient(fmt.Errorf("create event: %w", err))
	}

	s.log.Info("Event created",
		zap.String("event_id", ev.ID.String()),
		zap.String("name", ev.Name),
		zap.Int("rows", ev.Rows),
		zap.Int("cols", ev.Cols),
	)

	return response.EventToDetailResponse(ev), nil
}

// GetEvent serves the seat map from the cache when possible. Holds that have
// expired but not been swept yet are shown as available.
func (s *eventService) GetEvent(ctx context.Context, eventID string) (*response.EventDetailResponse, error) {
	id, err := parseEventID(eventID)
	if err != nil {
		return nil, err
	}
	key := id.String()

	var cached response.EventDetailResponse
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("Seat map cache read failed", zap.Error(err), zap.String("event_id", key))
	}
	if hit {
		return &cached, nil
	}

	ev, detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, detail); err != nil {
		s.log.Warn("Seat map cache write failed", zap.Error(err), zap.String("event_id", key))
		return detail, nil
	}

	// A commit that landed between our read and the Set may already have
	// invalidated the key, so the entry we just wrote could be stale.
	current, err := s.repo.Event.SeatMapVersion(ctx, id)
	if err != nil || current != ev.Version {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.log.Warn("Seat map cache invalidation failed", zap.Error(err), zap.String("event_id", key))
		}
		s.log.Debug("Dropped seat map cached from an older version",
			zap.String("event_id", key),
			zap.Int64("read_version", ev.Version),
			zap.Int64("current_version", current),
		)
	}

	return detail, nil
}

// Snapshot reads the seat map straight from the store. Live streams send it
// as their first frame after subscribing, so it must not come from the cache.
func (s *eventService) Snapshot(ctx context.Context, eventID string) (*response.EventDetailResponse, error) {
	id, err := parseEventID(eventID)
	if err != nil {
		return nil, err
	}
	_, detail, err := s.load(ctx, id)
	return detail, err
}

func (s *eventService) load(ctx context.Context, id uuid.UUID) (*entity.Event, *response.EventDetailResponse, error) {
	ev, err := s.repo.Event.FindByID(ctx, id)
	if errors.Is(err, entity.ErrEventNotFound) {
		return nil, nil, notFoundError(fmt.Sprintf("event %s not found", id))
	}
	if err != nil {
		return nil, nil, transient(err)
	}

	// read-only projection; the stored row is left to the sweeper
	ev.ReleaseExpired(s.clock.Now())
	return ev, response.EventToDetailResponse(ev), nil
}

// parseEventID treats an id that is not a UUID as an event that does not exist.
func parseEventID(eventID string) (uuid.UUID, error) {
	id, err := uuid.Parse(eventID)
	if err != nil {
		return uuid.Nil, notFoundError(fmt.Sprintf("event %s not found", eventID))
	}
	return id, nil
}

func (s *eventService) ListEvents(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.EventResponse], error) {
	limit := req.Limit()
	offset := req.Offset()

	events, err := s.repo.Event.List(ctx, limit, offset)
	if err != nil {
		return nil, transient(err)
	}

	total, err := s.repo.Event.Count(ctx)
	if err != nil {
		return nil, transient(err)
	}

	items := make([]response.EventResponse, 0, len(events))
	for _, ev := range events {
		items = append(items, response.EventToResponse(ev))
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	return response.NewPaginatedResponse(items, page, limit, total), nil
}
