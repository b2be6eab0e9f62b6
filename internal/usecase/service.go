package usecase

import (
	"event-ticket/internal/credential"
	"event-ticket/internal/data/repository"
	"event-ticket/internal/live"
	"event-ticket/pkg/cache"
	"event-ticket/pkg/clock"
	"event-ticket/pkg/utils"

	"go.uber.org/zap"
)

// Deps are the collaborators shared by the services.
type Deps struct {
	Publisher Publisher
	Feed      LiveFeed
	Cache     cache.SeatMapCache
	Issuer    credential.Issuer
	Opener    CredentialOpener
	Clock     clock.Clock
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = cache.Noop{}
	}
	if d.Feed == nil {
		d.Feed = noopFeed{}
	}
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	return d
}

type noopFeed struct{}

func (noopFeed) Publish(string, live.Message) {}

type Service struct {
	Event        EventService
	Reservation  ReservationService
	Confirmation ConfirmationService
	Ticket       TicketService
}

func NewService(repo *repository.Repository, deps Deps, config *utils.Config, log *zap.Logger) *Service {
	return &Service{
		Event:        NewEventService(repo, deps, log),
		Reservation:  NewReservationService(repo, deps, config.Reserve.HoldDuration, log),
		Confirmation: NewConfirmationService(repo, deps, log),
		Ticket:       NewTicketService(repo, deps.Opener, log),
	}
}
