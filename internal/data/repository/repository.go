package repository

import (
	"event-ticket/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Tx     Transactor
	Event  EventRepository
	Ticket TicketRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Tx:     NewTransactor(db),
		Event:  NewEventRepository(db, log),
		Ticket: NewTicketRepository(db, log),
	}
}
