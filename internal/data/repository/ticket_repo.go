package repository

import (
	"context"
	"errors"
	"fmt"

	"event-ticket/internal/data/entity"
	"event-ticket/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *entity.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Ticket, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) ([]*entity.Ticket, error)
}

type ticketRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewTicketRepository(db database.PgxIface, log *zap.Logger) TicketRepository {
	return &ticketRepository{
		db:  db,
		log: log.With(zap.String("repository", "ticket")),
	}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *entity.Ticket) error {
	query := `
		INSERT INTO tickets (id, event_id, seat_id, owner_user_id, order_id, credential_ref, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := conn(ctx, r.db).Exec(ctx, query,
		ticket.ID,
		ticket.EventID,
		ticket.SeatID,
		ticket.OwnerUserID,
		ticket.OrderID,
		ticket.CredentialRef,
		ticket.IssuedAt,
	)
	if err != nil {
		r.log.Error("Failed to create ticket",
			zap.Error(err),
			zap.String("ticket_id", ticket.ID.String()),
			zap.String("event_id", ticket.EventID.String()),
			zap.String("seat", ticket.SeatID),
		)
		return fmt.Errorf("create ticket %s: %w", ticket.ID, err)
	}

	return nil
}

// FindByID returns nil, nil when the ticket does not exist.
func (r *ticketRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Ticket, error) {
	query := `
		SELECT id, event_id, seat_id, owner_user_id, order_id, credential_ref, issued_at
		FROM tickets
		WHERE id = $1
	`

	var ticket entity.Ticket
	err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.EventID,
		&ticket.SeatID,
		&ticket.OwnerUserID,
		&ticket.OrderID,
		&ticket.CredentialRef,
		&ticket.IssuedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find ticket by ID",
			zap.Error(err),
			zap.String("ticket_id", id.String()),
		)
		return nil, fmt.Errorf("find ticket by ID %s: %w", id, err)
	}

	return &ticket, nil
}

func (r *ticketRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]*entity.Ticket, error) {
	query := `
		SELECT id, event_id, seat_id, owner_user_id, order_id, credential_ref, issued_at
		FROM tickets
		WHERE event_id = $1
		ORDER BY seat_id
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, eventID)
	if err != nil {
		r.log.Error("Failed to find tickets by event",
			zap.Error(err),
			zap.String("event_id", eventID.String()),
		)
		return nil, fmt.Errorf("find tickets by event %s: %w", eventID, err)
	}
	defer rows.Close()

	var tickets []*entity.Ticket
	for rows.Next() {
		var ticket entity.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.EventID,
			&ticket.SeatID,
			&ticket.OwnerUserID,
			&ticket.OrderID,
			&ticket.CredentialRef,
			&ticket.IssuedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, &ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}

	return tickets, nil
}
