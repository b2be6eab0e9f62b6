package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"event-ticket/internal/data/entity"
	"event-ticket/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Event, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Event, error)
	Count(ctx context.Context) (int64, error)

	// Seat map aggregate
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Event, error)
	SaveSeatMap(ctx context.Context, event *entity.Event) error
	SeatMapVersion(ctx context.Context, id uuid.UUID) (int64, error)
	ListIDsWithActiveHolds(ctx context.Context) ([]uuid.UUID, error)
}

type eventRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewEventRepository(db database.PgxIface, log *zap.Logger) EventRepository {
	return &eventRepository{
		db:  db,
		log: log.With(zap.String("repository", "event")),
	}
}

const eventColumns = `id, name, rows, cols, base_price_cents, status, creator_user_id,
		seats, reservation_holder, reservation_expires, reservation_ids, version, created_at, updated_at`

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	maps, err := encodeSeatMaps(event)
	if err != nil {
		return fmt.Errorf("encode seat map for event %s: %w", event.ID, err)
	}

	_, err = conn(ctx, r.db).Exec(ctx, query,
		event.ID,
		event.Name,
		event.Rows,
		event.Cols,
		event.BasePriceCents,
		event.Status,
		event.CreatorUserID,
		maps.seats,
		maps.holders,
		maps.expires,
		maps.reservationIDs,
		event.Version,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create event",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
		)
		return fmt.Errorf("create event %s: %w", event.ID, err)
	}

	return nil
}

func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindByIDForUpdate loads the event and locks its row until the surrounding
// transaction ends. It must be called with a ctx obtained from WithTx.
func (r *eventRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	if txFromContext(ctx) == nil {
		return nil, errors.New("find event for update: no transaction in context")
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, query, id)
}

func (r *eventRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*entity.Event, error) {
	event, err := scanEvent(conn(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		r.log.Error("Failed to find event by ID",
			zap.Error(err),
			zap.String("event_id", id.String()),
		)
		return nil, fmt.Errorf("find event by ID %s: %w", id, err)
	}
	return event, nil
}

func (r *eventRepository) List(ctx context.Context, limit, offset int) ([]*entity.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to list events", zap.Error(err))
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*entity.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			r.log.Error("Failed to scan event", zap.Error(err))
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

func (r *eventRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count events", zap.Error(err))
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// SaveSeatMap writes the seat statuses and the three reservation maps and
// bumps the version. event.Version holds the stored version afterwards.
func (r *eventRepository) SaveSeatMap(ctx context.Context, event *entity.Event) error {
	query := `
		UPDATE events
		SET seats = $2, reservation_holder = $3, reservation_expires = $4, reservation_ids = $5,
			updated_at = $6, version = version + 1
		WHERE id = $1
		RETURNING version
	`

	maps, err := encodeSeatMaps(event)
	if err != nil {
		return fmt.Errorf("encode seat map for event %s: %w", event.ID, err)
	}

	err = conn(ctx, r.db).QueryRow(ctx, query,
		event.ID,
		maps.seats,
		maps.holders,
		maps.expires,
		maps.reservationIDs,
		event.UpdatedAt,
	).Scan(&event.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.ErrEventNotFound
	}
	if err != nil {
		r.log.Error("Failed to save seat map",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
		)
		return fmt.Errorf("save seat map for event %s: %w", event.ID, err)
	}

	return nil
}

// SeatMapVersion returns the committed seat map version of an event.
func (r *eventRepository) SeatMapVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	var version int64
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT version FROM events WHERE id = $1`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, entity.ErrEventNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read seat map version of event %s: %w", id, err)
	}
	return version, nil
}

func (r *eventRepository) ListIDsWithActiveHolds(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM events WHERE reservation_expires <> '{}'::jsonb ORDER BY id`

	rows, err := conn(ctx, r.db).Query(ctx, query)
	if err != nil {
		r.log.Error("Failed to list events with active holds", zap.Error(err))
		return nil, fmt.Errorf("list events with active holds: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event ids: %w", err)
	}

	return ids, nil
}

func scanEvent(row pgx.Row) (*entity.Event, error) {
	var (
		event                                   entity.Event
		seats, holders, expires, reservationIDs []byte
	)
	err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Rows,
		&event.Cols,
		&event.BasePriceCents,
		&event.Status,
		&event.CreatorUserID,
		&seats,
		&holders,
		&expires,
		&reservationIDs,
		&event.Version,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSONMap(seats, &event.Seats); err != nil {
		return nil, fmt.Errorf("decode seats: %w", err)
	}
	if err := decodeJSONMap(holders, &event.Holders); err != nil {
		return nil, fmt.Errorf("decode reservation_holder: %w", err)
	}
	if err := decodeJSONMap(reservationIDs, &event.ReservationIDs); err != nil {
		return nil, fmt.Errorf("decode reservation_ids: %w", err)
	}

	// expiries are stored as RFC 3339 strings, which time.Time decodes directly
	if err := decodeJSONMap(expires, &event.Expires); err != nil {
		return nil, fmt.Errorf("decode reservation_expires: %w", err)
	}
	for id, exp := range event.Expires {
		event.Expires[id] = exp.UTC()
	}

	return &event, nil
}

func decodeJSONMap[V any](raw []byte, dst *map[string]V) error {
	*dst = map[string]V{}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

type encodedSeatMaps struct {
	seats, holders, expires, reservationIDs []byte
}

func encodeSeatMaps(event *entity.Event) (encodedSeatMaps, error) {
	var out encodedSeatMaps
	var err error

	if out.seats, err = marshalMap(event.Seats); err != nil {
		return out, err
	}
	if out.holders, err = marshalMap(event.Holders); err != nil {
		return out, err
	}
	expires := make(map[string]string, len(event.Expires))
	for id, exp := range event.Expires {
		expires[id] = exp.UTC().Format(time.RFC3339Nano)
	}
	if out.expires, err = marshalMap(expires); err != nil {
		return out, err
	}
	if out.reservationIDs, err = marshalMap(event.ReservationIDs); err != nil {
		return out, err
	}
	return out, nil
}

func marshalMap[V any](m map[string]V) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
