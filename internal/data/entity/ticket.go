package entity

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is the durable proof of allocation for one confirmed seat. Rows are
// inserted once and never updated.
type Ticket struct {
	ID            uuid.UUID `db:"id"`
	EventID       uuid.UUID `db:"event_id"`
	SeatID        string    `db:"seat_id"`
	OwnerUserID   string    `db:"owner_user_id"`
	OrderID       string    `db:"order_id"`
	CredentialRef string    `db:"credential_ref"`
	IssuedAt      time.Time `db:"issued_at"`
}
