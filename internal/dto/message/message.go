// Package message holds the payloads exchanged over the broker.
package message

// Routing keys on the topic exchange.
const (
	TopicPaymentValidated = "payment.validated"
	TopicSeatReserved     = "seat.reserved"
	TopicSeatConfirmed    = "seat.confirmed"
	TopicTicketCreated    = "ticket.created"
)

// PaymentValidated is consumed from the payment service.
type PaymentValidated struct {
	OrderID       string   `json:"orderId" validate:"required"`
	EventID       string   `json:"eventId" validate:"required"`
	Seats         []string `json:"seats" validate:"required,min=1"`
	UserID        string   `json:"userId" validate:"required"`
	ReservationID string   `json:"reservationId,omitempty"`
}

type SeatReserved struct {
	EventID       string   `json:"eventId"`
	Seats         []string `json:"seats"`
	ReservationID string   `json:"reservationId"`
	ExpiresAt     string   `json:"expiresAt"`
}

type SeatConfirmed struct {
	EventID string   `json:"eventId"`
	Seats   []string `json:"seats"`
}

type TicketCreated struct {
	TicketID      string `json:"ticketId"`
	EventID       string `json:"eventId"`
	Seat          string `json:"seat"`
	CredentialRef string `json:"credentialRef"`
	OrderID       string `json:"orderId"`
}
