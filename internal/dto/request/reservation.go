package request

// CreateReservationRequest is bound from the body, with EventID taken from
// the route. The seat count limit is enforced by the service so it can
// report its own reason.
type CreateReservationRequest struct {
	EventID string   `json:"eventId" validate:"required"`
	UserID  string   `json:"userId" validate:"required,max=128"`
	Seats   []string `json:"seats" validate:"required,min=1"`
}
