package response

type ReservationResponse struct {
	EventID       string   `json:"eventId"`
	ReservationID string   `json:"reservationId"`
	ReservedSeats []string `json:"reservedSeats"`
	ExpiresAt     string   `json:"expiresAt"`
}
