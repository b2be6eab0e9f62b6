package response

// TicketValidationResponse always carries a verdict. Reason is set only when
// Valid is false.
type TicketValidationResponse struct {
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	TicketID string `json:"ticketId,omitempty"`
	EventID  string `json:"eventId,omitempty"`
	Seat     string `json:"seat,omitempty"`
}
