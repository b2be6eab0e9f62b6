package request

// VerifyTicketRequest identifies a ticket either by id or by the credential
// reference printed on it.
type VerifyTicketRequest struct {
	TicketID      string `json:"ticketId"`
	EventID       string `json:"eventId"`
	CredentialRef string `json:"credentialRef,omitempty"`
}
