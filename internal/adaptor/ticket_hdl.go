package adaptor

import (
	"encoding/json"
	"net/http"

	"event-ticket/internal/dto/request"
	"event-ticket/internal/dto/response"
	"event-ticket/internal/usecase"
	"event-ticket/pkg/utils"

	"go.uber.org/zap"
)

type TicketHandler struct {
	service usecase.TicketService
	log     *zap.Logger
}

func NewTicketHandler(service usecase.TicketService, log *zap.Logger) *TicketHandler {
	return &TicketHandler{
		service: service,
		log:     log.With(zap.String("handler", "ticket")),
	}
}

// VerifyTicket handles POST /api/ticket-validations. It answers 200 with a
// verdict for any input, including a body that does not parse.
func (h *TicketHandler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("Unreadable ticket validation request", zap.Error(err))
		utils.ResponseSuccess(w, "success", &response.TicketValidationResponse{Valid: false, Reason: "malformed request"})
		return
	}

	verdict := h.service.VerifyTicket(r.Context(), &req)
	if !verdict.Valid {
		h.log.Info("Ticket rejected",
			zap.String("ticket_id", req.TicketID),
			zap.String("event_id", req.EventID),
			zap.String("reason", verdict.Reason),
		)
	}

	utils.ResponseSuccess(w, "success", verdict)
}
