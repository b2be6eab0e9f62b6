package adaptor

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"event-ticket/internal/dto/message"
	"event-ticket/internal/dto/request"
	"event-ticket/internal/dto/response"
	"event-ticket/internal/usecase"

	"github.com/stretchr/testify/require"
)

type fakeEventService struct {
	detail *response.EventDetailResponse
	// cached, when set, is what GetEvent serves instead of detail.
	cached *response.EventDetailResponse
	err    error
	gotID  string
}

func (f *fakeEventService) CreateEvent(_ context.Context, req *request.CreateEventRequest) (*response.EventDetailResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

func (f *fakeEventService) GetEvent(_ context.Context, eventID string) (*response.EventDetailResponse, error) {
	f.gotID = eventID
	if f.err != nil {
		return nil, f.err
	}
	if f.cached != nil {
		return f.cached, nil
	}
	return f.detail, nil
}

func (f *fakeEventService) Snapshot(_ context.Context, eventID string) (*response.EventDetailResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

func (f *fakeEventService) ListEvents(_ context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.EventResponse], error) {
	return nil, f.err
}

type fakeReservationService struct {
	res *response.ReservationResponse
	err error
	got *request.CreateReservationRequest
}

func (f *fakeReservationService) CreateReservation(_ context.Context, req *request.CreateReservationRequest) (*response.ReservationResponse, error) {
	f.got = req
	return f.res, f.err
}

type fakeTicketService struct {
	verdict *response.TicketValidationResponse
	calls   int
}

func (f *fakeTicketService) VerifyTicket(_ context.Context, req *request.VerifyTicketRequest) *response.TicketValidationResponse {
	f.calls++
	return f.verdict
}

type fakeConfirmationService struct {
	result *usecase.ConfirmationResult
	err    error
	got    *message.PaymentValidated
}

func (f *fakeConfirmationService) HandlePaymentValidated(_ context.Context, msg *message.PaymentValidated) (*usecase.ConfirmationResult, error) {
	f.got = msg
	return f.result, f.err
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  map[string]any  `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
