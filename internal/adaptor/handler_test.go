package adaptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"event-ticket/internal/dto/request"
	"event-ticket/internal/dto/response"
	"event-ticket/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleServiceError_StatusMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{
			name:    "validation",
			err:     &usecase.ReasonError{Kind: usecase.ErrValidation, Reason: "seats must be contiguous"},
			code:    http.StatusBadRequest,
			message: "seats must be contiguous",
		},
		{
			name:    "not found",
			err:     &usecase.ReasonError{Kind: usecase.ErrNotFound, Reason: "event not found"},
			code:    http.StatusNotFound,
			message: "event not found",
		},
		{
			name:    "conflict",
			err:     fmt.Errorf("reserve: %w", &usecase.ReasonError{Kind: usecase.ErrConflict, Reason: "seat A1 not available"}),
			code:    http.StatusConflict,
			message: "seat A1 not available",
		},
		{
			name:    "transient",
			err:     fmt.Errorf("%w: connection refused", usecase.ErrTransient),
			code:    http.StatusServiceUnavailable,
			message: "Service temporarily unavailable, please retry",
		},
		{
			name:    "unknown",
			err:     errors.New("boom"),
			code:    http.StatusInternalServerError,
			message: "Internal server error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(rec, zap.NewNop(), tc.err, "test")

			assert.Equal(t, tc.code, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Status)
			assert.Equal(t, tc.message, env.Message)
		})
	}
}

func TestHandleServiceError_ConflictCarriesSeats(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &usecase.ReasonError{Kind: usecase.ErrConflict, Reason: "seat A2 not available", Seats: []string{"A2"}}

	handleServiceError(rec, zap.NewNop(), err, "test")

	env := decodeEnvelope(t, rec)
	assert.Equal(t, "seat A2 not available", env.Errors["reason"])
	assert.Equal(t, []any{"A2"}, env.Errors["seats"])
}

func reservationRouter(svc *fakeReservationService) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/events/{id}/reservations", NewReservationHandler(svc, zap.NewNop()).CreateReservation)
	return r
}

func TestReservationHandler_Created(t *testing.T) {
	svc := &fakeReservationService{res: &response.ReservationResponse{
		EventID:       "ev1",
		ReservationID: "r1",
		ReservedSeats: []string{"A1", "A2"},
		ExpiresAt:     "2025-01-01T12:10:00Z",
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/events/ev1/reservations",
		strings.NewReader(`{"userId":"u1","seats":["A1","A2"]}`))
	rec := httptest.NewRecorder()
	reservationRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ev1", svc.got.EventID)
	assert.Equal(t, "u1", svc.got.UserID)
	assert.Equal(t, []string{"A1", "A2"}, svc.got.Seats)

	var got response.ReservationResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.Equal(t, "r1", got.ReservationID)
}

func TestReservationHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &usecase.ReasonError{Kind: usecase.ErrValidation, Reason: "too many seats"}, http.StatusBadRequest},
		{"conflict", &usecase.ReasonError{Kind: usecase.ErrConflict, Reason: "seat A1 not available"}, http.StatusConflict},
		{"not found", &usecase.ReasonError{Kind: usecase.ErrNotFound, Reason: "event not found"}, http.StatusNotFound},
		{"transient", fmt.Errorf("%w: lock timeout", usecase.ErrTransient), http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeReservationService{err: tc.err}
			req := httptest.NewRequest(http.MethodPost, "/api/events/ev1/reservations",
				strings.NewReader(`{"userId":"u1","seats":["A1"]}`))
			rec := httptest.NewRecorder()

			reservationRouter(svc).ServeHTTP(rec, req)

			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestReservationHandler_BadBody(t *testing.T) {
	svc := &fakeReservationService{}
	req := httptest.NewRequest(http.MethodPost, "/api/events/ev1/reservations", strings.NewReader(`{`))
	rec := httptest.NewRecorder()

	reservationRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.got)
}

func TestTicketHandler_AlwaysOK(t *testing.T) {
	t.Run("verdict from service", func(t *testing.T) {
		svc := &fakeTicketService{verdict: &response.TicketValidationResponse{Valid: false, Reason: "unknown ticket"}}
		h := NewTicketHandler(svc, zap.NewNop())

		body, _ := json.Marshal(request.VerifyTicketRequest{TicketID: "t1", EventID: "ev1"})
		rec := httptest.NewRecorder()
		h.VerifyTicket(rec, httptest.NewRequest(http.MethodPost, "/api/ticket-validations", strings.NewReader(string(body))))

		require.Equal(t, http.StatusOK, rec.Code)
		var got response.TicketValidationResponse
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
		assert.False(t, got.Valid)
		assert.Equal(t, "unknown ticket", got.Reason)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := &fakeTicketService{}
		h := NewTicketHandler(svc, zap.NewNop())

		rec := httptest.NewRecorder()
		h.VerifyTicket(rec, httptest.NewRequest(http.MethodPost, "/api/ticket-validations", strings.NewReader("not json")))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, svc.calls)
		var got response.TicketValidationResponse
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
		assert.False(t, got.Valid)
		assert.Equal(t, "malformed request", got.Reason)
	})
}

func TestEventHandler_GetEventNotFound(t *testing.T) {
	svc := &fakeEventService{err: &usecase.ReasonError{Kind: usecase.ErrNotFound, Reason: "event not found"}}
	r := chi.NewRouter()
	r.Get("/api/events/{id}", NewEventHandler(svc, zap.NewNop()).GetEvent)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/ev9", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ev9", svc.gotID)
}
