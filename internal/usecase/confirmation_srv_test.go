package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"event-ticket/internal/data/entity"
	"event-ticket/internal/dto/message"
	"event-ticket/internal/dto/request"
	"event-ticket/internal/live"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func confirm(f *fixture, msg *message.PaymentValidated) (*ConfirmationResult, error) {
	svc := NewConfirmationService(f.repo, f.deps, zap.NewNop())
	return svc.HandlePaymentValidated(context.Background(), msg)
}

func TestScenario_ReserveConfirmVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewService(f.repo, f.deps, testConfig(), zap.NewNop())

	created, err := svc.Event.CreateEvent(ctx, &request.CreateEventRequest{
		Name: "Gig", Rows: 2, Cols: 2, BasePriceCents: 1000, UserID: "organizer",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]entity.SeatStatus{
		"A1": entity.SeatStatusAvailable,
		"A2": entity.SeatStatusAvailable,
		"B1": entity.SeatStatusAvailable,
		"B2": entity.SeatStatusAvailable,
	}, created.Seats)

	_, err = svc.Reservation.CreateReservation(ctx, &request.CreateReservationRequest{
		EventID: created.ID, UserID: "U", Seats: []string{"A1", "A2"},
	})
	require.NoError(t, err)

	msg := &message.PaymentValidated{
		OrderID: "order-1",
		EventID: created.ID,
		Seats:   []string{"A1", "A2"},
		UserID:  "U",
	}
	result, err := svc.Confirmation.HandlePaymentValidated(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, result.Confirmed)
	require.Len(t, result.Tickets, 2)
	assert.Equal(t, 2, f.store.ticketCount())
	assert.Equal(t, 2, f.publisher.count(message.TopicTicketCreated))
	assert.Equal(t, 1, f.publisher.count(message.TopicSeatConfirmed))

	stored := f.store.get(uuid.MustParse(created.ID))
	assert.Equal(t, entity.SeatStatusConfirmed, stored.Seats["A1"])
	assert.Equal(t, entity.SeatStatusConfirmed, stored.Seats["A2"])
	assert.Empty(t, stored.Holders)
	require.NoError(t, stored.CheckInvariants())

	// redelivery changes nothing
	again, err := svc.Confirmation.HandlePaymentValidated(ctx, msg)
	require.NoError(t, err)
	assert.Empty(t, again.Confirmed)
	assert.Equal(t, 2, f.store.ticketCount())
	assert.Equal(t, 2, f.publisher.count(message.TopicTicketCreated))
	assert.Equal(t, 1, f.publisher.count(message.TopicSeatConfirmed))

	var a1 *entity.Ticket
	for _, tk := range result.Tickets {
		if tk.SeatID == "A1" {
			a1 = tk
		}
	}
	require.NotNil(t, a1)
	assert.Equal(t, "order-1", a1.OrderID)
	assert.Equal(t, "U", a1.OwnerUserID)

	verdict := svc.Ticket.VerifyTicket(ctx, &request.VerifyTicketRequest{TicketID: a1.ID.String(), EventID: created.ID})
	assert.True(t, verdict.Valid)
	assert.Equal(t, "A1", verdict.Seat)

	unknown := svc.Ticket.VerifyTicket(ctx, &request.VerifyTicketRequest{TicketID: uuid.NewString(), EventID: created.ID})
	assert.False(t, unknown.Valid)
	assert.Equal(t, "unknown ticket", unknown.Reason)
}

func TestHandlePaymentValidated_PublishesTicketPayload(t *testing.T) {
	f := newFixture(t)
	ev := f.event(1, 1)
	_, err := reserve(f, ev.ID, "U", "A1")
	require.NoError(t, err)

	result, err := confirm(f, &message.PaymentValidated{OrderID: "o1", EventID: ev.ID.String(), Seats: []string{"a1"}, UserID: "U"})
	require.NoError(t, err)
	require.Len(t, result.Tickets, 1)

	created := f.publisher.last(message.TopicTicketCreated).(*message.TicketCreated)
	assert.Equal(t, result.Tickets[0].ID.String(), created.TicketID)
	assert.Equal(t, "A1", created.Seat)
	assert.Equal(t, "o1", created.OrderID)
	assert.Equal(t, result.Tickets[0].CredentialRef, created.CredentialRef)

	payload, err := f.issuer.Open(created.CredentialRef)
	require.NoError(t, err)
	assert.Equal(t, created.TicketID, payload.TicketID)
	assert.Equal(t, ev.ID.String(), payload.EventID)
	assert.Equal(t, "A1", payload.Seat)
}

func TestHandlePaymentValidated_SkipsNonMatchingSeats(t *testing.T) {
	f := newFixture(t)
	ev := f.event(1, 4)
	_, err := reserve(f, ev.ID, "U", "A1", "A2")
	require.NoError(t, err)
	_, err = reserve(f, ev.ID, "V", "A3")
	require.NoError(t, err)

	result, err := confirm(f, &message.PaymentValidated{
		OrderID: "o1", EventID: ev.ID.String(), Seats: []string{"A1", "A3", "A4", "??"}, UserID: "U",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A1"}, result.Confirmed)
	reasons := map[string]string{}
	for _, s := range result.Skipped {
		reasons[s.Seat] = s.Reason
	}
	assert.Equal(t, map[string]string{
		"??": "invalid seat format",
		"A3": entity.SkipHolderMismatch,
		"A4": entity.SkipNotReserved,
	}, reasons)

	stored := f.store.get(ev.ID)
	assert.Equal(t, entity.SeatStatusReserved, stored.Seats["A2"])
	assert.Equal(t, "V", stored.Holders["A3"])
}

func TestHandlePaymentValidated_ReservationIDAndExpiry(t *testing.T) {
	f := newFixture(t)
	ev := f.event(1, 2)
	_, err := reserve(f, ev.ID, "U", "A1")
	require.NoError(t, err)
	rid := f.store.get(ev.ID).ReservationIDs["A1"]

	result, err := confirm(f, &message.PaymentValidated{
		OrderID: "o1", EventID: ev.ID.String(), Seats: []string{"A1"}, UserID: "U", ReservationID: "other",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Confirmed)

	f.clock.Advance(hold)
	result, err = confirm(f, &message.PaymentValidated{
		OrderID: "o1", EventID: ev.ID.String(), Seats: []string{"A1"}, UserID: "U", ReservationID: rid,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Confirmed)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, entity.SkipHoldExpired, result.Skipped[0].Reason)
	assert.Equal(t, 0, f.store.ticketCount())
}

func TestHandlePaymentValidated_UnknownEventIsDiscarded(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		result, err := confirm(f, &message.PaymentValidated{OrderID: "o1", EventID: id, Seats: []string{"A1"}, UserID: "U"})
		require.NoError(t, err)
		assert.Empty(t, result.Confirmed)
	}
	assert.Equal(t, 0, f.publisher.count(message.TopicSeatConfirmed))
}

func TestHandlePaymentValidated_InvalidShape(t *testing.T) {
	f := newFixture(t)

	_, err := confirm(f, &message.PaymentValidated{OrderID: "o1", EventID: uuid.NewString(), UserID: "U"})

	assert.ErrorIs(t, err, ErrValidation)
}

func TestHandlePaymentValidated_FailureRollsBack(t *testing.T) {
	cases := []struct {
		name     string
		sabotage func(f *fixture)
	}{
		{name: "ticket insert", sabotage: func(f *fixture) { f.store.ticketErr = errors.New("insert failed") }},
		{name: "ticket.created publish", sabotage: func(f *fixture) {
			f.publisher.fail(message.TopicTicketCreated, errors.New("broker down"))
		}},
		{name: "seat.confirmed publish", sabotage: func(f *fixture) {
			f.publisher.fail(message.TopicSeatConfirmed, errors.New("broker down"))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ev := f.event(1, 2)
			_, err := reserve(f, ev.ID, "U", "A1", "A2")
			require.NoError(t, err)
			tc.sabotage(f)

			msg := &message.PaymentValidated{OrderID: "o1", EventID: ev.ID.String(), Seats: []string{"A1", "A2"}, UserID: "U"}
			_, err = confirm(f, msg)

			assert.ErrorIs(t, err, ErrTransient)
			stored := f.store.get(ev.ID)
			assert.Equal(t, entity.SeatStatusReserved, stored.Seats["A1"])
			assert.Equal(t, entity.SeatStatusReserved, stored.Seats["A2"])
			assert.Equal(t, 0, f.store.ticketCount())
		})
	}
}

func TestHandlePaymentValidated_RedeliveryAfterFailure(t *testing.T) {
	f := newFixture(t)
	ev := f.event(1, 1)
	sub := f.hub.Subscribe(ev.ID.String())
	defer f.hub.Unsubscribe(sub)
	_, err := reserve(f, ev.ID, "U", "A1")
	require.NoError(t, err)
	<-sub.C

	msg := &message.PaymentValidated{OrderID: "o1", EventID: ev.ID.String(), Seats: []string{"A1"}, UserID: "U"}
	f.publisher.fail(message.TopicSeatConfirmed, errors.New("broker down"))
	_, err = confirm(f, msg)
	require.Error(t, err)

	f.publisher.fail(message.TopicSeatConfirmed, nil)
	f.clock.Advance(time.Second)
	result, err := confirm(f, msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"A1"}, result.Confirmed)
	assert.Equal(t, 1, f.store.ticketCount())

	delta := <-sub.C
	assert.Equal(t, live.TypeConfirmed, delta.Type)
	assert.Equal(t, []string{"A1"}, delta.Seats)
}
