package entity

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusPublished EventStatus = "PUBLISHED"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrUnknownSeat     = errors.New("unknown seat")
	ErrSeatUnavailable = errors.New("seat not available")
)

// SeatError names the seat that made a seat map mutation fail.
type SeatError struct {
	Seat string
	Err  error
}

func (e *SeatError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Seat)
}

func (e *SeatError) Unwrap() error {
	return e.Err
}

// Event owns the seat map of one event together with the three reservation
// maps. A seat appears in Holders, Expires and ReservationIDs exactly when its
// status is reserved. Callers must hold the event row lock while mutating.
type Event struct {
	Base
	Name           string                `db:"name"`
	Rows           int                   `db:"rows"`
	Cols           int                   `db:"cols"`
	BasePriceCents int64                 `db:"base_price_cents"`
	Status         EventStatus           `db:"status"`
	CreatorUserID  string                `db:"creator_user_id"`
	Seats          map[string]SeatStatus `db:"seats"`
	Holders        map[string]string     `db:"reservation_holder"`
	Expires        map[string]time.Time  `db:"reservation_expires"`
	ReservationIDs map[string]string     `db:"reservation_ids"`
	// Version increases with every saved seat map change.
	Version int64 `db:"version"`
}

// NewEvent builds a rows x cols grid with every seat available.
func NewEvent(name string, rows, cols int, basePriceCents int64, creatorUserID string, now time.Time) *Event {
	ev := &Event{
		Base: Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:           name,
		Rows:           rows,
		Cols:           cols,
		BasePriceCents: basePriceCents,
		Status:         EventStatusDraft,
		CreatorUserID:  creatorUserID,
		Seats:          make(map[string]SeatStatus, rows*cols),
	}
	for r := 1; r <= rows; r++ {
		for c := 1; c <= cols; c++ {
			ev.Seats[SeatLabel(r, c)] = SeatStatusAvailable
		}
	}
	ev.ensureMaps()
	return ev
}

func (e *Event) ensureMaps() {
	if e.Seats == nil {
		e.Seats = map[string]SeatStatus{}
	}
	if e.Holders == nil {
		e.Holders = map[string]string{}
	}
	if e.Expires == nil {
		e.Expires = map[string]time.Time{}
	}
	if e.ReservationIDs == nil {
		e.ReservationIDs = map[string]string{}
	}
}

// HasSeat reports whether seatID belongs to the grid.
func (e *Event) HasSeat(seatID string) bool {
	_, ok := e.Seats[seatID]
	return ok
}

// HoldExpired reports whether seatID is reserved with an expiry at or before now.
func (e *Event) HoldExpired(seatID string, now time.Time) bool {
	if e.Seats[seatID] != SeatStatusReserved {
		return false
	}
	exp, ok := e.Expires[seatID]
	return ok && !now.Before(exp)
}

// HasActiveHolds reports whether any seat is currently reserved.
func (e *Event) HasActiveHolds() bool {
	return len(e.Expires) > 0
}

// ApplyReservation marks every seat reserved for holderID or changes nothing.
// A seat already reserved by the same holder is taken over by the new
// reservation id and expiry.
func (e *Event) ApplyReservation(seatIDs []string, holderID, reservationID string, expiresAt time.Time) error {
	e.ensureMaps()
	for _, id := range seatIDs {
		status, ok := e.Seats[id]
		if !ok {
			return &SeatError{Seat: id, Err: ErrUnknownSeat}
		}
		switch status {
		case SeatStatusAvailable:
		case SeatStatusReserved:
			if e.Holders[id] != holderID {
				return &SeatError{Seat: id, Err: ErrSeatUnavailable}
			}
		default:
			return &SeatError{Seat: id, Err: ErrSeatUnavailable}
		}
	}

	for _, id := range seatIDs {
		e.Seats[id] = SeatStatusReserved
		e.Holders[id] = holderID
		e.Expires[id] = expiresAt.UTC()
		e.ReservationIDs[id] = reservationID
	}
	return nil
}

// SkippedSeat records why a seat was left out of a confirmation.
type SkippedSeat struct {
	Seat   string
	Reason string
}

const (
	SkipNotReserved         = "not reserved"
	SkipHolderMismatch      = "holder mismatch"
	SkipReservationMismatch = "reservation mismatch"
	SkipHoldExpired         = "hold expired"
)

// ApplyConfirmation confirms the seats that are still held by holderID, match
// reservationID when it is non-empty, and have not expired at now. Other seats
// are skipped rather than failed, so the confirmed slice may be empty.
func (e *Event) ApplyConfirmation(seatIDs []string, holderID, reservationID string, now time.Time) ([]string, []SkippedSeat) {
	e.ensureMaps()
	var confirmed []string
	var skipped []SkippedSeat
	for _, id := range seatIDs {
		reason := ""
		switch {
		case e.Seats[id] != SeatStatusReserved:
			reason = SkipNotReserved
		case e.Holders[id] != holderID:
			reason = SkipHolderMismatch
		case reservationID != "" && e.ReservationIDs[id] != reservationID:
			reason = SkipReservationMismatch
		case e.HoldExpired(id, now):
			reason = SkipHoldExpired
		}
		if reason != "" {
			skipped = append(skipped, SkippedSeat{Seat: id, Reason: reason})
			continue
		}

		e.clearHold(id)
		e.Seats[id] = SeatStatusConfirmed
		confirmed = append(confirmed, id)
	}
	return confirmed, skipped
}

// ReleaseExpired returns every expired hold to available and reports the
// released seats in sorted order.
func (e *Event) ReleaseExpired(now time.Time) []string {
	e.ensureMaps()
	var released []string
	for id := range e.Expires {
		if e.HoldExpired(id, now) {
			e.clearHold(id)
			e.Seats[id] = SeatStatusAvailable
			released = append(released, id)
		}
	}
	sort.Strings(released)
	return released
}

// ReleaseExpiredSeats is ReleaseExpired limited to seatIDs.
func (e *Event) ReleaseExpiredSeats(seatIDs []string, now time.Time) []string {
	e.ensureMaps()
	var released []string
	for _, id := range seatIDs {
		if e.HoldExpired(id, now) {
			e.clearHold(id)
			e.Seats[id] = SeatStatusAvailable
			released = append(released, id)
		}
	}
	return released
}

func (e *Event) clearHold(seatID string) {
	delete(e.Holders, seatID)
	delete(e.Expires, seatID)
	delete(e.ReservationIDs, seatID)
}

// CheckInvariants verifies that the reservation maps line up with seat statuses.
func (e *Event) CheckInvariants() error {
	for id, status := range e.Seats {
		switch status {
		case SeatStatusAvailable, SeatStatusReserved, SeatStatusConfirmed:
		default:
			return fmt.Errorf("seat %s has unknown status %q", id, status)
		}
		_, held := e.Holders[id]
		_, exp := e.Expires[id]
		_, rid := e.ReservationIDs[id]
		reserved := status == SeatStatusReserved
		if held != reserved || exp != reserved || rid != reserved {
			return fmt.Errorf("seat %s status %s disagrees with reservation maps", id, status)
		}
	}
	for _, m := range []int{len(e.Holders), len(e.Expires), len(e.ReservationIDs)} {
		if m != e.countStatus(SeatStatusReserved) {
			return errors.New("reservation maps reference seats outside the grid")
		}
	}
	return nil
}

func (e *Event) countStatus(status SeatStatus) int {
	n := 0
	for _, s := range e.Seats {
		if s == status {
			n++
		}
	}
	return n
}

// SeatSnapshot copies the seat status map.
func (e *Event) SeatSnapshot() map[string]SeatStatus {
	out := make(map[string]SeatStatus, len(e.Seats))
	for k, v := range e.Seats {
		out[k] = v
	}
	return out
}

// RowPrice discounts each row by ten percent: base * 0.9^(row-1), rounded.
func RowPrice(basePriceCents int64, row int) int64 {
	if row < 1 {
		row = 1
	}
	return int64(math.Round(float64(basePriceCents) * math.Pow(0.9, float64(row-1))))
}

// SeatPrices returns the price of every seat, empty when no base price is set.
func (e *Event) SeatPrices() map[string]int64 {
	prices := map[string]int64{}
	if e.BasePriceCents <= 0 {
		return prices
	}
	for r := 1; r <= e.Rows; r++ {
		price := RowPrice(e.BasePriceCents, r)
		for c := 1; c <= e.Cols; c++ {
			prices[SeatLabel(r, c)] = price
		}
	}
	return prices
}
