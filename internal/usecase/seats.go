package usecase

import (
	"sort"

	"event-ticket/internal/data/entity"
)

const maxSeatsPerReservation = 8

// normalizeSeats runs the shape checks of a reservation request and returns
// the seat ids ordered by column. Each rule fails with its own reason.
func normalizeSeats(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, validationError("at least one seat is required")
	}
	if len(raw) > maxSeatsPerReservation {
		return nil, validationError("maximum 8 seats per reservation")
	}

	seats := make([]entity.Seat, 0, len(raw))
	for _, id := range raw {
		seat, err := entity.ParseSeat(id)
		if err != nil {
			return nil, validationError(err.Error(), id)
		}
		seats = append(seats, seat)
	}

	for _, seat := range seats[1:] {
		if seat.Row != seats[0].Row {
			return nil, validationError("seats must be in the same row")
		}
	}

	sort.Slice(seats, func(i, j int) bool { return seats[i].Column < seats[j].Column })
	for i := 1; i < len(seats); i++ {
		if seats[i].Column == seats[i-1].Column {
			return nil, validationError("duplicate seats in request", seats[i].String())
		}
	}
	for i := 1; i < len(seats); i++ {
		if seats[i].Column-seats[i-1].Column != 1 {
			return nil, validationError("seats must be contiguous")
		}
	}

	ids := make([]string, len(seats))
	for i, seat := range seats {
		ids[i] = seat.String()
	}
	return ids, nil
}
