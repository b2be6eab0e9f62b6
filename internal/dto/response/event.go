package response

import (
	"time"

	"event-ticket/internal/data/entity"
)

type EventResponse struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Rows           int                `json:"rows"`
	Cols           int                `json:"cols"`
	BasePriceCents int64              `json:"basePriceCents"`
	Status         entity.EventStatus `json:"status"`
	CreatorUserID  string             `json:"creatorUserId"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

type EventDetailResponse struct {
	EventResponse
	Seats          map[string]entity.SeatStatus `json:"seats"`
	SeatPrices     map[string]int64             `json:"seatPrices"`
	AvailableSeats int                          `json:"availableSeats"`
}

func EventToResponse(ev *entity.Event) EventResponse {
	return EventResponse{
		ID:             ev.ID.String(),
		Name:           ev.Name,
		Rows:           ev.Rows,
		Cols:           ev.Cols,
		BasePriceCents: ev.BasePriceCents,
		Status:         ev.Status,
		CreatorUserID:  ev.CreatorUserID,
		CreatedAt:      ev.CreatedAt,
		UpdatedAt:      ev.UpdatedAt,
	}
}

func EventToDetailResponse(ev *entity.Event) *EventDetailResponse {
	seats := ev.SeatSnapshot()
	available := 0
	for _, status := range seats {
		if status == entity.SeatStatusAvailable {
			available++
		}
	}
	return &EventDetailResponse{
		EventResponse:  EventToResponse(ev),
		Seats:          seats,
		SeatPrices:     ev.SeatPrices(),
		AvailableSeats: available,
	}
}
