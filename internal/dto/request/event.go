package request

type CreateEventRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Rows           int    `json:"rows" validate:"required,min=1,max=26"`
	Cols           int    `json:"cols" validate:"required,min=1,max=50"`
	BasePriceCents int64  `json:"basePriceCents" validate:"min=0"`
	UserID         string `json:"userId" validate:"required,max=128"`
}
