package entity

import (
	"fmt"
	"strconv"
	"strings"
)

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusReserved  SeatStatus = "reserved"
	SeatStatusConfirmed SeatStatus = "confirmed"
)

// MaxRows caps the grid at one row per letter A..Z.
const MaxRows = 26

// Seat is a parsed seat identifier such as "C12".
type Seat struct {
	Row    byte // 'A'..'Z'
	Column int
}

// ParseSeat accepts a row letter followed by digits. Input is trimmed and
// upper-cased, so " a01 " parses as A1.
func ParseSeat(raw string) (Seat, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) < 2 || s[0] < 'A' || s[0] > 'Z' {
		return Seat{}, fmt.Errorf("invalid seat format %s", raw)
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Seat{}, fmt.Errorf("invalid seat format %s", raw)
		}
	}
	col, err := strconv.Atoi(s[1:])
	if err != nil {
		return Seat{}, fmt.Errorf("invalid seat format %s", raw)
	}
	return Seat{Row: s[0], Column: col}, nil
}

func (s Seat) String() string {
	return string(s.Row) + strconv.Itoa(s.Column)
}

// RowNumber is the 1-based row index (A=1).
func (s Seat) RowNumber() int {
	return int(s.Row-'A') + 1
}

// SeatLabel builds the identifier for a 1-based row and column.
func SeatLabel(row, col int) string {
	return string(rune('A'+row-1)) + strconv.Itoa(col)
}
