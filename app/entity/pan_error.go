package entity

import "time"

// PanError remembers the last decline seen for a card prefix (first six PAN digits).
type PanError struct {
	PAN      string
	Status   int32
	BankName *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
