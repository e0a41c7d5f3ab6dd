package domain

import (
	"time"

	"github.com/google/uuid"
)

// Resident is a registered citizen who may request artifacts.
type Resident struct {
	ID            uuid.UUID `json:"id"`
	FullName      string    `json:"full_name"`
	Address       string    `json:"address"`
	BirthDate     string    `json:"birth_date"`
	ContactNumber string    `json:"contact_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
