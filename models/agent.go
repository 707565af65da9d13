package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent represents a recovery agent account
type Agent struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasscodeHash string    `json:"-"` // Never serialize passcode hash
	Name         string    `json:"name"`
	AgencyName   *string   `json:"agency_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
