package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Provenance links a fact back to the document it came from.
type Provenance struct {
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Page       int       `json:"page,omitempty"`
}

// DateRange is an optional validity window attached to a fact. Either
// bound may be empty; values are YYYY-MM-DD or YYYY-MM strings as they
// appeared in the source.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// AddressFact is a candidate address extracted from one document.
type AddressFact struct {
	Raw       string     `json:"raw"`
	Current   *bool      `json:"current,omitempty"`
	Dates     *DateRange `json:"dates,omitempty"`
	Label     string     `json:"label,omitempty"` // e.g. "residence", "work", "mailing"
	OwnerName string     `json:"owner_name,omitempty"`
}

// PhoneFact is a candidate phone number extracted from one document.
type PhoneFact struct {
	Raw    string     `json:"raw"`
	Active *bool      `json:"active,omitempty"`
	Dates  *DateRange `json:"dates,omitempty"`
	Owner  string     `json:"owner,omitempty"`
}

// PersonFact is an associate, relative, or co-resident of the subject.
type PersonFact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"` // e.g. "mother", "associate"
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// VehicleFact is a vehicle tied to the subject or an associate.
type VehicleFact struct {
	Raw               string `json:"raw"`
	Plate             string `json:"plate,omitempty"`
	RegisteredAddress string `json:"registered_address,omitempty"`
	Current           *bool  `json:"current,omitempty"`
}

// EmploymentFact is a workplace record extracted from one document.
type EmploymentFact struct {
	Employer string     `json:"employer"`
	Address  string     `json:"address,omitempty"`
	Current  *bool      `json:"current,omitempty"`
	Dates    *DateRange `json:"dates,omitempty"`
}

// FactSet holds every structured fact the extractor produced for one
// document. Fact sets are immutable once stored; the evidence store is
// append-only.
type FactSet struct {
	ID          uuid.UUID        `json:"id"`
	CaseID      uuid.UUID        `json:"case_id"`
	DocumentID  uuid.UUID        `json:"document_id"`
	Source      Provenance       `json:"source"`
	Addresses   []AddressFact    `json:"addresses"`
	Phones      []PhoneFact      `json:"phones"`
	People      []PersonFact     `json:"people"`
	Vehicles    []VehicleFact    `json:"vehicles"`
	Employments []EmploymentFact `json:"employments"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Facts is the JSONB payload of a fact set row.
type Facts struct {
	Addresses   []AddressFact    `json:"addresses"`
	Phones      []PhoneFact      `json:"phones"`
	People      []PersonFact     `json:"people"`
	Vehicles    []VehicleFact    `json:"vehicles"`
	Employments []EmploymentFact `json:"employments"`
}

// Empty reports whether the payload carries no facts at all.
func (f Facts) Empty() bool {
	return len(f.Addresses) == 0 && len(f.Phones) == 0 && len(f.People) == 0 &&
		len(f.Vehicles) == 0 && len(f.Employments) == 0
}

// Value implements driver.Valuer for JSONB
func (f Facts) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner for JSONB
func (f *Facts) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, f)
}
