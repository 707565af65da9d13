package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AddressType tags a merged address with its most likely role.
type AddressType string

const (
	AddressTypeCurrentResidence AddressType = "current_residence"
	AddressTypeWork             AddressType = "work"
	AddressTypeFamily           AddressType = "family"
	AddressTypeHistorical       AddressType = "historical"
	AddressTypeUnknown          AddressType = "unknown"
)

// MergedAddress is one deduplicated address aggregated across fact
// sets, with a reproducible confidence score and the reasoning that
// produced it.
type MergedAddress struct {
	Canonical   string        `json:"canonical"`
	Normalized  string        `json:"normalized"`
	Sources     []Provenance  `json:"sources"`
	Probability int           `json:"probability"` // 0-100
	Type        AddressType   `json:"type"`
	Reasons     []string      `json:"reasons"`
	LastSeen    string        `json:"last_seen,omitempty"`
	Phones      []string      `json:"phones,omitempty"`
	Vehicles    []string      `json:"vehicles,omitempty"`
	People      []string      `json:"people,omitempty"`
}

// MergedVehicle is one deduplicated vehicle aggregated across fact sets.
type MergedVehicle struct {
	Canonical   string       `json:"canonical"`
	Plate       string       `json:"plate,omitempty"`
	Sources     []Provenance `json:"sources"`
	Probability int          `json:"probability"`
	Reasons     []string     `json:"reasons"`
}

// PatternKind enumerates the cross-document patterns the engine detects.
type PatternKind string

const (
	PatternCohabitation   PatternKind = "cohabitation"
	PatternMovement       PatternKind = "movement"
	PatternContactCluster PatternKind = "contact_cluster"
)

// Pattern is a behavior signal detected across fact sets. Evidence
// always carries the literal fact references that produced it, with
// street numbers and phone digits masked.
type Pattern struct {
	Kind       PatternKind `json:"kind"`
	Confidence int         `json:"confidence"` // 0-100
	Summary    string      `json:"summary"`
	Evidence   []string    `json:"evidence"`
}

// Question is a prompt for a specific missing datum, derived from a
// concrete gap in the evidence rather than free-form generation.
type Question struct {
	Text    string `json:"text"`
	Subject string `json:"subject"` // masked address the gap concerns
}

// RankedResult is the full output of one cross-reference run. A new
// run supersedes the previous result; results are never merged.
type RankedResult struct {
	Addresses []MergedAddress `json:"addresses"`
	Vehicles  []MergedVehicle `json:"vehicles"`
	Patterns  []Pattern       `json:"patterns"`
	Questions []Question      `json:"questions"`
}

// Value implements driver.Valuer for JSONB
func (r RankedResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB
func (r *RankedResult) Scan(value interface{}) error {
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

	return json.Unmarshal(bytes, r)
}

// Analysis is a persisted cross-reference run for a case.
type Analysis struct {
	ID           uuid.UUID    `json:"id"`
	CaseID       uuid.UUID    `json:"case_id"`
	Result       RankedResult `json:"result"`
	FactSetCount int          `json:"fact_set_count"`
	CreatedAt    time.Time    `json:"created_at"`
}
