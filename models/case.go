package models

import (
	"time"

	"github.com/google/uuid"
)

// Case represents one subject under investigation. A case owns its
// documents, fact sets, and derived analyses; deleting the case
// cascades to all of them.
type Case struct {
	ID                  uuid.UUID  `json:"id"`
	AgentID             uuid.UUID  `json:"agent_id"`
	SubjectName         string     `json:"subject_name"`
	AttestationAccepted bool       `json:"attestation_accepted"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
}
