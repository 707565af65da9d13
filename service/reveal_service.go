package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/uuid"
)

// maskedPlaceholder replaces the hidden leading portion of a masked
// value. Fixed text, so masked output is deterministic.
const maskedPlaceholder = "•••"

// FieldKind names a maskable field class.
type FieldKind string

const (
	FieldAddress FieldKind = "address"
	FieldPhone   FieldKind = "phone"
	FieldSSN     FieldKind = "ssn"
)

// ErrUnknownField is returned when a reveal request names a field
// kind the gate does not manage.
var ErrUnknownField = errors.New("unknown field kind")

// AuditSink records a single audit action. The reveal gate depends on
// this narrow interface rather than the repository so tests can verify
// the write happened.
type AuditSink interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
}

// revealKey identifies one revealed field within one viewer session.
type revealKey struct {
	sessionID string
	caseID    uuid.UUID
	field     string
}

// RevealService gates access to unmasked sensitive values. Every
// reveal writes an audit entry before the value is returned; if the
// write fails, the value stays hidden.
type RevealService struct {
	audit AuditSink

	mu       sync.Mutex
	revealed map[revealKey]bool
}

// RevealServiceOption is a functional option for RevealService
type RevealServiceOption func(*RevealService)

// RevealWithAuditSink sets the audit sink
func RevealWithAuditSink(sink AuditSink) RevealServiceOption {
	return func(s *RevealService) {
		s.audit = sink
	}
}

// NewRevealService creates a new reveal service
func NewRevealService(opts ...RevealServiceOption) *RevealService {
	s := &RevealService{
		revealed: make(map[revealKey]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reveal unmasks one field for one session. The audit write is
// synchronous and mandatory: no entry, no reveal.
func (s *RevealService) Reveal(ctx context.Context, sessionID string, caseID uuid.UUID, kind FieldKind, value string) (string, error) {
	if s.audit == nil {
		return "", errors.New("audit sink not set")
	}
	switch kind {
	case FieldAddress, FieldPhone, FieldSSN:
	default:
		return "", ErrUnknownField
	}

	// An already revealed field is not a new transition; the entry was
	// written when it first flipped.
	if s.IsRevealed(sessionID, caseID, kind, value) {
		return value, nil
	}

	detail := fmt.Sprintf("field=%s value_suffix=%s session=%s", kind, revealSuffix(kind, value), sessionID)
	entry := &models.AuditEntry{
		CaseID: caseID,
		Action: models.ActionFieldRevealed,
		Detail: &detail,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return "", fmt.Errorf("audit write failed, value not revealed: %w", err)
	}

	s.mu.Lock()
	s.revealed[revealKey{sessionID: sessionID, caseID: caseID, field: fieldID(kind, value)}] = true
	s.mu.Unlock()

	return value, nil
}

// IsRevealed reports whether a field was already revealed in this
// session.
func (s *RevealService) IsRevealed(sessionID string, caseID uuid.UUID, kind FieldKind, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revealed[revealKey{sessionID: sessionID, caseID: caseID, field: fieldID(kind, value)}]
}

// ResetSession re-masks everything revealed under a session.
func (s *RevealService) ResetSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.revealed {
		if k.sessionID == sessionID {
			delete(s.revealed, k)
		}
	}
}

// MaskResult returns a copy of the ranked result with sensitive
// values masked, except fields already revealed in the session.
func (s *RevealService) MaskResult(sessionID string, caseID uuid.UUID, result models.RankedResult) models.RankedResult {
	masked := result
	masked.Addresses = make([]models.MergedAddress, len(result.Addresses))
	for i, addr := range result.Addresses {
		m := addr
		if !s.IsRevealed(sessionID, caseID, FieldAddress, addr.Canonical) {
			m.Canonical = MaskAddress(addr.Canonical)
			m.Normalized = MaskAddress(addr.Normalized)
		}
		m.Phones = make([]string, len(addr.Phones))
		for j, p := range addr.Phones {
			if s.IsRevealed(sessionID, caseID, FieldPhone, p) {
				m.Phones[j] = p
			} else {
				m.Phones[j] = MaskPhone(p)
			}
		}
		masked.Addresses[i] = m
	}
	return masked
}

// MaskAddress hides the leading token of an address (the street
// number) behind a fixed placeholder. The rest stays visible so an
// agent can tell candidates apart without seeing the full address.
func MaskAddress(addr string) string {
	fields := strings.Fields(addr)
	if len(fields) < 2 {
		return maskedPlaceholder
	}
	return maskedPlaceholder + " " + strings.Join(fields[1:], " ")
}

// MaskPhone keeps the last four digits visible.
func MaskPhone(phone string) string {
	digits := normalizePhone(phone)
	if len(digits) <= 4 {
		return maskedPlaceholder + digits
	}
	return maskedPlaceholder + "-" + digits[len(digits)-4:]
}

// MaskSSN keeps the last four digits visible.
func MaskSSN(ssn string) string {
	digits := digitsOnly(ssn)
	if len(digits) <= 4 {
		return maskedPlaceholder + digits
	}
	return maskedPlaceholder + "-" + digits[len(digits)-4:]
}

// revealSuffix is the non-sensitive tail recorded in the audit trail.
func revealSuffix(kind FieldKind, value string) string {
	switch kind {
	case FieldPhone:
		return phoneLastFour(value)
	case FieldSSN:
		d := digitsOnly(value)
		if len(d) > 4 {
			d = d[len(d)-4:]
		}
		return d
	default:
		fields := strings.Fields(value)
		if len(fields) < 2 {
			return ""
		}
		return strings.Join(fields[1:], " ")
	}
}

func fieldID(kind FieldKind, value string) string {
	switch kind {
	case FieldPhone:
		return string(kind) + ":" + normalizePhone(value)
	case FieldSSN:
		return string(kind) + ":" + digitsOnly(value)
	default:
		return string(kind) + ":" + normalizeAddress(value)
	}
}
