package service

import (
	"context"
	"errors"
	"testing"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures audit entries for assertions.
type recordingSink struct {
	entries []*models.AuditEntry
	fail    bool
}

func (s *recordingSink) Record(_ context.Context, entry *models.AuditEntry) error {
	if s.fail {
		return errors.New("database unavailable")
	}
	s.entries = append(s.entries, entry)
	return nil
}

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "••• Oak St, Springfield", MaskAddress("88 Oak St, Springfield"))
	assert.Equal(t, "•••", MaskAddress("singletoken"))
	// Same input, same output.
	assert.Equal(t, MaskAddress("88 Oak St, Springfield"), MaskAddress("88 Oak St, Springfield"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "•••-0134", MaskPhone("(419) 555-0134"))
	assert.Equal(t, "•••123", MaskPhone("123"))
}

func TestMaskSSN(t *testing.T) {
	assert.Equal(t, "•••-6789", MaskSSN("123-45-6789"))
}

func TestReveal_WritesExactlyOneAuditEntry(t *testing.T) {
	sink := &recordingSink{}
	svc := NewRevealService(RevealWithAuditSink(sink))
	caseID := uuid.New()

	value, err := svc.Reveal(context.Background(), "session-1", caseID, FieldPhone, "(419) 555-0134")

	require.NoError(t, err)
	assert.Equal(t, "(419) 555-0134", value)
	require.Len(t, sink.entries, 1)

	entry := sink.entries[0]
	assert.Equal(t, caseID, entry.CaseID)
	assert.Equal(t, models.ActionFieldRevealed, entry.Action)
	require.NotNil(t, entry.Detail)
	assert.Contains(t, *entry.Detail, "field=phone")
	assert.Contains(t, *entry.Detail, "0134")
	// The full value never lands in the audit trail.
	assert.NotContains(t, *entry.Detail, "555-0134")
}

func TestReveal_RepeatRevealWritesNoSecondEntry(t *testing.T) {
	sink := &recordingSink{}
	svc := NewRevealService(RevealWithAuditSink(sink))
	caseID := uuid.New()

	_, err := svc.Reveal(context.Background(), "session-1", caseID, FieldPhone, "(419) 555-0134")
	require.NoError(t, err)

	value, err := svc.Reveal(context.Background(), "session-1", caseID, FieldPhone, "(419) 555-0134")
	require.NoError(t, err)
	assert.Equal(t, "(419) 555-0134", value)
	assert.Len(t, sink.entries, 1)

	// A different session is a fresh transition and gets its own entry.
	_, err = svc.Reveal(context.Background(), "session-2", caseID, FieldPhone, "(419) 555-0134")
	require.NoError(t, err)
	assert.Len(t, sink.entries, 2)
}

func TestReveal_AuditFailureBlocksReveal(t *testing.T) {
	sink := &recordingSink{fail: true}
	svc := NewRevealService(RevealWithAuditSink(sink))
	caseID := uuid.New()

	value, err := svc.Reveal(context.Background(), "session-1", caseID, FieldAddress, "88 Oak St, Springfield")

	require.Error(t, err)
	assert.Empty(t, value)
	assert.False(t, svc.IsRevealed("session-1", caseID, FieldAddress, "88 Oak St, Springfield"))
}

func TestReveal_UnknownFieldKind(t *testing.T) {
	sink := &recordingSink{}
	svc := NewRevealService(RevealWithAuditSink(sink))

	_, err := svc.Reveal(context.Background(), "session-1", uuid.New(), FieldKind("email"), "x@example.com")

	require.ErrorIs(t, err, ErrUnknownField)
	assert.Empty(t, sink.entries)
}

func TestResetSession(t *testing.T) {
	sink := &recordingSink{}
	svc := NewRevealService(RevealWithAuditSink(sink))
	caseID := uuid.New()

	_, err := svc.Reveal(context.Background(), "session-1", caseID, FieldPhone, "555-0134")
	require.NoError(t, err)
	_, err = svc.Reveal(context.Background(), "session-2", caseID, FieldPhone, "555-0134")
	require.NoError(t, err)

	svc.ResetSession("session-1")

	assert.False(t, svc.IsRevealed("session-1", caseID, FieldPhone, "555-0134"))
	assert.True(t, svc.IsRevealed("session-2", caseID, FieldPhone, "555-0134"))
}

func TestMaskResult_RespectsSessionReveals(t *testing.T) {
	sink := &recordingSink{}
	svc := NewRevealService(RevealWithAuditSink(sink))
	caseID := uuid.New()

	result := models.RankedResult{
		Addresses: []models.MergedAddress{{
			Canonical:  "88 Oak St, Springfield",
			Normalized: "88 oak st springfield",
			Phones:     []string{"(419) 555-0134"},
		}},
	}

	masked := svc.MaskResult("session-1", caseID, result)
	assert.Equal(t, "••• Oak St, Springfield", masked.Addresses[0].Canonical)
	assert.Equal(t, "••• oak st springfield", masked.Addresses[0].Normalized)
	assert.Equal(t, "•••-0134", masked.Addresses[0].Phones[0])

	// The original result is untouched.
	assert.Equal(t, "88 Oak St, Springfield", result.Addresses[0].Canonical)

	_, err := svc.Reveal(context.Background(), "session-1", caseID, FieldAddress, "88 Oak St, Springfield")
	require.NoError(t, err)

	unmasked := svc.MaskResult("session-1", caseID, result)
	assert.Equal(t, "88 Oak St, Springfield", unmasked.Addresses[0].Canonical)
	assert.Equal(t, "•••-0134", unmasked.Addresses[0].Phones[0])

	// A different session still sees everything masked.
	other := svc.MaskResult("session-2", caseID, result)
	assert.Equal(t, "••• Oak St, Springfield", other.Addresses[0].Canonical)
}
