package service

import (
	"testing"
	"time"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/stretchr/testify/assert"
)

func TestRenderFindings(t *testing.T) {
	c := &models.Case{SubjectName: "Marcus Webb"}
	analysis := &models.Analysis{
		FactSetCount: 2,
		CreatedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Result: models.RankedResult{
			Addresses: []models.MergedAddress{{
				Canonical:   "88 Oak St, Springfield",
				Probability: 61,
				Type:        models.AddressTypeCurrentResidence,
				Reasons:     []string{"Appears in 2 sources", "Marked current in skip-trace.pdf"},
				People:      []string{"Rosa Delgado"},
			}},
			Vehicles: []models.MergedVehicle{{
				Canonical:   "2015 Ford F-150",
				Plate:       "XYZ789",
				Probability: 49,
			}},
			Patterns: []models.Pattern{{
				Kind:       models.PatternCohabitation,
				Confidence: 55,
				Summary:    "2 people share 300 Maple Dr",
			}},
			Questions: []models.Question{{
				Text: "Is the phone ending 0134 still reachable for 88 Oak St, Springfield?",
			}},
		},
	}

	out := renderFindings(c, analysis)

	assert.Contains(t, out, "Subject: Marcus Webb")
	assert.Contains(t, out, "Location 1: 88 Oak St, Springfield (61%, current_residence)")
	assert.Contains(t, out, "Marked current in skip-trace.pdf")
	assert.Contains(t, out, "People: Rosa Delgado")
	assert.Contains(t, out, "2015 Ford F-150 plate XYZ789 (49%)")
	assert.Contains(t, out, "[cohabitation] 2 people share 300 Maple Dr (55%)")
	assert.Contains(t, out, "Is the phone ending 0134 still reachable")

	// Rendering the same analysis twice yields identical output.
	assert.Equal(t, out, renderFindings(c, analysis))
}

func TestRenderFindings_NoCandidates(t *testing.T) {
	c := &models.Case{SubjectName: "Marcus Webb"}
	analysis := &models.Analysis{CreatedAt: time.Now()}

	out := renderFindings(c, analysis)

	assert.Contains(t, out, "No location candidates in evidence.")
}
