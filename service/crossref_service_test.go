package service

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func newFactSet(filename string, facts models.Facts) *models.FactSet {
	docID := uuid.New()
	return &models.FactSet{
		ID:          uuid.New(),
		CaseID:      uuid.New(),
		DocumentID:  docID,
		Source:      models.Provenance{DocumentID: docID, Filename: filename},
		Addresses:   facts.Addresses,
		Phones:      facts.Phones,
		People:      facts.People,
		Vehicles:    facts.Vehicles,
		Employments: facts.Employments,
	}
}

func TestCrossReference_EmptyEvidence(t *testing.T) {
	result := crossReference(nil)

	assert.Empty(t, result.Addresses)
	assert.Empty(t, result.Vehicles)
	assert.Empty(t, result.Patterns)
	assert.Empty(t, result.Questions)
}

func TestCrossReference_MergesAddressVariants(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("credit-report.pdf", models.Facts{
			Addresses: []models.AddressFact{{Raw: "123 Oak Street, Apt 4, Springfield"}},
		}),
		newFactSet("court-record.pdf", models.Facts{
			Addresses: []models.AddressFact{{Raw: "123 oak st apt 4 springfield"}},
		}),
	}

	result := crossReference(sets)

	require.Len(t, result.Addresses, 1)
	addr := result.Addresses[0]
	assert.Len(t, addr.Sources, 2)
	assert.Contains(t, addr.Reasons, "Appears in 2 sources")
}

func TestCrossReference_TypoWithinToleranceMerges(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("a.pdf", models.Facts{
			Addresses: []models.AddressFact{{Raw: "4821 Chestnut Boulevard, Dayton"}},
		}),
		newFactSet("b.pdf", models.Facts{
			Addresses: []models.AddressFact{{Raw: "4821 Chestnot Boulevard, Dayton"}},
		}),
	}

	result := crossReference(sets)

	require.Len(t, result.Addresses, 1)
	assert.Len(t, result.Addresses[0].Sources, 2)
}

func TestCrossReference_CorroboratedCurrentOutranksSingle(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("skip-trace.pdf", models.Facts{
			Addresses: []models.AddressFact{
				{Raw: "88 Oak St, Springfield", Current: boolPtr(true)},
				{Raw: "410 Pine Ave, Springfield"},
			},
		}),
		newFactSet("utility-record.pdf", models.Facts{
			Addresses: []models.AddressFact{{Raw: "88 Oak Street, Springfield"}},
		}),
	}

	result := crossReference(sets)

	require.Len(t, result.Addresses, 2)
	oak := result.Addresses[0]
	pine := result.Addresses[1]

	// Two sources with a current marker: (35+14)*1.25 = 61.
	assert.Equal(t, 61, oak.Probability)
	assert.Equal(t, models.AddressTypeCurrentResidence, oak.Type)
	assert.Contains(t, oak.Reasons, "Marked current in skip-trace.pdf")

	// One undated source: base 35.
	assert.Equal(t, 35, pine.Probability)
	assert.Greater(t, oak.Probability, pine.Probability)
}

func TestCrossReference_ScoreMonotonicInSources(t *testing.T) {
	build := func(n int) []*models.FactSet {
		var sets []*models.FactSet
		for i := 0; i < n; i++ {
			sets = append(sets, newFactSet(fmt.Sprintf("report-%d.pdf", i), models.Facts{
				Addresses: []models.AddressFact{{Raw: "77 Birch Lane, Columbus"}},
			}))
		}
		return sets
	}

	prev := 0
	for n := 1; n <= 7; n++ {
		result := crossReference(build(n))
		require.Len(t, result.Addresses, 1)
		score := result.Addresses[0].Probability
		assert.GreaterOrEqual(t, score, prev, "score must never drop as sources are added (n=%d)", n)
		assert.LessOrEqual(t, score, 100)
		prev = score
	}
}

func TestCrossReference_ActivePhoneBoost(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("skip-trace.pdf", models.Facts{
			Addresses: []models.AddressFact{{Raw: "9 Willow Ct, Toledo"}},
			Phones:    []models.PhoneFact{{Raw: "(419) 555-0134", Active: boolPtr(true)}},
		}),
	}

	result := crossReference(sets)

	require.Len(t, result.Addresses, 1)
	addr := result.Addresses[0]
	assert.Equal(t, 43, addr.Probability) // 35 + 8
	assert.Contains(t, addr.Reasons, "Linked to active phone ending 0134")
	assert.Equal(t, []string{"(419) 555-0134"}, addr.Phones)
}

func TestCrossReference_VehicleRegistrationBoost(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("dmv-record.pdf", models.Facts{
			Addresses: []models.AddressFact{{Raw: "52 Harbor Rd, Erie"}},
			Vehicles: []models.VehicleFact{{
				Raw:               "2019 Honda Accord",
				RegisteredAddress: "52 Harbor Road, Erie",
			}},
		}),
	}

	result := crossReference(sets)

	require.Len(t, result.Addresses, 1)
	addr := result.Addresses[0]
	assert.Equal(t, 43, addr.Probability) // 35 + 8
	assert.Contains(t, addr.Reasons, "Vehicle registered to this address: 2019 Honda Accord")
	assert.Equal(t, []string{"2019 Honda Accord"}, addr.Vehicles)
}

func TestCrossReference_FamilyAddressMatch(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("skip-trace.pdf", models.Facts{
			Addresses: []models.AddressFact{{Raw: "300 Maple Dr, Akron"}},
			People: []models.PersonFact{{
				Name:         "Rosa Delgado",
				Relationship: "Mother",
				Address:      "300 Maple Drive, Akron",
			}},
		}),
	}

	result := crossReference(sets)

	require.Len(t, result.Addresses, 1)
	addr := result.Addresses[0]
	assert.Equal(t, 45, addr.Probability) // 35 + 10
	assert.Equal(t, models.AddressTypeFamily, addr.Type)
	assert.Contains(t, addr.Reasons, "Matches mother's address (Rosa Delgado)")
	assert.Contains(t, addr.People, "Rosa Delgado")
}

func TestCrossReference_EmploymentAddressTaggedWork(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("employment-check.pdf", models.Facts{
			Employments: []models.EmploymentFact{{
				Employer: "Lakeside Logistics",
				Address:  "1200 Industrial Pkwy, Cleveland",
				Current:  boolPtr(true),
			}},
		}),
	}

	result := crossReference(sets)

	require.Len(t, result.Addresses, 1)
	assert.Equal(t, models.AddressTypeWork, result.Addresses[0].Type)
}

func TestCrossReference_UnclassifiableKeptAsUnknown(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("notes.txt", models.Facts{
			Addresses: []models.AddressFact{{Raw: "15 Quarry Rd"}},
		}),
	}

	result := crossReference(sets)

	require.Len(t, result.Addresses, 1)
	assert.Equal(t, models.AddressTypeUnknown, result.Addresses[0].Type)
}

func TestCrossReference_CapsAddressesAtTopFour(t *testing.T) {
	facts := models.Facts{
		Addresses: []models.AddressFact{
			{Raw: "14 Cedar Ave, Dayton"},
			{Raw: "982 Spruce Blvd, Columbus"},
			{Raw: "37 Juniper Ln, Toledo"},
			{Raw: "5501 Magnolia Pkwy, Akron"},
			{Raw: "8 Dogwood Cir, Lima"},
			{Raw: "733 Sycamore Ter, Canton"},
		},
	}
	result := crossReference([]*models.FactSet{newFactSet("report.pdf", facts)})

	assert.Len(t, result.Addresses, topNResults)
}

func TestCrossReference_Deterministic(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("skip-trace.pdf", models.Facts{
			Addresses: []models.AddressFact{
				{Raw: "88 Oak St, Springfield", Current: boolPtr(true)},
				{Raw: "410 Pine Ave, Springfield", Dates: &models.DateRange{From: "2022-01-01", To: "2023-06-30"}},
			},
			Phones: []models.PhoneFact{{Raw: "555-0134", Active: boolPtr(true)}},
			People: []models.PersonFact{
				{Name: "Rosa Delgado", Relationship: "mother", Address: "300 Maple Dr, Akron"},
				{Name: "Luis Delgado", Relationship: "brother", Address: "300 Maple Dr, Akron"},
			},
		}),
		newFactSet("court-record.pdf", models.Facts{
			Addresses: []models.AddressFact{{Raw: "88 Oak Street, Springfield"}},
			Vehicles:  []models.VehicleFact{{Raw: "2015 Ford F-150", Plate: "ABC 1234"}},
		}),
	}

	first := crossReference(sets)
	second := crossReference(sets)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "re-running analysis on unchanged evidence must be byte-identical")
}

func TestMergeVehicles_GroupsByPlate(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("dmv.pdf", models.Facts{
			Vehicles: []models.VehicleFact{{Raw: "2015 Ford F-150", Plate: "XYZ 789"}},
		}),
		newFactSet("tow-record.pdf", models.Facts{
			Vehicles: []models.VehicleFact{{Raw: "Ford F150 pickup", Plate: "XYZ789", Current: boolPtr(true)}},
		}),
	}

	result := crossReference(sets)

	require.Len(t, result.Vehicles, 1)
	v := result.Vehicles[0]
	assert.Equal(t, "XYZ789", v.Plate)
	assert.Len(t, v.Sources, 2)
	assert.Equal(t, 61, v.Probability) // (35+14)*1.25
}

func TestDetectCohabitation(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("skip-trace.pdf", models.Facts{
			People: []models.PersonFact{
				{Name: "Rosa Delgado", Relationship: "mother", Address: "300 Maple Dr, Akron"},
				{Name: "Luis Delgado", Relationship: "brother", Address: "300 Maple Drive, Akron"},
			},
		}),
	}

	patterns, ok := detectCohabitation(sets)

	require.True(t, ok)
	require.Len(t, patterns, 1)
	assert.Equal(t, models.PatternCohabitation, patterns[0].Kind)
	assert.Contains(t, patterns[0].Summary, "2 people share")
	assert.Len(t, patterns[0].Evidence, 2)
}

func TestDetectMovement(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("history.pdf", models.Facts{
			Addresses: []models.AddressFact{
				{Raw: "1 First St", Dates: &models.DateRange{From: "2020-01-01", To: "2021-03-01"}},
				{Raw: "2 Second St", Dates: &models.DateRange{From: "2021-04-01", To: "2022-08-01"}},
				{Raw: "3 Third St", Dates: &models.DateRange{From: "2022-09-01", To: "2024-01-01"}},
			},
		}),
	}

	pattern, ok := detectMovement(sets)

	require.True(t, ok)
	assert.Equal(t, models.PatternMovement, pattern.Kind)
	assert.Len(t, pattern.Evidence, 3)
}

func TestDetectMovement_OverlappingRangesDoNotChain(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("history.pdf", models.Facts{
			Addresses: []models.AddressFact{
				{Raw: "1 First St", Dates: &models.DateRange{From: "2020-01-01", To: "2022-01-01"}},
				{Raw: "2 Second St", Dates: &models.DateRange{From: "2021-01-01", To: "2023-01-01"}},
				{Raw: "3 Third St", Dates: &models.DateRange{From: "2022-06-01", To: "2024-01-01"}},
			},
		}),
	}

	_, ok := detectMovement(sets)

	assert.False(t, ok)
}

func TestDetectContactClusters(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("skip-trace.pdf", models.Facts{
			Phones: []models.PhoneFact{{Raw: "555-0188", Owner: "Marcus Webb"}},
			People: []models.PersonFact{{Name: "Dana Webb", Phone: "555-0188"}},
		}),
	}

	patterns, ok := detectContactClusters(sets)

	require.True(t, ok)
	require.Len(t, patterns, 1)
	assert.Equal(t, models.PatternContactCluster, patterns[0].Kind)
	assert.Contains(t, patterns[0].Summary, "shared by 2 people")
}

func TestBuildQuestions_FromConcreteGaps(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("notes.txt", models.Facts{
			Addresses: []models.AddressFact{{Raw: "15 Quarry Rd, Lima"}},
		}),
	}

	result := crossReference(sets)

	require.NotEmpty(t, result.Questions)
	// Single undated source: below the confidence threshold and with
	// no recency marker, so both gap questions fire.
	texts := make([]string, 0, len(result.Questions))
	for _, q := range result.Questions {
		texts = append(texts, q.Text)
	}
	assert.Contains(t, texts, "Can another source corroborate ••• Quarry Rd, Lima? Confidence is 35% from 1 source(s).")
	assert.Contains(t, texts, "When was the subject last known at ••• Quarry Rd, Lima? No date is attached to any mention.")
}

func TestMaskedAnalysis_NoFullValuesInQuestionsOrPatterns(t *testing.T) {
	sets := []*models.FactSet{
		newFactSet("skip-trace.pdf", models.Facts{
			Addresses: []models.AddressFact{{Raw: "15 Quarry Rd, Lima"}},
			Phones:    []models.PhoneFact{{Raw: "555-0188", Owner: "Marcus Webb"}},
			People: []models.PersonFact{
				{Name: "Marcus Webb", Address: "15 Quarry Rd, Lima"},
				{Name: "Dana Webb", Address: "15 Quarry Rd, Lima", Phone: "555-0188"},
			},
		}),
	}

	result := crossReference(sets)

	// The run produced both leak-prone shapes: gap questions naming the
	// address and patterns quoting addresses and phones.
	require.NotEmpty(t, result.Questions)
	require.NotEmpty(t, result.Patterns)

	sink := &recordingSink{}
	svc := NewRevealService(RevealWithAuditSink(sink))
	masked := svc.MaskResult("session-1", uuid.New(), result)

	js, err := json.Marshal(masked)
	require.NoError(t, err)
	body := string(js)

	// Without a reveal, neither the street number nor the full phone
	// appears anywhere in the response body.
	assert.NotContains(t, body, "15 Quarry")
	assert.NotContains(t, body, "15 quarry")
	assert.NotContains(t, body, "555-0188")
	assert.NotContains(t, body, "5550188")

	require.NotEmpty(t, masked.Addresses)
	assert.Equal(t, "••• Quarry Rd, Lima", masked.Addresses[0].Canonical)

	// Nothing was revealed, so the audit trail stays empty.
	assert.Empty(t, sink.entries)
}
