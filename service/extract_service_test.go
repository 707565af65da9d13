package service

import (
	"strings"
	"testing"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFactsJSON(t *testing.T) {
	raw := `{
		"addresses": [{"raw": "88 Oak St, Springfield", "current": true}],
		"phones": [{"raw": "555-0134", "owner": "subject"}],
		"people": [{"name": "Rosa Delgado", "relationship": "mother"}]
	}`

	facts, err := parseFactsJSON(raw)

	require.NoError(t, err)
	require.Len(t, facts.Addresses, 1)
	assert.Equal(t, "88 Oak St, Springfield", facts.Addresses[0].Raw)
	require.NotNil(t, facts.Addresses[0].Current)
	assert.True(t, *facts.Addresses[0].Current)
	assert.Len(t, facts.Phones, 1)
	assert.Len(t, facts.People, 1)
}

func TestParseFactsJSON_StripCodeFences(t *testing.T) {
	raw := "```json\n{\"addresses\": [{\"raw\": \"88 Oak St\"}]}\n```"

	facts, err := parseFactsJSON(raw)

	require.NoError(t, err)
	require.Len(t, facts.Addresses, 1)
}

func TestParseFactsJSON_Invalid(t *testing.T) {
	_, err := parseFactsJSON("the subject probably lives on Oak Street")
	assert.Error(t, err)

	_, err = parseFactsJSON("")
	assert.Error(t, err)
}

func TestBuildExtractionPrompt_IncludesPriorFacts(t *testing.T) {
	prior := &models.Facts{
		Addresses: []models.AddressFact{{Raw: "88 Oak St, Springfield"}},
	}

	prompt := buildExtractionPrompt("New report text here.", prior)

	assert.Contains(t, prompt, "88 Oak St, Springfield")
	assert.Contains(t, prompt, "New report text here.")
	assert.Contains(t, prompt, "earlier documents")
}

func TestBuildExtractionPrompt_OmitsEmptyPrior(t *testing.T) {
	prompt := buildExtractionPrompt("Report text.", &models.Facts{})

	assert.NotContains(t, prompt, "earlier documents")
}

func TestBuildExtractionPrompt_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", maxPromptChars+5000)

	prompt := buildExtractionPrompt(long, nil)

	assert.Contains(t, prompt, "[Content truncated due to length...]")
	assert.Less(t, len(prompt), len(long)+len(extractionSystemPrompt))
}
