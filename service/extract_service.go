package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/generative-ai-go/genai"
)

const (
	maxRetries      = 3
	initialBackoff  = 1 * time.Second
	maxPromptChars  = 30000
	extractionModel = "gemini-2.0-flash"
)

// Extractor pulls structured candidate facts out of normalized report
// text. Prior facts from earlier documents in the case are passed in
// so the extractor can resolve partial mentions ("same address as
// above") against them; it must never mutate them.
type Extractor interface {
	Extract(ctx context.Context, text string, prior *models.Facts) (*models.Facts, error)
}

// GeminiExtractor implements Extractor against the Gemini API using
// JSON response mode.
type GeminiExtractor struct {
	client    *genai.Client
	modelName string
}

// GeminiExtractorOption is a functional option for GeminiExtractor
type GeminiExtractorOption func(*GeminiExtractor)

// ExtractorWithModel overrides the default model name
func ExtractorWithModel(name string) GeminiExtractorOption {
	return func(e *GeminiExtractor) {
		e.modelName = name
	}
}

// NewGeminiExtractor creates a new Gemini-backed extractor
func NewGeminiExtractor(client *genai.Client, opts ...GeminiExtractorOption) *GeminiExtractor {
	e := &GeminiExtractor{
		client:    client,
		modelName: extractionModel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

const extractionSystemPrompt = `You are a skip-trace analyst. Extract candidate facts from the investigative report text below.
Return ONLY a JSON object with these keys (omit empty ones):
  "addresses": [{"raw": string, "current": bool or null, "dates": {"from": "YYYY-MM-DD", "to": "YYYY-MM-DD"} or null, "label": string, "owner_name": string}]
  "phones": [{"raw": string, "active": bool or null, "dates": {...} or null, "owner": string}]
  "people": [{"name": string, "relationship": string, "address": string, "phone": string}]
  "vehicles": [{"raw": string, "plate": string, "registered_address": string, "current": bool or null}]
  "employments": [{"employer": string, "address": string, "current": bool or null, "dates": {...} or null}]
Copy values verbatim from the text. Do not invent facts. Mark "current"/"active" only when the text says so explicitly; otherwise use null.`

// Extract runs the extraction prompt with retry and exponential
// backoff, then parses the JSON payload into a fact set.
func (e *GeminiExtractor) Extract(ctx context.Context, text string, prior *models.Facts) (*models.Facts, error) {
	if e.client == nil {
		return nil, errors.New("gemini client not set")
	}

	prompt := buildExtractionPrompt(text, prior)

	model := e.client.GenerativeModel(e.modelName)
	model.ResponseMIMEType = "application/json"

	var raw string
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			if attempt == maxRetries-1 {
				return nil, fmt.Errorf("%w: %v", ErrExtractorFailure, err)
			}
			log.Printf("Warning: extraction attempt %d failed: %v", attempt+1, err)
			continue
		}

		raw = responseText(resp)
		if raw != "" {
			break
		}
		if attempt == maxRetries-1 {
			return nil, ErrExtractorFailure
		}
	}

	facts, err := parseFactsJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractorFailure, err)
	}
	return facts, nil
}

// buildExtractionPrompt assembles the prompt, truncating oversized
// report text and appending prior facts as context.
func buildExtractionPrompt(text string, prior *models.Facts) string {
	if len(text) > maxPromptChars {
		log.Printf("Warning: report text too long (%d chars), truncating to %d chars", len(text), maxPromptChars)
		text = text[:maxPromptChars] + "\n\n[Content truncated due to length...]"
	}

	var b strings.Builder
	b.WriteString(extractionSystemPrompt)
	if prior != nil && !prior.Empty() {
		b.WriteString("\n\nFacts already extracted from earlier documents in this case, for resolving partial references only:\n")
		if data, err := json.Marshal(prior); err == nil {
			b.Write(data)
		}
	}
	b.WriteString("\n\nReport text:\n")
	b.WriteString(text)
	return b.String()
}

// parseFactsJSON decodes the model's JSON payload. Code fences are
// stripped first since models sometimes wrap JSON in them even in
// JSON mode.
func parseFactsJSON(raw string) (*models.Facts, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil, errors.New("empty extraction response")
	}

	var facts models.Facts
	if err := json.Unmarshal([]byte(cleaned), &facts); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	return &facts, nil
}

// responseText flattens the text parts of a Gemini response.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
