package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/generative-ai-go/genai"
)

const ocrModel = "gemini-2.0-flash"

// OCR recognizes the text of a single page image. Implementations
// return the page text verbatim, without commentary.
type OCR interface {
	RecognizePage(ctx context.Context, image []byte, format string, pageNum int) (string, error)
}

// GeminiOCR implements OCR against the Gemini vision API.
type GeminiOCR struct {
	client    *genai.Client
	modelName string
}

// NewGeminiOCR creates a new Gemini-backed OCR
func NewGeminiOCR(client *genai.Client) *GeminiOCR {
	return &GeminiOCR{
		client:    client,
		modelName: ocrModel,
	}
}

const ocrPrompt = `Transcribe every piece of text visible in this scanned document page.
Return the raw text only, preserving line breaks. Do not describe the image, do not summarize, do not add commentary.
If the page contains no readable text, return an empty response.`

// RecognizePage transcribes one page image with retry and exponential
// backoff. An empty transcription is not an error here; the caller
// decides whether a fully empty document is a failure.
func (o *GeminiOCR) RecognizePage(ctx context.Context, image []byte, format string, pageNum int) (string, error) {
	if o.client == nil {
		return "", errors.New("gemini client not set")
	}
	if len(image) == 0 {
		return "", fmt.Errorf("page %d: empty image", pageNum)
	}

	model := o.client.GenerativeModel(o.modelName)

	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		resp, err := model.GenerateContent(ctx,
			genai.ImageData(format, image),
			genai.Text(ocrPrompt),
		)
		if err != nil {
			lastErr = err
			if attempt == maxRetries-1 {
				return "", fmt.Errorf("page %d: recognition failed after %d attempts: %w", pageNum, maxRetries, err)
			}
			log.Printf("Warning: OCR attempt %d for page %d failed: %v", attempt+1, pageNum, err)
			continue
		}

		return responseText(resp), nil
	}

	return "", fmt.Errorf("page %d: recognition failed: %w", pageNum, lastErr)
}
