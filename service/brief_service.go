package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/douggil74/elite-recovery-app-sub004/models"
	"github.com/douggil74/elite-recovery-app-sub004/repository"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
)

const briefModel = "gemini-2.0-flash"

// BriefService renders a field-ready recovery brief from a case's
// latest analysis: the ranked locations, what ties them to the
// subject, and what to verify on the ground.
type BriefService struct {
	caseRepo     *repository.CaseRepository
	analysisRepo *repository.AnalysisRepository
	auditRepo    *repository.AuditRepository
	geminiClient *genai.Client
	modelName    string
}

// BriefServiceOption is a functional option for BriefService
type BriefServiceOption func(*BriefService)

// BriefWithCaseRepository sets the case repository
func BriefWithCaseRepository(repo *repository.CaseRepository) BriefServiceOption {
	return func(s *BriefService) {
		s.caseRepo = repo
	}
}

// BriefWithAnalysisRepository sets the analysis repository
func BriefWithAnalysisRepository(repo *repository.AnalysisRepository) BriefServiceOption {
	return func(s *BriefService) {
		s.analysisRepo = repo
	}
}

// BriefWithAuditRepository sets the audit repository
func BriefWithAuditRepository(repo *repository.AuditRepository) BriefServiceOption {
	return func(s *BriefService) {
		s.auditRepo = repo
	}
}

// BriefWithGeminiClient sets the Gemini client
func BriefWithGeminiClient(client *genai.Client) BriefServiceOption {
	return func(s *BriefService) {
		s.geminiClient = client
	}
}

// NewBriefService creates a new brief service
func NewBriefService(opts ...BriefServiceOption) *BriefService {
	s := &BriefService{modelName: briefModel}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const briefSystemPrompt = `You are writing a recovery brief for a licensed repossession agent heading into the field.
Work ONLY from the structured findings below. Do not invent addresses, names, or facts not present in the findings.
Structure the brief as:
1. Subject summary
2. Locations to check, in priority order, each with the reasoning from the findings
3. Known associates and vehicles
4. Open questions to resolve in the field
Keep it tight and operational. Plain text, no markdown.`

// GenerateBrief renders the brief from the latest analysis and writes
// a brief_generated audit entry.
func (s *BriefService) GenerateBrief(ctx context.Context, caseID uuid.UUID) (string, error) {
	if s.geminiClient == nil {
		return "", errors.New("gemini client not set")
	}

	c, err := s.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return "", ErrCaseNotFound
	}
	analysis, err := s.analysisRepo.GetLatestByCaseID(ctx, caseID)
	if err != nil {
		return "", ErrNoAnalysis
	}

	prompt := buildBriefPrompt(c, analysis)

	model := s.geminiClient.GenerativeModel(s.modelName)

	var brief string
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			if attempt == maxRetries-1 {
				return "", fmt.Errorf("failed to generate brief after %d attempts: %w", maxRetries, err)
			}
			log.Printf("Warning: brief generation attempt %d failed: %v", attempt+1, err)
			continue
		}

		brief = strings.TrimSpace(responseText(resp))
		if brief != "" {
			break
		}
		if attempt == maxRetries-1 {
			return "", errors.New("brief generation returned empty content")
		}
	}

	s.recordAudit(ctx, caseID, models.ActionBriefGenerated, fmt.Sprintf("analysis=%s", analysis.ID))
	return brief, nil
}

// ExportBrief renders a deterministic plain-text export of the latest
// analysis, without a model call, and writes a brief_exported entry.
func (s *BriefService) ExportBrief(ctx context.Context, caseID uuid.UUID) (string, error) {
	c, err := s.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return "", ErrCaseNotFound
	}
	analysis, err := s.analysisRepo.GetLatestByCaseID(ctx, caseID)
	if err != nil {
		return "", ErrNoAnalysis
	}

	export := renderFindings(c, analysis)
	s.recordAudit(ctx, caseID, models.ActionBriefExported, fmt.Sprintf("analysis=%s", analysis.ID))
	return export, nil
}

func buildBriefPrompt(c *models.Case, analysis *models.Analysis) string {
	var b strings.Builder
	b.WriteString(briefSystemPrompt)
	b.WriteString("\n\nFindings:\n")
	b.WriteString(renderFindings(c, analysis))
	return b.String()
}

// renderFindings flattens the ranked result into numbered plain text.
func renderFindings(c *models.Case, analysis *models.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", c.SubjectName)
	fmt.Fprintf(&b, "Analysis of %s over %d evidence document(s)\n\n", analysis.CreatedAt.Format("2006-01-02"), analysis.FactSetCount)

	if len(analysis.Result.Addresses) == 0 {
		b.WriteString("No location candidates in evidence.\n")
	}
	for i, addr := range analysis.Result.Addresses {
		fmt.Fprintf(&b, "Location %d: %s (%d%%, %s)\n", i+1, addr.Canonical, addr.Probability, addr.Type)
		for _, reason := range addr.Reasons {
			fmt.Fprintf(&b, "  - %s\n", reason)
		}
		if len(addr.People) > 0 {
			fmt.Fprintf(&b, "  People: %s\n", strings.Join(addr.People, ", "))
		}
	}

	if len(analysis.Result.Vehicles) > 0 {
		b.WriteString("\nVehicles:\n")
		for _, v := range analysis.Result.Vehicles {
			line := v.Canonical
			if v.Plate != "" {
				line += " plate " + v.Plate
			}
			fmt.Fprintf(&b, "  - %s (%d%%)\n", line, v.Probability)
		}
	}

	if len(analysis.Result.Patterns) > 0 {
		b.WriteString("\nPatterns:\n")
		for _, p := range analysis.Result.Patterns {
			fmt.Fprintf(&b, "  - [%s] %s (%d%%)\n", p.Kind, p.Summary, p.Confidence)
		}
	}

	if len(analysis.Result.Questions) > 0 {
		b.WriteString("\nOpen questions:\n")
		for _, q := range analysis.Result.Questions {
			fmt.Fprintf(&b, "  - %s\n", q.Text)
		}
	}

	return b.String()
}

func (s *BriefService) recordAudit(ctx context.Context, caseID uuid.UUID, action models.AuditAction, detail string) {
	if s.auditRepo == nil {
		return
	}
	entry := &models.AuditEntry{CaseID: caseID, Action: action}
	if detail != "" {
		entry.Detail = &detail
	}
	if err := s.auditRepo.Record(ctx, entry); err != nil {
		log.Printf("Warning: failed to record audit entry %s for case %s: %v", action, caseID, err)
	}
}
