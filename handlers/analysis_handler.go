package handlers

import (
	"errors"
	"net/http"

	"github.com/douggil74/elite-recovery-app-sub004/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// sessionHeader carries the viewer session for masking state. One
// session's reveals never carry over to another.
const sessionHeader = "X-Session-ID"

// AnalysisHandler handles HTTP requests for analysis, reveal, and
// brief generation
type AnalysisHandler struct {
	caseService     *service.CaseService
	crossRefService *service.CrossRefService
	revealService   *service.RevealService
	briefService    *service.BriefService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(
	caseService *service.CaseService,
	crossRefService *service.CrossRefService,
	revealService *service.RevealService,
	briefService *service.BriefService,
) *AnalysisHandler {
	return &AnalysisHandler{
		caseService:     caseService,
		crossRefService: crossRefService,
		revealService:   revealService,
		briefService:    briefService,
	}
}

// Analyze handles POST /api/cases/:id/analyze
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	caseID, ok := h.parseCaseID(c)
	if !ok {
		return
	}

	if _, err := h.caseService.GetCase(c.Request.Context(), caseID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CASE_NOT_FOUND",
				"message": "Case not found",
			},
		})
		return
	}

	analysis, err := h.crossRefService.Analyze(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ANALYZE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":             analysis.ID,
			"fact_set_count": analysis.FactSetCount,
			"created_at":     analysis.CreatedAt,
		},
	})
}

// GetAnalysis handles GET /api/cases/:id/analysis. Sensitive values
// come back masked unless already revealed in the caller's session.
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	caseID, ok := h.parseCaseID(c)
	if !ok {
		return
	}

	analysis, err := h.crossRefService.GetLatest(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_ANALYSIS",
				"message": service.UserMessage(err),
			},
		})
		return
	}

	sessionID := c.GetHeader(sessionHeader)
	if sessionID == "" {
		sessionID = "default"
	}
	masked := h.revealService.MaskResult(sessionID, caseID, analysis.Result)

	h.caseService.RecordView(c.Request.Context(), caseID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":             analysis.ID,
			"result":         masked,
			"fact_set_count": analysis.FactSetCount,
			"created_at":     analysis.CreatedAt,
		},
	})
}

// RevealRequest represents the request body for revealing a field
type RevealRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// Reveal handles POST /api/cases/:id/reveal. The audit entry is
// written before the unmasked value leaves the server.
func (h *AnalysisHandler) Reveal(c *gin.Context) {
	caseID, ok := h.parseCaseID(c)
	if !ok {
		return
	}

	var req RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	sessionID := c.GetHeader(sessionHeader)
	if sessionID == "" {
		sessionID = "default"
	}

	value, err := h.revealService.Reveal(c.Request.Context(), sessionID, caseID, service.FieldKind(req.Field), req.Value)
	if err != nil {
		if errors.Is(err, service.ErrUnknownField) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNKNOWN_FIELD",
					"message": "Field must be one of: address, phone, ssn",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "REVEAL_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"field": req.Field,
			"value": value,
		},
	})
}

// ResetSession handles DELETE /api/cases/:id/reveal. Everything the
// session revealed goes back to masked.
func (h *AnalysisHandler) ResetSession(c *gin.Context) {
	if _, ok := h.parseCaseID(c); !ok {
		return
	}

	sessionID := c.GetHeader(sessionHeader)
	if sessionID == "" {
		sessionID = "default"
	}
	h.revealService.ResetSession(sessionID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"message": "Session re-masked",
		},
	})
}

// GenerateBrief handles POST /api/cases/:id/brief
func (h *AnalysisHandler) GenerateBrief(c *gin.Context) {
	caseID, ok := h.parseCaseID(c)
	if !ok {
		return
	}

	brief, err := h.briefService.GenerateBrief(c.Request.Context(), caseID)
	if err != nil {
		h.briefError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"brief": brief,
		},
	})
}

// ExportBrief handles GET /api/cases/:id/brief/export
func (h *AnalysisHandler) ExportBrief(c *gin.Context) {
	caseID, ok := h.parseCaseID(c)
	if !ok {
		return
	}

	export, err := h.briefService.ExportBrief(c.Request.Context(), caseID)
	if err != nil {
		h.briefError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=recovery-brief.txt")
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(export))
}

func (h *AnalysisHandler) briefError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCaseNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CASE_NOT_FOUND",
				"message": "Case not found",
			},
		})
	case errors.Is(err, service.ErrNoAnalysis):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_ANALYSIS",
				"message": service.UserMessage(err),
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "BRIEF_FAILED",
				"message": err.Error(),
			},
		})
	}
}

func (h *AnalysisHandler) parseCaseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid case ID format",
			},
		})
		return uuid.Nil, false
	}
	return id, true
}
