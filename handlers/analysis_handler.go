package handlers

import (
	"errors"
	"net/http"

	"corpinsight-backend/llm"
	"corpinsight-backend/models"
	"corpinsight-backend/service"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler handles HTTP requests for company analysis
type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// AnalyzeRequest represents the request body for running an analysis
type AnalyzeRequest struct {
	CompanyName     string   `json:"company_name" binding:"required"`
	Query           string   `json:"query" binding:"required"`
	TaskType        string   `json:"task_type"`
	Keywords        []string `json:"keywords"`
	ExcludeOpinions bool     `json:"exclude_opinions"`
}

// Analyze handles POST /api/analyze
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "company_name and query are required",
			},
		})
		return
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), req.CompanyName, req.Query, service.AnalyzeOptions{
		Task:            llm.Task(req.TaskType),
		Keywords:        req.Keywords,
		ExcludeOpinions: req.ExcludeOpinions,
	})
	if err != nil {
		status := http.StatusInternalServerError
		code := "ANALYSIS_FAILED"
		switch {
		case errors.Is(err, service.ErrCompanyNotResolved):
			status = http.StatusNotFound
			code = "COMPANY_NOT_RESOLVED"
		case isGenerationError(err):
			status = http.StatusBadGateway
			code = "GENERATION_FAILED"
		}
		// The partial result still goes out so clients can show what was
		// gathered before the failure.
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
			"data": result,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// SubmitDocumentRequest represents the request body for caching a document
type SubmitDocumentRequest struct {
	DocumentID string   `json:"document_id" binding:"required"`
	CompanyID  string   `json:"company_id"`
	Title      string   `json:"title"`
	RawText    string   `json:"raw_text" binding:"required"`
	SourceKind string   `json:"source_kind" binding:"required"`
	Keywords   []string `json:"keywords"`
}

// SubmitDocument handles POST /api/documents
func (h *AnalysisHandler) SubmitDocument(c *gin.Context) {
	var req SubmitDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "document_id, raw_text and source_kind are required",
			},
		})
		return
	}

	kind := models.SourceKind(req.SourceKind)
	switch kind {
	case models.SourceRegulatoryFiling, models.SourceBrokerReport, models.SourceIndustryReport:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_SOURCE_KIND",
				"message": "source_kind must be regulatory_filing, broker_report or industry_report",
			},
		})
		return
	}

	entry, err := h.analysisService.SubmitDocument(c.Request.Context(), models.Document{
		DocumentID: req.DocumentID,
		CompanyID:  req.CompanyID,
		Title:      req.Title,
		RawText:    req.RawText,
		SourceKind: kind,
		Keywords:   req.Keywords,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STORE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    entry,
	})
}

func isGenerationError(err error) bool {
	var genErr *llm.GenerationError
	return errors.As(err, &genErr)
}
