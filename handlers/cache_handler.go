package handlers

import (
	"net/http"
	"strings"

	"corpinsight-backend/cache"
	"corpinsight-backend/models"

	"github.com/gin-gonic/gin"
)

// CacheHandler handles HTTP requests for cache inspection and maintenance
type CacheHandler struct {
	cache *cache.DocumentCache
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(c *cache.DocumentCache) *CacheHandler {
	return &CacheHandler{cache: c}
}

// Stats handles GET /api/cache/stats
func (h *CacheHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.cache.Stats(),
	})
}

// Reset handles POST /api/cache/reset
func (h *CacheHandler) Reset(c *gin.Context) {
	if err := h.cache.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RESET_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.cache.Stats(),
	})
}

// Check handles GET /api/cache/check. The identity parameters depend on
// source_kind: document_id for filings, company_id+title for broker
// reports, keywords (comma-separated) for industry reports.
func (h *CacheHandler) Check(c *gin.Context) {
	kind := models.SourceKind(c.Query("source_kind"))

	switch kind {
	case models.SourceRegulatoryFiling:
		documentID := c.Query("document_id")
		if documentID == "" {
			h.badRequest(c, "document_id is required for regulatory_filing")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"cached": h.cache.HasFiling(documentID)},
		})

	case models.SourceBrokerReport:
		companyID := c.Query("company_id")
		title := c.Query("title")
		if companyID == "" || title == "" {
			h.badRequest(c, "company_id and title are required for broker_report")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"cached": h.cache.HasBrokerReport(companyID, title)},
		})

	case models.SourceIndustryReport:
		raw := c.Query("keywords")
		if raw == "" {
			h.badRequest(c, "keywords is required for industry_report")
			return
		}
		entry := h.cache.FindIndustryReport(strings.Split(raw, ","))
		data := gin.H{"cached": entry != nil}
		if entry != nil {
			data["entry"] = entry
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    data,
		})

	default:
		h.badRequest(c, "source_kind must be regulatory_filing, broker_report or industry_report")
	}
}

func (h *CacheHandler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INVALID_REQUEST",
			"message": message,
		},
	})
}
