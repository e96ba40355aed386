package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"
	"argus-news-pipeline/internal/services"

	"github.com/gin-gonic/gin"
)

// ArticleTracker is the managed processing surface the handler needs.
type ArticleTracker interface {
	ProcessArticleWithTracking(ctx context.Context, seed *models.ArticleContent, opts services.ProcessOptions) (*services.TrackedResult, error)
	BatchProcessArticles(ctx context.Context, seeds []models.ArticleContent, opts services.ProcessOptions) (*services.BatchSummary, error)
}

type ResultReviewer interface {
	ReviewRecentResults(ctx context.Context, limit int) (*services.ReviewSummary, error)
}

type ResultReader interface {
	RecentProcessingResults(ctx context.Context, limit int) ([]*models.ProcessingResultRecord, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type PipelineHandler struct {
	tracker  ArticleTracker
	reviewer ResultReviewer
	results  ResultReader
	health   map[string]HealthChecker
	logger   *logger.Logger
}

func NewPipelineHandler(tracker ArticleTracker, reviewer ResultReviewer, results ResultReader, health map[string]HealthChecker, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		tracker:  tracker,
		reviewer: reviewer,
		results:  results,
		health:   health,
		logger:   log,
	}
}

// ProcessArticle handles POST /api/v1/articles/process.
func (h *PipelineHandler) ProcessArticle(c *gin.Context) {
	var req models.ProcessArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	result, err := h.tracker.ProcessArticleWithTracking(c.Request.Context(), &req.Article, services.ProcessOptions{
		ForceReprocess: req.ForceReprocess,
	})
	if err != nil {
		h.logger.WithError(err).Error("article processing failed")
		c.JSON(statusForError(err), models.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "article processed",
		Data:    result,
	})
}

// BatchProcess handles POST /api/v1/articles/batch.
func (h *PipelineHandler) BatchProcess(c *gin.Context) {
	var req models.BatchProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	summary, err := h.tracker.BatchProcessArticles(c.Request.Context(), req.Articles, services.ProcessOptions{
		ForceReprocess: req.ForceReprocess,
	})
	if err != nil {
		h.logger.WithError(err).Error("batch processing aborted")
		c.JSON(statusForError(err), models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Data:    summary,
		})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "batch processed",
		Data:    summary,
	})
}

// ReviewResults handles POST /api/v1/review.
func (h *PipelineHandler) ReviewResults(c *gin.Context) {
	// An empty body is fine; the reviewer falls back to its default limit.
	var req models.ReviewRequest
	_ = c.ShouldBindJSON(&req)

	summary, err := h.reviewer.ReviewRecentResults(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.WithError(err).Error("quality review failed")
		c.JSON(statusForError(err), models.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "review completed",
		Data:    summary,
	})
}

// RecentResults handles GET /api/v1/results/recent.
func (h *PipelineHandler) RecentResults(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.results.RecentProcessingResults(c.Request.Context(), limit)
	if err != nil {
		c.JSON(statusForError(err), models.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    records,
	})
}

// Health handles GET /health. Each registered dependency is probed with a
// short deadline; any failure degrades the overall status.
func (h *PipelineHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	components := gin.H{}
	for name, checker := range h.health {
		if err := checker.HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			components[name] = "healthy"
		}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"components": components,
		"timestamp":  time.Now().UTC(),
	})
}

// RegisterRoutes wires the handler onto the router.
func (h *PipelineHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/articles/process", h.ProcessArticle)
		api.POST("/articles/batch", h.BatchProcess)
		api.POST("/review", h.ReviewResults)
		api.GET("/results/recent", h.RecentResults)
	}
}

func statusForError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Type {
	case models.ErrorTypeValidation:
		return http.StatusBadRequest
	case models.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case models.ErrorTypePersistence:
		return http.StatusInternalServerError
	case models.ErrorTypeExternal, models.ErrorTypeExtraction, models.ErrorTypePipeline:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
