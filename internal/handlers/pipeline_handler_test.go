package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"argus-news-pipeline/internal/handlers"
	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"
	"argus-news-pipeline/internal/services"

	"github.com/gin-gonic/gin"
)

type MockTracker struct {
	Err error
}

func (m *MockTracker) ProcessArticleWithTracking(ctx context.Context, seed *models.ArticleContent, opts services.ProcessOptions) (*services.TrackedResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &services.TrackedResult{
		ProcessingID: "test-processing-id",
		Article:      &models.ArticleRecord{ID: "test-article-id", Title: seed.Title},
		Result:       &models.ProcessingResultRecord{ProcessingID: "test-processing-id"},
	}, nil
}

func (m *MockTracker) BatchProcessArticles(ctx context.Context, seeds []models.ArticleContent, opts services.ProcessOptions) (*services.BatchSummary, error) {
	return &services.BatchSummary{TotalRequested: len(seeds), Succeeded: len(seeds)}, nil
}

type MockReviewer struct{}

func (m *MockReviewer) ReviewRecentResults(ctx context.Context, limit int) (*services.ReviewSummary, error) {
	return &services.ReviewSummary{Fetched: 2, Reviewed: 2}, nil
}

type MockResults struct{}

func (m *MockResults) RecentProcessingResults(ctx context.Context, limit int) ([]*models.ProcessingResultRecord, error) {
	return []*models.ProcessingResultRecord{{ProcessingID: "r1"}}, nil
}

type HealthyChecker struct{}

func (HealthyChecker) HealthCheck(ctx context.Context) error { return nil }

func setupTestRouter(tracker *MockTracker) *gin.Engine {
	gin.SetMode(gin.TestMode)

	testLogger, _ := logger.New(logger.Config{
		Level:  "error",
		Format: "json",
		Output: "stdout",
	})

	handler := handlers.NewPipelineHandler(tracker, &MockReviewer{}, &MockResults{}, map[string]handlers.HealthChecker{
		"store": HealthyChecker{},
	}, testLogger)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func TestProcessArticleEndpoint(t *testing.T) {
	router := setupTestRouter(&MockTracker{})

	requestBody := models.ProcessArticleRequest{
		Article: models.ArticleContent{
			Title:       "Apple Announces Results",
			Source:      "Reuters",
			Summary:     "Apple beat estimates.",
			PublishedAt: time.Now(),
		},
	}

	jsonBody, _ := json.Marshal(requestBody)
	req, _ := http.NewRequest("POST", "/api/v1/articles/process", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Response is not valid JSON: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success envelope")
	}
}

func TestProcessArticleEndpointRejectsMissingFields(t *testing.T) {
	router := setupTestRouter(&MockTracker{})

	req, _ := http.NewRequest("POST", "/api/v1/articles/process", bytes.NewBufferString(`{"article": {"summary": "no title"}}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestProcessArticleEndpointPipelineFailure(t *testing.T) {
	tracker := &MockTracker{
		Err: models.NewPipelineError(2, "pass 2 failed"),
	}
	router := setupTestRouter(tracker)

	requestBody := models.ProcessArticleRequest{
		Article: models.ArticleContent{
			Title:       "Apple Announces Results",
			Source:      "Reuters",
			Summary:     "Apple beat estimates.",
			PublishedAt: time.Now(),
		},
	}

	jsonBody, _ := json.Marshal(requestBody)
	req, _ := http.NewRequest("POST", "/api/v1/articles/process", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502 for pipeline failure, got %d", w.Code)
	}
}

func TestBatchEndpoint(t *testing.T) {
	router := setupTestRouter(&MockTracker{})

	requestBody := models.BatchProcessRequest{
		Articles: []models.ArticleContent{
			{Title: "One", Source: "Reuters", Summary: "a", PublishedAt: time.Now()},
			{Title: "Two", Source: "Reuters", Summary: "b", PublishedAt: time.Now()},
		},
	}

	jsonBody, _ := json.Marshal(requestBody)
	req, _ := http.NewRequest("POST", "/api/v1/articles/batch", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestReviewEndpoint(t *testing.T) {
	router := setupTestRouter(&MockTracker{})

	req, _ := http.NewRequest("POST", "/api/v1/review", bytes.NewBufferString(`{"limit": 5}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(&MockTracker{})

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
