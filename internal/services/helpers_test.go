package services_test

import (
	"context"
	"time"

	"argus-news-pipeline/internal/config"
	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"
	"argus-news-pipeline/internal/services"
)

func newTestLogger() *logger.Logger {
	testLogger, _ := logger.New(logger.Config{
		Level:  "error",
		Format: "json",
		Output: "stdout",
	})
	return testLogger
}

func testTiers() *services.StaticTierProvider {
	return services.NewStaticTierProvider(config.GeminiConfig{
		EventModel:     config.ModelTier{Name: "event-model", CostPerCall: 0.002},
		ReasoningModel: config.ModelTier{Name: "reasoning-model", CostPerCall: 0.015},
		JudgmentModel:  config.ModelTier{Name: "judgment-model", CostPerCall: 0.008},
	})
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		ConfidenceThreshold: 0.5,
		DuplicateWindow:     time.Hour,
		BatchDelay:          0,
		PassTimeout:         10 * time.Second,
	}
}

type MockGenerator struct {
	Response    string
	Err         error
	Calls       int
	LastRequest *services.GenerationRequest
}

func (m *MockGenerator) GenerateJSON(ctx context.Context, req *services.GenerationRequest) (*services.GenerationResponse, error) {
	m.Calls++
	m.LastRequest = req
	if m.Err != nil {
		return nil, m.Err
	}
	return &services.GenerationResponse{
		Content:    m.Response,
		Model:      req.Tier.Name,
		TokensUsed: len(m.Response) / 4,
	}, nil
}

func sampleArticle() models.ArticleContent {
	return models.ArticleContent{
		URL:         "https://example.com/apple-redesign",
		Title:       "Apple Inc. Plans Major iPhone Redesigns For Three Consecutive Years",
		Summary:     "Apple plans major iPhone redesigns.",
		FullText:    "Apple Inc. is planning major iPhone redesigns for three consecutive years, people familiar with the matter said.",
		PublishedAt: time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC),
		Source:      "Bloomberg",
	}
}

// MockStore is an in-memory ArticleStore for manager and reviewer tests.
type MockStore struct {
	Articles     map[string]*models.ArticleRecord
	Results      []*models.ProcessingResultRecord
	ReviewWrites int
	CreateErr    error
	FindErr      error
	ResultErr    error
}

func NewMockStore() *MockStore {
	return &MockStore{Articles: make(map[string]*models.ArticleRecord)}
}

func (s *MockStore) FindArticleByIdentity(ctx context.Context, title, source string, published time.Time, tolerance time.Duration) (*models.ArticleRecord, error) {
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	normalized := services.NormalizeTitle(title)
	for _, record := range s.Articles {
		if record.NormalizedTitle != normalized || record.Source != source {
			continue
		}
		diff := record.PublishedAt.Sub(published)
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return record, nil
		}
	}
	return nil, nil
}

func (s *MockStore) CreateArticle(ctx context.Context, fields models.ArticleFields) (*models.ArticleRecord, error) {
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	now := time.Now()
	record := &models.ArticleRecord{
		ID:              models.NewArticleID(),
		Title:           fields.Title,
		NormalizedTitle: services.NormalizeTitle(fields.Title),
		Source:          fields.Source,
		URL:             fields.URL,
		Summary:         fields.Summary,
		FullText:        fields.FullText,
		Authors:         fields.Authors,
		PublishedAt:     fields.PublishedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.Articles[record.ID] = record
	return record, nil
}

func (s *MockStore) UpdateArticle(ctx context.Context, id string, fields models.ArticleFields) (*models.ArticleRecord, error) {
	record, ok := s.Articles[id]
	if !ok {
		return nil, models.NewPersistenceError("ARTICLE_NOT_FOUND", "missing article")
	}
	record.URL = fields.URL
	record.Summary = fields.Summary
	if fields.FullText != "" {
		record.FullText = fields.FullText
	}
	record.UpdatedAt = time.Now()
	return record, nil
}

func (s *MockStore) CreateProcessingResult(ctx context.Context, record *models.ProcessingResultRecord) error {
	if s.ResultErr != nil {
		return s.ResultErr
	}
	s.Results = append(s.Results, record)
	return nil
}

func (s *MockStore) RecentProcessingResults(ctx context.Context, limit int) ([]*models.ProcessingResultRecord, error) {
	if limit > len(s.Results) {
		limit = len(s.Results)
	}
	out := make([]*models.ProcessingResultRecord, 0, limit)
	for i := len(s.Results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.Results[i])
	}
	return out, nil
}

func (s *MockStore) UpdateProcessingResultReview(ctx context.Context, processingID string, score int, flags []string, notes string) error {
	s.ReviewWrites++
	for _, record := range s.Results {
		if record.ProcessingID == processingID {
			now := time.Now()
			record.QualityScore = &score
			record.QualityFlags = flags
			record.QualityNotes = notes
			record.ReviewedAt = &now
			return nil
		}
	}
	return models.NewPersistenceError("RESULT_NOT_FOUND", "missing processing result")
}
