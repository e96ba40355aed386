package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"argus-news-pipeline/internal/config"
	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"
)

// ArticleProcessor runs a full analysis over one article. Pipeline satisfies
// this; tests substitute their own.
type ArticleProcessor interface {
	ProcessArticle(ctx context.Context, article models.ArticleContent) (*models.ProcessedArticle, error)
}

// ArticleManager is the duplicate-aware entry point around the pipeline. It
// reuses the stored article when an incoming seed matches a known identity,
// appends a processing result per run whether the run succeeded or not, and
// never lets one bad article sink a batch.
type ArticleManager struct {
	processor ArticleProcessor
	store     ArticleStore
	scraper   ArticleScraper
	config    config.PipelineConfig
	logger    *logger.Logger
}

type ProcessOptions struct {
	// ForceReprocess disables duplicate reuse: a matching stored article is
	// ignored and the run creates a fresh article record.
	ForceReprocess bool
}

// TrackedResult reports one managed run: the article record it resolved to,
// the processing result it appended, the in-memory analysis, and whether the
// article already existed.
type TrackedResult struct {
	ProcessingID string                         `json:"processing_id"`
	Article      *models.ArticleRecord          `json:"article"`
	Result       *models.ProcessingResultRecord `json:"result"`
	Processed    *models.ProcessedArticle       `json:"processed,omitempty"`
	IsUpdate     bool                           `json:"is_update"`
}

type BatchItemError struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

type BatchSummary struct {
	TotalRequested int              `json:"total_requested"`
	Succeeded      int              `json:"succeeded"`
	Failed         int              `json:"failed"`
	Duplicates     int              `json:"duplicates"`
	TotalCost      float64          `json:"total_cost"`
	Duration       time.Duration    `json:"duration"`
	Results        []*TrackedResult `json:"results"`
	Errors         []BatchItemError `json:"errors,omitempty"`
}

func NewArticleManager(processor ArticleProcessor, store ArticleStore, scraper ArticleScraper, cfg config.PipelineConfig, log *logger.Logger) *ArticleManager {
	return &ArticleManager{
		processor: processor,
		store:     store,
		scraper:   scraper,
		config:    cfg,
		logger:    log,
	}
}

// ProcessArticleWithTracking resolves the seed against stored articles,
// enriches it, runs the pipeline, and persists both the article and an
// append-only processing result. A pipeline failure still leaves an
// error-flagged result behind before the error is returned, so failed runs
// are visible to review.
func (m *ArticleManager) ProcessArticleWithTracking(ctx context.Context, seed *models.ArticleContent, opts ProcessOptions) (*TrackedResult, error) {
	if seed == nil {
		return nil, models.NewValidationError("NIL_ARTICLE", "article cannot be nil")
	}
	if seed.Title == "" || seed.Source == "" {
		return nil, models.NewValidationError("INCOMPLETE_ARTICLE", "article requires title and source")
	}

	startTime := time.Now()

	existing, err := m.store.FindArticleByIdentity(ctx, seed.Title, seed.Source, seed.PublishedAt, m.config.DuplicateWindow)
	if err != nil {
		return nil, err
	}
	if opts.ForceReprocess {
		existing = nil
	}
	isUpdate := existing != nil

	if m.scraper != nil {
		if enriched, scrapeErr := m.scraper.ScrapeArticle(ctx, seed); scrapeErr == nil && enriched != nil {
			seed = enriched
		}
	}

	processed, pipelineErr := m.processor.ProcessArticle(ctx, *seed)
	if pipelineErr != nil {
		return m.recordFailure(ctx, seed, existing, pipelineErr, startTime)
	}

	record, err := m.persistArticle(ctx, seed, existing)
	if err != nil {
		return nil, err
	}

	result := buildResultRecord(record.ID, processed, isUpdate)
	if err := m.store.CreateProcessingResult(ctx, result); err != nil {
		return nil, err
	}

	m.logger.LogService("article_manager", "process_article", time.Since(startTime), map[string]interface{}{
		"article_id":    record.ID,
		"processing_id": result.ProcessingID,
		"is_update":     isUpdate,
		"total_cost":    result.TotalCost,
	}, nil)

	return &TrackedResult{
		ProcessingID: result.ProcessingID,
		Article:      record,
		Result:       result,
		Processed:    processed,
		IsUpdate:     isUpdate,
	}, nil
}

func (m *ArticleManager) persistArticle(ctx context.Context, seed *models.ArticleContent, existing *models.ArticleRecord) (*models.ArticleRecord, error) {
	fields := models.ArticleFields{
		Title:       seed.Title,
		Source:      seed.Source,
		URL:         seed.URL,
		Summary:     seed.Summary,
		FullText:    seed.FullText,
		Authors:     seed.Authors,
		PublishedAt: seed.PublishedAt,
	}
	if existing != nil {
		return m.store.UpdateArticle(ctx, existing.ID, fields)
	}
	return m.store.CreateArticle(ctx, fields)
}

// recordFailure persists an error-flagged processing result so the failed run
// shows up in review queues, then surfaces the original pipeline error.
func (m *ArticleManager) recordFailure(ctx context.Context, seed *models.ArticleContent, existing *models.ArticleRecord, pipelineErr error, startTime time.Time) (*TrackedResult, error) {
	record, persistErr := m.persistArticle(ctx, seed, existing)
	if persistErr != nil {
		m.logger.WithError(persistErr).Error("failed to persist article for error record")
		return nil, pipelineErr
	}

	result := &models.ProcessingResultRecord{
		ProcessingID:      models.NewProcessingID(),
		ArticleID:         record.ID,
		ProcessedAt:       time.Now(),
		ProcessingType:    "full_pipeline",
		ProcessingTime:    time.Since(startTime).Seconds(),
		HumanReviewStatus: models.ReviewStatusNeedsRevision,
		NeedsReprocessing: true,
		ErrorMessage:      pipelineErr.Error(),
	}

	var appErr *models.AppError
	if errors.As(pipelineErr, &appErr) {
		result.ErrorMessage = appErr.Message
	}

	if err := m.store.CreateProcessingResult(ctx, result); err != nil {
		m.logger.WithError(err).Error("failed to persist error-flagged processing result")
	}

	m.logger.LogService("article_manager", "process_article", time.Since(startTime), map[string]interface{}{
		"article_id":    record.ID,
		"processing_id": result.ProcessingID,
	}, pipelineErr)

	return nil, pipelineErr
}

func buildResultRecord(articleID string, processed *models.ProcessedArticle, isUpdate bool) *models.ProcessingResultRecord {
	pass1JSON, _ := json.Marshal(processed.Pass1)
	pass2JSON, _ := json.Marshal(processed.Pass2)
	pass3JSON, _ := json.Marshal(processed.Pass3)

	processingType := "full_pipeline"
	if isUpdate {
		processingType = "reprocessing"
	}

	return &models.ProcessingResultRecord{
		ProcessingID:   models.NewProcessingID(),
		ArticleID:      articleID,
		ProcessedAt:    processed.ProcessedAt,
		ProcessingType: processingType,
		ModelsUsed:     processed.ModelsUsed,
		ProcessingTime: processed.ProcessingTime.Seconds(),
		TotalCost:      processed.TotalCost,

		Pass1JSON: pass1JSON,
		Pass2JSON: pass2JSON,
		Pass3JSON: pass3JSON,

		EventsIdentified:  processed.Pass1.EventsIdentified,
		ArticleType:       processed.Pass1.ArticleType,
		OverallTone:       processed.Pass1.OverallTone,
		MarketImpactScore: processed.Pass3.MarketImpactScore,
		OverallConfidence: processed.Pass3.ConfidenceMatrix.Overall,
		BeliefFactors:     &processed.Pass3.BeliefFactors,

		HumanReviewStatus: models.ReviewStatusPending,
		NeedsReprocessing: false,
	}
}

// BatchProcessArticles runs the seeds strictly one at a time with a fixed
// pause between them. A failed article is recorded and skipped; the batch
// carries on. Only context cancellation aborts the whole batch.
func (m *ArticleManager) BatchProcessArticles(ctx context.Context, seeds []models.ArticleContent, opts ProcessOptions) (*BatchSummary, error) {
	startTime := time.Now()

	summary := &BatchSummary{
		TotalRequested: len(seeds),
		Results:        make([]*TrackedResult, 0, len(seeds)),
	}

	for i := range seeds {
		if i > 0 && m.config.BatchDelay > 0 {
			select {
			case <-time.After(m.config.BatchDelay):
			case <-ctx.Done():
				summary.Duration = time.Since(startTime)
				return summary, models.NewTimeoutError("BATCH_CANCELLED", "batch processing cancelled").WithCause(ctx.Err())
			}
		}

		tracked, err := m.ProcessArticleWithTracking(ctx, &seeds[i], opts)
		if err != nil {
			if ctx.Err() != nil {
				summary.Duration = time.Since(startTime)
				return summary, models.NewTimeoutError("BATCH_CANCELLED", "batch processing cancelled").WithCause(ctx.Err())
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, BatchItemError{
				Index: i,
				Title: seeds[i].Title,
				Error: err.Error(),
			})
			continue
		}

		summary.Succeeded++
		summary.TotalCost += tracked.Result.TotalCost
		if tracked.IsUpdate {
			summary.Duplicates++
		}
		summary.Results = append(summary.Results, tracked)
	}

	summary.Duration = time.Since(startTime)

	m.logger.LogService("article_manager", "batch_process", summary.Duration, map[string]interface{}{
		"total_requested": summary.TotalRequested,
		"succeeded":       summary.Succeeded,
		"failed":          summary.Failed,
		"duplicates":      summary.Duplicates,
		"total_cost":      summary.TotalCost,
	}, nil)

	return summary, nil
}
