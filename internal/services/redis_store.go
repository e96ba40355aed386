package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"argus-news-pipeline/internal/config"
	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements ArticleStore on Redis. Articles live as JSON values
// with a per-identity sorted-set index keyed by normalized title and source,
// scored by published timestamp so tolerance-window lookups are a single
// range query. Processing results are JSON values indexed by a recency
// sorted set and never rewritten after creation (review annotations
// excepted).
type RedisStore struct {
	client *redis.Client
	logger *logger.Logger
	config config.RedisConfig
}

func NewRedisStore(cfg config.RedisConfig, log *logger.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	store := &RedisStore{
		client: redis.NewClient(opt),
		logger: log,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connection to Redis failed: %w", err)
	}

	log.Info("Redis store initialized", "url", cfg.URL, "pool_size", cfg.PoolSize)
	return store, nil
}

func articleKey(id string) string {
	return "article:" + id
}

func identityKey(normalizedTitle, source string) string {
	return "article_index:" + normalizedTitle + "|" + source
}

func claimKey(normalizedTitle, source string) string {
	return "article_claim:" + normalizedTitle + "|" + source
}

func resultKey(processingID string) string {
	return "processing_result:" + processingID
}

const recentResultsKey = "processing_results:recent"

func (store *RedisStore) FindArticleByIdentity(ctx context.Context, title, source string, published time.Time, tolerance time.Duration) (*models.ArticleRecord, error) {
	startTime := time.Now()
	normalized := NormalizeTitle(title)

	minScore := strconv.FormatInt(published.Add(-tolerance).Unix(), 10)
	maxScore := strconv.FormatInt(published.Add(tolerance).Unix(), 10)

	ids, err := store.client.ZRangeByScore(ctx, identityKey(normalized, source), &redis.ZRangeBy{
		Min: minScore,
		Max: maxScore,
	}).Result()
	if err != nil {
		store.logger.LogService("redis", "find_article_by_identity", time.Since(startTime), map[string]interface{}{
			"normalized_title": normalized,
			"source":           source,
		}, err)
		return nil, models.NewPersistenceError("REDIS_LOOKUP_FAILED", "identity lookup failed").WithCause(err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	record, err := store.loadArticle(ctx, ids[0])
	if err != nil || record == nil {
		return nil, err
	}

	store.logger.LogService("redis", "find_article_by_identity", time.Since(startTime), map[string]interface{}{
		"normalized_title": normalized,
		"source":           source,
		"matched_id":       record.ID,
	}, nil)

	return record, nil
}

func (store *RedisStore) loadArticle(ctx context.Context, id string) (*models.ArticleRecord, error) {
	data, err := store.client.Get(ctx, articleKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewPersistenceError("REDIS_GET_FAILED", "failed to load article").WithCause(err).WithMetadata("article_id", id)
	}

	var record models.ArticleRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, models.NewInternalError("ARTICLE_DESERIALIZATION_FAILED", "stored article is not valid JSON").WithCause(err)
	}
	return &record, nil
}

func (store *RedisStore) CreateArticle(ctx context.Context, fields models.ArticleFields) (*models.ArticleRecord, error) {
	startTime := time.Now()
	now := time.Now()
	normalized := NormalizeTitle(fields.Title)

	record := &models.ArticleRecord{
		ID:              models.NewArticleID(),
		Title:           fields.Title,
		NormalizedTitle: normalized,
		Source:          fields.Source,
		URL:             fields.URL,
		Summary:         fields.Summary,
		FullText:        fields.FullText,
		Authors:         fields.Authors,
		PublishedAt:     fields.PublishedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// The claim key serializes concurrent create attempts for the same
	// identity: losing the SetNX race means another run just created this
	// article, so surface that record instead of writing a second one.
	claimed, err := store.client.SetNX(ctx, claimKey(normalized, fields.Source), record.ID, store.config.ClaimTTL).Result()
	if err != nil {
		return nil, models.NewPersistenceError("REDIS_CLAIM_FAILED", "identity claim failed").WithCause(err)
	}
	if !claimed {
		existingID, err := store.client.Get(ctx, claimKey(normalized, fields.Source)).Result()
		if err == nil && existingID != "" {
			if existing, loadErr := store.loadArticle(ctx, existingID); loadErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, models.NewPersistenceError("ARTICLE_ALREADY_EXISTS", "concurrent create for the same article identity")
	}

	if err := store.writeArticle(ctx, record); err != nil {
		return nil, err
	}

	store.logger.LogService("redis", "create_article", time.Since(startTime), map[string]interface{}{
		"article_id": record.ID,
		"source":     record.Source,
	}, nil)

	return record, nil
}

func (store *RedisStore) writeArticle(ctx context.Context, record *models.ArticleRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return models.NewInternalError("ARTICLE_SERIALIZATION_FAILED", "failed to serialize article").WithCause(err)
	}

	pipe := store.client.TxPipeline()
	pipe.Set(ctx, articleKey(record.ID), data, 0)
	pipe.ZAdd(ctx, identityKey(record.NormalizedTitle, record.Source), redis.Z{
		Score:  float64(record.PublishedAt.Unix()),
		Member: record.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return models.NewPersistenceError("REDIS_WRITE_FAILED", "failed to write article").WithCause(err).WithMetadata("article_id", record.ID)
	}
	return nil
}

func (store *RedisStore) UpdateArticle(ctx context.Context, id string, fields models.ArticleFields) (*models.ArticleRecord, error) {
	startTime := time.Now()

	record, err := store.loadArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, models.NewPersistenceError("ARTICLE_NOT_FOUND", "cannot update missing article").WithMetadata("article_id", id)
	}

	record.URL = fields.URL
	record.Summary = fields.Summary
	if fields.FullText != "" {
		record.FullText = fields.FullText
	}
	if len(fields.Authors) > 0 {
		record.Authors = fields.Authors
	}
	record.UpdatedAt = time.Now()

	if err := store.writeArticle(ctx, record); err != nil {
		return nil, err
	}

	store.logger.LogService("redis", "update_article", time.Since(startTime), map[string]interface{}{
		"article_id": id,
	}, nil)

	return record, nil
}

func (store *RedisStore) CreateProcessingResult(ctx context.Context, record *models.ProcessingResultRecord) error {
	startTime := time.Now()

	data, err := json.Marshal(record)
	if err != nil {
		return models.NewInternalError("RESULT_SERIALIZATION_FAILED", "failed to serialize processing result").WithCause(err)
	}

	pipe := store.client.TxPipeline()
	pipe.Set(ctx, resultKey(record.ProcessingID), data, 0)
	pipe.ZAdd(ctx, recentResultsKey, redis.Z{
		Score:  float64(record.ProcessedAt.Unix()),
		Member: record.ProcessingID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return models.NewPersistenceError("REDIS_WRITE_FAILED", "failed to write processing result").
			WithCause(err).
			WithMetadata("processing_id", record.ProcessingID)
	}

	store.logger.LogService("redis", "create_processing_result", time.Since(startTime), map[string]interface{}{
		"processing_id": record.ProcessingID,
		"article_id":    record.ArticleID,
	}, nil)

	return nil
}

func (store *RedisStore) RecentProcessingResults(ctx context.Context, limit int) ([]*models.ProcessingResultRecord, error) {
	if limit <= 0 {
		return []*models.ProcessingResultRecord{}, nil
	}

	ids, err := store.client.ZRevRange(ctx, recentResultsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, models.NewPersistenceError("REDIS_LOOKUP_FAILED", "recent results lookup failed").WithCause(err)
	}

	records := make([]*models.ProcessingResultRecord, 0, len(ids))
	for _, id := range ids {
		data, err := store.client.Get(ctx, resultKey(id)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, models.NewPersistenceError("REDIS_GET_FAILED", "failed to load processing result").WithCause(err).WithMetadata("processing_id", id)
		}

		var record models.ProcessingResultRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			store.logger.WithError(err).Warn("skipping undecodable processing result %s", id)
			continue
		}
		records = append(records, &record)
	}

	return records, nil
}

func (store *RedisStore) UpdateProcessingResultReview(ctx context.Context, processingID string, score int, flags []string, notes string) error {
	data, err := store.client.Get(ctx, resultKey(processingID)).Result()
	if err == redis.Nil {
		return models.NewPersistenceError("RESULT_NOT_FOUND", "processing result not found").WithMetadata("processing_id", processingID)
	}
	if err != nil {
		return models.NewPersistenceError("REDIS_GET_FAILED", "failed to load processing result").WithCause(err)
	}

	var record models.ProcessingResultRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return models.NewInternalError("RESULT_DESERIALIZATION_FAILED", "stored result is not valid JSON").WithCause(err)
	}

	now := time.Now()
	record.QualityScore = &score
	record.QualityFlags = flags
	record.QualityNotes = notes
	record.ReviewedAt = &now

	updated, err := json.Marshal(&record)
	if err != nil {
		return models.NewInternalError("RESULT_SERIALIZATION_FAILED", "failed to serialize processing result").WithCause(err)
	}

	if err := store.client.Set(ctx, resultKey(processingID), updated, 0).Err(); err != nil {
		return models.NewPersistenceError("REDIS_WRITE_FAILED", "failed to write review annotation").WithCause(err)
	}

	return nil
}

func (store *RedisStore) HealthCheck(ctx context.Context) error {
	if err := store.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection unhealthy: %w", err)
	}
	return nil
}

func (store *RedisStore) Close() error {
	store.logger.Info("closing Redis store")
	return store.client.Close()
}
