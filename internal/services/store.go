package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"argus-news-pipeline/internal/models"

	"github.com/kennygrant/sanitize"
)

// ArticleStore is the persistence collaborator of the pipeline. Article
// records may be updated in place; processing results are append-only.
type ArticleStore interface {
	// FindArticleByIdentity looks up an article by (normalized title, source,
	// published time within tolerance). Returns nil, nil when absent.
	FindArticleByIdentity(ctx context.Context, title, source string, published time.Time, tolerance time.Duration) (*models.ArticleRecord, error)
	CreateArticle(ctx context.Context, fields models.ArticleFields) (*models.ArticleRecord, error)
	UpdateArticle(ctx context.Context, id string, fields models.ArticleFields) (*models.ArticleRecord, error)
	CreateProcessingResult(ctx context.Context, record *models.ProcessingResultRecord) error
	RecentProcessingResults(ctx context.Context, limit int) ([]*models.ProcessingResultRecord, error)
	UpdateProcessingResultReview(ctx context.Context, processingID string, score int, flags []string, notes string) error
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeTitle canonicalizes a headline for identity matching: strip
// accents and stray markup, lowercase, collapse whitespace, drop trailing
// punctuation. Near-duplicate titles from re-publication normalize to the
// same key.
func NormalizeTitle(title string) string {
	normalized := sanitize.Accents(title)
	normalized = sanitize.HTML(normalized)
	normalized = strings.ToLower(normalized)
	normalized = whitespaceRun.ReplaceAllString(normalized, " ")
	normalized = strings.Trim(normalized, " .!?:;-–—")
	return normalized
}
