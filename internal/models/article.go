package models

import (
	"time"

	"github.com/google/uuid"
)

// ArticleContent is the immutable input unit handed to the pipeline by the
// scraper. Identity for deduplication is (normalized title, source, published
// time within tolerance), never the URL: the same story shows up at multiple
// URLs when syndicated.
type ArticleContent struct {
	URL         string    `json:"url"`
	Title       string    `json:"title" binding:"required"`
	Summary     string    `json:"summary"`
	FullText    string    `json:"full_text"`
	PublishedAt time.Time `json:"published_at" binding:"required"`
	Source      string    `json:"source" binding:"required"`
	Authors     []string  `json:"authors,omitempty"`
}

// AnalysisText returns the text the passes should analyze. Scraping failures
// upstream degrade to summary-only input; the pipeline must still run.
func (a ArticleContent) AnalysisText() string {
	if a.FullText != "" {
		return a.FullText
	}
	return a.Summary
}

// ArticleRecord is the stored representation of an article. One record per
// real-world story; re-publications update it in place.
type ArticleRecord struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	NormalizedTitle string    `json:"normalized_title"`
	Source          string    `json:"source"`
	URL             string    `json:"url"`
	Summary         string    `json:"summary"`
	FullText        string    `json:"full_text"`
	Authors         []string  `json:"authors,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ArticleFields carries the writable fields for create/update operations on
// an article record.
type ArticleFields struct {
	Title       string
	Source      string
	URL         string
	Summary     string
	FullText    string
	Authors     []string
	PublishedAt time.Time
}

const (
	ReviewStatusPending       = "pending"
	ReviewStatusNeedsRevision = "needs_revision"
	ReviewStatusApproved      = "approved"
)

// ProcessingResultRecord is the append-only audit record of one pipeline run
// over one article. Runs are never updated in place; each reprocessing writes
// a fresh record linked to the same article.
type ProcessingResultRecord struct {
	ProcessingID   string    `json:"processing_id"`
	ArticleID      string    `json:"article_id"`
	ProcessedAt    time.Time `json:"processed_at"`
	ProcessingType string    `json:"processing_type"`
	ModelsUsed     []string  `json:"models_used"`
	ProcessingTime float64   `json:"processing_time_seconds"`
	TotalCost      float64   `json:"total_cost"`

	Pass1JSON []byte `json:"pass1_json,omitempty"`
	Pass2JSON []byte `json:"pass2_json,omitempty"`
	Pass3JSON []byte `json:"pass3_json,omitempty"`

	// Derived summary fields for cheap querying without unpacking pass blobs.
	EventsIdentified  int            `json:"events_identified"`
	ArticleType       string         `json:"article_type,omitempty"`
	OverallTone       string         `json:"overall_tone,omitempty"`
	MarketImpactScore float64        `json:"market_impact_score"`
	OverallConfidence float64        `json:"overall_confidence"`
	BeliefFactors     *BeliefFactors `json:"belief_factors,omitempty"`

	HumanReviewStatus string `json:"human_review_status"`
	NeedsReprocessing bool   `json:"needs_reprocessing"`
	ErrorMessage      string `json:"error_message,omitempty"`

	QualityScore *int       `json:"quality_score,omitempty"`
	QualityFlags []string   `json:"quality_flags,omitempty"`
	QualityNotes string     `json:"quality_notes,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
}

// IsReviewed reports whether the quality reviewer has already scored this run.
func (r *ProcessingResultRecord) IsReviewed() bool {
	return r.QualityScore != nil
}

func NewProcessingID() string {
	return uuid.New().String()
}

func NewArticleID() string {
	return uuid.New().String()
}
