package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"
)

// EventExtractor runs Pass 1: identifying discrete business events in an
// article and classifying the article as a whole. High volume, shallow
// reasoning, so it runs on the cheapest capable tier.
type EventExtractor struct {
	generator ContentGenerator
	tiers     ModelTierProvider
	logger    *logger.Logger
}

func NewEventExtractor(generator ContentGenerator, tiers ModelTierProvider, log *logger.Logger) *EventExtractor {
	return &EventExtractor{
		generator: generator,
		tiers:     tiers,
		logger:    log,
	}
}

// ExtractEvents analyzes the article text and returns the identified events.
// When upstream scraping failed and only the summary is available, the
// summary is analyzed instead; the call degrades, it does not fail.
func (extractor *EventExtractor) ExtractEvents(ctx context.Context, article models.ArticleContent) (*models.Pass1Result, error) {
	startTime := time.Now()

	text := article.AnalysisText()
	if text == "" {
		return nil, models.NewValidationError("EMPTY_ARTICLE", "article has neither full text nor summary")
	}

	tier := extractor.tiers.EventModel()
	resp, err := extractor.generator.GenerateJSON(ctx, &GenerationRequest{
		Tier:            tier,
		SystemRole:      "You are a financial news event extractor. Respond with a single JSON object matching the requested schema exactly. No prose, no markdown.",
		Prompt:          extractor.buildPrompt(article, text),
		DisableThinking: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pass 1 generation failed: %w", err)
	}

	result, err := extractor.parseResponse(resp.Content)
	if err != nil {
		return nil, err
	}

	extractor.logger.LogPass(article.URL, 1, "extract_events", time.Since(startTime), map[string]interface{}{
		"events_identified": result.EventsIdentified,
		"article_type":      result.ArticleType,
		"overall_tone":      result.OverallTone,
		"model":             tier.Name,
		"tokens_used":       resp.TokensUsed,
	}, nil)

	return result, nil
}

func (extractor *EventExtractor) buildPrompt(article models.ArticleContent, text string) string {
	return fmt.Sprintf(`Identify the discrete business events in this news article about a public company.

ARTICLE TITLE: %s
SOURCE: %s
PUBLISHED: %s

ARTICLE TEXT:
%s

For each distinct event, classify:
- "event_type": "predictive" (states something expected to happen), "explanatory" (explains why something happened), or "analytical" (interprets or evaluates)
- "temporal_classification": "past", "present", "future", or "mixed"
- "confidence": how certain you are the event is actually stated, 0.0-1.0
- "relevance_to_stock": how relevant the event is to the company's stock, 0.0-1.0

Confidence and relevance are independent: a clearly stated but irrelevant event gets high confidence and low relevance.

Also classify the article:
- "article_type": one of "breaking_news", "analysis", "earnings_coverage", "opinion", "research"
- "overall_tone": one of "bullish", "bearish", "neutral", "mixed"

RESPONSE FORMAT (JSON only):
{
  "events_identified": 2,
  "events": [
    {
      "title": "short event title",
      "event_type": "predictive",
      "temporal_classification": "future",
      "confidence": 0.85,
      "relevance_to_stock": 0.9
    }
  ],
  "article_type": "breaking_news",
  "overall_tone": "bullish"
}

If the text contains no identifiable events, return "events_identified": 0 with an empty "events" array and still classify the article.`,
		article.Title, article.Source, article.PublishedAt.Format(time.RFC3339), text)
}

func (extractor *EventExtractor) parseResponse(response string) (*models.Pass1Result, error) {
	cleaned := stripJSONFences(response)

	var result models.Pass1Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, models.NewExtractionError(1, "response is not valid JSON").
			WithCause(err).
			WithMetadata("raw_response", truncateForDiagnostics(response))
	}

	if err := result.Validate(); err != nil {
		return nil, models.NewExtractionError(1, "response violates event schema").
			WithCause(err).
			WithMetadata("raw_response", truncateForDiagnostics(response))
	}

	// The count the model reports can drift from the array it returns; the
	// array is authoritative.
	result.EventsIdentified = len(result.Events)

	return &result, nil
}

func truncateForDiagnostics(s string) string {
	const limit = 500
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
