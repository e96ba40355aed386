package services_test

import (
	"context"
	"strings"
	"testing"

	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/services"
)

const validPass1Response = `{
	"events_identified": 1,
	"events": [
		{
			"title": "iPhone redesign planned",
			"event_type": "predictive",
			"temporal_classification": "future",
			"confidence": 0.85,
			"relevance_to_stock": 0.9
		},
		{
			"title": "Multi-year product roadmap",
			"event_type": "analytical",
			"temporal_classification": "mixed",
			"confidence": 0.7,
			"relevance_to_stock": 0.6
		}
	],
	"article_type": "breaking_news",
	"overall_tone": "bullish"
}`

func TestExtractEventsSuccess(t *testing.T) {
	generator := &MockGenerator{Response: validPass1Response}
	extractor := services.NewEventExtractor(generator, testTiers(), newTestLogger())

	result, err := extractor.ExtractEvents(context.Background(), sampleArticle())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.EventsIdentified != 2 {
		t.Errorf("Expected events_identified recomputed to 2, got %d", result.EventsIdentified)
	}
	if result.ArticleType != "breaking_news" {
		t.Errorf("Expected article_type breaking_news, got %s", result.ArticleType)
	}
	if result.Events[0].TemporalClassification != "future" {
		t.Errorf("Expected first event temporal_classification future, got %s", result.Events[0].TemporalClassification)
	}
	if generator.LastRequest == nil || !generator.LastRequest.DisableThinking {
		t.Error("Expected pass 1 to disable thinking")
	}
}

func TestExtractEventsFencedResponse(t *testing.T) {
	generator := &MockGenerator{Response: "```json\n" + validPass1Response + "\n```"}
	extractor := services.NewEventExtractor(generator, testTiers(), newTestLogger())

	result, err := extractor.ExtractEvents(context.Background(), sampleArticle())
	if err != nil {
		t.Fatalf("Expected fenced JSON to parse, got %v", err)
	}
	if result.EventsIdentified != 2 {
		t.Errorf("Expected 2 events, got %d", result.EventsIdentified)
	}
}

func TestExtractEventsMalformedResponse(t *testing.T) {
	generator := &MockGenerator{Response: "I could not find any events in this article."}
	extractor := services.NewEventExtractor(generator, testTiers(), newTestLogger())

	_, err := extractor.ExtractEvents(context.Background(), sampleArticle())
	if err == nil {
		t.Fatal("Expected error for non-JSON response")
	}
	if !models.IsErrorType(err, models.ErrorTypeExtraction) {
		t.Errorf("Expected extraction error, got %v", err)
	}
	if models.FailedPass(err) != 1 {
		t.Errorf("Expected failure attributed to pass 1, got pass %d", models.FailedPass(err))
	}
}

func TestExtractEventsRejectsOutOfRangeConfidence(t *testing.T) {
	response := `{
		"events_identified": 1,
		"events": [
			{
				"title": "event",
				"event_type": "predictive",
				"temporal_classification": "future",
				"confidence": 1.5,
				"relevance_to_stock": 0.5
			}
		],
		"article_type": "analysis",
		"overall_tone": "neutral"
	}`
	generator := &MockGenerator{Response: response}
	extractor := services.NewEventExtractor(generator, testTiers(), newTestLogger())

	result, err := extractor.ExtractEvents(context.Background(), sampleArticle())
	if err == nil {
		t.Fatalf("Expected out-of-range confidence to be rejected, got result %+v", result)
	}
	if !models.IsErrorType(err, models.ErrorTypeExtraction) {
		t.Errorf("Expected extraction error, got %v", err)
	}
}

func TestExtractEventsEmptyArticle(t *testing.T) {
	generator := &MockGenerator{Response: validPass1Response}
	extractor := services.NewEventExtractor(generator, testTiers(), newTestLogger())

	_, err := extractor.ExtractEvents(context.Background(), models.ArticleContent{Title: "empty"})
	if err == nil {
		t.Fatal("Expected error for article with no text")
	}
	if !models.IsErrorType(err, models.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if generator.Calls != 0 {
		t.Errorf("Expected no model call for empty article, got %d", generator.Calls)
	}
}

func TestExtractEventsSummaryOnly(t *testing.T) {
	response := `{
		"events_identified": 1,
		"events": [
			{
				"title": "Berkshire reduces Apple stake",
				"event_type": "explanatory",
				"temporal_classification": "past",
				"confidence": 0.9,
				"relevance_to_stock": 0.8
			}
		],
		"article_type": "breaking_news",
		"overall_tone": "bearish"
	}`
	generator := &MockGenerator{Response: response}
	extractor := services.NewEventExtractor(generator, testTiers(), newTestLogger())

	article := sampleArticle()
	article.FullText = ""
	article.Summary = "Berkshire Hathaway reduces Apple stake"

	result, err := extractor.ExtractEvents(context.Background(), article)
	if err != nil {
		t.Fatalf("Expected summary-only article to succeed, got %v", err)
	}
	if result.EventsIdentified != 1 {
		t.Errorf("Expected 1 event, got %d", result.EventsIdentified)
	}
	if !strings.Contains(generator.LastRequest.Prompt, "Berkshire Hathaway reduces Apple stake") {
		t.Error("Expected prompt to fall back to the summary text")
	}
}
