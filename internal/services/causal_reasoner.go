package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"
)

// Business mechanisms used as a reasoning scaffold for Pass 2. The model may
// use finer labels; this taxonomy anchors the instruction, it is not a hard
// output schema.
var businessMechanisms = []string{
	"revenue_impact",
	"cost_impact",
	"competitive_position",
	"market_perception",
	"operational_change",
}

// CausalReasoner runs Pass 2: deriving business-logic causal chains from the
// article and the Pass-1 events. Claims found in the article text and chains
// the reasoner infers on its own are kept strictly separate. Runs on the most
// capable tier with no fallback to a cheaper model.
type CausalReasoner struct {
	generator ContentGenerator
	tiers     ModelTierProvider
	logger    *logger.Logger
}

func NewCausalReasoner(generator ContentGenerator, tiers ModelTierProvider, log *logger.Logger) *CausalReasoner {
	return &CausalReasoner{
		generator: generator,
		tiers:     tiers,
		logger:    log,
	}
}

// DeriveCausalChain produces the causal analysis for an article. With zero
// Pass-1 events it degrades to empty chain lists rather than failing.
func (reasoner *CausalReasoner) DeriveCausalChain(ctx context.Context, article models.ArticleContent, pass1 *models.Pass1Result) (*models.Pass2Result, error) {
	startTime := time.Now()

	if pass1 == nil || len(pass1.Events) == 0 {
		reasoner.logger.Debug("no events from pass 1, returning empty causal chain", "article", article.Title)
		return &models.Pass2Result{
			BusinessStepsFromArticle: []models.CausalStep{},
			OurBusinessPredictions:   []models.CausalStep{},
			CausalSequence:           []models.CausalSequenceItem{},
			RiskFactors:              []string{},
			OpportunityFactors:       []string{},
		}, nil
	}

	eventsJSON, err := json.Marshal(pass1)
	if err != nil {
		return nil, models.NewInternalError("PASS1_SERIALIZATION_FAILED", "failed to serialize pass 1 result").WithCause(err)
	}

	tier := reasoner.tiers.ReasoningModel()
	resp, err := reasoner.generator.GenerateJSON(ctx, &GenerationRequest{
		Tier:       tier,
		SystemRole: "You are a business-logic causal reasoning engine for equity news analysis. Respond with a single JSON object matching the requested schema exactly.",
		Prompt:     reasoner.buildPrompt(article, string(eventsJSON)),
	})
	if err != nil {
		return nil, fmt.Errorf("pass 2 generation failed: %w", err)
	}

	result, err := reasoner.parseResponse(resp.Content)
	if err != nil {
		return nil, err
	}

	reasoner.logger.LogPass(article.URL, 2, "derive_causal_chain", time.Since(startTime), map[string]interface{}{
		"article_steps":    len(result.BusinessStepsFromArticle),
		"our_predictions":  len(result.OurBusinessPredictions),
		"sequence_length":  len(result.CausalSequence),
		"risk_factors":     len(result.RiskFactors),
		"opportunity_fact": len(result.OpportunityFactors),
		"model":            tier.Name,
	}, nil)

	return result, nil
}

func (reasoner *CausalReasoner) buildPrompt(article models.ArticleContent, eventsJSON string) string {
	return fmt.Sprintf(`Derive the causal business chains connecting this article's events to expected financial outcomes for the company.

ARTICLE TITLE: %s
SOURCE: %s

ARTICLE TEXT:
%s

EVENTS IDENTIFIED (Pass 1):
%s

You must keep two kinds of reasoning strictly separate:
1. "business_steps_from_article": ONLY causal claims actually present in the source text. Provenance must be "article_stated". Do not add your own inferences here.
2. "our_business_predictions": YOUR independent reasoning about likely downstream effects, whether or not the article mentions them. Provenance must be "our_analysis".

Never copy steps from one list into the other. A sparse article means a short first list, not a padded one.

Reason through these business mechanisms where they apply: %v.

Each step: {"step": 1, "mechanism": "revenue_impact", "description": "...", "expected_outcome": "...", "time_horizon": "3-6_months", "confidence": 0.7, "provenance": "article_stated"}.
Time horizons are coarse buckets: "0-3_months", "3-6_months", "6-12_months", "1-2_years", "2+_years".

Also produce:
- "causal_sequence": ordered end-to-end chain [{"step": 1, "mechanism": "...", "time_horizon": "...", "confidence": 0.7}]
- "risk_factors": short strings naming what could break the chain
- "opportunity_factors": short strings naming upside not priced into the headline

RESPONSE FORMAT (JSON only):
{
  "business_steps_from_article": [...],
  "our_business_predictions": [...],
  "causal_sequence": [...],
  "risk_factors": ["..."],
  "opportunity_factors": ["..."]
}`,
		article.Title, article.Source, article.AnalysisText(), eventsJSON, businessMechanisms)
}

func (reasoner *CausalReasoner) parseResponse(response string) (*models.Pass2Result, error) {
	cleaned := stripJSONFences(response)

	var result models.Pass2Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, models.NewExtractionError(2, "response is not valid JSON").
			WithCause(err).
			WithMetadata("raw_response", truncateForDiagnostics(response))
	}

	if err := result.Validate(); err != nil {
		return nil, models.NewExtractionError(2, "response violates causal chain schema").
			WithCause(err).
			WithMetadata("raw_response", truncateForDiagnostics(response))
	}

	if result.RiskFactors == nil {
		result.RiskFactors = []string{}
	}
	if result.OpportunityFactors == nil {
		result.OpportunityFactors = []string{}
	}

	return &result, nil
}
