package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"
)

// BeliefSynthesizer runs Pass 3: quantifying how investor classes would
// react to the story. It runs on a tier picked for nuanced qualitative
// judgment rather than raw reasoning depth.
type BeliefSynthesizer struct {
	generator           ContentGenerator
	tiers               ModelTierProvider
	logger              *logger.Logger
	confidenceThreshold float64
}

func NewBeliefSynthesizer(generator ContentGenerator, tiers ModelTierProvider, confidenceThreshold float64, log *logger.Logger) *BeliefSynthesizer {
	return &BeliefSynthesizer{
		generator:           generator,
		tiers:               tiers,
		logger:              log,
		confidenceThreshold: confidenceThreshold,
	}
}

// SynthesizeBeliefs produces the ten belief-factor dimensions, the market
// impact score and the confidence matrix. Validation flags are derived here
// post-hoc from the validated output, never taken from the model.
func (synthesizer *BeliefSynthesizer) SynthesizeBeliefs(ctx context.Context, article models.ArticleContent, pass1 *models.Pass1Result, pass2 *models.Pass2Result) (*models.Pass3Result, error) {
	startTime := time.Now()

	pass1JSON, err := json.Marshal(pass1)
	if err != nil {
		return nil, models.NewInternalError("PASS1_SERIALIZATION_FAILED", "failed to serialize pass 1 result").WithCause(err)
	}
	pass2JSON, err := json.Marshal(pass2)
	if err != nil {
		return nil, models.NewInternalError("PASS2_SERIALIZATION_FAILED", "failed to serialize pass 2 result").WithCause(err)
	}

	tier := synthesizer.tiers.JudgmentModel()
	resp, err := synthesizer.generator.GenerateJSON(ctx, &GenerationRequest{
		Tier:       tier,
		SystemRole: "You are an investor-psychology modeling engine. Respond with a single JSON object matching the requested schema exactly.",
		Prompt:     synthesizer.buildPrompt(article, string(pass1JSON), string(pass2JSON)),
	})
	if err != nil {
		return nil, fmt.Errorf("pass 3 generation failed: %w", err)
	}

	result, err := synthesizer.parseResponse(resp.Content)
	if err != nil {
		return nil, err
	}

	// Overall confidence and flags are derived, not reported.
	result.ConfidenceMatrix.DeriveOverall()
	tone := ""
	if pass1 != nil {
		tone = pass1.OverallTone
	}
	result.ValidationFlags = models.DeriveValidationFlags(tone, result.BeliefFactors, result.ConfidenceMatrix, synthesizer.confidenceThreshold)

	synthesizer.logger.LogPass(article.URL, 3, "synthesize_beliefs", time.Since(startTime), map[string]interface{}{
		"market_impact_score": result.MarketImpactScore,
		"overall_confidence":  result.ConfidenceMatrix.Overall,
		"needs_human_review":  result.ValidationFlags.NeedsHumanReview,
		"conflicting_signals": result.ValidationFlags.ConflictingSignals,
		"model":               tier.Name,
	}, nil)

	return result, nil
}

func (synthesizer *BeliefSynthesizer) buildPrompt(article models.ArticleContent, pass1JSON, pass2JSON string) string {
	return fmt.Sprintf(`Quantify how investors would believe and feel about this story.

ARTICLE TITLE: %s
SOURCE: %s
PUBLISHED: %s

EVENTS (Pass 1):
%s

CAUSAL ANALYSIS (Pass 2):
%s

Score ten INDEPENDENT belief dimensions, each 0.0-1.0. Ground each score in psychological realism: source credibility, timing relative to market hours and earnings cycles, how this company's investor base historically reacts. Do not derive one dimension from another, and be conservative: prefer moderate values over extremes unless the story clearly warrants them.

- "intensity": how strongly investors will feel about this
- "duration": how long the belief will persist
- "certainty": how sure investors will be that the story is true and material
- "hope_vs_fear": 0.0 = pure fear, 1.0 = pure hope
- "doubt": how much skepticism the story invites
- "predictability": how foreseeable the consequences feel
- "clarity": how unambiguous the story is
- "impact_feeling": how large the perceived price impact is
- "durability": how resistant the belief is to counter-news
- "sensitivity": how much small follow-ups would move the belief

Also produce:
- "market_impact_score": 0.0-1.0, a holistic synthesis of price-relevant significance. Not an average of the dimensions.
- "confidence_matrix": {"event_identification": 0-1, "business_logic": 0-1, "belief_quantification": 0-1, "overall": 0-1} — your confidence in each pass's output.

RESPONSE FORMAT (JSON only):
{
  "belief_factors": {"intensity": 0.6, "duration": 0.5, "certainty": 0.6, "hope_vs_fear": 0.7, "doubt": 0.3, "predictability": 0.5, "clarity": 0.6, "impact_feeling": 0.5, "durability": 0.5, "sensitivity": 0.4},
  "market_impact_score": 0.55,
  "confidence_matrix": {"event_identification": 0.8, "business_logic": 0.7, "belief_quantification": 0.6, "overall": 0.7}
}`,
		article.Title, article.Source, article.PublishedAt.Format(time.RFC3339), pass1JSON, pass2JSON)
}

func (synthesizer *BeliefSynthesizer) parseResponse(response string) (*models.Pass3Result, error) {
	cleaned := stripJSONFences(response)

	var result models.Pass3Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, models.NewExtractionError(3, "response is not valid JSON").
			WithCause(err).
			WithMetadata("raw_response", truncateForDiagnostics(response))
	}

	if err := result.Validate(); err != nil {
		return nil, models.NewExtractionError(3, "response violates belief schema").
			WithCause(err).
			WithMetadata("raw_response", truncateForDiagnostics(response))
	}

	return &result, nil
}
