package models

import (
	"fmt"
	"time"
)

// Event is a single discrete business event identified by Pass 1. Confidence
// and relevance are independent axes: a confident extraction of a
// low-relevance event is valid.
type Event struct {
	Title                  string  `json:"title"`
	EventType              string  `json:"event_type"`
	TemporalClassification string  `json:"temporal_classification"`
	Confidence             float64 `json:"confidence"`
	RelevanceToStock       float64 `json:"relevance_to_stock"`
}

const (
	EventTypePredictive  = "predictive"
	EventTypeExplanatory = "explanatory"
	EventTypeAnalytical  = "analytical"

	TemporalPast    = "past"
	TemporalPresent = "present"
	TemporalFuture  = "future"
	TemporalMixed   = "mixed"
)

var (
	validEventTypes   = map[string]bool{EventTypePredictive: true, EventTypeExplanatory: true, EventTypeAnalytical: true}
	validTemporal     = map[string]bool{TemporalPast: true, TemporalPresent: true, TemporalFuture: true, TemporalMixed: true}
	validArticleTypes = map[string]bool{"breaking_news": true, "analysis": true, "earnings_coverage": true, "opinion": true, "research": true}
	validTones        = map[string]bool{"bullish": true, "bearish": true, "neutral": true, "mixed": true}
)

func IsValidEventType(name string) bool   { return validEventTypes[name] }
func IsValidTemporal(name string) bool    { return validTemporal[name] }
func IsValidArticleType(name string) bool { return validArticleTypes[name] }
func IsValidTone(name string) bool        { return validTones[name] }

type Pass1Result struct {
	EventsIdentified int     `json:"events_identified"`
	Events           []Event `json:"events"`
	ArticleType      string  `json:"article_type"`
	OverallTone      string  `json:"overall_tone"`
}

func (r *Pass1Result) Validate() error {
	if !validArticleTypes[r.ArticleType] {
		return fmt.Errorf("invalid article_type %q", r.ArticleType)
	}
	if !validTones[r.OverallTone] {
		return fmt.Errorf("invalid overall_tone %q", r.OverallTone)
	}
	for i, event := range r.Events {
		if !validEventTypes[event.EventType] {
			return fmt.Errorf("event %d: invalid event_type %q", i, event.EventType)
		}
		if !validTemporal[event.TemporalClassification] {
			return fmt.Errorf("event %d: invalid temporal_classification %q", i, event.TemporalClassification)
		}
		if !inUnitRange(event.Confidence) {
			return fmt.Errorf("event %d: confidence %.3f out of [0,1]", i, event.Confidence)
		}
		if !inUnitRange(event.RelevanceToStock) {
			return fmt.Errorf("event %d: relevance_to_stock %.3f out of [0,1]", i, event.RelevanceToStock)
		}
	}
	return nil
}

const (
	ProvenanceArticleStated = "article_stated"
	ProvenanceOurAnalysis   = "our_analysis"
)

// CausalStep is one link in a business-logic causal chain. Provenance keeps
// claims lifted from the article strictly separate from steps the reasoner
// inferred on its own.
type CausalStep struct {
	Step            int     `json:"step"`
	Mechanism       string  `json:"mechanism"`
	Description     string  `json:"description"`
	ExpectedOutcome string  `json:"expected_outcome"`
	TimeHorizon     string  `json:"time_horizon"`
	Confidence      float64 `json:"confidence"`
	Provenance      string  `json:"provenance"`
}

type CausalSequenceItem struct {
	Step        int     `json:"step"`
	Mechanism   string  `json:"mechanism"`
	TimeHorizon string  `json:"time_horizon"`
	Confidence  float64 `json:"confidence"`
}

type Pass2Result struct {
	BusinessStepsFromArticle []CausalStep         `json:"business_steps_from_article"`
	OurBusinessPredictions   []CausalStep         `json:"our_business_predictions"`
	CausalSequence           []CausalSequenceItem `json:"causal_sequence"`
	RiskFactors              []string             `json:"risk_factors"`
	OpportunityFactors       []string             `json:"opportunity_factors"`
}

func (r *Pass2Result) Validate() error {
	if err := validateSteps(r.BusinessStepsFromArticle, ProvenanceArticleStated, "business_steps_from_article"); err != nil {
		return err
	}
	if err := validateSteps(r.OurBusinessPredictions, ProvenanceOurAnalysis, "our_business_predictions"); err != nil {
		return err
	}
	for i, item := range r.CausalSequence {
		if !inUnitRange(item.Confidence) {
			return fmt.Errorf("causal_sequence %d: confidence %.3f out of [0,1]", i, item.Confidence)
		}
	}
	return nil
}

func validateSteps(steps []CausalStep, wantProvenance, field string) error {
	for i, step := range steps {
		if step.Provenance != wantProvenance {
			return fmt.Errorf("%s %d: provenance %q, want %q", field, i, step.Provenance, wantProvenance)
		}
		if !inUnitRange(step.Confidence) {
			return fmt.Errorf("%s %d: confidence %.3f out of [0,1]", field, i, step.Confidence)
		}
		if step.Mechanism == "" {
			return fmt.Errorf("%s %d: empty mechanism", field, i)
		}
	}
	return nil
}

// BeliefFactors are ten independent investor-psychology dimensions, each in
// [0,1]. HopeVsFear reads 0=fear, 1=hope. No dimension is derived from
// another.
type BeliefFactors struct {
	Intensity      float64 `json:"intensity"`
	Duration       float64 `json:"duration"`
	Certainty      float64 `json:"certainty"`
	HopeVsFear     float64 `json:"hope_vs_fear"`
	Doubt          float64 `json:"doubt"`
	Predictability float64 `json:"predictability"`
	Clarity        float64 `json:"clarity"`
	ImpactFeeling  float64 `json:"impact_feeling"`
	Durability     float64 `json:"durability"`
	Sensitivity    float64 `json:"sensitivity"`
}

// Values returns the dimensions in declaration order, keyed by JSON name.
func (b BeliefFactors) Values() map[string]float64 {
	return map[string]float64{
		"intensity":      b.Intensity,
		"duration":       b.Duration,
		"certainty":      b.Certainty,
		"hope_vs_fear":   b.HopeVsFear,
		"doubt":          b.Doubt,
		"predictability": b.Predictability,
		"clarity":        b.Clarity,
		"impact_feeling": b.ImpactFeeling,
		"durability":     b.Durability,
		"sensitivity":    b.Sensitivity,
	}
}

func (b BeliefFactors) Validate() error {
	for name, value := range b.Values() {
		if !inUnitRange(value) {
			return fmt.Errorf("belief factor %s %.3f out of [0,1]", name, value)
		}
	}
	return nil
}

type ConfidenceMatrix struct {
	EventIdentification  float64 `json:"event_identification"`
	BusinessLogic        float64 `json:"business_logic"`
	BeliefQuantification float64 `json:"belief_quantification"`
	Overall              float64 `json:"overall"`
}

// DeriveOverall recomputes the overall confidence from the per-pass values.
// The model reports an overall too, but the derived mean is authoritative.
func (c *ConfidenceMatrix) DeriveOverall() {
	c.Overall = (c.EventIdentification + c.BusinessLogic + c.BeliefQuantification) / 3.0
}

func (c ConfidenceMatrix) Validate() error {
	for name, value := range map[string]float64{
		"event_identification":  c.EventIdentification,
		"business_logic":        c.BusinessLogic,
		"belief_quantification": c.BeliefQuantification,
	} {
		if !inUnitRange(value) {
			return fmt.Errorf("confidence %s %.3f out of [0,1]", name, value)
		}
	}
	return nil
}

type ValidationFlags struct {
	NeedsHumanReview   bool `json:"needs_human_review"`
	HighUncertainty    bool `json:"high_uncertainty"`
	ConflictingSignals bool `json:"conflicting_signals"`
}

// DeriveValidationFlags applies the fixed flag rules after Pass 3 output has
// been validated. Thresholds come from configuration, not literals.
func DeriveValidationFlags(tone string, beliefs BeliefFactors, matrix ConfidenceMatrix, confidenceThreshold float64) ValidationFlags {
	flags := ValidationFlags{}

	switch {
	case tone == "bullish" && beliefs.HopeVsFear < 0.4:
		flags.ConflictingSignals = true
	case tone == "bearish" && beliefs.HopeVsFear > 0.6:
		flags.ConflictingSignals = true
	case beliefs.Certainty > 0.7 && beliefs.Doubt > 0.7:
		flags.ConflictingSignals = true
	}

	flags.HighUncertainty = matrix.Overall < confidenceThreshold

	anyPassLow := matrix.EventIdentification < confidenceThreshold ||
		matrix.BusinessLogic < confidenceThreshold ||
		matrix.BeliefQuantification < confidenceThreshold
	flags.NeedsHumanReview = flags.ConflictingSignals || flags.HighUncertainty || anyPassLow

	return flags
}

type Pass3Result struct {
	BeliefFactors     BeliefFactors    `json:"belief_factors"`
	MarketImpactScore float64          `json:"market_impact_score"`
	ConfidenceMatrix  ConfidenceMatrix `json:"confidence_matrix"`
	ValidationFlags   ValidationFlags  `json:"validation_flags"`
}

func (r *Pass3Result) Validate() error {
	if err := r.BeliefFactors.Validate(); err != nil {
		return err
	}
	if !inUnitRange(r.MarketImpactScore) {
		return fmt.Errorf("market_impact_score %.3f out of [0,1]", r.MarketImpactScore)
	}
	return r.ConfidenceMatrix.Validate()
}

type PassStats struct {
	Pass       int           `json:"pass"`
	Model      string        `json:"model"`
	Duration   time.Duration `json:"duration"`
	Cost       float64       `json:"cost"`
	TokensUsed int           `json:"tokens_used"`
}

// ProcessedArticle is the aggregate produced by one full pipeline run.
// Created once, never mutated; either attached to an existing stored article
// or used to create a new one.
type ProcessedArticle struct {
	Article        ArticleContent    `json:"article"`
	Pass1          *Pass1Result      `json:"pass1"`
	Pass2          *Pass2Result      `json:"pass2"`
	Pass3          *Pass3Result      `json:"pass3"`
	ProcessingTime time.Duration     `json:"processing_time"`
	TotalCost      float64           `json:"total_cost"`
	ModelsUsed     []string          `json:"models_used"`
	PassStats      map[int]PassStats `json:"pass_stats"`
	ProcessedAt    time.Time         `json:"processed_at"`
}

func inUnitRange(v float64) bool {
	return v >= 0.0 && v <= 1.0
}
