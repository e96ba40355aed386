package models_test

import (
	"math"
	"testing"

	"argus-news-pipeline/internal/models"
)

func validEvent() models.Event {
	return models.Event{
		Title:                  "Product launch announced",
		EventType:              models.EventTypePredictive,
		TemporalClassification: models.TemporalFuture,
		Confidence:             0.8,
		RelevanceToStock:       0.9,
	}
}

func TestPass1ResultValidate(t *testing.T) {
	result := models.Pass1Result{
		EventsIdentified: 1,
		Events:           []models.Event{validEvent()},
		ArticleType:      "breaking_news",
		OverallTone:      "bullish",
	}
	if err := result.Validate(); err != nil {
		t.Errorf("Expected valid result, got %v", err)
	}

	bad := result
	bad.ArticleType = "editorial"
	if err := bad.Validate(); err == nil {
		t.Error("Expected invalid article_type to fail validation")
	}

	bad = result
	bad.Events = []models.Event{validEvent()}
	bad.Events[0].Confidence = 1.2
	if err := bad.Validate(); err == nil {
		t.Error("Expected out-of-range confidence to fail validation")
	}

	bad = result
	bad.Events = []models.Event{validEvent()}
	bad.Events[0].TemporalClassification = "eventually"
	if err := bad.Validate(); err == nil {
		t.Error("Expected invalid temporal classification to fail validation")
	}
}

func TestPass2ResultValidateProvenance(t *testing.T) {
	step := models.CausalStep{
		Step:        1,
		Mechanism:   "revenue_impact",
		Description: "desc",
		TimeHorizon: "3-6_months",
		Confidence:  0.7,
		Provenance:  models.ProvenanceArticleStated,
	}

	result := models.Pass2Result{
		BusinessStepsFromArticle: []models.CausalStep{step},
	}
	if err := result.Validate(); err != nil {
		t.Errorf("Expected valid result, got %v", err)
	}

	// The same step is wrong in the predictions list.
	crossed := models.Pass2Result{
		OurBusinessPredictions: []models.CausalStep{step},
	}
	if err := crossed.Validate(); err == nil {
		t.Error("Expected article_stated step in predictions list to fail validation")
	}

	empty := step
	empty.Mechanism = ""
	noMechanism := models.Pass2Result{
		BusinessStepsFromArticle: []models.CausalStep{empty},
	}
	if err := noMechanism.Validate(); err == nil {
		t.Error("Expected empty mechanism to fail validation")
	}
}

func TestBeliefFactorsValidate(t *testing.T) {
	beliefs := models.BeliefFactors{
		Intensity: 0.6, Duration: 0.5, Certainty: 0.6, HopeVsFear: 0.7, Doubt: 0.3,
		Predictability: 0.5, Clarity: 0.6, ImpactFeeling: 0.5, Durability: 0.5, Sensitivity: 0.4,
	}
	if err := beliefs.Validate(); err != nil {
		t.Errorf("Expected valid factors, got %v", err)
	}

	beliefs.Doubt = -0.1
	if err := beliefs.Validate(); err == nil {
		t.Error("Expected negative factor to fail validation")
	}

	if got := len(beliefs.Values()); got != 10 {
		t.Errorf("Expected 10 belief dimensions, got %d", got)
	}
}

func TestConfidenceMatrixDeriveOverall(t *testing.T) {
	matrix := models.ConfidenceMatrix{
		EventIdentification:  0.9,
		BusinessLogic:        0.6,
		BeliefQuantification: 0.6,
		Overall:              0.0,
	}
	matrix.DeriveOverall()

	want := 0.7
	if math.Abs(matrix.Overall-want) > 1e-9 {
		t.Errorf("Expected overall %.3f, got %.3f", want, matrix.Overall)
	}
}

func TestDeriveValidationFlags(t *testing.T) {
	beliefs := models.BeliefFactors{
		Intensity: 0.6, Duration: 0.5, Certainty: 0.6, HopeVsFear: 0.7, Doubt: 0.3,
		Predictability: 0.5, Clarity: 0.6, ImpactFeeling: 0.5, Durability: 0.5, Sensitivity: 0.4,
	}
	matrix := models.ConfidenceMatrix{EventIdentification: 0.8, BusinessLogic: 0.7, BeliefQuantification: 0.6}
	matrix.DeriveOverall()

	flags := models.DeriveValidationFlags("bullish", beliefs, matrix, 0.5)
	if flags.ConflictingSignals || flags.HighUncertainty || flags.NeedsHumanReview {
		t.Errorf("Expected clean flags, got %+v", flags)
	}

	fearful := beliefs
	fearful.HopeVsFear = 0.2
	flags = models.DeriveValidationFlags("bullish", fearful, matrix, 0.5)
	if !flags.ConflictingSignals {
		t.Error("Expected bullish tone with fearful beliefs to conflict")
	}
	if !flags.NeedsHumanReview {
		t.Error("Expected conflicting signals to require review")
	}

	hopeful := beliefs
	hopeful.HopeVsFear = 0.8
	flags = models.DeriveValidationFlags("bearish", hopeful, matrix, 0.5)
	if !flags.ConflictingSignals {
		t.Error("Expected bearish tone with hopeful beliefs to conflict")
	}

	torn := beliefs
	torn.Certainty = 0.8
	torn.Doubt = 0.8
	flags = models.DeriveValidationFlags("neutral", torn, matrix, 0.5)
	if !flags.ConflictingSignals {
		t.Error("Expected simultaneous certainty and doubt to conflict")
	}

	uncertain := models.ConfidenceMatrix{EventIdentification: 0.4, BusinessLogic: 0.4, BeliefQuantification: 0.4}
	uncertain.DeriveOverall()
	flags = models.DeriveValidationFlags("neutral", beliefs, uncertain, 0.5)
	if !flags.HighUncertainty || !flags.NeedsHumanReview {
		t.Errorf("Expected uncertainty flags below threshold, got %+v", flags)
	}

	onePassLow := models.ConfidenceMatrix{EventIdentification: 0.9, BusinessLogic: 0.3, BeliefQuantification: 0.9}
	onePassLow.DeriveOverall()
	flags = models.DeriveValidationFlags("neutral", beliefs, onePassLow, 0.5)
	if flags.HighUncertainty {
		t.Error("Expected overall above threshold")
	}
	if !flags.NeedsHumanReview {
		t.Error("Expected single low pass confidence to require review")
	}
}

func TestPass3ResultValidate(t *testing.T) {
	result := models.Pass3Result{
		BeliefFactors: models.BeliefFactors{
			Intensity: 0.6, Duration: 0.5, Certainty: 0.6, HopeVsFear: 0.7, Doubt: 0.3,
			Predictability: 0.5, Clarity: 0.6, ImpactFeeling: 0.5, Durability: 0.5, Sensitivity: 0.4,
		},
		MarketImpactScore: 0.55,
		ConfidenceMatrix:  models.ConfidenceMatrix{EventIdentification: 0.8, BusinessLogic: 0.7, BeliefQuantification: 0.6},
	}
	if err := result.Validate(); err != nil {
		t.Errorf("Expected valid result, got %v", err)
	}

	result.MarketImpactScore = 1.3
	if err := result.Validate(); err == nil {
		t.Error("Expected out-of-range market impact score to fail validation")
	}
}
