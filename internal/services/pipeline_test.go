package services_test

import (
	"context"
	"math"
	"testing"

	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/services"
)

type MockExtractor struct {
	Result *models.Pass1Result
	Err    error
	Calls  int
}

func (m *MockExtractor) ExtractEvents(ctx context.Context, article models.ArticleContent) (*models.Pass1Result, error) {
	m.Calls++
	return m.Result, m.Err
}

type MockReasoner struct {
	Result *models.Pass2Result
	Err    error
	Calls  int
}

func (m *MockReasoner) DeriveCausalChain(ctx context.Context, article models.ArticleContent, pass1 *models.Pass1Result) (*models.Pass2Result, error) {
	m.Calls++
	return m.Result, m.Err
}

type MockSynthesizer struct {
	Result *models.Pass3Result
	Err    error
	Calls  int
}

func (m *MockSynthesizer) SynthesizeBeliefs(ctx context.Context, article models.ArticleContent, pass1 *models.Pass1Result, pass2 *models.Pass2Result) (*models.Pass3Result, error) {
	m.Calls++
	return m.Result, m.Err
}

func happyPassResults() (*MockExtractor, *MockReasoner, *MockSynthesizer) {
	return &MockExtractor{Result: pass1WithEvents()},
		&MockReasoner{Result: emptyPass2()},
		&MockSynthesizer{Result: &models.Pass3Result{
			BeliefFactors:     models.BeliefFactors{Intensity: 0.6, Certainty: 0.6, HopeVsFear: 0.7, ImpactFeeling: 0.5, Durability: 0.5},
			MarketImpactScore: 0.55,
			ConfidenceMatrix:  models.ConfidenceMatrix{EventIdentification: 0.8, BusinessLogic: 0.7, BeliefQuantification: 0.6, Overall: 0.7},
		}}
}

func TestProcessArticleSuccess(t *testing.T) {
	extractor, reasoner, synthesizer := happyPassResults()
	pipeline := services.NewPipeline(extractor, reasoner, synthesizer, testTiers(), testPipelineConfig(), newTestLogger())

	processed, err := pipeline.ProcessArticle(context.Background(), sampleArticle())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if processed.Pass1 == nil || processed.Pass2 == nil || processed.Pass3 == nil {
		t.Fatal("Expected all three pass results")
	}
	wantCost := 0.002 + 0.015 + 0.008
	if math.Abs(processed.TotalCost-wantCost) > 1e-9 {
		t.Errorf("Expected total cost %.3f, got %.3f", wantCost, processed.TotalCost)
	}
	if len(processed.ModelsUsed) != 3 {
		t.Fatalf("Expected 3 models used, got %d", len(processed.ModelsUsed))
	}
	if processed.ModelsUsed[0] != "event-model" || processed.ModelsUsed[1] != "reasoning-model" || processed.ModelsUsed[2] != "judgment-model" {
		t.Errorf("Unexpected models used: %v", processed.ModelsUsed)
	}
	if len(processed.PassStats) != 3 {
		t.Errorf("Expected stats for 3 passes, got %d", len(processed.PassStats))
	}
}

func TestProcessArticleAllOrNothing(t *testing.T) {
	extractor, reasoner, synthesizer := happyPassResults()
	reasoner.Err = models.NewExtractionError(2, "response is not valid JSON")
	reasoner.Result = nil

	pipeline := services.NewPipeline(extractor, reasoner, synthesizer, testTiers(), testPipelineConfig(), newTestLogger())

	processed, err := pipeline.ProcessArticle(context.Background(), sampleArticle())
	if err == nil {
		t.Fatalf("Expected pipeline error, got result %+v", processed)
	}
	if processed != nil {
		t.Error("Expected no partial result on failure")
	}
	if synthesizer.Calls != 0 {
		t.Errorf("Expected pass 3 to be skipped after pass 2 failure, got %d calls", synthesizer.Calls)
	}
	if !models.IsErrorType(err, models.ErrorTypePipeline) {
		t.Errorf("Expected pipeline error, got %v", err)
	}
	if models.FailedPass(err) != 2 {
		t.Errorf("Expected failure attributed to pass 2, got pass %d", models.FailedPass(err))
	}
	if !models.IsErrorType(models.NewExtractionError(2, "x"), models.ErrorTypeExtraction) {
		t.Error("Sanity check on error taxonomy failed")
	}
}

func TestProcessArticlePass1Failure(t *testing.T) {
	extractor, reasoner, synthesizer := happyPassResults()
	extractor.Err = models.NewExtractionError(1, "response is not valid JSON")
	extractor.Result = nil

	pipeline := services.NewPipeline(extractor, reasoner, synthesizer, testTiers(), testPipelineConfig(), newTestLogger())

	_, err := pipeline.ProcessArticle(context.Background(), sampleArticle())
	if err == nil {
		t.Fatal("Expected pipeline error")
	}
	if reasoner.Calls != 0 || synthesizer.Calls != 0 {
		t.Error("Expected later passes to be skipped after pass 1 failure")
	}
	if models.FailedPass(err) != 1 {
		t.Errorf("Expected failure attributed to pass 1, got pass %d", models.FailedPass(err))
	}
}
