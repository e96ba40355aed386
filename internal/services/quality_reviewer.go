package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"argus-news-pipeline/internal/config"
	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"
)

// QualityReviewer re-scores stored pipeline runs offline. Scores are
// deterministic functions of the stored pass outputs, so re-reviewing an
// already-scored record is a no-op. Red flags are advisory annotations for
// human reviewers and never subtract from the score.
type QualityReviewer struct {
	store  ArticleStore
	config config.ReviewConfig
	logger *logger.Logger
}

// ReviewOutcome reports one record's review: the three 0-10 sub-scores, the
// rounded overall, and any red flags raised.
type ReviewOutcome struct {
	ProcessingID string   `json:"processing_id"`
	Pass1Score   int      `json:"pass1_score"`
	Pass2Score   int      `json:"pass2_score"`
	Pass3Score   int      `json:"pass3_score"`
	OverallScore int      `json:"overall_score"`
	RedFlags     []string `json:"red_flags,omitempty"`
	Skipped      bool     `json:"skipped"`
}

type ReviewSummary struct {
	Fetched  int              `json:"fetched"`
	Reviewed int              `json:"reviewed"`
	Skipped  int              `json:"skipped"`
	Outcomes []*ReviewOutcome `json:"outcomes"`
}

func NewQualityReviewer(store ArticleStore, cfg config.ReviewConfig, log *logger.Logger) *QualityReviewer {
	return &QualityReviewer{
		store:  store,
		config: cfg,
		logger: log,
	}
}

// ReviewRecentResults scores the most recent `limit` processing results.
// Records already carrying a quality score are skipped, which makes repeated
// review runs safe to schedule.
func (reviewer *QualityReviewer) ReviewRecentResults(ctx context.Context, limit int) (*ReviewSummary, error) {
	if limit <= 0 {
		limit = reviewer.config.DefaultLimit
	}

	startTime := time.Now()

	records, err := reviewer.store.RecentProcessingResults(ctx, limit)
	if err != nil {
		return nil, err
	}

	summary := &ReviewSummary{
		Fetched:  len(records),
		Outcomes: make([]*ReviewOutcome, 0, len(records)),
	}

	for _, record := range records {
		if record.IsReviewed() {
			summary.Skipped++
			summary.Outcomes = append(summary.Outcomes, &ReviewOutcome{
				ProcessingID: record.ProcessingID,
				OverallScore: *record.QualityScore,
				Skipped:      true,
			})
			continue
		}

		outcome := reviewer.reviewRecord(record)

		notes := fmt.Sprintf("pass1=%d pass2=%d pass3=%d", outcome.Pass1Score, outcome.Pass2Score, outcome.Pass3Score)
		if err := reviewer.store.UpdateProcessingResultReview(ctx, record.ProcessingID, outcome.OverallScore, outcome.RedFlags, notes); err != nil {
			reviewer.logger.WithError(err).Error("failed to write review for %s", record.ProcessingID)
			continue
		}

		summary.Reviewed++
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	reviewer.logger.LogService("quality_reviewer", "review_recent", time.Since(startTime), map[string]interface{}{
		"fetched":  summary.Fetched,
		"reviewed": summary.Reviewed,
		"skipped":  summary.Skipped,
	}, nil)

	return summary, nil
}

func (reviewer *QualityReviewer) reviewRecord(record *models.ProcessingResultRecord) *ReviewOutcome {
	pass1 := decodePass[models.Pass1Result](record.Pass1JSON)
	pass2 := decodePass[models.Pass2Result](record.Pass2JSON)
	pass3 := decodePass[models.Pass3Result](record.Pass3JSON)

	outcome := &ReviewOutcome{
		ProcessingID: record.ProcessingID,
		Pass1Score:   scorePass1(pass1),
		Pass2Score:   scorePass2(pass2),
		Pass3Score:   scorePass3(pass3),
	}
	outcome.OverallScore = int(math.Round(float64(outcome.Pass1Score+outcome.Pass2Score+outcome.Pass3Score) / 3.0))
	outcome.RedFlags = reviewer.detectRedFlags(record, pass1, pass2, pass3)

	return outcome
}

func decodePass[T any](data []byte) *T {
	if len(data) == 0 {
		return nil
	}
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return &result
}

// scorePass1 rates event extraction: event count (0-3), average
// confidence-times-relevance quality (0-3), classification completeness
// (0-2), and type/temporal validity across events (0-2).
func scorePass1(pass1 *models.Pass1Result) int {
	if pass1 == nil {
		return 0
	}

	score := 0

	switch {
	case len(pass1.Events) >= 3:
		score += 3
	case len(pass1.Events) >= 2:
		score += 2
	case len(pass1.Events) >= 1:
		score += 1
	}

	if len(pass1.Events) > 0 {
		var quality float64
		for _, event := range pass1.Events {
			quality += event.Confidence * event.RelevanceToStock
		}
		quality /= float64(len(pass1.Events))
		switch {
		case quality >= 0.5:
			score += 3
		case quality >= 0.3:
			score += 2
		case quality >= 0.15:
			score += 1
		}
	}

	if validArticleTypeName(pass1.ArticleType) {
		score++
	}
	if validToneName(pass1.OverallTone) {
		score++
	}

	if len(pass1.Events) > 0 {
		valid := 0
		for _, event := range pass1.Events {
			if validEventTypeName(event.EventType) && validTemporalName(event.TemporalClassification) {
				valid++
			}
		}
		switch {
		case valid == len(pass1.Events):
			score += 2
		case valid*2 >= len(pass1.Events):
			score += 1
		}
	}

	return capScore(score)
}

// scorePass2 rates causal reasoning: coverage of both the article-stated and
// independently-inferred sides (0-3), risk/opportunity balance (0-2),
// sequence confidence and horizon completeness (0-3), and description
// specificity (0-2).
func scorePass2(pass2 *models.Pass2Result) int {
	if pass2 == nil {
		return 0
	}

	score := 0

	hasArticleSide := len(pass2.BusinessStepsFromArticle) > 0
	hasOurSide := len(pass2.OurBusinessPredictions) > 0
	switch {
	case hasArticleSide && hasOurSide:
		score += 3
	case hasArticleSide || hasOurSide:
		score += 1
	}

	if len(pass2.RiskFactors) > 0 && len(pass2.OpportunityFactors) > 0 {
		score += 2
	} else if len(pass2.RiskFactors) > 0 || len(pass2.OpportunityFactors) > 0 {
		score += 1
	}

	allSteps := append(append([]models.CausalStep{}, pass2.BusinessStepsFromArticle...), pass2.OurBusinessPredictions...)
	if len(allSteps) > 0 {
		complete := 0
		for _, step := range allSteps {
			if step.TimeHorizon != "" && step.Confidence > 0 {
				complete++
			}
		}
		switch {
		case complete == len(allSteps):
			score += 3
		case complete*2 >= len(allSteps):
			score += 2
		case complete > 0:
			score += 1
		}

		var totalLen int
		for _, step := range allSteps {
			totalLen += len(step.Description)
		}
		avgLen := totalLen / len(allSteps)
		switch {
		case avgLen >= 80:
			score += 2
		case avgLen >= 40:
			score += 1
		}
	}

	return capScore(score)
}

// scorePass3 rates belief synthesis: completeness of the load-bearing
// dimensions (0-3), absence of exact-extreme pins (0-3), cross-dimension
// consistency (0-2), and confidence-matrix plausibility (0-2).
func scorePass3(pass3 *models.Pass3Result) int {
	if pass3 == nil {
		return 0
	}

	score := 0
	beliefs := pass3.BeliefFactors

	loadBearing := []float64{beliefs.Intensity, beliefs.Certainty, beliefs.HopeVsFear, beliefs.ImpactFeeling, beliefs.Durability}
	populated := 0
	for _, value := range loadBearing {
		if value > 0 {
			populated++
		}
	}
	switch {
	case populated == len(loadBearing):
		score += 3
	case populated >= 3:
		score += 2
	case populated >= 1:
		score += 1
	}

	pinned := 0
	for _, value := range beliefs.Values() {
		if value == 0.0 || value == 1.0 {
			pinned++
		}
	}
	switch {
	case pinned == 0:
		score += 3
	case pinned <= 2:
		score += 2
	case pinned <= 4:
		score += 1
	}

	consistency := 2
	if beliefs.Certainty > 0.7 && beliefs.Doubt > 0.7 {
		consistency--
	}
	if beliefs.Clarity > 0.7 && beliefs.Doubt > 0.7 {
		consistency--
	}
	score += consistency

	matrix := pass3.ConfidenceMatrix
	plausible := 0
	if matrix.EventIdentification > 0 && matrix.BusinessLogic > 0 && matrix.BeliefQuantification > 0 {
		plausible++
	}
	derivedMean := (matrix.EventIdentification + matrix.BusinessLogic + matrix.BeliefQuantification) / 3.0
	if math.Abs(matrix.Overall-derivedMean) < 0.01 {
		plausible++
	}
	score += plausible

	return capScore(score)
}

func capScore(score int) int {
	if score > 10 {
		return 10
	}
	if score < 0 {
		return 0
	}
	return score
}

// detectRedFlags produces advisory annotations for patterns a human should
// look at. Flags never affect the score.
func (reviewer *QualityReviewer) detectRedFlags(record *models.ProcessingResultRecord, pass1 *models.Pass1Result, pass2 *models.Pass2Result, pass3 *models.Pass3Result) []string {
	var flags []string

	if record.ErrorMessage != "" {
		flags = append(flags, fmt.Sprintf("Processing error recorded: %s", record.ErrorMessage))
	}

	if pass1 == nil {
		flags = append(flags, "Missing Pass 1 output")
	} else {
		overconfident := 0
		for _, event := range pass1.Events {
			if event.Confidence > reviewer.config.OverconfidenceThreshold {
				overconfident++
			}
		}
		if overconfident > 0 {
			flags = append(flags, fmt.Sprintf("Overconfident event predictions (>%d%%)", int(reviewer.config.OverconfidenceThreshold*100)))
		}
	}

	if pass2 == nil {
		flags = append(flags, "Missing Pass 2 output")
	} else if pass1 != nil && len(pass1.Events) > 0 &&
		len(pass2.BusinessStepsFromArticle) == 0 && len(pass2.OurBusinessPredictions) == 0 {
		flags = append(flags, "Events identified but no causal chains derived")
	}

	if pass3 == nil {
		flags = append(flags, "Missing Pass 3 output")
	} else {
		beliefs := pass3.BeliefFactors
		if beliefs.Clarity > 0.7 && beliefs.Doubt > 0.7 {
			flags = append(flags, "Contradictory clarity vs doubt scores")
		}
		if beliefs.Certainty > 0.7 && beliefs.Doubt > 0.7 {
			flags = append(flags, "Contradictory certainty vs doubt scores")
		}
		if pass1 != nil && pass3.MarketImpactScore > 0.8 && len(pass1.Events) == 0 {
			flags = append(flags, "High market impact claimed with no identified events")
		}
	}

	return flags
}

func validArticleTypeName(name string) bool { return models.IsValidArticleType(strings.ToLower(name)) }
func validToneName(name string) bool        { return models.IsValidTone(strings.ToLower(name)) }
func validEventTypeName(name string) bool   { return models.IsValidEventType(strings.ToLower(name)) }
func validTemporalName(name string) bool    { return models.IsValidTemporal(strings.ToLower(name)) }
