package services

import (
	"context"
	"fmt"
	"time"

	"argus-news-pipeline/internal/config"
	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"
)

type Extractor interface {
	ExtractEvents(ctx context.Context, article models.ArticleContent) (*models.Pass1Result, error)
}

type Reasoner interface {
	DeriveCausalChain(ctx context.Context, article models.ArticleContent, pass1 *models.Pass1Result) (*models.Pass2Result, error)
}

type Synthesizer interface {
	SynthesizeBeliefs(ctx context.Context, article models.ArticleContent, pass1 *models.Pass1Result, pass2 *models.Pass2Result) (*models.Pass3Result, error)
}

// Pipeline sequences the three analysis passes over one article. Each pass
// blocks until done because its prompt embeds the prior pass's full output;
// a failed pass aborts the run. Partial results are never returned — later
// passes depend on earlier ones, so a partial ProcessedArticle would be
// meaningless.
type Pipeline struct {
	extractor   Extractor
	reasoner    Reasoner
	synthesizer Synthesizer
	tiers       ModelTierProvider
	config      config.PipelineConfig
	logger      *logger.Logger
}

func NewPipeline(extractor Extractor, reasoner Reasoner, synthesizer Synthesizer, tiers ModelTierProvider, cfg config.PipelineConfig, log *logger.Logger) *Pipeline {
	return &Pipeline{
		extractor:   extractor,
		reasoner:    reasoner,
		synthesizer: synthesizer,
		tiers:       tiers,
		config:      cfg,
		logger:      log,
	}
}

// ProcessArticle runs passes 1→2→3 and packages the result. All-or-nothing:
// any pass failure surfaces as a pipeline error naming the failed pass.
func (p *Pipeline) ProcessArticle(ctx context.Context, article models.ArticleContent) (*models.ProcessedArticle, error) {
	startTime := time.Now()
	stats := make(map[int]models.PassStats)
	totalCost := 0.0

	pass1, pass1Stats, err := runPass(ctx, p.config.PassTimeout, 1, p.tiers.EventModel(), func(passCtx context.Context) (*models.Pass1Result, error) {
		return p.extractor.ExtractEvents(passCtx, article)
	})
	if err != nil {
		return nil, p.failPipeline(article, 1, startTime, err)
	}
	stats[1] = pass1Stats
	totalCost += pass1Stats.Cost

	pass2, pass2Stats, err := runPass(ctx, p.config.PassTimeout, 2, p.tiers.ReasoningModel(), func(passCtx context.Context) (*models.Pass2Result, error) {
		return p.reasoner.DeriveCausalChain(passCtx, article, pass1)
	})
	if err != nil {
		return nil, p.failPipeline(article, 2, startTime, err)
	}
	stats[2] = pass2Stats
	totalCost += pass2Stats.Cost

	pass3, pass3Stats, err := runPass(ctx, p.config.PassTimeout, 3, p.tiers.JudgmentModel(), func(passCtx context.Context) (*models.Pass3Result, error) {
		return p.synthesizer.SynthesizeBeliefs(passCtx, article, pass1, pass2)
	})
	if err != nil {
		return nil, p.failPipeline(article, 3, startTime, err)
	}
	stats[3] = pass3Stats
	totalCost += pass3Stats.Cost

	processed := &models.ProcessedArticle{
		Article:        article,
		Pass1:          pass1,
		Pass2:          pass2,
		Pass3:          pass3,
		ProcessingTime: time.Since(startTime),
		TotalCost:      totalCost,
		ModelsUsed:     []string{stats[1].Model, stats[2].Model, stats[3].Model},
		PassStats:      stats,
		ProcessedAt:    time.Now(),
	}

	p.logger.LogService("pipeline", "process_article", processed.ProcessingTime, map[string]interface{}{
		"article":             article.Title,
		"events_identified":   pass1.EventsIdentified,
		"market_impact_score": pass3.MarketImpactScore,
		"total_cost":          totalCost,
	}, nil)

	return processed, nil
}

func runPass[T any](ctx context.Context, timeout time.Duration, pass int, tier config.ModelTier, run func(context.Context) (T, error)) (T, models.PassStats, error) {
	passCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	startTime := time.Now()
	result, err := run(passCtx)
	passStats := models.PassStats{
		Pass:     pass,
		Model:    tier.Name,
		Duration: time.Since(startTime),
		Cost:     tier.CostPerCall,
	}
	return result, passStats, err
}

func (p *Pipeline) failPipeline(article models.ArticleContent, pass int, startTime time.Time, err error) error {
	p.logger.LogService("pipeline", "process_article", time.Since(startTime), map[string]interface{}{
		"article":     article.Title,
		"failed_pass": pass,
	}, err)
	return models.NewPipelineError(pass, fmt.Sprintf("pass %d failed", pass)).WithCause(err)
}
