package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"argus-news-pipeline/internal/config"
	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/genai"
)

// ModelTierProvider selects which model serves each pass. Static in
// production; tests substitute fixed tiers.
type ModelTierProvider interface {
	EventModel() config.ModelTier
	ReasoningModel() config.ModelTier
	JudgmentModel() config.ModelTier
}

// StaticTierProvider serves the tiers named in configuration.
type StaticTierProvider struct {
	cfg config.GeminiConfig
}

func NewStaticTierProvider(cfg config.GeminiConfig) *StaticTierProvider {
	return &StaticTierProvider{cfg: cfg}
}

func (p *StaticTierProvider) EventModel() config.ModelTier     { return p.cfg.EventModel }
func (p *StaticTierProvider) ReasoningModel() config.ModelTier { return p.cfg.ReasoningModel }
func (p *StaticTierProvider) JudgmentModel() config.ModelTier  { return p.cfg.JudgmentModel }

type GenerationRequest struct {
	Tier            config.ModelTier
	SystemRole      string
	Prompt          string
	DisableThinking bool
}

type GenerationResponse struct {
	Content        string
	Model          string
	TokensUsed     int
	FinishReason   string
	ProcessingTime time.Duration
}

// ContentGenerator is the model-inference dependency of the three passes.
// Satisfied by GeminiService; mocked in tests.
type ContentGenerator interface {
	GenerateJSON(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error)
}

type GeminiService struct {
	client *genai.Client
	config config.GeminiConfig
	logger *logger.Logger
}

func NewGeminiService(cfg config.GeminiConfig, log *logger.Logger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	service := &GeminiService{
		client: client,
		config: cfg,
		logger: log,
	}

	log.Info("Gemini service initialized",
		"event_model", cfg.EventModel.Name,
		"reasoning_model", cfg.ReasoningModel.Name,
		"judgment_model", cfg.JudgmentModel.Name,
		"max_retries", cfg.MaxRetries,
	)

	return service, nil
}

// GenerateJSON issues a JSON-only structured-output request against the
// tier named in the request, retrying transient failures with exponential
// backoff. The response content is the raw JSON text; schema validation is
// the caller's job.
func (service *GeminiService) GenerateJSON(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()

	operation := func() (*GenerationResponse, error) {
		resp, err := service.makeGenerationRequest(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(models.NewTimeoutError("GEMINI_TIMEOUT", "content generation timed out").WithCause(ctx.Err()))
			}
			service.logger.WithError(err).Warn("generation attempt failed, will retry")
			return nil, err
		}
		return resp, nil
	}

	response, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(service.config.MaxRetries)),
	)

	duration := time.Since(startTime)
	if err != nil {
		service.logger.LogService("gemini", "generate_json", duration, map[string]interface{}{
			"model":         req.Tier.Name,
			"prompt_length": len(req.Prompt),
			"attempts":      service.config.MaxRetries,
		}, err)
		return nil, models.NewExternalError("GEMINI_GENERATION_FAILED", "content generation failed").WithCause(err)
	}

	response.ProcessingTime = duration
	service.logger.LogService("gemini", "generate_json", duration, map[string]interface{}{
		"model":           req.Tier.Name,
		"prompt_length":   len(req.Prompt),
		"response_length": len(response.Content),
		"tokens_used":     response.TokensUsed,
		"finish_reason":   response.FinishReason,
	}, nil)

	return response, nil
}

func (service *GeminiService) makeGenerationRequest(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error) {
	genCtx, cancel := context.WithTimeout(ctx, service.config.Timeout)
	defer cancel()

	temperature := req.Tier.Temperature
	genConfig := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  req.Tier.MaxTokens,
		ResponseMIMEType: "application/json",
	}

	if req.SystemRole != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemRole, genai.RoleUser)
	}

	if req.DisableThinking {
		var budget int32 = 0
		genConfig.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}

	result, err := service.client.Models.GenerateContent(genCtx, req.Tier.Name, genai.Text(req.Prompt), genConfig)
	if err != nil {
		return nil, fmt.Errorf("generate content request failed: %w", err)
	}

	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no response candidates generated")
	}

	candidate := result.Candidates[0]
	text := ""
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
	}

	return &GenerationResponse{
		Content:      text,
		Model:        req.Tier.Name,
		TokensUsed:   len(req.Prompt)/4 + len(text)/4,
		FinishReason: string(candidate.FinishReason),
	}, nil
}

func (service *GeminiService) HealthCheck(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := service.GenerateJSON(testCtx, &GenerationRequest{
		Tier:            service.config.EventModel,
		Prompt:          `Respond with the JSON object {"status":"ok"}`,
		DisableThinking: true,
	})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.Content == "" {
		return fmt.Errorf("health check returned empty response")
	}
	return nil
}

func (service *GeminiService) Close() error {
	service.logger.Info("Gemini client closed")
	return nil
}

// stripJSONFences removes markdown code fences some models wrap around JSON
// output despite the JSON response MIME type.
func stripJSONFences(response string) string {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
