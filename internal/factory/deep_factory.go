package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/mailrisk/internal/adapters/deep"
	"github.com/mikey/mailrisk/internal/config"
	"github.com/mikey/mailrisk/internal/core"
	"github.com/mikey/mailrisk/internal/utils"
	"go.uber.org/zap"
)

// DeepFactory creates deep analysis clients
type DeepFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewDeepFactory creates a new deep analysis factory
func NewDeepFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *DeepFactory {
	return &DeepFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateDeepClient creates a deep analysis client based on the configuration
func (f *DeepFactory) CreateDeepClient() (core.DeepAnalysisClient, error) {
	provider := f.cfg.GetString("deep.provider")

	switch provider {
	case "bedrock":
		return f.createBedrockClient()
	case "openai":
		return f.createOpenAIClient()
	case "gemini":
		return f.createGeminiClient()
	case "none":
		return deep.NewNoopClient(), nil
	default:
		return nil, fmt.Errorf("unsupported deep analysis provider: %s", provider)
	}
}

func (f *DeepFactory) createBedrockClient() (core.DeepAnalysisClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(f.cfg.GetString("bedrock.region")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return deep.NewBedrockClient(
		bedrockruntime.NewFromConfig(awsCfg),
		f.cfg.GetString("bedrock.model_id"),
		f.cfg.GetInt("bedrock.max_tokens"),
		float32(f.cfg.GetFloat64("bedrock.temperature")),
		float32(f.cfg.GetFloat64("bedrock.top_p")),
		f.cfg.GetInt("bedrock.max_body_size"),
		f.logger,
		f.textProcessor,
	), nil
}

func (f *DeepFactory) createOpenAIClient() (core.DeepAnalysisClient, error) {
	apiKey := f.cfg.GetString("openai.api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	return deep.NewOpenAIClient(
		apiKey,
		f.cfg.GetString("openai.model_name"),
		f.cfg.GetInt("openai.max_tokens"),
		float32(f.cfg.GetFloat64("openai.temperature")),
		float32(f.cfg.GetFloat64("openai.top_p")),
		f.cfg.GetInt("openai.max_body_size"),
		f.logger,
		f.textProcessor,
	), nil
}

func (f *DeepFactory) createGeminiClient() (core.DeepAnalysisClient, error) {
	apiKey := f.cfg.GetString("gemini.api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	return deep.NewGeminiClient(
		apiKey,
		f.cfg.GetString("gemini.model_name"),
		f.cfg.GetInt("gemini.max_tokens"),
		float32(f.cfg.GetFloat64("gemini.temperature")),
		float32(f.cfg.GetFloat64("gemini.top_p")),
		f.cfg.GetInt("gemini.max_body_size"),
		f.logger,
		f.textProcessor,
	)
}
