package deep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/mailrisk/internal/core"
	"github.com/mikey/mailrisk/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the DeepAnalysisClient interface
// using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// GenerateReport asks the Gemini model for a sender reputation report
func (c *GeminiClient) GenerateReport(ctx context.Context, senderEmail string, rawHeaders map[string][]string, rawBody string) (*core.DeepReport, error) {
	body := c.textProcessor.ProcessText(rawBody, c.maxBodySize)
	prompt := buildPrompt(senderEmail, rawHeaders, body)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	report, err := parseReport(responseText)
	if err != nil {
		return nil, err
	}
	report.ModelUsed = c.modelName
	report.GeneratedAt = time.Now()

	c.logger.Debug("Generated deep report",
		zap.String("model", c.modelName),
		zap.Int("score", report.Score),
		zap.String("risk_level", string(report.RiskLevel)))
	return report, nil
}
