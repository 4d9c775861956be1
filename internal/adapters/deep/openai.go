package deep

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/mailrisk/internal/core"
	"github.com/mikey/mailrisk/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the DeepAnalysisClient interface
// using OpenAI
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        openai.NewClient(apiKey),
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// GenerateReport asks the OpenAI model for a sender reputation report
func (c *OpenAIClient) GenerateReport(ctx context.Context, senderEmail string, rawHeaders map[string][]string, rawBody string) (*core.DeepReport, error) {
	body := c.textProcessor.ProcessText(rawBody, c.maxBodySize)
	prompt := buildPrompt(senderEmail, rawHeaders, body)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a sender reputation analyst. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: "json",
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	report, err := parseReport(resp.Choices[0].Message.Content)
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
