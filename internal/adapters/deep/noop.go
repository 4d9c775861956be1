package deep

import (
	"context"

	"github.com/mikey/mailrisk/internal/core"
)

// NoopClient is a DeepAnalysisClient for deployments with no provider
// configured. Every call reports the service unavailable, which callers
// treat as a signal to degrade to heuristics only.
type NoopClient struct{}

// NewNoopClient creates a new no-op client
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

// GenerateReport always reports the deep analysis service unavailable
func (c *NoopClient) GenerateReport(ctx context.Context, senderEmail string, rawHeaders map[string][]string, rawBody string) (*core.DeepReport, error) {
	return nil, core.ErrDeepUnavailable
}
