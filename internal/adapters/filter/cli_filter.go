package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/mailrisk/internal/core"
	"go.uber.org/zap"
)

// CliFilter implements a command-line interface for one-shot analysis
type CliFilter struct {
	service      *core.RiskService
	logger       *zap.Logger
	verbose      bool
	leadsEnabled bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service *core.RiskService, logger *zap.Logger, verbose bool, leadsEnabled bool) (*CliFilter, error) {
	return &CliFilter{
		service:      service,
		logger:       logger,
		verbose:      verbose,
		leadsEnabled: leadsEnabled,
	}, nil
}

// ProcessMessage analyzes a message and displays the results
func (f *CliFilter) ProcessMessage(ctx context.Context, msg *core.Message) (*core.CombinedAssessment, error) {
	f.logger.Debug("Processing message", zap.String("sender", msg.SenderAddress()))

	fmt.Printf("\n=== Message Summary ===\n")
	fmt.Printf("From: %s\n", msg.From)
	fmt.Printf("To: %s\n", msg.To)
	fmt.Printf("Subject: %s\n", msg.Subject)
	fmt.Printf("Body length: %d bytes\n", len(msg.Body))

	if f.verbose {
		preview := msg.Body
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		fmt.Printf("\nBody preview:\n%s\n", preview)
	}

	fmt.Printf("\n=== Analysis ===\n")
	startTime := time.Now()
	assessment := f.service.AnalyzeMessage(ctx, msg)
	duration := time.Since(startTime)

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Risk score: %.1f\n", assessment.CombinedScore)
	fmt.Printf("Risk level: %s\n", assessment.RiskLevel)
	fmt.Printf("Analysis type: %s\n", assessment.AnalysisType)
	fmt.Printf("Recommendation: %s\n", assessment.Recommendation)
	for _, finding := range assessment.Findings {
		fmt.Printf("  [%s] %s\n", finding.Source, finding.Detail)
	}
	fmt.Printf("Processing time: %v\n", duration)

	if f.leadsEnabled {
		lead, err := f.service.ClassifyLead(ctx, msg)
		if err != nil {
			f.logger.Error("Failed to classify lead", zap.Error(err))
		} else if lead != nil {
			fmt.Printf("\n=== Lead ===\n")
			fmt.Printf("Type: %s\n", lead.Type)
			fmt.Printf("Score: %d\n", lead.Score)
			fmt.Printf("Confidence: %.2f\n", lead.Confidence)
			fmt.Printf("Company: %s\n", lead.Company)
			fmt.Printf("Next action: %s\n", lead.NextAction)
		}
	}

	return assessment, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
