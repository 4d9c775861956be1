package di

import (
	"time"

	"go.uber.org/dig"

	"github.com/mikey/mailrisk/internal/config"
	"github.com/mikey/mailrisk/internal/core"
	"github.com/mikey/mailrisk/internal/factory"
	"github.com/mikey/mailrisk/internal/logging"
	"github.com/mikey/mailrisk/internal/ports"
	"github.com/mikey/mailrisk/internal/signals"
	"github.com/mikey/mailrisk/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewDeepFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register the store once and expose it through each persistence port
	if err := container.Provide(func(f *factory.StoreFactory) (factory.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s factory.Store) core.WhitelistStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s factory.Store) core.LearningStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s factory.Store) core.LeadStore { return s }); err != nil {
		return nil, err
	}

	// Register deep analysis client
	if err := container.Provide(func(f *factory.DeepFactory) (core.DeepAnalysisClient, error) {
		return f.CreateDeepClient()
	}); err != nil {
		return nil, err
	}

	// Register deep analysis timeout
	if err := container.Provide(func(cfg *config.Config) (time.Duration, error) {
		return cfg.GetDuration("deep.timeout")
	}); err != nil {
		return nil, err
	}

	// Register scoring configuration and signal extractors
	if err := container.Provide(func(cfg *config.Config) core.ScorerConfig {
		return cfg.ScorerConfig()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) core.LeadConfig {
		return cfg.LeadConfig()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) []core.SignalExtractor {
		return signals.All(cfg.SignalConfig())
	}); err != nil {
		return nil, err
	}

	// Register the scoring pipeline
	if err := container.Provide(core.NewBaseRiskScorer); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewCombinedAnalyzer); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewLeadClassifier); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewRiskService); err != nil {
		return nil, err
	}

	// Register message filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.MessageFilter, error) {
		return f.CreateMessageFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
