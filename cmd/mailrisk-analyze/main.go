package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/mikey/mailrisk/internal/adapters/filter"
	"github.com/mikey/mailrisk/internal/config"
	"github.com/mikey/mailrisk/internal/core"
	"github.com/mikey/mailrisk/internal/factory"
	"github.com/mikey/mailrisk/internal/logging"
	"github.com/mikey/mailrisk/internal/signals"
	"go.uber.org/zap"
)

var (
	// Deep analysis provider flags
	provider    = flag.String("provider", "none", "Deep analysis provider (bedrock, gemini, openai, none)")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for model response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for model generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for model generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum message body size to send to the model")
	deepTimeout = flag.String("deep-timeout", "10s", "Timeout for the deep analysis call")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Store flags
	storeType  = flag.String("store", "memory", "Store backend (memory, sqlite, mysql)")
	sqlitePath = flag.String("sqlite-path", "/data/mailrisk.db", "Path to the SQLite database")
	mysqlDSN   = flag.String("mysql-dsn", "", "MySQL DSN")

	// Input flags
	inputFile  = flag.String("file", "", "Input message file (use stdin if not specified)")
	labels     = flag.String("labels", "", "Comma-separated mailbox labels for the message")
	noLeads    = flag.Bool("no-leads", false, "Skip lead classification")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	textProcessor := factory.NewTextProcessorFactory(logger).CreateTextProcessor()

	dataStore, err := factory.NewStoreFactory(cfg, logger).CreateStore()
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}
	defer dataStore.Close()

	deepClient, err := factory.NewDeepFactory(cfg, logger, textProcessor).CreateDeepClient()
	if err != nil {
		logger.Fatal("Failed to create deep analysis client", zap.Error(err))
	}
	defer func() {
		if closer, ok := deepClient.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close deep analysis client", zap.Error(err))
			}
		}
	}()

	timeout, err := cfg.GetDuration("deep.timeout")
	if err != nil {
		logger.Fatal("Invalid deep analysis timeout", zap.Error(err))
	}

	scorer := core.NewBaseRiskScorer(
		signals.All(cfg.SignalConfig()),
		dataStore,
		dataStore,
		cfg.ScorerConfig(),
		logger,
	)
	analyzer := core.NewCombinedAnalyzer(scorer, deepClient, timeout, logger)
	classifier := core.NewLeadClassifier(cfg.LeadConfig(), dataStore, dataStore, deepClient, timeout, logger)
	service := core.NewRiskService(analyzer, classifier, dataStore, dataStore, logger)

	msg, err := readMessage(logger)
	if err != nil {
		logger.Fatal("Failed to read message", zap.Error(err))
	}

	cliFilter, err := filter.NewCliFilter(service, logger, *verbose, !*noLeads)
	if err != nil {
		logger.Fatal("Failed to create CLI filter", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout+30*time.Second)
	defer cancel()

	if _, err := cliFilter.ProcessMessage(ctx, msg); err != nil {
		logger.Fatal("Failed to process message", zap.Error(err))
	}
}

// readMessage parses an RFC 822 message from the input file or stdin
func readMessage(logger *zap.Logger) (*core.Message, error) {
	var reader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file %s: %w", *inputFile, err)
		}
		defer file.Close()
		reader = file
		logger.Info("Reading message from file", zap.String("file", *inputFile))
	} else {
		reader = os.Stdin
		logger.Info("Reading message from stdin")
	}

	parsed, err := mail.ReadMessage(bufio.NewReader(reader))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	bodyBytes, err := io.ReadAll(parsed.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	msg := &core.Message{
		ID:         parsed.Header.Get("Message-Id"),
		From:       parsed.Header.Get("From"),
		To:         splitList(parsed.Header.Get("To")),
		Subject:    parsed.Header.Get("Subject"),
		Body:       string(bodyBytes),
		Headers:    parsed.Header,
		Labels:     splitList(*labels),
		ReceivedAt: time.Now(),
	}
	return msg, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("deep.provider", *provider)
	v.Set("deep.timeout", *deepTimeout)

	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	v.Set("store.type", *storeType)
	if *sqlitePath != "" {
		v.Set("store.sqlite_path", *sqlitePath)
	}
	if *mysqlDSN != "" {
		v.Set("store.mysql_dsn", *mysqlDSN)
	}

	v.Set("cli.verbose", *verbose)
	v.Set("leads.enabled", !*noLeads)

	return config.NewFromViper(v)
}
