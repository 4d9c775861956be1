package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/mailrisk/internal/core"
	"github.com/mikey/mailrisk/internal/di"
	"github.com/mikey/mailrisk/internal/factory"
	"github.com/mikey/mailrisk/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	messageFilter ports.MessageFilter,
	deepClient core.DeepAnalysisClient,
	dataStore factory.Store,
) error {
	defer logger.Sync()

	// Start the filter
	if err := messageFilter.Start(); err != nil {
		logger.Fatal("Failed to start filter", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the filter
	if err := messageFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := deepClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close deep analysis client", zap.Error(err))
		}
	}
	if err := dataStore.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
