package ports

import (
	"context"

	"github.com/mikey/mailrisk/internal/core"
)

// MessageFilter defines the interface for message filtering transports
type MessageFilter interface {
	// ProcessMessage analyzes a message and returns the combined assessment
	ProcessMessage(ctx context.Context, msg *core.Message) (*core.CombinedAssessment, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
