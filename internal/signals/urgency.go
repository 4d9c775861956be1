package signals

import (
	"github.com/mikey/mailrisk/internal/core"
)

// UrgencyExtractor flags pressure language anywhere in the message
type UrgencyExtractor struct {
	phrases []string
}

// NewUrgencyExtractor creates an urgency language extractor
func NewUrgencyExtractor(cfg Config) *UrgencyExtractor {
	return &UrgencyExtractor{phrases: cfg.UrgencyPhrases}
}

// Name returns the extractor name
func (e *UrgencyExtractor) Name() string {
	return "urgency_language"
}

// Evaluate adds 1, counted once rather than per phrase, when any urgency
// phrase appears in the subject or body.
func (e *UrgencyExtractor) Evaluate(msg *core.Message) Result {
	if len(matchKeywords(msg.Subject+" "+msg.Body, e.phrases)) == 0 {
		return Result{}
	}
	return Result{Delta: 1, Flags: []string{"urgency language"}}
}

// HasUrgency reports whether a text contains any configured urgency
// phrase. Shared with the lead classifier.
func (e *UrgencyExtractor) HasUrgency(text string) bool {
	return len(matchKeywords(text, e.phrases)) > 0
}
