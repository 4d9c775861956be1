package signals

import (
	"strings"

	"github.com/mikey/mailrisk/internal/core"
)

// PlatformLabelsExtractor scores labels the mail platform already
// attached to the message (Gmail category labels, provider spam marks)
type PlatformLabelsExtractor struct{}

// NewPlatformLabelsExtractor creates a platform label extractor
func NewPlatformLabelsExtractor() *PlatformLabelsExtractor {
	return &PlatformLabelsExtractor{}
}

// Name returns the extractor name
func (e *PlatformLabelsExtractor) Name() string {
	return "platform_labels"
}

// Evaluate adds 5 for a platform spam label, 2 for promotional and 1 for
// social. The penalties are additive, not exclusive.
func (e *PlatformLabelsExtractor) Evaluate(msg *core.Message) Result {
	var res Result
	if HasLabel(msg, "spam", "junk") {
		res.Delta += 5
		res.Flags = append(res.Flags, "platform spam label")
	}
	if HasLabel(msg, "promotions", "promotional") {
		res.Delta += 2
		res.Flags = append(res.Flags, "promotional label")
	}
	if HasLabel(msg, "social") {
		res.Delta++
		res.Flags = append(res.Flags, "social label")
	}
	return res
}

// HasLabel reports whether any platform label contains one of the given
// markers, case-insensitively (CATEGORY_SOCIAL matches "social").
func HasLabel(msg *core.Message, markers ...string) bool {
	for _, label := range msg.Labels {
		lowered := strings.ToLower(label)
		for _, m := range markers {
			if strings.Contains(lowered, m) {
				return true
			}
		}
	}
	return false
}
