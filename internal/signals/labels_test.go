package signals

import (
	"testing"

	"github.com/mikey/mailrisk/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestPlatformLabelsExtractor_Evaluate(t *testing.T) {
	extractor := NewPlatformLabelsExtractor()

	tests := []struct {
		name      string
		labels    []string
		wantDelta int
	}{
		{
			name:      "no labels",
			labels:    nil,
			wantDelta: 0,
		},
		{
			name:      "platform spam label",
			labels:    []string{"SPAM"},
			wantDelta: 5,
		},
		{
			name:      "gmail promotions category",
			labels:    []string{"CATEGORY_PROMOTIONS"},
			wantDelta: 2,
		},
		{
			name:      "social category",
			labels:    []string{"CATEGORY_SOCIAL"},
			wantDelta: 1,
		},
		{
			name:      "spam and promotions are additive",
			labels:    []string{"Junk", "promotional"},
			wantDelta: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractor.Evaluate(&core.Message{Labels: tt.labels})
			assert.Equal(t, tt.wantDelta, res.Delta)
		})
	}
}
