package signals

import (
	"testing"

	"github.com/mikey/mailrisk/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestSenderDomainExtractor_Evaluate(t *testing.T) {
	extractor := NewSenderDomainExtractor(DefaultConfig())

	tests := []struct {
		name      string
		from      string
		wantDelta int
		wantFlags int
	}{
		{
			name:      "trusted domain scores zero",
			from:      "John Doe <john@gmail.com>",
			wantDelta: 0,
			wantFlags: 0,
		},
		{
			name:      "unknown domain carries baseline penalty",
			from:      "hello@somestartup.io",
			wantDelta: 1,
			wantFlags: 0,
		},
		{
			name:      "numeric-heavy domain with suspicious TLD",
			from:      "noreply@secure-login123456.xyz",
			wantDelta: 6,
			wantFlags: 2,
		},
		{
			name:      "phishing word salad domain",
			from:      "support@verify-account.example.com",
			wantDelta: 4,
			wantFlags: 1,
		},
		{
			name:      "unparseable sender address",
			from:      "not-an-address",
			wantDelta: 3,
			wantFlags: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractor.Evaluate(&core.Message{From: tt.from})
			assert.Equal(t, tt.wantDelta, res.Delta)
			assert.Len(t, res.Flags, tt.wantFlags)
		})
	}
}

func TestSenderDomainExtractor_PatternCountsOnce(t *testing.T) {
	extractor := NewSenderDomainExtractor(DefaultConfig())

	// Two pattern families match, but the penalty applies once
	res := extractor.Evaluate(&core.Message{From: "x@secure-verify9999.example.com"})
	assert.Equal(t, 4, res.Delta)
	assert.Len(t, res.Flags, 1)
}
