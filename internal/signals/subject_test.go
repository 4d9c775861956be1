package signals

import (
	"testing"

	"github.com/mikey/mailrisk/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestSubjectKeywordsExtractor_Evaluate(t *testing.T) {
	extractor := NewSubjectKeywordsExtractor(DefaultConfig())

	tests := []struct {
		name      string
		subject   string
		wantDelta int
	}{
		{
			name:      "neutral subject",
			subject:   "Meeting notes from Tuesday",
			wantDelta: 0,
		},
		{
			name:      "single spam keyword",
			subject:   "Your account has been suspended",
			wantDelta: 2,
		},
		{
			name:      "two keywords plus repeated punctuation",
			subject:   "Urgent: verify your account!!!",
			wantDelta: 5,
		},
		{
			name:      "all-caps shouting subject",
			subject:   "READ THIS MESSAGE TODAY",
			wantDelta: 1,
		},
		{
			name:      "short all-caps subject is tolerated",
			subject:   "FYI",
			wantDelta: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractor.Evaluate(&core.Message{Subject: tt.subject})
			assert.Equal(t, tt.wantDelta, res.Delta)
		})
	}
}

func TestIsShouting(t *testing.T) {
	assert.True(t, isShouting("FINAL WARNING NOTICE"))
	assert.False(t, isShouting("Final WARNING notice"))
	assert.False(t, isShouting("1234567890123"))
}
