package signals

import (
	"testing"

	"github.com/mikey/mailrisk/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestDomainMismatchExtractor_Evaluate(t *testing.T) {
	extractor := NewDomainMismatchExtractor(DefaultConfig())

	tests := []struct {
		name      string
		from      string
		body      string
		wantDelta int
	}{
		{
			name:      "links match sender domain",
			from:      "news@contoso.com",
			body:      "Read more at https://blog.contoso.com/post",
			wantDelta: 0,
		},
		{
			name:      "link domain differs from sender",
			from:      "news@contoso.com",
			body:      "Read more at https://totally-unrelated.net/post",
			wantDelta: 4,
		},
		{
			name:      "allowlisted ESP link host is fine",
			from:      "news@contoso.com",
			body:      "Unsubscribe via https://cmail19.com/t/abc",
			wantDelta: 0,
		},
		{
			name:      "brand mention without matching sender",
			from:      "billing@contoso.com",
			body:      "Your PayPal account requires attention",
			wantDelta: 3,
		},
		{
			name:      "brand mention from the brand itself",
			from:      "service@paypal.com",
			body:      "Your PayPal receipt is attached",
			wantDelta: 0,
		},
		{
			name:      "spoofed brand with foreign link",
			from:      "security@contoso.com",
			body:      "Your Apple ID is locked, unlock at https://appleid-check.example.org/verify",
			wantDelta: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractor.Evaluate(&core.Message{From: tt.from, Body: tt.body})
			assert.Equal(t, tt.wantDelta, res.Delta)
		})
	}
}

func TestBaseDomain(t *testing.T) {
	assert.Equal(t, "example.com", baseDomain("a.b.example.com"))
	assert.Equal(t, "example.com", baseDomain("example.com"))
	assert.Equal(t, "203.0.113.7", baseDomain("203.0.113.7"))
}
