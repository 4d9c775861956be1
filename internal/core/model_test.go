package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddressOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jane@example.com", "jane@example.com"},
		{"Jane Smith <Jane@Example.COM>", "jane@example.com"},
		{"  <x@y.z>  ", "x@y.z"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AddressOf(tt.in))
	}
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "example.com", DomainOf("Jane <jane@example.com>"))
	assert.Equal(t, "", DomainOf("no-at-sign"))
	assert.Equal(t, "", DomainOf("trailing@"))
}

func TestRiskLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{1, RiskLevelSafe},
		{3, RiskLevelSafe},
		{4, RiskLevelModerate},
		{6, RiskLevelModerate},
		{7, RiskLevelHigh},
		{8, RiskLevelHigh},
		{9, RiskLevelCritical},
		{10, RiskLevelCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskLevelForScore(tt.score), "score %d", tt.score)
	}
}

func TestNewRiskAssessment_Clamps(t *testing.T) {
	low := NewRiskAssessment(-4, nil, false)
	assert.Equal(t, 1, low.Score)
	assert.Equal(t, RiskLevelSafe, low.Level)

	high := NewRiskAssessment(37, nil, false)
	assert.Equal(t, 10, high.Score)
	assert.Equal(t, RiskLevelCritical, high.Level)
	assert.Equal(t, ActionDelete, high.RecommendedAction)
}

func TestMoreSevere(t *testing.T) {
	assert.Equal(t, RiskLevelHigh, MoreSevere(RiskLevelModerate, RiskLevelHigh))
	assert.Equal(t, RiskLevelHigh, MoreSevere(RiskLevelHigh, RiskLevelSafe))
	assert.Equal(t, RiskLevelCritical, MoreSevere(RiskLevelCritical, RiskLevelCritical))
}

func TestSignalKey(t *testing.T) {
	assert.Equal(t, "suspicious TLD", SignalKey("suspicious TLD: .xyz"))
	assert.Equal(t, "urgency language", SignalKey("urgency language"))
	assert.Equal(t, "many links in body", SignalKey("many links in body: 12"))
}

func TestUserAssessmentRiskBucket(t *testing.T) {
	assert.Equal(t, RiskLevelSafe, AssessedSafe.RiskBucket())
	assert.Equal(t, RiskLevelHigh, AssessedRisky.RiskBucket())
	assert.Equal(t, RiskLevelCritical, AssessedSpam.RiskBucket())
}

func TestDeepRiskLevelAsRiskLevel(t *testing.T) {
	assert.Equal(t, RiskLevelSafe, DeepLikelyOK.AsRiskLevel())
	assert.Equal(t, RiskLevelModerate, DeepCaution.AsRiskLevel())
	assert.Equal(t, RiskLevelHigh, DeepHighRisk.AsRiskLevel())
}

func TestMergeLead(t *testing.T) {
	now := time.Now()
	existing := &Lead{
		ContactEmail:      "jane@acme.example",
		ContactName:       "Jane",
		Company:           "Acme",
		Type:              LeadCustomer,
		Status:            StatusContacted,
		Score:             60,
		ConversationCount: 4,
		FirstSeen:         now.Add(-48 * time.Hour),
		LastSeen:          now.Add(-24 * time.Hour),
	}
	incoming := &Lead{
		ContactEmail:      "jane@acme.example",
		Type:              LeadCustomer,
		Status:            StatusPotential,
		Score:             10,
		ConversationCount: 1,
		LastSeen:          now,
	}

	merged := MergeLead(existing, incoming)

	assert.Equal(t, 5, merged.ConversationCount)
	// score floor from repeat contact: 4 conversations * 5
	assert.Equal(t, 20, merged.Score)
	// human-confirmed status survives a fresh potential classification
	assert.Equal(t, StatusContacted, merged.Status)
	// sparse incoming fields never blank out known values
	assert.Equal(t, "Jane", merged.ContactName)
	assert.Equal(t, "Acme", merged.Company)
	assert.Equal(t, existing.FirstSeen, merged.FirstSeen)
	assert.Equal(t, now, merged.LastSeen)
}

func TestClampLeadScore(t *testing.T) {
	assert.Equal(t, 0, ClampLeadScore(-10))
	assert.Equal(t, 55, ClampLeadScore(55))
	assert.Equal(t, 100, ClampLeadScore(130))
}
