package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDeep struct {
	report *DeepReport
	err    error
	calls  int
}

func (s *stubDeep) GenerateReport(_ context.Context, _ string, _ map[string][]string, _ string) (*DeepReport, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func newTestAnalyzer(delta int, wl *stubWhitelist, deep *stubDeep) *CombinedAnalyzer {
	scorer := newTestScorer(
		[]SignalExtractor{&fixedExtractor{name: "a", res: SignalResult{Delta: delta, Flags: []string{"heuristic flag"}}}},
		wl, &stubLearning{},
	)
	return NewCombinedAnalyzer(scorer, deep, time.Second, zap.NewNop())
}

func TestCombinedAnalyzer_DegradesWhenDeepFails(t *testing.T) {
	deep := &stubDeep{err: ErrDeepUnavailable}
	analyzer := newTestAnalyzer(4, &stubWhitelist{}, deep)

	got := analyzer.Analyze(context.Background(), &Message{From: "x@example.com"})

	assert.Equal(t, AnalysisBasicOnly, got.AnalysisType)
	assert.Equal(t, float64(5), got.CombinedScore)
	assert.Equal(t, 5, got.BaseScore)
	assert.Nil(t, got.DeepScore)
	assert.Equal(t, RiskLevelModerate, got.RiskLevel)
	require.Len(t, got.Findings, 1)
	assert.Equal(t, "heuristic", got.Findings[0].Source)
}

func TestCombinedAnalyzer_WhitelistedSkipsDeep(t *testing.T) {
	wl := &stubWhitelist{safe: map[string]bool{"friend@example.com": true}}
	deep := &stubDeep{report: &DeepReport{Score: 50, RiskLevel: DeepCaution}}
	analyzer := newTestAnalyzer(4, wl, deep)

	got := analyzer.Analyze(context.Background(), &Message{From: "friend@example.com"})

	assert.Equal(t, AnalysisBasicOnly, got.AnalysisType)
	assert.Equal(t, 0, deep.calls)
	assert.True(t, got.Base.IsWhitelisted)
}

func TestCombinedAnalyzer_CombinesScores(t *testing.T) {
	// base score 2, deep score 20 (risky): deep risk 8.0,
	// combined 0.7*8.0 + 0.3*2 = 6.2
	deep := &stubDeep{report: &DeepReport{
		Score:     20,
		RiskLevel: DeepCaution,
		Findings: []DeepFinding{
			{ID: "new-domain", Severity: "medium", Details: "domain registered 3 days ago"},
		},
	}}
	analyzer := newTestAnalyzer(1, &stubWhitelist{}, deep)

	got := analyzer.Analyze(context.Background(), &Message{From: "x@example.com"})

	assert.Equal(t, AnalysisComprehensive, got.AnalysisType)
	assert.InDelta(t, 6.2, got.CombinedScore, 0.001)
	assert.Equal(t, 2, got.BaseScore)
	require.NotNil(t, got.DeepScore)
	assert.Equal(t, 20, *got.DeepScore)
	assert.Equal(t, RiskLevelModerate, got.RiskLevel)

	// deep findings come first, tagged with their source
	require.Len(t, got.Findings, 2)
	assert.Equal(t, "deep_analysis", got.Findings[0].Source)
	assert.Equal(t, "[medium] domain registered 3 days ago", got.Findings[0].Detail)
	assert.Equal(t, "heuristic", got.Findings[1].Source)
}

func TestCombinedAnalyzer_DeepVerdictRaisesLevel(t *testing.T) {
	// combined score alone would bucket moderate, but the deep verdict
	// is high_risk and the merge keeps the more conservative level
	deep := &stubDeep{report: &DeepReport{Score: 45, RiskLevel: DeepHighRisk}}
	analyzer := newTestAnalyzer(2, &stubWhitelist{}, deep)

	got := analyzer.Analyze(context.Background(), &Message{From: "x@example.com"})

	assert.Equal(t, RiskLevelHigh, got.RiskLevel)
}

func TestCombinedAnalyzer_CriticalBaseIsPreserved(t *testing.T) {
	// a glowing deep report cannot talk a critical heuristic verdict down
	deep := &stubDeep{report: &DeepReport{Score: 95, RiskLevel: DeepLikelyOK}}
	analyzer := newTestAnalyzer(9, &stubWhitelist{}, deep)

	got := analyzer.Analyze(context.Background(), &Message{From: "x@example.com"})

	assert.Equal(t, 10, got.BaseScore)
	assert.Equal(t, RiskLevelCritical, got.RiskLevel)
	assert.Equal(t, "Delete; strong indicators of phishing or scam", got.Recommendation)
}

func TestCombinedAnalyzer_CombinedScoreFloorsAtOne(t *testing.T) {
	deep := &stubDeep{report: &DeepReport{Score: 100, RiskLevel: DeepLikelyOK}}
	analyzer := newTestAnalyzer(0, &stubWhitelist{}, deep)

	got := analyzer.Analyze(context.Background(), &Message{From: "x@example.com"})

	assert.Equal(t, float64(1), got.CombinedScore)
	assert.Equal(t, RiskLevelSafe, got.RiskLevel)
}
