package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	deepWeight = 0.7
	baseWeight = 0.3
)

// CombinedAnalyzer merges the local heuristic assessment with the deep
// analysis report. A failed or timed-out deep call degrades to the basic
// result; no error from deep analysis ever reaches the caller.
type CombinedAnalyzer struct {
	scorer      *BaseRiskScorer
	deep        DeepAnalysisClient
	deepTimeout time.Duration
	logger      *zap.Logger
}

// NewCombinedAnalyzer creates a new combined analyzer
func NewCombinedAnalyzer(
	scorer *BaseRiskScorer,
	deep DeepAnalysisClient,
	deepTimeout time.Duration,
	logger *zap.Logger,
) *CombinedAnalyzer {
	return &CombinedAnalyzer{
		scorer:      scorer,
		deep:        deep,
		deepTimeout: deepTimeout,
		logger:      logger,
	}
}

// Analyze assesses a message end to end. Whitelisted senders skip deep
// analysis entirely; everything else gets the deep call bounded by the
// configured timeout.
func (a *CombinedAnalyzer) Analyze(ctx context.Context, msg *Message) *CombinedAssessment {
	base := a.scorer.Assess(ctx, msg)
	if base.IsWhitelisted {
		return a.basicOnly(base)
	}

	deepCtx, cancel := context.WithTimeout(ctx, a.deepTimeout)
	defer cancel()

	report, err := a.deep.GenerateReport(deepCtx, msg.SenderAddress(), msg.Headers, msg.Body)
	if err != nil {
		a.logger.Warn("Deep analysis unavailable, using basic result",
			zap.Error(err), zap.String("sender", msg.SenderAddress()))
		return a.basicOnly(base)
	}

	return a.combine(base, report)
}

// basicOnly wraps the heuristic assessment unchanged
func (a *CombinedAnalyzer) basicOnly(base *RiskAssessment) *CombinedAssessment {
	findings := make([]Finding, 0, len(base.Flags))
	for _, f := range base.Flags {
		findings = append(findings, Finding{Source: "heuristic", Detail: f})
	}
	return &CombinedAssessment{
		CombinedScore:  float64(base.Score),
		RiskLevel:      base.Level,
		BaseScore:      base.Score,
		Findings:       findings,
		AnalysisType:   AnalysisBasicOnly,
		Recommendation: recommendationFor(base.Level, len(findings) > 0),
		Base:           base,
	}
}

// combine folds the deep report into the base assessment. The deep score
// (0-100, higher = safer) is normalized onto the 1-10 risk scale, the two
// scores are averaged with the deep side weighted 0.7, and the final
// level is the most conservative of the combined bucket, the deep
// verdict, and a critical base level.
func (a *CombinedAnalyzer) combine(base *RiskAssessment, report *DeepReport) *CombinedAssessment {
	deepRisk := 10 - float64(report.Score)/10
	combined := deepWeight*deepRisk + baseWeight*float64(base.Score)
	combined = math.Min(10, math.Max(1, combined))

	level := RiskLevelForScore(int(math.Round(combined)))
	level = MoreSevere(level, report.RiskLevel.AsRiskLevel())
	if base.Level == RiskLevelCritical {
		level = MoreSevere(level, RiskLevelCritical)
	}

	findings := make([]Finding, 0, len(report.Findings)+len(base.Flags))
	for _, f := range report.Findings {
		findings = append(findings, Finding{
			Source: "deep_analysis",
			Detail: fmt.Sprintf("[%s] %s", f.Severity, f.Details),
		})
	}
	for _, f := range base.Flags {
		findings = append(findings, Finding{Source: "heuristic", Detail: f})
	}

	deepScore := report.Score
	return &CombinedAssessment{
		CombinedScore:  combined,
		RiskLevel:      level,
		BaseScore:      base.Score,
		DeepScore:      &deepScore,
		Findings:       findings,
		AnalysisType:   AnalysisComprehensive,
		Recommendation: recommendationFor(level, len(findings) > 0),
		Base:           base,
	}
}

// recommendationFor maps the final level to its recommendation text,
// qualified when an otherwise safe message still carries findings
func recommendationFor(level RiskLevel, hasFindings bool) string {
	switch level {
	case RiskLevelModerate:
		return "Review carefully before responding or clicking links"
	case RiskLevelHigh:
		return "Likely unwanted or dangerous; mark as spam"
	case RiskLevelCritical:
		return "Delete; strong indicators of phishing or scam"
	default:
		if hasFindings {
			return "No action needed, though minor findings were noted"
		}
		return "No action needed"
	}
}
