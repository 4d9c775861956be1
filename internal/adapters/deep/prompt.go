package deep

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mikey/mailrisk/internal/core"
)

// promptFormat is shared by all providers so their reports are directly
// comparable. Score semantics match core.DeepReport: higher is safer.
const promptFormat = `You are a sender reputation analyst. Assess the trustworthiness of the sender of the following email.
Respond with a JSON object containing:
- score: integer between 0 and 100 (higher means more trustworthy)
- risk_level: one of "likely_ok", "caution", "high_risk"
- findings: array of objects, each with "id" (short identifier), "severity" (low, medium or high) and "details" (one sentence)

Sender: %s
Authentication headers:
%s
Body:
%s

Respond only with the JSON object and nothing else.`

// authHeaders are the headers worth showing to the model. Everything
// else is noise at best and prompt injection surface at worst.
var authHeaders = []string{
	"Authentication-Results",
	"Received-SPF",
	"DKIM-Signature",
	"Return-Path",
	"Reply-To",
	"List-Unsubscribe",
}

// buildPrompt formats the analysis prompt from the sender, a filtered
// header set and the (already truncated) body
func buildPrompt(senderEmail string, rawHeaders map[string][]string, body string) string {
	canonical := make(map[string][]string, len(rawHeaders))
	for name, values := range rawHeaders {
		canonical[strings.ToLower(name)] = values
	}

	var lines []string
	for _, name := range authHeaders {
		for _, v := range canonical[strings.ToLower(name)] {
			lines = append(lines, fmt.Sprintf("%s: %s", name, v))
		}
	}
	sort.Strings(lines)
	headerBlock := "(none present)"
	if len(lines) > 0 {
		headerBlock = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(promptFormat, senderEmail, headerBlock, body)
}

// parseReport decodes the model's JSON response into a report. Models
// sometimes wrap the JSON in prose or markdown fences, so on a decode
// failure we retry on the substring between the first '{' and the last
// '}'. Out-of-range scores are clamped and a missing risk_level is
// derived from the score.
func parseReport(responseText string) (*core.DeepReport, error) {
	var report core.DeepReport
	if err := json.Unmarshal([]byte(responseText), &report); err != nil {
		jsonStart := strings.IndexByte(responseText, '{')
		jsonEnd := strings.LastIndexByte(responseText, '}')
		if jsonStart < 0 || jsonEnd < jsonStart {
			return nil, fmt.Errorf("failed to extract JSON from model response: %w", err)
		}
		if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), &report); err != nil {
			return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
		}
	}

	if report.Score < 0 {
		report.Score = 0
	}
	if report.Score > 100 {
		report.Score = 100
	}

	switch report.RiskLevel {
	case core.DeepLikelyOK, core.DeepCaution, core.DeepHighRisk:
	default:
		report.RiskLevel = riskLevelForScore(report.Score)
	}

	return &report, nil
}

func riskLevelForScore(score int) core.DeepRiskLevel {
	switch {
	case score < 30:
		return core.DeepHighRisk
	case score < 70:
		return core.DeepCaution
	default:
		return core.DeepLikelyOK
	}
}
