package core

import (
	"strings"
	"time"
)

// Message represents an inbound email message handed over by a collector.
// It is immutable for the duration of an analysis.
type Message struct {
	ID         string
	From       string
	To         []string
	Subject    string
	Body       string
	Headers    map[string][]string
	Labels     []string
	ReceivedAt time.Time
}

// SenderDomain returns the lower-cased domain part of the sender address,
// or an empty string when the address cannot be attributed to a domain.
func (m *Message) SenderDomain() string {
	return DomainOf(m.From)
}

// SenderAddress returns the bare sender address with any display name
// and angle brackets stripped.
func (m *Message) SenderAddress() string {
	return AddressOf(m.From)
}

// AddressOf strips a display name and angle brackets from a From header
// value, returning the lower-cased bare address.
func AddressOf(from string) string {
	addr := strings.TrimSpace(from)
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		addr = strings.TrimSuffix(addr[i+1:], ">")
	}
	return strings.ToLower(strings.TrimSpace(addr))
}

// DomainOf extracts the lower-cased domain from an email address.
func DomainOf(address string) string {
	parts := strings.Split(AddressOf(address), "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// RiskLevel buckets a risk score into a severity category
type RiskLevel string

const (
	RiskLevelSafe     RiskLevel = "safe"
	RiskLevelModerate RiskLevel = "moderate"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// severity orders risk levels so merges can pick the more conservative one
func (l RiskLevel) severity() int {
	switch l {
	case RiskLevelModerate:
		return 1
	case RiskLevelHigh:
		return 2
	case RiskLevelCritical:
		return 3
	default:
		return 0
	}
}

// MoreSevere returns the more conservative of two risk levels
func MoreSevere(a, b RiskLevel) RiskLevel {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// RecommendedAction is the suggested handling for an assessed message
type RecommendedAction string

const (
	ActionNone     RecommendedAction = "none"
	ActionReview   RecommendedAction = "review"
	ActionMarkSpam RecommendedAction = "mark_spam"
	ActionDelete   RecommendedAction = "delete"
)

// RiskLevelForScore maps a 1-10 risk score to its level bucket
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score <= 3:
		return RiskLevelSafe
	case score <= 6:
		return RiskLevelModerate
	case score <= 8:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}

// ActionForLevel maps a risk level to its recommended action
func ActionForLevel(level RiskLevel) RecommendedAction {
	switch level {
	case RiskLevelModerate:
		return ActionReview
	case RiskLevelHigh:
		return ActionMarkSpam
	case RiskLevelCritical:
		return ActionDelete
	default:
		return ActionNone
	}
}

// ClampScore bounds a raw risk score to the valid 1-10 range
func ClampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// RiskAssessment is the result of the local heuristic scoring pass
type RiskAssessment struct {
	Score             int
	Level             RiskLevel
	Flags             []string
	IsWhitelisted     bool
	ShouldCreateTask  bool
	RecommendedAction RecommendedAction
	AnalyzedAt        time.Time
}

// NewRiskAssessment builds an assessment from a raw score, enforcing the
// score bounds and deriving level and action. The raw score may be outside
// 1-10; it is clamped here and nowhere else.
func NewRiskAssessment(rawScore int, flags []string, whitelisted bool) *RiskAssessment {
	score := ClampScore(rawScore)
	level := RiskLevelForScore(score)
	return &RiskAssessment{
		Score:             score,
		Level:             level,
		Flags:             flags,
		IsWhitelisted:     whitelisted,
		RecommendedAction: ActionForLevel(level),
		AnalyzedAt:        time.Now(),
	}
}

// AnalysisType distinguishes basic-only results from ones that include
// a deep analysis report
type AnalysisType string

const (
	AnalysisBasicOnly     AnalysisType = "basic_only"
	AnalysisComprehensive AnalysisType = "comprehensive"
)

// Finding is a single human-readable analysis observation tagged with the
// component that produced it
type Finding struct {
	Source string
	Detail string
}

// CombinedAssessment merges the local heuristic score with the deep
// analysis report. DeepScore is nil when deep analysis was unavailable.
type CombinedAssessment struct {
	CombinedScore  float64
	RiskLevel      RiskLevel
	BaseScore      int
	DeepScore      *int
	Findings       []Finding
	AnalysisType   AnalysisType
	Recommendation string
	Base           *RiskAssessment
}

// DeepRiskLevel is the external reputation service's own verdict
type DeepRiskLevel string

const (
	DeepLikelyOK DeepRiskLevel = "likely_ok"
	DeepCaution  DeepRiskLevel = "caution"
	DeepHighRisk DeepRiskLevel = "high_risk"
)

// AsRiskLevel maps the deep verdict onto the local risk scale
func (d DeepRiskLevel) AsRiskLevel() RiskLevel {
	switch d {
	case DeepCaution:
		return RiskLevelModerate
	case DeepHighRisk:
		return RiskLevelHigh
	default:
		return RiskLevelSafe
	}
}

// DeepFinding is one observation from the deep analysis report
type DeepFinding struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Details  string `json:"details"`
}

// DeepReport is the external reputation service's report on a sender.
// Score is 0-100 where higher means more trustworthy.
type DeepReport struct {
	Score       int           `json:"score"`
	RiskLevel   DeepRiskLevel `json:"risk_level"`
	Findings    []DeepFinding `json:"findings"`
	ModelUsed   string        `json:"-"`
	GeneratedAt time.Time     `json:"-"`
}

// SafeSender is a whitelist entry for a sender the user marked safe
type SafeSender struct {
	Email       string
	Domain      string
	Reason      string
	TimesMarked int
	LastSeen    time.Time
}

// UserAssessment is the user's corrected verdict on a shown assessment
type UserAssessment string

const (
	AssessedSafe  UserAssessment = "safe"
	AssessedRisky UserAssessment = "risky"
	AssessedSpam  UserAssessment = "spam"
)

// RiskBucket maps a user verdict to the risk bucket recorded against
// learned patterns
func (a UserAssessment) RiskBucket() RiskLevel {
	switch a {
	case AssessedRisky:
		return RiskLevelHigh
	case AssessedSpam:
		return RiskLevelCritical
	default:
		return RiskLevelSafe
	}
}

// FeedbackRecord is one user feedback event on an assessment.
// Records are append-only and never mutated after creation.
type FeedbackRecord struct {
	EmailID        string
	Sender         string
	Domain         string
	OriginalScore  int
	OriginalLevel  RiskLevel
	UserAssessment UserAssessment
	Reason         string
	Signals        []string
	CreatedAt      time.Time
}

// PatternType distinguishes the two kinds of learned patterns
type PatternType string

const (
	PatternDomain PatternType = "domain"
	PatternSignal PatternType = "signal"
)

// LearnedPattern is a per-pattern confidence counter derived from
// accumulated user feedback. Keyed by (Type, Value).
type LearnedPattern struct {
	Type         PatternType
	Value        string
	RiskBucket   RiskLevel
	MatchCount   int
	CorrectCount int
	Confidence   float64
}

// Recompute refreshes the confidence ratio from the counters
func (p *LearnedPattern) Recompute() {
	if p.MatchCount > 0 {
		p.Confidence = float64(p.CorrectCount) / float64(p.MatchCount)
	} else {
		p.Confidence = 0
	}
}

// SignalKey reduces a flag to its stable pattern key by stripping the
// variable detail after the first colon, so flags carrying per-message
// detail collapse to one learnable pattern.
func SignalKey(flag string) string {
	if i := strings.Index(flag, ":"); i >= 0 {
		return strings.TrimSpace(flag[:i])
	}
	return strings.TrimSpace(flag)
}

// LeadType categorizes the business interest a contact represents
type LeadType string

const (
	LeadCustomer LeadType = "customer"
	LeadInvestor LeadType = "investor"
	LeadPartner  LeadType = "partner"
	LeadOther    LeadType = "other"
)

// LeadStatus tracks a lead's progression through the pipeline
type LeadStatus string

const (
	StatusPotential LeadStatus = "potential"
	StatusContacted LeadStatus = "contacted"
	StatusQualified LeadStatus = "qualified"
	StatusConverted LeadStatus = "converted"
)

// Rank orders statuses so an upsert never regresses a human-confirmed
// stage back toward potential
func (s LeadStatus) Rank() int {
	switch s {
	case StatusContacted:
		return 1
	case StatusQualified:
		return 2
	case StatusConverted:
		return 3
	default:
		return 0
	}
}

// Lead is a contact identified as a potential customer, investor or
// partner. ContactEmail is the natural de-duplication key.
type Lead struct {
	ContactEmail      string
	ContactName       string
	Company           string
	Type              LeadType
	Status            LeadStatus
	Score             int
	Confidence        float64
	Signals           []string
	DeepScore         *int
	DeepRiskLevel     DeepRiskLevel
	NextAction        string
	ConversationCount int
	FirstSeen         time.Time
	LastSeen          time.Time
}

// ClampLeadScore bounds a lead score to the 0-100 range
func ClampLeadScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// MergeLead folds a freshly classified lead into an existing row for the
// same contact. The conversation counter only ever grows, the score never
// regresses on repeat contact, and a status the user has advanced past
// potential is preserved.
func MergeLead(existing, incoming *Lead) *Lead {
	merged := *existing
	merged.ConversationCount = existing.ConversationCount + 1

	score := incoming.Score
	if floor := existing.ConversationCount * 5; floor > score {
		score = floor
	}
	merged.Score = ClampLeadScore(score)

	if existing.Status == StatusPotential {
		merged.Status = incoming.Status
	}
	merged.Type = incoming.Type
	merged.Confidence = incoming.Confidence
	merged.Signals = incoming.Signals
	merged.DeepScore = incoming.DeepScore
	merged.DeepRiskLevel = incoming.DeepRiskLevel
	merged.NextAction = incoming.NextAction
	if incoming.ContactName != "" {
		merged.ContactName = incoming.ContactName
	}
	if incoming.Company != "" {
		merged.Company = incoming.Company
	}
	merged.LastSeen = incoming.LastSeen
	return &merged
}

// DeletedLead is a permanent suppression entry. Once a row exists for a
// contact email that contact is never re-surfaced as a new lead.
type DeletedLead struct {
	ContactEmail string
	Reason       string
	Signals      []string
	LeadType     LeadType
	Score        int
	DeletedAt    time.Time
}
