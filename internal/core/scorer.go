package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SignalResult is one extractor's contribution to the risk score
type SignalResult struct {
	Delta int
	Flags []string
}

// SignalExtractor evaluates one independent aspect of a message.
// Implementations must be side-effect-free and order-independent.
type SignalExtractor interface {
	Name() string
	Evaluate(msg *Message) SignalResult
}

// ScorerConfig carries the wording lists used by the task-creation
// decision. Immutable after construction.
type ScorerConfig struct {
	UnsubscribePhrases    []string
	TransactionalKeywords []string
	RequestPhrases        []string
	MeetingKeywords       []string
	NoReplyMarkers        []string
}

// DefaultScorerConfig returns the stock scorer configuration
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		UnsubscribePhrases: []string{
			"unsubscribe", "manage your preferences", "email preferences",
			"opt out", "opt-out", "stop receiving these emails",
		},
		TransactionalKeywords: []string{
			"payment", "invoice", "receipt", "order", "shipment",
		},
		RequestPhrases: []string{
			"can you", "could you", "please", "let me know", "would you",
			"action required", "need your",
		},
		MeetingKeywords: []string{
			"meeting", "deadline", "schedule", "calendar", "call",
			"monday", "tuesday", "wednesday", "thursday", "friday",
			"tomorrow", "next week",
		},
		NoReplyMarkers: []string{
			"no-reply", "noreply", "donotreply", "do-not-reply",
		},
	}
}

// BaseRiskScorer composes the signal extractors into a single 1-10 risk
// assessment, applying the whitelist short-circuit and the learned
// adjustment from accumulated feedback.
type BaseRiskScorer struct {
	extractors []SignalExtractor
	whitelist  WhitelistStore
	learning   LearningStore
	cfg        ScorerConfig
	logger     *zap.Logger
}

// NewBaseRiskScorer creates a new risk scorer
func NewBaseRiskScorer(
	extractors []SignalExtractor,
	whitelist WhitelistStore,
	learning LearningStore,
	cfg ScorerConfig,
	logger *zap.Logger,
) *BaseRiskScorer {
	return &BaseRiskScorer{
		extractors: extractors,
		whitelist:  whitelist,
		learning:   learning,
		cfg:        cfg,
		logger:     logger,
	}
}

// Assess evaluates a message and returns its risk assessment. Store read
// failures degrade to "no whitelist match" / "no adjustment" rather than
// blocking the assessment.
func (s *BaseRiskScorer) Assess(ctx context.Context, msg *Message) *RiskAssessment {
	sender := msg.SenderAddress()

	whitelisted, err := s.whitelist.IsSafe(ctx, sender)
	if err != nil {
		s.logger.Warn("Whitelist lookup failed, scoring without it",
			zap.Error(err), zap.String("sender", sender))
		whitelisted = false
	}
	if whitelisted {
		assessment := NewRiskAssessment(1, []string{"sender is whitelisted"}, true)
		assessment.ShouldCreateTask = s.shouldCreateTask(msg, assessment.Score)
		return assessment
	}

	raw := 1
	var flags []string
	for _, ex := range s.extractors {
		res := ex.Evaluate(msg)
		raw += res.Delta
		flags = append(flags, res.Flags...)
	}

	domain := msg.SenderDomain()
	if domain != "" {
		safeDomain, err := s.whitelist.IsSafeDomain(ctx, domain)
		if err != nil {
			s.logger.Warn("Whitelist domain lookup failed",
				zap.Error(err), zap.String("domain", domain))
		} else if safeDomain {
			// Coarser than an exact match: dampens the score but never
			// short-circuits to safe on its own.
			raw -= 2
			flags = append(flags, "sender domain previously marked safe")
		}
	}

	// Learned adjustment is applied before clamping so feedback can never
	// push the score outside 1-10.
	adjustment, err := s.learning.GetAdjustment(ctx, domain, flags)
	if err != nil {
		s.logger.Warn("Learned adjustment lookup failed",
			zap.Error(err), zap.String("domain", domain))
		adjustment = 0
	}
	if adjustment != 0 {
		raw += adjustment
		flags = append(flags, fmt.Sprintf("learned adjustment: %+d", adjustment))
	}

	assessment := NewRiskAssessment(raw, flags, false)
	assessment.ShouldCreateTask = s.shouldCreateTask(msg, assessment.Score)

	s.logger.Debug("Assessed message",
		zap.String("sender", sender),
		zap.Int("score", assessment.Score),
		zap.String("level", string(assessment.Level)),
		zap.Int("adjustment", adjustment),
		zap.Strings("flags", flags))

	return assessment
}

// shouldCreateTask decides whether a message is worth turning into a
// task. Task creation is opt-in: the default is false and a positive
// actionability marker is required.
func (s *BaseRiskScorer) shouldCreateTask(msg *Message, score int) bool {
	if score > 6 {
		return false
	}
	if hasLabel(msg, "promotions", "promotional", "social") {
		return false
	}

	body := strings.ToLower(msg.Body)
	for _, phrase := range s.cfg.UnsubscribePhrases {
		if strings.Contains(body, phrase) {
			return false
		}
	}

	subject := strings.ToLower(msg.Subject)
	if s.isNoReply(msg.SenderAddress()) && !containsAny(subject, s.cfg.TransactionalKeywords) {
		return false
	}

	text := subject + " " + body
	switch {
	case strings.Contains(text, "?"):
		return true
	case containsAny(text, s.cfg.RequestPhrases):
		return true
	case containsAny(text, s.cfg.MeetingKeywords):
		return true
	case containsAny(subject, s.cfg.TransactionalKeywords):
		return true
	}
	return false
}

func (s *BaseRiskScorer) isNoReply(sender string) bool {
	local := sender
	if i := strings.Index(sender, "@"); i >= 0 {
		local = sender[:i]
	}
	return containsAny(strings.ToLower(local), s.cfg.NoReplyMarkers)
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func hasLabel(msg *Message, markers ...string) bool {
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
