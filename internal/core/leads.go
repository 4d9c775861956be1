package core

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LeadConfig carries the signal-pattern families the classifier matches
// against. Immutable after construction.
type LeadConfig struct {
	CustomerSignals        []string
	InvestorSignals        []string
	PartnerSignals         []string
	UrgencyPhrases         []string
	NewsletterPatterns     []string
	PersonalEmailProviders []string
}

// DefaultLeadConfig returns the stock lead classifier configuration
func DefaultLeadConfig() LeadConfig {
	return LeadConfig{
		CustomerSignals: []string{
			"interested in", "pricing", "quote", "demo", "budget",
			"purchase", "buy your", "your product", "your platform",
			"your service", "looking for a solution", "free trial",
			"how much does", "subscription",
		},
		InvestorSignals: []string{
			"investment", "investor", "funding", "portfolio", "venture",
			"term sheet", "due diligence", "cap table", "seed round",
			"series a", "valuation", "pitch",
		},
		PartnerSignals: []string{
			"partnership", "partner with", "collaborate", "collaboration",
			"integration", "reseller", "joint venture", "alliance",
			"co-marketing", "work together", "white label",
		},
		UrgencyPhrases: []string{
			"asap", "urgent", "this week", "right away", "immediately",
			"time sensitive",
		},
		NewsletterPatterns: []string{
			"unsubscribe", "newsletter", "digest", "manage your preferences",
			"view in browser", "email preferences", "opt out",
		},
		PersonalEmailProviders: []string{
			"gmail.com", "googlemail.com", "yahoo.com", "hotmail.com",
			"outlook.com", "icloud.com", "aol.com", "protonmail.com",
			"proton.me", "live.com", "msn.com",
		},
	}
}

// signaturePattern matches a company name on its own signature line
var signaturePattern = regexp.MustCompile(`(?m)^\s*([A-Z][A-Za-z0-9&.\- ]{1,40}\s(?:Inc|LLC|Ltd|Corp|GmbH|Co)\.?)\s*$`)

// LeadClassifier pattern-matches messages against the customer, investor
// and partner signal families and emits de-duplicated Lead records,
// consulting the deep analysis client to veto high-risk contacts.
type LeadClassifier struct {
	cfg         LeadConfig
	learning    LearningStore
	leads       LeadStore
	deep        DeepAnalysisClient
	deepTimeout time.Duration
	logger      *zap.Logger
}

// NewLeadClassifier creates a new lead classifier
func NewLeadClassifier(
	cfg LeadConfig,
	learning LearningStore,
	leads LeadStore,
	deep DeepAnalysisClient,
	deepTimeout time.Duration,
	logger *zap.Logger,
) *LeadClassifier {
	return &LeadClassifier{
		cfg:         cfg,
		learning:    learning,
		leads:       leads,
		deep:        deep,
		deepTimeout: deepTimeout,
		logger:      logger,
	}
}

// Classify evaluates a message for lead potential. It returns (nil, nil)
// when the message yields no lead; a non-nil lead has already been
// persisted (de-duplicated by contact email) when err is nil.
func (c *LeadClassifier) Classify(ctx context.Context, msg *Message) (*Lead, error) {
	contactEmail := msg.SenderAddress()
	if contactEmail == "" || !strings.Contains(contactEmail, "@") {
		return nil, nil
	}

	deleted, err := c.learning.WasLeadDeleted(ctx, contactEmail)
	if err != nil {
		c.logger.Warn("Deleted-lead lookup failed",
			zap.Error(err), zap.String("contact", contactEmail))
	} else if deleted {
		c.logger.Debug("Contact is suppressed, skipping",
			zap.String("contact", contactEmail))
		return nil, nil
	}

	if c.isNewsletterOrSpam(msg) {
		return nil, nil
	}

	text := strings.ToLower(msg.Subject + " " + msg.Body)
	leadType, matches := c.classifyType(text)
	if len(matches) == 0 {
		return nil, nil
	}

	matchBonus := 15 * len(matches)
	if matchBonus > 50 {
		matchBonus = 50
	}
	score := 40 + matchBonus
	if len(matchAll(text, c.cfg.UrgencyPhrases)) > 0 {
		score += 10
	}
	score = ClampLeadScore(score)

	lead := &Lead{
		ContactEmail:      contactEmail,
		ContactName:       c.extractContactName(msg),
		Company:           c.extractCompany(msg),
		Type:              leadType,
		Status:            StatusPotential,
		Confidence:        math.Min(float64(len(matches))/5, 1.0),
		Signals:           matches,
		ConversationCount: 1,
		FirstSeen:         msg.ReceivedAt,
		LastSeen:          msg.ReceivedAt,
	}

	deepCtx, cancel := context.WithTimeout(ctx, c.deepTimeout)
	report, deepErr := c.deep.GenerateReport(deepCtx, contactEmail, msg.Headers, msg.Body)
	cancel()
	if deepErr != nil {
		c.logger.Warn("Deep analysis unavailable for lead check",
			zap.Error(deepErr), zap.String("contact", contactEmail))
	} else {
		switch report.RiskLevel {
		case DeepHighRisk:
			c.logger.Info("Lead vetoed by deep analysis",
				zap.String("contact", contactEmail),
				zap.Int("deep_score", report.Score))
			return nil, nil
		case DeepCaution:
			score = int(float64(score) * 0.7)
		}
		deepScore := report.Score
		lead.DeepScore = &deepScore
		lead.DeepRiskLevel = report.RiskLevel
	}

	lead.Score = ClampLeadScore(score)
	lead.NextAction = suggestNextAction(leadType, lead.Score)

	stored, err := c.leads.UpsertLead(ctx, lead)
	if err != nil {
		return nil, fmt.Errorf("failed to save lead: %w", err)
	}

	c.logger.Info("Classified lead",
		zap.String("contact", contactEmail),
		zap.String("type", string(stored.Type)),
		zap.Int("score", stored.Score),
		zap.Int("conversations", stored.ConversationCount))

	return stored, nil
}

// isNewsletterOrSpam applies the independent reject pattern set: bulk
// mail markers, marketing senders and platform labels
func (c *LeadClassifier) isNewsletterOrSpam(msg *Message) bool {
	if hasLabel(msg, "spam", "junk", "promotions", "promotional") {
		return true
	}
	local := msg.SenderAddress()
	if i := strings.Index(local, "@"); i >= 0 {
		local = local[:i]
	}
	for _, marker := range []string{"no-reply", "noreply", "donotreply", "marketing", "newsletter", "notifications"} {
		if strings.Contains(local, marker) {
			return true
		}
	}
	body := strings.ToLower(msg.Body)
	return len(matchAll(body, c.cfg.NewsletterPatterns)) > 0
}

// classifyType counts pattern matches per family; the family with the
// most matches wins, ties broken in declaration order (customer,
// investor, partner)
func (c *LeadClassifier) classifyType(text string) (LeadType, []string) {
	families := []struct {
		leadType LeadType
		patterns []string
	}{
		{LeadCustomer, c.cfg.CustomerSignals},
		{LeadInvestor, c.cfg.InvestorSignals},
		{LeadPartner, c.cfg.PartnerSignals},
	}

	best := LeadOther
	var bestMatches []string
	for _, fam := range families {
		matched := matchAll(text, fam.patterns)
		if len(matched) > len(bestMatches) {
			best = fam.leadType
			bestMatches = matched
		}
	}
	return best, bestMatches
}

// extractCompany derives a company name from the sender domain, falling
// back to a signature-line pattern for personal email providers
func (c *LeadClassifier) extractCompany(msg *Message) string {
	domain := msg.SenderDomain()
	personal := false
	for _, p := range c.cfg.PersonalEmailProviders {
		if domain == p {
			personal = true
			break
		}
	}

	if domain != "" && !personal {
		name := domain
		if i := strings.Index(name, "."); i > 0 {
			name = name[:i]
		}
		return titleCase(strings.ReplaceAll(name, "-", " "))
	}

	if m := signaturePattern.FindStringSubmatch(msg.Body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractContactName takes the display name from the From header, or
// falls back to the address local part
func (c *LeadClassifier) extractContactName(msg *Message) string {
	from := strings.TrimSpace(msg.From)
	if i := strings.Index(from, "<"); i > 0 {
		name := strings.Trim(strings.TrimSpace(from[:i]), `"`)
		if name != "" {
			return name
		}
	}
	local := msg.SenderAddress()
	if i := strings.Index(local, "@"); i >= 0 {
		local = local[:i]
	}
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)
	return titleCase(local)
}

// suggestNextAction maps lead type and score to a suggested follow-up
func suggestNextAction(leadType LeadType, score int) string {
	if score >= 80 {
		return "Reply within 24 hours"
	}
	switch leadType {
	case LeadCustomer:
		return "Send product details and pricing"
	case LeadInvestor:
		return "Share pitch materials and schedule a call"
	case LeadPartner:
		return "Schedule an introduction call"
	default:
		return "Review manually"
	}
}

func matchAll(text string, patterns []string) []string {
	var matched []string
	for _, p := range patterns {
		if strings.Contains(text, strings.ToLower(p)) {
			matched = append(matched, p)
		}
	}
	return matched
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
