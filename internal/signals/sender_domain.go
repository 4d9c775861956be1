package signals

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mikey/mailrisk/internal/core"
)

// suspiciousDomainPatterns are regex families that catch throwaway and
// lookalike sender domains: numeric-heavy names and the classic
// credential-phishing word salad.
var suspiciousDomainPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4,}`),
	regexp.MustCompile(`(?i)(secure|login|verify|account|update|confirm|signin)[-.]`),
	regexp.MustCompile(`(?i)[-.](secure|login|verify|account|update|confirm|signin)`),
}

// SenderDomainExtractor scores the sender's domain reputation
type SenderDomainExtractor struct {
	trusted        map[string]struct{}
	suspiciousTLDs map[string]struct{}
}

// NewSenderDomainExtractor creates a sender domain extractor
func NewSenderDomainExtractor(cfg Config) *SenderDomainExtractor {
	trusted := make(map[string]struct{}, len(cfg.TrustedDomains))
	for _, d := range cfg.TrustedDomains {
		trusted[strings.ToLower(d)] = struct{}{}
	}
	tlds := make(map[string]struct{}, len(cfg.SuspiciousTLDs))
	for _, t := range cfg.SuspiciousTLDs {
		tlds[strings.ToLower(strings.TrimPrefix(t, "."))] = struct{}{}
	}
	return &SenderDomainExtractor{trusted: trusted, suspiciousTLDs: tlds}
}

// Name returns the extractor name
func (e *SenderDomainExtractor) Name() string {
	return "sender_domain"
}

// Evaluate scores the sender domain. A trusted domain short-circuits to
// zero without evaluating the suspicious patterns. A message that cannot
// be attributed to a domain gets a fixed moderate penalty instead of
// failing the whole assessment.
func (e *SenderDomainExtractor) Evaluate(msg *core.Message) Result {
	domain := msg.SenderDomain()
	if domain == "" {
		return Result{Delta: 3, Flags: []string{"unparseable sender address"}}
	}

	if _, ok := e.trusted[domain]; ok {
		return Result{}
	}

	// Any domain off the trusted set carries a small baseline penalty.
	res := Result{Delta: 1}

	for _, pat := range suspiciousDomainPatterns {
		if pat.MatchString(domain) {
			res.Delta += 3
			res.Flags = append(res.Flags, fmt.Sprintf("suspicious domain pattern: %s", domain))
			break
		}
	}

	if i := strings.LastIndex(domain, "."); i >= 0 {
		if _, ok := e.suspiciousTLDs[domain[i+1:]]; ok {
			res.Delta += 2
			res.Flags = append(res.Flags, fmt.Sprintf("suspicious TLD: .%s", domain[i+1:]))
		}
	}

	return res
}
