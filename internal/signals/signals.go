// Package signals contains the independent per-aspect signal extractors
// composed by the risk scorer. Each extractor inspects one aspect of a
// message and returns a score delta plus human-readable flags. Extractors
// are pure functions over the message and their immutable config, so they
// are order-independent and can be tested in isolation.
package signals

import (
	"strings"

	"github.com/mikey/mailrisk/internal/core"
)

// Config carries the keyword and domain lists the extractors match
// against. It is built once at startup and never mutated.
type Config struct {
	// TrustedDomains short-circuit the sender-domain extractor to zero
	TrustedDomains []string

	// SuspiciousTLDs add a penalty when the sender domain ends in one
	SuspiciousTLDs []string

	// SpamKeywords are matched case-insensitively against the subject
	SpamKeywords []string

	// UrgencyPhrases are matched once against subject plus body
	UrgencyPhrases []string

	// URLShortenerHosts are link hosts treated as suspicious
	URLShortenerHosts []string

	// LinkAllowlist are legitimate third-party link hosts (ESPs, CDNs,
	// tracking and unsubscribe hosts) excluded from spoof detection
	LinkAllowlist []string

	// KnownBrands are brand names whose mention without a matching sender
	// domain indicates spoofing
	KnownBrands []string
}

// DefaultConfig returns the stock signal configuration. Deployments tune
// individual lists through the config file.
func DefaultConfig() Config {
	return Config{
		TrustedDomains: []string{
			"gmail.com", "googlemail.com", "outlook.com", "hotmail.com",
			"yahoo.com", "icloud.com", "protonmail.com", "proton.me",
			"google.com", "microsoft.com", "apple.com", "amazon.com",
			"paypal.com", "linkedin.com", "github.com", "stripe.com",
			"slack.com", "atlassian.com", "notion.so", "zoom.us",
		},
		SuspiciousTLDs: []string{
			"xyz", "top", "loan", "click", "download", "review",
		},
		SpamKeywords: []string{
			"urgent", "verify your account", "winner", "congratulations",
			"free money", "prize", "claim now", "act now", "suspended",
			"lottery", "click here", "limited time", "wire transfer",
			"confirm your identity", "unusual activity",
		},
		UrgencyPhrases: []string{
			"immediately", "right away", "within 24 hours", "expires today",
			"final notice", "last chance", "asap", "account will be closed",
			"do not delay", "time sensitive", "now!!",
		},
		URLShortenerHosts: []string{
			"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "is.gd",
			"buff.ly", "rebrand.ly", "cutt.ly", "shorturl.at",
		},
		LinkAllowlist: []string{
			"sendgrid.net", "mailchimp.com", "list-manage.com",
			"cmail19.com", "cmail20.com", "mailgun.org", "amazonses.com",
			"sparkpostmail.com", "rs6.net", "hubspotlinks.com",
			"doubleclick.net", "google-analytics.com", "googleusercontent.com",
			"cloudfront.net", "akamaized.net", "fastly.net",
			"unsubscribe.net", "mandrillapp.com",
		},
		KnownBrands: []string{
			"paypal", "amazon", "apple", "microsoft", "google", "netflix",
			"chase", "wells fargo", "bank of america", "docusign", "fedex",
			"ups", "irs", "venmo", "coinbase",
		},
	}
}

// Result is one extractor's contribution to the overall risk score
type Result = core.SignalResult

// All returns the full extractor set in declaration order. The scorer
// does not depend on this order; it exists only for stable flag output.
func All(cfg Config) []core.SignalExtractor {
	return []core.SignalExtractor{
		NewSenderDomainExtractor(cfg),
		NewSubjectKeywordsExtractor(cfg),
		NewBodyURLsExtractor(cfg),
		NewPlatformLabelsExtractor(),
		NewDomainMismatchExtractor(cfg),
		NewUrgencyExtractor(cfg),
	}
}

// matchKeywords reports which needles occur in haystack,
// case-insensitively, returning them in list order.
func matchKeywords(haystack string, needles []string) []string {
	lowered := strings.ToLower(haystack)
	var matched []string
	for _, n := range needles {
		if strings.Contains(lowered, strings.ToLower(n)) {
			matched = append(matched, n)
		}
	}
	return matched
}

// baseDomain reduces a host to its last two labels, the coarse unit used
// for spoof comparison. IP literals are returned unchanged.
func baseDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	// crude IP check: all-numeric labels never collapse
	allDigits := true
	for _, l := range labels {
		for _, r := range l {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
	}
	if allDigits {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
