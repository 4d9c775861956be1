package config

import (
	"github.com/mikey/mailrisk/internal/core"
	"github.com/mikey/mailrisk/internal/signals"
)

// SignalConfig builds the signal extractor configuration, starting from
// the built-in lists and overriding any that appear in the config file
func (c *Config) SignalConfig() signals.Config {
	cfg := signals.DefaultConfig()
	c.overrideList("scoring.trusted_domains", &cfg.TrustedDomains)
	c.overrideList("scoring.suspicious_tlds", &cfg.SuspiciousTLDs)
	c.overrideList("scoring.spam_keywords", &cfg.SpamKeywords)
	c.overrideList("scoring.urgency_phrases", &cfg.UrgencyPhrases)
	c.overrideList("scoring.url_shortener_hosts", &cfg.URLShortenerHosts)
	c.overrideList("scoring.link_allowlist", &cfg.LinkAllowlist)
	c.overrideList("scoring.known_brands", &cfg.KnownBrands)
	return cfg
}

// ScorerConfig builds the actionability configuration for the base scorer
func (c *Config) ScorerConfig() core.ScorerConfig {
	cfg := core.DefaultScorerConfig()
	c.overrideList("scoring.unsubscribe_phrases", &cfg.UnsubscribePhrases)
	c.overrideList("scoring.transactional_keywords", &cfg.TransactionalKeywords)
	c.overrideList("scoring.request_phrases", &cfg.RequestPhrases)
	c.overrideList("scoring.meeting_keywords", &cfg.MeetingKeywords)
	c.overrideList("scoring.noreply_markers", &cfg.NoReplyMarkers)
	return cfg
}

// LeadConfig builds the lead classifier configuration
func (c *Config) LeadConfig() core.LeadConfig {
	cfg := core.DefaultLeadConfig()
	c.overrideList("leads.customer_signals", &cfg.CustomerSignals)
	c.overrideList("leads.investor_signals", &cfg.InvestorSignals)
	c.overrideList("leads.partner_signals", &cfg.PartnerSignals)
	c.overrideList("leads.urgency_phrases", &cfg.UrgencyPhrases)
	c.overrideList("leads.newsletter_patterns", &cfg.NewsletterPatterns)
	c.overrideList("leads.personal_email_providers", &cfg.PersonalEmailProviders)
	return cfg
}

func (c *Config) overrideList(key string, dst *[]string) {
	if c.v.IsSet(key) {
		*dst = c.v.GetStringSlice(key)
	}
}
