package signals

import (
	"fmt"
	"strings"

	"github.com/mikey/mailrisk/internal/core"
)

// DomainMismatchExtractor detects spoofing: link domains that don't
// belong to the sender, and brand mentions without a matching sender
// domain.
type DomainMismatchExtractor struct {
	allowlist map[string]struct{}
	brands    []string
}

// NewDomainMismatchExtractor creates a spoof-detection extractor
func NewDomainMismatchExtractor(cfg Config) *DomainMismatchExtractor {
	allow := make(map[string]struct{}, len(cfg.LinkAllowlist))
	for _, h := range cfg.LinkAllowlist {
		allow[baseDomain(h)] = struct{}{}
	}
	return &DomainMismatchExtractor{allowlist: allow, brands: cfg.KnownBrands}
}

// Name returns the extractor name
func (e *DomainMismatchExtractor) Name() string {
	return "domain_mismatch"
}

// Evaluate compares every link domain in the body (minus the legitimate
// third-party allowlist) against the sender's base domain. Any mismatch
// not explainable as a subdomain relationship adds 4; a known brand named
// in the body without a matching sender domain adds 3.
func (e *DomainMismatchExtractor) Evaluate(msg *core.Message) Result {
	var res Result

	senderBase := baseDomain(msg.SenderDomain())
	if senderBase != "" {
		var mismatched []string
		for _, host := range LinkHosts(msg.Body) {
			linkBase := baseDomain(host)
			if linkBase == senderBase {
				continue
			}
			if _, ok := e.allowlist[linkBase]; ok {
				continue
			}
			mismatched = append(mismatched, linkBase)
		}
		if len(mismatched) > 0 {
			shown := mismatched
			if len(shown) > 3 {
				shown = shown[:3]
			}
			res.Delta += 4
			res.Flags = append(res.Flags,
				fmt.Sprintf("link domains differ from sender: %s", strings.Join(shown, ", ")))
		}
	}

	senderDomain := msg.SenderDomain()
	lowered := strings.ToLower(msg.Body)
	for _, brand := range e.brands {
		brandKey := strings.ReplaceAll(strings.ToLower(brand), " ", "")
		if strings.Contains(lowered, strings.ToLower(brand)) &&
			!strings.Contains(senderDomain, brandKey) {
			res.Delta += 3
			res.Flags = append(res.Flags,
				fmt.Sprintf("brand mentioned without matching sender: %s", brand))
			break
		}
	}

	return res
}
