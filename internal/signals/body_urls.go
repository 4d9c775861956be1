package signals

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/mikey/mailrisk/internal/core"
)

var (
	urlPattern       = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	ipLiteralPattern = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)
)

// BodyURLsExtractor scores suspicious link patterns in the message body
type BodyURLsExtractor struct {
	shorteners map[string]struct{}
}

// NewBodyURLsExtractor creates a body URL extractor
func NewBodyURLsExtractor(cfg Config) *BodyURLsExtractor {
	shorteners := make(map[string]struct{}, len(cfg.URLShortenerHosts))
	for _, h := range cfg.URLShortenerHosts {
		shorteners[strings.ToLower(h)] = struct{}{}
	}
	return &BodyURLsExtractor{shorteners: shorteners}
}

// Name returns the extractor name
func (e *BodyURLsExtractor) Name() string {
	return "body_urls"
}

// Evaluate adds 2 per distinct suspicious URL (shortener, IP-literal host
// or embedded credentials) and 1 when the body carries more than five
// distinct links. Findings are de-duplicated, not counted per occurrence.
func (e *BodyURLsExtractor) Evaluate(msg *core.Message) Result {
	var res Result

	distinct := make(map[string]struct{})
	for _, raw := range urlPattern.FindAllString(msg.Body, -1) {
		distinct[strings.TrimRight(raw, ".,;")] = struct{}{}
	}

	seen := make(map[string]struct{})
	for raw := range distinct {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())

		kind := ""
		switch {
		case ipLiteralPattern.MatchString(host):
			kind = "IP-literal link"
		case u.User != nil:
			kind = "credentials embedded in link"
		default:
			if _, ok := e.shorteners[host]; ok {
				kind = "shortened link"
			}
		}
		if kind == "" {
			continue
		}

		flag := fmt.Sprintf("suspicious URL: %s (%s)", kind, host)
		if _, dup := seen[flag]; dup {
			continue
		}
		seen[flag] = struct{}{}
		res.Delta += 2
		res.Flags = append(res.Flags, flag)
	}

	if len(distinct) > 5 {
		res.Delta++
		res.Flags = append(res.Flags, fmt.Sprintf("many links in body: %d", len(distinct)))
	}

	return res
}

// LinkHosts returns the distinct link hosts found in a body. Shared with
// the spoof-detection extractor.
func LinkHosts(body string) []string {
	seen := make(map[string]struct{})
	var hosts []string
	for _, raw := range urlPattern.FindAllString(body, -1) {
		u, err := url.Parse(strings.TrimRight(raw, ".,;"))
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	return hosts
}
