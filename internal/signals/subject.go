package signals

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/mikey/mailrisk/internal/core"
)

var repeatedPunctuation = regexp.MustCompile(`[!?]{2,}`)

// SubjectKeywordsExtractor scores spam and urgency wording in the subject
type SubjectKeywordsExtractor struct {
	keywords []string
}

// NewSubjectKeywordsExtractor creates a subject keyword extractor
func NewSubjectKeywordsExtractor(cfg Config) *SubjectKeywordsExtractor {
	return &SubjectKeywordsExtractor{keywords: cfg.SpamKeywords}
}

// Name returns the extractor name
func (e *SubjectKeywordsExtractor) Name() string {
	return "subject_keywords"
}

// Evaluate adds 2 per distinct matched spam keyword, 1 for repeated
// !/? punctuation and 1 for a shouty all-caps subject.
func (e *SubjectKeywordsExtractor) Evaluate(msg *core.Message) Result {
	var res Result

	for _, kw := range matchKeywords(msg.Subject, e.keywords) {
		res.Delta += 2
		res.Flags = append(res.Flags, fmt.Sprintf("spam keyword in subject: %s", kw))
	}

	if repeatedPunctuation.MatchString(msg.Subject) {
		res.Delta++
		res.Flags = append(res.Flags, "repeated punctuation in subject")
	}

	if isShouting(msg.Subject) {
		res.Delta++
		res.Flags = append(res.Flags, "all-caps subject")
	}

	return res
}

// isShouting reports whether a subject longer than 10 characters is
// entirely upper case (ignoring strings with no letters at all)
func isShouting(subject string) bool {
	if len(subject) <= 10 {
		return false
	}
	hasLetter := false
	for _, r := range subject {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter && subject == strings.ToUpper(subject)
}
