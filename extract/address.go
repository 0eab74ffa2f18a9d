package extract

import (
	"regexp"
	"strings"
)

// agentKeywords are markers of estate-agency office naming, matched with
// word boundaries to keep false positives down. A hit flags the text as an
// agent address regardless of how often it has been seen.
var agentKeywords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)estate agents?`),
	regexp.MustCompile(`(?i)letting agents?`),
	regexp.MustCompile(`(?i)property agents?`),
	regexp.MustCompile(`(?i)sales & letting`),
	regexp.MustCompile(`(?i)sales and letting`),
	regexp.MustCompile(`(?i)branch office`),
	regexp.MustCompile(`(?i)head office`),
	regexp.MustCompile(`(?i)chartered surveyors?`),
	regexp.MustCompile(`(?i)\brics\b`),
	regexp.MustCompile(`(?i)\bnaea\b`),
	regexp.MustCompile(`(?i)\barla\b`),
	regexp.MustCompile(`(?i)\btpos\b`),
	regexp.MustCompile(`(?i)\bombudsman\b`),
}

// IsAgentAddress reports whether text looks like an estate-agency office
// address rather than a property address.
func IsAgentAddress(text string) bool {
	if text == "" {
		return false
	}
	for _, re := range agentKeywords {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeAddress canonicalizes an address string for comparison and
// blacklist keying: lowercase with collapsed whitespace.
func NormalizeAddress(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(strings.ToLower(s)), " ")
}
