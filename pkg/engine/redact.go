package engine

import "regexp"

// Redaction placeholders.
const (
	emailPlaceholder  = "<EMAIL>"
	numberPlaceholder = "<NUMBER>"
)

// redactionPatterns are applied in order to audit text fields. Standalone
// digit runs of 10-16 characters cover card and account numbers.
var redactionPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), emailPlaceholder},
	{regexp.MustCompile(`\b\d{10,16}\b`), numberPlaceholder},
}

// Redact replaces email-like substrings and long digit runs with fixed
// placeholders. Only the audit copies of turn text pass through here; the
// rule matcher and feature extractor see the original text.
func Redact(s string) string {
	out := s
	for _, p := range redactionPatterns {
		out = p.re.ReplaceAllString(out, p.replacement)
	}
	return out
}
