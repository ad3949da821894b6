package approval

import (
	"regexp"
	"strings"

	"github.com/quailyquaily/taskwarden/internal/strutil"
)

const summaryMaxLen = 140

var (
	reCardNumber = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	reCVV        = regexp.MustCompile(`(?i)\b(cvv|cvc|cvv2)\s*[:=]?\s*\d{3,4}\b`)
	reBearer     = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._-]{10,}\b`)
	reSecretKV   = regexp.MustCompile(`(?i)\b(password|passwd|secret|token|api[_-]?key)(\s*[:=]\s*)(\S{4,})`)
)

// Summarize produces the short, redacted form of a task description used in
// fan-out events and the audit trail. Card numbers and credential-looking
// values never leave the registry verbatim.
func Summarize(description string) string {
	s := Redact(description)
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > summaryMaxLen {
		s = strutil.TruncateUTF8(s, summaryMaxLen-3) + "..."
	}
	return s
}

func Redact(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	s = reCardNumber.ReplaceAllString(s, "[redacted_card]")
	s = reCVV.ReplaceAllString(s, "$1 [redacted]")
	s = reBearer.ReplaceAllString(s, "Bearer [redacted]")
	s = reSecretKV.ReplaceAllString(s, "$1$2[redacted]")
	return s
}
