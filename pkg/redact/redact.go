package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

var enabled atomic.Bool

type rule struct {
	re   *regexp.Regexp
	mask string
}

// Applied in order. Secrets go first so a key that embeds digits is not
// half-masked as a phone number.
var rules = []rule{
	{regexp.MustCompile(`\b(?:sk|xi|dg)-[A-Za-z0-9_\-]{16,}`), "[REDACTED_KEY]"},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]{16,}`), "Bearer [REDACTED_KEY]"},
	{regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\+?\d[\d\s\-]{7,}\d`), "[REDACTED_PHONE]"},
}

// SetEnabled toggles redaction for the whole process. Config reloads call it
// while sessions are live.
func SetEnabled(v bool) { enabled.Store(v) }

func Enabled() bool { return enabled.Load() }

// Text masks credentials, emails and phone numbers in transcripts and
// replies before they reach the logs.
func Text(in string) string {
	if !Enabled() || strings.TrimSpace(in) == "" {
		return in
	}
	for _, r := range rules {
		in = r.re.ReplaceAllString(in, r.mask)
	}
	return in
}

// Preview is Text cut to max runes, for log attributes.
func Preview(in string, max int) string {
	out := Text(in)
	if max <= 0 || utf8.RuneCountInString(out) <= max {
		return out
	}
	return string([]rune(out)[:max]) + "…"
}
