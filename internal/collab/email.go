package collab

import (
	"fmt"
	"regexp"
	"strings"
)

var subjectLine = regexp.MustCompile(`(?m)^Subject:\s*(.*)`)

// placeholderPatterns match lines the model tends to leave behind despite
// instructions: bracketed placeholders, dangling sign-offs and self-signatures.
// Matching lines are dropped before the real signature is appended.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^looking forward to.*`),
	regexp.MustCompile(`(?i)^best( regards)?,?.*`),
	regexp.MustCompile(`(?i)^\[.*\]$`),
	regexp.MustCompile(`(?i)^insert.*`),
	regexp.MustCompile(`(?i)\[your.*?\]`),
	regexp.MustCompile(`(?i)\{your.*?\}`),
	regexp.MustCompile(`(?i)\[.*name.*\]`),
	regexp.MustCompile(`(?i)\{.*name.*\}`),
	regexp.MustCompile(`(?i)\[.*title.*\]`),
	regexp.MustCompile(`(?i)\{.*title.*\}`),
}

// ExtractSubject pulls a "Subject:" line out of generated email text. It
// returns the subject (empty if none) and the body with every subject line
// removed.
func ExtractSubject(text string) (subject, body string) {
	if m := subjectLine.FindStringSubmatch(text); m != nil {
		subject = strings.TrimSpace(m[1])
	}
	body = strings.TrimSpace(subjectLine.ReplaceAllString(text, ""))
	return subject, body
}

// ScrubPlaceholders drops placeholder and sign-off lines from the body.
func ScrubPlaceholders(body string) string {
	var kept []string
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if matchesPlaceholder(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func matchesPlaceholder(line string) bool {
	for _, pat := range placeholderPatterns {
		if pat.MatchString(line) {
			return true
		}
	}
	return false
}

// FinalizeEmail turns raw generated text into the subject and body that go
// on the wire: subject extracted or defaulted, placeholders scrubbed, the
// sender signature and unsubscribe footer appended.
func FinalizeEmail(raw, fallbackSubject, signerName, org string) (subject, body string) {
	subject, body = ExtractSubject(raw)
	if subject == "" {
		subject = fallbackSubject
	}
	body = ScrubPlaceholders(body)
	body += fmt.Sprintf("\n\nBest regards,\n%s\n%s Sales Team", signerName, org)
	body += "\n\nIf you'd prefer not to hear from us, reply with \"unsubscribe\"."
	return subject, body
}
