package events

import "strings"

// maxMessageLength caps any log message pushed to a client.
const maxMessageLength = 500

// SanitizeMessage strips characters usable for markup or control-sequence
// injection from a log message and caps its length. Everything the
// orchestrator emits passes through here before reaching a browser.
func SanitizeMessage(message string) string {
	var b strings.Builder
	b.Grow(len(message))
	for _, r := range message {
		switch {
		case r == '<' || r == '>' || r == '"' || r == '\'' || r == '\\':
			continue
		case r < 0x20:
			continue
		case r >= 0x7f && r <= 0x9f:
			continue
		default:
			b.WriteRune(r)
		}
	}

	s := b.String()
	if len(s) > maxMessageLength {
		s = s[:maxMessageLength-3] + "..."
	}
	return s
}
