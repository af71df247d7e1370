package events

import (
	"regexp"
	"strings"
)

// Redactor masks sensitive content in typed text before it reaches the
// compressed stream.
//
// The zero value is a no-op redactor.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor constructs a redaction pipeline. When redactEmails is true a
// built-in expression masks common email formats. Custom entries are either
// regular expressions or one of the named shorthands below.
func NewRedactor(redactEmails bool, custom []string) (Redactor, error) {
	patterns := make([]*regexp.Regexp, 0, len(custom)+1)

	if redactEmails {
		rx, err := regexp.Compile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
		if err != nil {
			return Redactor{}, err
		}
		patterns = append(patterns, rx)
	}

	named := map[string]string{
		"email": `(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`,
		"cc16":  `\b(?:\d[ -]?){16}\b`,
		"jwt":   `eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9._-]+\.[A-Za-z0-9._-]+`,
	}

	for _, expr := range custom {
		trimmed := strings.TrimSpace(expr)
		if trimmed == "" {
			continue
		}

		candidate := trimmed
		if mapped, ok := named[strings.ToLower(trimmed)]; ok {
			candidate = mapped
		}

		rx, err := regexp.Compile(candidate)
		if err != nil {
			return Redactor{}, err
		}
		patterns = append(patterns, rx)
	}

	return Redactor{patterns: patterns}, nil
}

// ApplyString redacts sensitive content from a string.
func (r Redactor) ApplyString(input string) string {
	if len(r.patterns) == 0 {
		return input
	}

	redacted := input
	for _, rx := range r.patterns {
		redacted = rx.ReplaceAllString(redacted, "[REDACTED]")
	}
	return redacted
}

// Apply redacts the typed-text payload of a compressed event. Other record
// kinds carry no free-form text and pass through untouched. NumChars keeps
// the pre-redaction character count so duration accounting stays truthful.
func (r Redactor) Apply(ev Compressed) Compressed {
	if len(r.patterns) == 0 || ev.Type != TypeTypedString {
		return ev
	}
	ev.String = r.ApplyString(ev.String)
	return ev
}
