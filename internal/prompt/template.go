package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"estatechat/internal/model"
)

// FieldMissingError reports a template placeholder with no supplied value
type FieldMissingError struct {
	Field string
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("template field missing: %s", e.Field)
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Render substitutes {name} placeholders in a template with the given
// values. Every placeholder must have a value; extra values are ignored.
// The template itself is supplied externally, so the schema-specific
// instructions live in the caller's text, not here.
func Render(template string, values map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := values[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return v
	})
	if missing != "" {
		return "", &FieldMissingError{Field: missing}
	}
	return out, nil
}

// FormatHistory renders prior turns for injection into a prompt template,
// one "role: text" line per turn.
func FormatHistory(turns []model.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
