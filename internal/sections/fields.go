package sections

import (
	"regexp"
	"strings"
)

// Input types for field placeholders.
const (
	InputText     = "text"
	InputDate     = "date"
	InputTextarea = "textarea"
)

// Anchor points at the placeholder text in the section HTML.
type Anchor struct {
	Placeholder string `json:"placeholder" yaml:"placeholder"`
}

// Field is a {{TOKEN}} placeholder found in a section.
type Field struct {
	ID           string `json:"id" yaml:"id"`
	Label        string `json:"label" yaml:"label"`
	InputType    string `json:"inputType" yaml:"inputType"`
	DefaultValue string `json:"defaultValue" yaml:"defaultValue"`
	Anchor       Anchor `json:"anchor" yaml:"anchor"`
}

var (
	fieldRe    = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+)\s*\}\}`)
	textareaRe = regexp.MustCompile(`(?i)summary|zongjie|总结|content|description|desc|描述|说明`)
	dateRe     = regexp.MustCompile(`(?i)date|riqi|日期`)
)

// ExtractFields returns the distinct placeholders of a fragment in order of
// first appearance. Tokens differing only in case are one field.
func ExtractFields(html string) []Field {
	out := []Field{}
	seen := map[string]bool{}
	for _, m := range fieldRe.FindAllStringSubmatch(html, -1) {
		token := m[1]
		id := strings.ToLower(token)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Field{
			ID:        id,
			Label:     strings.ToUpper(strings.ReplaceAll(token, "_", " ")),
			InputType: GuessInputType(token),
			Anchor:    Anchor{Placeholder: "{{" + token + "}}"},
		})
	}
	return out
}

// GuessInputType infers an editor input type from a token name.
func GuessInputType(name string) string {
	switch {
	case textareaRe.MatchString(name):
		return InputTextarea
	case dateRe.MatchString(name):
		return InputDate
	default:
		return InputText
	}
}
