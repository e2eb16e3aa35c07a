package msgtemplate

import "strings"

var braceEscaper = strings.NewReplacer("{", "{{", "}", "}}")

// Escape turns plain text into a template that parses back to a single
// literal token, by doubling every '{' and '}'.
func Escape(text string) string {
	if text == "" {
		return ""
	}
	return braceEscaper.Replace(text)
}
