// Package msgtemplate tokenizes message templates such as
// "Hello, {@User}! Took {Elapsed:0.000} ms" into literal text and named
// property tokens.
package msgtemplate

import (
	"strconv"
	"strings"
	"unicode"
)

// TokenKind distinguishes literal text from property placeholders.
type TokenKind uint8

const (
	// TextToken is literal text. Escaped braces are already collapsed.
	TextToken TokenKind = iota
	// PropertyToken is a {Name} placeholder.
	PropertyToken
)

// Hint is the capturing hint written before a property name.
type Hint uint8

const (
	// HintNone captures the value as the producer chose, {Name}.
	HintNone Hint = iota
	// HintDestructure asks for the structure of the value, {@Name}.
	HintDestructure
	// HintStringify asks for the value's string form, {$Name}.
	HintStringify
)

// Token is one element of a parsed template.
type Token struct {
	Kind TokenKind

	// Raw is the exact source text of the token, braces included.
	Raw string

	// Text is the literal text for TextToken (with "{{" and "}}" collapsed).
	Text string

	// PropertyName, Format, Alignment and Hint are set for PropertyToken.
	PropertyName string
	Format       string
	Alignment    int
	Hint         Hint
}

// Template is a parsed message template.
type Template struct {
	// Text is the template source.
	Text   string
	Tokens []Token
}

// Empty returns a template with no tokens.
func Empty() *Template {
	return &Template{}
}

// FormattedProperties returns, in order, the property tokens that carry a
// format specifier. CLEF renderings line up with this sequence.
func (t *Template) FormattedProperties() []Token {
	var out []Token
	for _, tok := range t.Tokens {
		if tok.Kind == PropertyToken && tok.Format != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Properties returns the property tokens in order.
func (t *Template) Properties() []Token {
	var out []Token
	for _, tok := range t.Tokens {
		if tok.Kind == PropertyToken {
			out = append(out, tok)
		}
	}
	return out
}

// Parse tokenizes text. It never fails: malformed placeholders, including an
// unclosed '{', are kept as literal text.
func Parse(text string) *Template {
	tpl := &Template{Text: text}
	if text == "" {
		return tpl
	}

	runes := []rune(text)
	pos := 0
	for pos < len(runes) {
		var tok Token
		if runes[pos] == '{' && !(pos+1 < len(runes) && runes[pos+1] == '{') {
			tok, pos = parseProperty(runes, pos)
		} else {
			tok, pos = parseText(runes, pos)
		}
		tpl.Tokens = append(tpl.Tokens, tok)
	}
	return tpl
}

// parseText consumes literal text up to the next unescaped '{'.
func parseText(runes []rune, start int) (Token, int) {
	var b strings.Builder
	pos := start
	for pos < len(runes) {
		c := runes[pos]
		if c == '{' {
			if pos+1 < len(runes) && runes[pos+1] == '{' {
				b.WriteRune('{')
				pos += 2
				continue
			}
			break
		}
		b.WriteRune(c)
		if c == '}' && pos+1 < len(runes) && runes[pos+1] == '}' {
			pos++
		}
		pos++
	}
	return Token{Kind: TextToken, Raw: string(runes[start:pos]), Text: b.String()}, pos
}

// parseProperty consumes a placeholder starting at the '{' at start.
func parseProperty(runes []rune, start int) (Token, int) {
	pos := start + 1
	for pos < len(runes) && validInTag(runes[pos]) {
		pos++
	}
	if pos == len(runes) || runes[pos] != '}' {
		raw := string(runes[start:pos])
		return textToken(raw), pos
	}

	next := pos + 1
	raw := string(runes[start:next])
	content := string(runes[start+1 : pos])
	if content == "" {
		return textToken(raw), next
	}

	name, format, alignment, ok := splitTag(content)
	if !ok {
		return textToken(raw), next
	}

	hint := HintNone
	switch {
	case strings.HasPrefix(name, "@"):
		hint = HintDestructure
		name = name[1:]
	case strings.HasPrefix(name, "$"):
		hint = HintStringify
		name = name[1:]
	}
	if name == "" || !validName(name) {
		return textToken(raw), next
	}

	for _, c := range format {
		if !validInFormat(c) {
			return textToken(raw), next
		}
	}

	width := 0
	if alignment != "" {
		w, ok := parseAlignment(alignment)
		if !ok {
			return textToken(raw), next
		}
		width = w
	}

	return Token{
		Kind:         PropertyToken,
		Raw:          raw,
		PropertyName: name,
		Format:       format,
		Alignment:    width,
		Hint:         hint,
	}, next
}

// splitTag splits "Name,alignment:format" into its parts.
func splitTag(content string) (name, format, alignment string, ok bool) {
	formatAt := strings.IndexRune(content, ':')
	alignAt := strings.IndexRune(content, ',')

	if formatAt == -1 && alignAt == -1 {
		return content, "", "", true
	}

	if alignAt == -1 || (formatAt != -1 && alignAt > formatAt) {
		return content[:formatAt], content[formatAt+1:], "", true
	}

	name = content[:alignAt]
	if formatAt == -1 {
		if alignAt == len(content)-1 {
			return "", "", "", false
		}
		return name, "", content[alignAt+1:], true
	}

	if alignAt == formatAt-1 {
		return "", "", "", false
	}
	return name, content[formatAt+1:], content[alignAt+1 : formatAt], true
}

func parseAlignment(s string) (int, bool) {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	width, err := strconv.Atoi(digits)
	if err != nil || width == 0 {
		return 0, false
	}
	if strings.HasPrefix(s, "-") {
		width = -width
	}
	return width, true
}

func textToken(raw string) Token {
	return Token{Kind: TextToken, Raw: raw, Text: raw}
}

func validName(name string) bool {
	for _, c := range name {
		if !validInName(c) {
			return false
		}
	}
	return true
}

func validInName(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'
}

func validInTag(c rune) bool {
	return c == '@' || c == '$' || validInName(c) || validInFormat(c) || c == ':'
}

func validInFormat(c rune) bool {
	return c != '}' &&
		(unicode.IsLetter(c) || unicode.IsDigit(c) || unicode.IsPunct(c) || unicode.IsSymbol(c) || c == ' ')
}
