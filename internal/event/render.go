package event

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/juliosaraiva/clefreader/internal/msgtemplate"
)

// RenderMessage renders the message template against the event's properties.
// Placeholders for missing properties are written as they appear in the
// template.
func (e *Event) RenderMessage() string {
	if e.Template == nil {
		return ""
	}

	var b strings.Builder
	for _, tok := range e.Template.Tokens {
		if tok.Kind == msgtemplate.TextToken {
			b.WriteString(tok.Text)
			continue
		}

		v, ok := e.Properties.Get(tok.PropertyName)
		if !ok {
			b.WriteString(tok.Raw)
			continue
		}

		if tok.Alignment == 0 {
			writeValue(&b, v, tok.Format, true)
			continue
		}
		var cell strings.Builder
		writeValue(&cell, v, tok.Format, true)
		writeAligned(&b, cell.String(), tok.Alignment)
	}
	return b.String()
}

// RenderValue renders v the way it appears inside a message. Strings are
// quoted unless format contains 'l'.
func RenderValue(v Value, format string) string {
	var b strings.Builder
	writeValue(&b, v, format, true)
	return b.String()
}

func writeValue(b *strings.Builder, v Value, format string, topLevel bool) {
	switch v := v.(type) {
	case Scalar:
		if topLevel && format != "" {
			if text, ok := v.Rendered(format); ok {
				b.WriteString(text)
				return
			}
		}
		writeScalar(b, v.Value, format)

	case Structure:
		if v.TypeTag != "" {
			b.WriteString(v.TypeTag)
			b.WriteByte(' ')
		}
		b.WriteString("{ ")
		for i, p := range v.Properties {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			b.WriteString(": ")
			writeValue(b, p.Value, format, false)
		}
		b.WriteString(" }")

	case Sequence:
		b.WriteByte('[')
		for i, el := range v.Elements {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, el, format, false)
		}
		b.WriteByte(']')

	case nil:
		b.WriteString("null")
	}
}

func writeScalar(b *strings.Builder, v any, format string) {
	switch v := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		if strings.Contains(format, "l") {
			b.WriteString(v)
			return
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(v, `"`, `\"`))
		b.WriteByte('"')
	case bool:
		b.WriteString(strconv.FormatBool(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(v, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case decimal.Decimal:
		b.WriteString(v.String())
	default:
		b.WriteString("?")
	}
}

// writeAligned pads s to width runes: right-aligned when width is positive,
// left-aligned when negative.
func writeAligned(b *strings.Builder, s string, width int) {
	pad := width
	if pad < 0 {
		pad = -pad
	}
	pad -= utf8.RuneCountInString(s)
	if pad <= 0 {
		b.WriteString(s)
		return
	}
	if width > 0 {
		b.WriteString(strings.Repeat(" ", pad))
		b.WriteString(s)
		return
	}
	b.WriteString(s)
	b.WriteString(strings.Repeat(" ", pad))
}
