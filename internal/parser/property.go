package parser

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/valyala/fastjson"

	"github.com/juliosaraiva/clefreader/internal/event"
)

const (
	// typeTagProperty holds a structure's type tag instead of a child property.
	typeTagProperty = "$type"

	// unnamedProperty replaces names the event model cannot represent.
	unnamedProperty = "(unnamed)"
)

// buildProperty converts a JSON value into a property. It never fails.
// renderings attach only to a scalar at this level, never to nested values.
func buildProperty(name string, v *fastjson.Value, renderings []event.Rendering, o *options) event.Property {
	if !validPropertyName(name) {
		name = unnamedProperty
	}
	return event.Property{Name: name, Value: buildValue(v, renderings, o)}
}

func buildValue(v *fastjson.Value, renderings []event.Rendering, o *options) event.Value {
	switch v.Type() {
	case fastjson.TypeNull:
		return event.Scalar{}

	case fastjson.TypeObject:
		obj, _ := v.Object()
		var s event.Structure
		obj.Visit(func(key []byte, child *fastjson.Value) {
			name := string(key)
			if name == typeTagProperty {
				s.TypeTag = typeTagOf(child)
				return
			}
			s.Properties = append(s.Properties, buildProperty(name, child, nil, o))
		})
		return s

	case fastjson.TypeArray:
		items, _ := v.Array()
		elements := make([]event.Value, len(items))
		for i, item := range items {
			elements[i] = buildValue(item, nil, o)
		}
		return event.Sequence{Elements: elements}
	}

	s := event.Scalar{Value: scalarOf(v, o)}
	if len(renderings) > 0 {
		s.Renderings = renderings
	}
	return s
}

func scalarOf(v *fastjson.Value, o *options) any {
	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeNumber:
		return numberOf(v.String(), o)
	default:
		return nil
	}
}

// numberOf picks the narrowest exact representation of a JSON number:
// int64, then uint64, then decimal for integer literals; float64 (or decimal
// with WithDecimalFloats) for fractional ones.
func numberOf(raw string, o *options) any {
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return u
		}
		if d, err := decimal.NewFromString(raw); err == nil {
			return d
		}
	}

	if o.decimalFloats {
		if d, err := decimal.NewFromString(raw); err == nil {
			return d
		}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		return d
	}
	return raw
}

func typeTagOf(v *fastjson.Value) string {
	switch v.Type() {
	case fastjson.TypeNull:
		return ""
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	default:
		return v.String()
	}
}

func validPropertyName(name string) bool {
	return strings.TrimSpace(name) != ""
}
