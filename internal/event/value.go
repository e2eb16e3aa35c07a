package event

import "github.com/shopspring/decimal"

// Value is a property value: a Scalar, a Structure or a Sequence.
type Value interface {
	isValue()
}

// ScalarKind identifies the Go type held by a Scalar.
type ScalarKind uint8

const (
	KindNull ScalarKind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindDecimal
	KindString
	KindOther
)

var scalarKindNames = [...]string{
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int",
	KindUint:    "uint",
	KindFloat:   "float",
	KindDecimal: "decimal",
	KindString:  "string",
	KindOther:   "other",
}

func (k ScalarKind) String() string {
	if int(k) < len(scalarKindNames) {
		return scalarKindNames[k]
	}
	return "unknown"
}

// Rendering is text pre-rendered by the writer for one formatted template
// token.
type Rendering struct {
	Name   string
	Format string
	Text   string
}

// Scalar holds a primitive: nil, bool, int64, uint64, float64,
// decimal.Decimal or string.
//
// Renderings is only set on top-level properties whose template token carries
// a format; nested values never have renderings.
type Scalar struct {
	Value      any
	Renderings []Rendering
}

// Kind reports the type of s.Value.
func (s Scalar) Kind() ScalarKind {
	switch s.Value.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int64:
		return KindInt
	case uint64:
		return KindUint
	case float64:
		return KindFloat
	case decimal.Decimal:
		return KindDecimal
	case string:
		return KindString
	default:
		return KindOther
	}
}

// Rendered returns the pre-rendered text for format, if the writer supplied one.
func (s Scalar) Rendered(format string) (string, bool) {
	for _, r := range s.Renderings {
		if r.Format == format {
			return r.Text, true
		}
	}
	return "", false
}

// Structure is a destructured object. TypeTag is empty when none was recorded.
type Structure struct {
	TypeTag    string
	Properties Properties
}

// Sequence is an ordered list of values.
type Sequence struct {
	Elements []Value
}

func (Scalar) isValue()    {}
func (Structure) isValue() {}
func (Sequence) isValue()  {}

// Property is a named value.
type Property struct {
	Name  string
	Value Value
}

// Properties is an ordered property list with unique names.
type Properties []Property

// Get returns the value of the property called name.
func (p Properties) Get(name string) (Value, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of an existing property in place, or appends a new one.
func (p *Properties) Set(name string, v Value) {
	for i := range *p {
		if (*p)[i].Name == name {
			(*p)[i].Value = v
			return
		}
	}
	*p = append(*p, Property{Name: name, Value: v})
}

// Names returns the property names in order.
func (p Properties) Names() []string {
	names := make([]string, len(p))
	for i, prop := range p {
		names[i] = prop.Name
	}
	return names
}
