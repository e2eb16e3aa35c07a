package event

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// The Marshal methods below keep property order, which encoding/json would
// lose for maps. A structure's type tag is written as "$type".

// MarshalJSON encodes the properties as a JSON object in order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeFields(&buf, p, false); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the scalar's value; renderings are not included.
// NaN and infinities have no JSON number form and are written as the
// strings "NaN", "+Inf" and "-Inf".
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch v := s.Value.(type) {
	case decimal.Decimal:
		return []byte(v.String()), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return []byte(strconv.Quote(strconv.FormatFloat(v, 'g', -1, 64))), nil
		}
	}
	return encodeJSON(s.Value)
}

// MarshalJSON encodes the structure as an object, with "$type" first when set.
func (s Structure) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	hasTag := s.TypeTag != ""
	if hasTag {
		tag, err := encodeJSON(s.TypeTag)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`"$type":`)
		buf.Write(tag)
	}
	if err := writeFields(&buf, s.Properties, hasTag); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the sequence as an array.
func (s Sequence) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, el := range s.Elements {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalValue(el)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func writeFields(buf *bytes.Buffer, props Properties, needComma bool) error {
	for _, p := range props {
		if needComma {
			buf.WriteByte(',')
		}
		needComma = true

		name, err := encodeJSON(p.Name)
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteByte(':')

		b, err := marshalValue(p.Value)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

func marshalValue(v Value) ([]byte, error) {
	switch v := v.(type) {
	case Scalar:
		return v.MarshalJSON()
	case Structure:
		return v.MarshalJSON()
	case Sequence:
		return v.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

// encodeJSON marshals v without HTML escaping and without a trailing newline.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
