package parser

import (
	"strings"

	"github.com/valyala/fastjson"

	"github.com/juliosaraiva/clefreader/internal/clef"
	"github.com/juliosaraiva/clefreader/internal/event"
	"github.com/juliosaraiva/clefreader/internal/msgtemplate"
)

// Decoder turns CLEF documents into events. It reuses its JSON parser
// between calls, so a Decoder must not be shared between goroutines.
type Decoder struct {
	json fastjson.Parser
	opts options
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	return &Decoder{opts: newOptions(opts)}
}

// DecodeString decodes a single document, reported as line 1 in errors.
func DecodeString(document string, opts ...Option) (*event.Event, error) {
	return NewDecoder(opts...).DecodeLine(1, document)
}

// DecodeValue decodes an already-parsed document, reported as line 1 in errors.
func DecodeValue(v *fastjson.Value, opts ...Option) (*event.Event, error) {
	return NewDecoder(opts...).DecodeValue(v)
}

// DecodeLine parses text as one JSON object and decodes it. line is used in
// error messages only.
func (d *Decoder) DecodeLine(line int, text string) (*event.Event, error) {
	if strings.TrimSpace(text) == "" {
		return nil, documentError(line, "the document is empty", ErrEmptyDocument)
	}

	if err := fastjson.Validate(text); err != nil {
		return nil, documentError(line, "the data is not valid JSON", err)
	}
	v, err := d.json.Parse(text)
	if err != nil {
		return nil, documentError(line, "the data is not valid JSON", err)
	}
	return d.decode(line, v)
}

// DecodeValue decodes an already-parsed document as line 1.
func (d *Decoder) DecodeValue(v *fastjson.Value) (*event.Event, error) {
	return d.decode(1, v)
}

func (d *Decoder) decode(line int, v *fastjson.Value) (*event.Event, error) {
	if v == nil || v.Type() != fastjson.TypeObject {
		return nil, documentError(line, "the data is not a complete JSON object", nil)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, documentError(line, "the data is not a complete JSON object", err)
	}

	evt := &event.Event{Level: event.Information}

	evt.Timestamp, err = requiredTimestamp(line, obj, d.opts.location)
	if err != nil {
		return nil, err
	}

	evt.Template, err = readTemplate(line, obj)
	if err != nil {
		return nil, err
	}

	if err := readLevel(line, obj, evt); err != nil {
		return nil, err
	}

	if evt.Exception, _, err = optionalString(line, obj, clef.Exception); err != nil {
		return nil, err
	}

	if err := readTraceContext(line, obj, evt); err != nil {
		return nil, err
	}

	renderings, err := readRenderings(line, obj, evt.Template)
	if err != nil {
		return nil, err
	}

	eventID, hasEventID, err := optionalEventID(line, obj)
	if err != nil {
		return nil, err
	}

	byName := groupRenderings(renderings)
	index := make(map[string]int, obj.Len())
	add := func(prop event.Property) {
		if i, ok := index[prop.Name]; ok {
			evt.Properties[i].Value = prop.Value
			return
		}
		index[prop.Name] = len(evt.Properties)
		evt.Properties = append(evt.Properties, prop)
	}

	obj.Visit(func(key []byte, value *fastjson.Value) {
		name := string(key)
		if clef.IsReserved(name) {
			return
		}
		name = clef.Unescape(name)
		add(buildProperty(name, value, byName[name], &d.opts))
	})

	if hasEventID {
		add(event.Property{Name: clef.EventID, Value: eventID})
	}

	return evt, nil
}

// readTemplate prefers @mt, then the escaped @m, then an empty template.
func readTemplate(line int, obj *fastjson.Object) (*msgtemplate.Template, error) {
	mt, hasTemplate, err := optionalString(line, obj, clef.MessageTemplate)
	if err != nil {
		return nil, err
	}
	m, hasMessage, err := optionalString(line, obj, clef.Message)
	if err != nil {
		return nil, err
	}

	switch {
	case hasTemplate:
		return msgtemplate.Parse(mt), nil
	case hasMessage:
		return msgtemplate.Parse(msgtemplate.Escape(m)), nil
	default:
		return msgtemplate.Empty(), nil
	}
}

// readRenderings zips @r with the template's formatted property tokens by
// position. Extra entries on either side are ignored.
func readRenderings(line int, obj *fastjson.Object, tpl *msgtemplate.Template) ([]event.Rendering, error) {
	v := obj.Get(clef.Renderings)
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	if v.Type() != fastjson.TypeArray {
		return nil, fieldError(line, clef.Renderings, "is not an array as expected", nil)
	}

	items, _ := v.Array()
	texts := make([]string, len(items))
	for i, item := range items {
		if item.Type() != fastjson.TypeString {
			return nil, fieldError(line, clef.Renderings, "contains an element that is not a string", nil)
		}
		b, _ := item.StringBytes()
		texts[i] = string(b)
	}

	tokens := tpl.FormattedProperties()
	n := min(len(tokens), len(texts))
	if n == 0 {
		return nil, nil
	}

	renderings := make([]event.Rendering, n)
	for i := 0; i < n; i++ {
		renderings[i] = event.Rendering{
			Name:   tokens[i].PropertyName,
			Format: tokens[i].Format,
			Text:   texts[i],
		}
	}
	return renderings, nil
}

// groupRenderings indexes renderings by property name, keeping their order.
func groupRenderings(renderings []event.Rendering) map[string][]event.Rendering {
	if len(renderings) == 0 {
		return nil
	}
	byName := make(map[string][]event.Rendering)
	for _, r := range renderings {
		byName[r.Name] = append(byName[r.Name], r)
	}
	return byName
}
