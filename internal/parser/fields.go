package parser

import (
	"time"

	"github.com/valyala/fastjson"
	"go.opentelemetry.io/otel/trace"

	"github.com/juliosaraiva/clefreader/internal/clef"
	"github.com/juliosaraiva/clefreader/internal/event"
)

// Accepted timestamp layouts, tried in order. Layouts without an offset are
// read in the decoder's location.
var timestampLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05.999999999Z0700", true},
	{"2006-01-02 15:04:05.999999999Z07:00", true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05.999999999", false},
	{time.DateOnly, false},
}

func requiredTimestamp(line int, obj *fastjson.Object, loc *time.Location) (time.Time, error) {
	v := obj.Get(clef.Timestamp)
	if v == nil || v.Type() == fastjson.TypeNull {
		return time.Time{}, &FormatError{
			Line:   line,
			Field:  clef.Timestamp,
			Reason: "the data does not include the required `" + clef.Timestamp + "` field",
		}
	}
	if v.Type() != fastjson.TypeString {
		return time.Time{}, fieldError(line, clef.Timestamp, "is not in a supported format", nil)
	}

	b, _ := v.StringBytes()
	ts, err := parseTimestamp(string(b), loc)
	if err != nil {
		return time.Time{}, fieldError(line, clef.Timestamp, "is not a valid date and time", err)
	}
	return ts, nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	var firstErr error
	for _, l := range timestampLayouts {
		var (
			ts  time.Time
			err error
		)
		if l.zoned {
			ts, err = time.Parse(l.layout, s)
		} else {
			ts, err = time.ParseInLocation(l.layout, s, loc)
		}
		if err == nil {
			return ts, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// optionalString reads a reserved field that must be a string when present.
// JSON null counts as absent.
func optionalString(line int, obj *fastjson.Object, field string) (string, bool, error) {
	v := obj.Get(field)
	if v == nil || v.Type() == fastjson.TypeNull {
		return "", false, nil
	}
	if v.Type() != fastjson.TypeString {
		return "", false, fieldError(line, field, "is not in a supported format", nil)
	}
	b, _ := v.StringBytes()
	return string(b), true, nil
}

func readLevel(line int, obj *fastjson.Object, evt *event.Event) error {
	name, ok, err := optionalString(line, obj, clef.Level)
	if err != nil || !ok {
		return err
	}
	lvl, err := event.ParseLevel(name)
	if err != nil {
		return fieldError(line, clef.Level, "is not a supported level", err)
	}
	evt.Level = lvl
	return nil
}

func readTraceContext(line int, obj *fastjson.Object, evt *event.Event) error {
	tr, ok, err := optionalString(line, obj, clef.TraceID)
	if err != nil {
		return err
	}
	if ok {
		id, err := trace.TraceIDFromHex(tr)
		if err != nil {
			return fieldError(line, clef.TraceID, "is not a 32-character hex trace id", err)
		}
		evt.TraceID = id
	}

	sp, ok, err := optionalString(line, obj, clef.SpanID)
	if err != nil {
		return err
	}
	if ok {
		id, err := trace.SpanIDFromHex(sp)
		if err != nil {
			return fieldError(line, clef.SpanID, "is not a 16-character hex span id", err)
		}
		evt.SpanID = id
	}
	return nil
}

// optionalEventID reads @i, which is either a string or an unsigned integer.
func optionalEventID(line int, obj *fastjson.Object) (event.Scalar, bool, error) {
	v := obj.Get(clef.EventID)
	if v == nil || v.Type() == fastjson.TypeNull {
		return event.Scalar{}, false, nil
	}

	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return event.Scalar{Value: string(b)}, true, nil
	case fastjson.TypeNumber:
		id, err := v.Uint64()
		if err != nil {
			return event.Scalar{}, false, fieldError(line, clef.EventID, "is not an unsigned integer", err)
		}
		return event.Scalar{Value: id}, true, nil
	default:
		return event.Scalar{}, false, fieldError(line, clef.EventID, "is not in a supported format", nil)
	}
}
