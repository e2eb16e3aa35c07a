// Package event defines the strongly-typed log event decoded from CLEF.
package event

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/juliosaraiva/clefreader/internal/msgtemplate"
)

// Event is one decoded log event. Events are built whole by the decoder and
// are not modified afterwards.
type Event struct {
	Timestamp time.Time
	Level     Level

	// Template is never nil; a record with neither @mt nor @m has an empty one.
	Template *msgtemplate.Template

	// Exception is the writer's exception text, empty when absent.
	Exception string

	// TraceID and SpanID are zero when absent.
	TraceID trace.TraceID
	SpanID  trace.SpanID

	Properties Properties
}

// Property returns the value of the named property.
func (e *Event) Property(name string) (Value, bool) {
	return e.Properties.Get(name)
}

// HasTraceID reports whether the event carried a trace id.
func (e *Event) HasTraceID() bool {
	return e.TraceID.IsValid()
}

// HasSpanID reports whether the event carried a span id.
func (e *Event) HasSpanID() bool {
	return e.SpanID.IsValid()
}

// MessageTemplate returns the template source text.
func (e *Event) MessageTemplate() string {
	if e.Template == nil {
		return ""
	}
	return e.Template.Text
}
