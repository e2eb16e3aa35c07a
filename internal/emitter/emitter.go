// Package emitter writes decoded events as NDJSON or console text.
package emitter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/juliosaraiva/clefreader/internal/event"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Layout of the timestamp in text output.
const textTimeLayout = "2006-01-02 15:04:05.000"

// Options configures the emitter behavior.
type Options struct {
	// Format is FormatJSON or FormatText. Empty means FormatJSON.
	Format string

	// Pretty enables indented JSON output.
	// Not recommended for pipe output (breaks NDJSON).
	Pretty bool

	// Fields limits the emitted properties to these names.
	// Empty means all properties.
	Fields []string

	// AddTimestamp adds _ingestTime with current timestamp.
	AddTimestamp bool

	// AddLineNumber adds _lineNumber field.
	AddLineNumber bool
}

// Emitter serializes events and writes them to output.
type Emitter struct {
	writer  *bufio.Writer
	options Options
	encoder *json.Encoder
}

// record is the JSON shape of one event.
type record struct {
	Timestamp       string           `json:"timestamp"`
	Level           string           `json:"level"`
	MessageTemplate string           `json:"messageTemplate"`
	Message         string           `json:"message"`
	Exception       string           `json:"exception,omitempty"`
	TraceID         string           `json:"traceId,omitempty"`
	SpanID          string           `json:"spanId,omitempty"`
	Properties      event.Properties `json:"properties"`
	IngestTime      string           `json:"_ingestTime,omitempty"`
	LineNumber      int              `json:"_lineNumber,omitempty"`
}

// ValidFormat reports whether format names a supported output format.
func ValidFormat(format string) bool {
	return format == "" || format == FormatJSON || format == FormatText
}

// New creates a new emitter writing to the given output.
func New(output io.Writer, opts Options) *Emitter {
	writer := bufio.NewWriter(output)
	encoder := json.NewEncoder(writer)

	if opts.Pretty {
		encoder.SetIndent("", "  ")
	}

	// Don't escape HTML characters (cleaner output)
	encoder.SetEscapeHTML(false)

	return &Emitter{
		writer:  writer,
		options: opts,
		encoder: encoder,
	}
}

// Emit writes one event. line is the input line it was read from.
// Output is flushed after every event.
func (e *Emitter) Emit(evt *event.Event, line int) error {
	var err error
	if e.options.Format == FormatText {
		err = e.writeText(evt)
	} else {
		err = e.encoder.Encode(e.buildRecord(evt, line))
	}
	if err != nil {
		return err
	}

	// Flush immediately for real-time output
	return e.writer.Flush()
}

func (e *Emitter) buildRecord(evt *event.Event, line int) record {
	rec := record{
		Timestamp:       evt.Timestamp.Format(time.RFC3339Nano),
		Level:           evt.Level.String(),
		MessageTemplate: evt.MessageTemplate(),
		Message:         evt.RenderMessage(),
		Exception:       evt.Exception,
		Properties:      e.selectProperties(evt.Properties),
	}
	if evt.HasTraceID() {
		rec.TraceID = evt.TraceID.String()
	}
	if evt.HasSpanID() {
		rec.SpanID = evt.SpanID.String()
	}

	// Add metadata fields (prefixed with _)
	if e.options.AddTimestamp {
		rec.IngestTime = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if e.options.AddLineNumber {
		rec.LineNumber = line
	}
	return rec
}

// selectProperties applies the Fields filter, keeping the filter's order.
func (e *Emitter) selectProperties(props event.Properties) event.Properties {
	if len(e.options.Fields) == 0 {
		if props == nil {
			return event.Properties{}
		}
		return props
	}

	selected := make(event.Properties, 0, len(e.options.Fields))
	for _, name := range e.options.Fields {
		if v, ok := props.Get(name); ok {
			selected = append(selected, event.Property{Name: name, Value: v})
		}
	}
	return selected
}

// writeText writes "[time LVL] message", then any selected properties and
// the exception on following lines.
func (e *Emitter) writeText(evt *event.Event) error {
	fmt.Fprintf(e.writer, "[%s %s] %s\n",
		evt.Timestamp.Format(textTimeLayout), evt.Level.Abbrev(), evt.RenderMessage())

	if len(e.options.Fields) > 0 {
		for _, p := range e.selectProperties(evt.Properties) {
			fmt.Fprintf(e.writer, "    %s = %s\n", p.Name, event.RenderValue(p.Value, ""))
		}
	}

	if evt.Exception != "" {
		exc := strings.TrimRight(evt.Exception, "\r\n")
		if _, err := fmt.Fprintln(e.writer, exc); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes any remaining data.
func (e *Emitter) Close() error {
	return e.writer.Flush()
}
