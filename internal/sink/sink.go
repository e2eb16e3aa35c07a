// Package sink defines the storage side of the pipeline: a flat Record
// derived from an event, and the Sink interface that stores batches of them.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/juliosaraiva/clefreader/internal/event"
)

// Supported sink kinds.
const (
	KindNone       = "none"
	KindPostgres   = "postgres"
	KindClickHouse = "clickhouse"
)

// DefaultTable is the table both database sinks write to.
const DefaultTable = "clef_events"

// Sink stores batches of records.
type Sink interface {
	// WriteBatch stores records and returns how many were written.
	WriteBatch(ctx context.Context, records []Record) (int64, error)
	Close() error
}

// Record is one event flattened for storage.
type Record struct {
	// ID is unique per record and sorts by creation time.
	ID ulid.ULID

	// RunID is shared by every record produced by one clefcat invocation.
	RunID uuid.UUID

	Line            int
	Timestamp       time.Time
	Level           string
	MessageTemplate string
	Message         string
	Exception       string
	TraceID         string
	SpanID          string

	// Properties is the event's properties as a JSON object.
	Properties []byte
}

// NewRecord flattens evt, read from line, into a Record.
func NewRecord(runID uuid.UUID, line int, evt *event.Event) (Record, error) {
	props, err := json.Marshal(evt.Properties)
	if err != nil {
		return Record{}, fmt.Errorf("encode properties: %w", err)
	}

	rec := Record{
		ID:              ulid.Make(),
		RunID:           runID,
		Line:            line,
		Timestamp:       evt.Timestamp.UTC(),
		Level:           evt.Level.String(),
		MessageTemplate: evt.MessageTemplate(),
		Message:         evt.RenderMessage(),
		Exception:       evt.Exception,
		Properties:      props,
	}
	if evt.HasTraceID() {
		rec.TraceID = evt.TraceID.String()
	}
	if evt.HasSpanID() {
		rec.SpanID = evt.SpanID.String()
	}
	return rec, nil
}
