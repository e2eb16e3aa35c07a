package reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/juliosaraiva/clefreader/internal/event"
	"github.com/juliosaraiva/clefreader/internal/parser"
)

const (
	validLine   = `{"@t":"2016-10-12T04:20:58.0554314Z","@mt":"Hello {N}","N":1}`
	invalidLine = `{"@t":"2016-10-12T04:20:58.0554314Z","@l":"Trace"}`
)

func openTestdata(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Open("testdata/events.clef")
	if err != nil {
		t.Fatalf("open testdata: %v", err)
	}
	return f
}

func TestReader_ReadsEveryEventInFile(t *testing.T) {
	r := New(openTestdata(t))
	defer r.Close()

	var events []*event.Event
	for {
		evt, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read() unexpected error at line %d: %v", r.Line(), err)
		}
		events = append(events, evt)
	}

	if len(events) != 6 {
		t.Fatalf("read %d events, want 6", len(events))
	}
	if r.Line() != 7 {
		t.Errorf("Line() = %d, want 7", r.Line())
	}

	wantLevels := []event.Level{event.Information, event.Information, event.Debug, event.Warning, event.Error, event.Information}
	for i, evt := range events {
		if evt.Level != wantLevels[i] {
			t.Errorf("event %d level = %v, want %v", i, evt.Level, wantLevels[i])
		}
	}
	if got := events[1].RenderMessage(); got != "Number 0000002a" {
		t.Errorf("event 1 message = %q", got)
	}
	if v, ok := events[3].Property("@i"); !ok || v.(event.Scalar).Value != uint64(3127040381) {
		t.Errorf("event 3 @i = %#v", v)
	}
	if !events[5].HasTraceID() {
		t.Error("event 5 should carry a trace id")
	}
}

func TestReader_TryRead(t *testing.T) {
	r := New(openTestdata(t))
	defer r.Close()

	count := 0
	for {
		evt, ok, err := r.TryRead()
		if err != nil {
			t.Fatalf("TryRead() unexpected error: %v", err)
		}
		if !ok {
			break
		}
		if evt == nil {
			t.Fatal("TryRead() returned ok with nil event")
		}
		count++
	}

	if count != 6 {
		t.Errorf("TryRead() yielded %d events, want 6", count)
	}

	// End of input is sticky.
	if _, ok, err := r.TryRead(); ok || err != nil {
		t.Errorf("TryRead() after end = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestReader_LineNumbers(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLines []int
	}{
		{
			name:      "consecutive lines",
			input:     validLine + "\n" + validLine + "\n" + validLine,
			wantLines: []int{1, 2, 3},
		},
		{
			name:      "empty input",
			input:     "",
			wantLines: nil,
		},
		{
			name:      "only blank lines",
			input:     "\n  \n\t\n",
			wantLines: nil,
		},
		{
			name:      "blank line in the middle",
			input:     validLine + "\n\n" + validLine,
			wantLines: []int{1, 3},
		},
		{
			name:      "trailing newline",
			input:     validLine + "\n" + validLine + "\n",
			wantLines: []int{1, 2},
		},
		{
			name:      "crlf line endings",
			input:     validLine + "\r\n   \r\n" + validLine + "\r\n",
			wantLines: []int{1, 3},
		},
		{
			name:      "byte order mark",
			input:     "\ufeff" + validLine + "\n" + validLine,
			wantLines: []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(strings.NewReader(tt.input))

			var lines []int
			for {
				_, err := r.Read()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("Read() unexpected error: %v", err)
				}
				lines = append(lines, r.Line())
			}

			if fmt.Sprint(lines) != fmt.Sprint(tt.wantLines) {
				t.Errorf("event lines = %v, want %v", lines, tt.wantLines)
			}
		})
	}
}

func TestReader_ContinuesAfterInvalidLine(t *testing.T) {
	input := strings.Join([]string{validLine, "", invalidLine, validLine}, "\n")
	r := New(strings.NewReader(input))

	if _, err := r.Read(); err != nil {
		t.Fatalf("first Read() unexpected error: %v", err)
	}

	_, err := r.Read()
	if !errors.Is(err, parser.ErrInvalidData) {
		t.Fatalf("second Read() error = %v, want ErrInvalidData", err)
	}
	var fe *parser.FormatError
	if !errors.As(err, &fe) || fe.Line != 3 {
		t.Errorf("second Read() error = %v, want a FormatError at line 3", err)
	}

	evt, err := r.Read()
	if err != nil {
		t.Fatalf("third Read() unexpected error: %v", err)
	}
	if r.Line() != 4 || evt.MessageTemplate() != "Hello {N}" {
		t.Errorf("third Read() = line %d %q", r.Line(), evt.MessageTemplate())
	}

	if _, err := r.Read(); err != io.EOF {
		t.Errorf("final Read() error = %v, want io.EOF", err)
	}
}

func TestReader_TryReadRejectsInvalidDocuments(t *testing.T) {
	documents := []string{
		`[]`,
		`{}`,
		`#$%`,
		`{"@t":0}`,
		`{"@t":"2016-02-30"}`,
		`{"@t":"2016-02-12"`,
		`{"@t":"2016-02-12"} {}`,
		`{"@t":"2016-02-12","a":"\q"}`,
		`{"@t":"2016-02-12","a":"\u12"}`,
		"{\"@t\":\"2016-02-12\",\"a\":\"x\ty\"}",
		`{"@t":"2016-02-12","a":NaN}`,
		`{"@t":"2016-02-12","a":Inf}`,
		`{"@t":"2016-02-12","@l":"Trace"}`,
		`{"@t":"2016-02-12","@r":"[]"}`,
		`{"@t":"2016-02-12","@r":[1]}`,
		`{"@t":"2016-02-12","@m":0}`,
		`{"@t":"2016-02-12","@mt":[]}`,
		`{"@t":"2016-02-12","@x":[""]}`,
		`{"@t":"2016-02-12","@tr":{}}`,
		`{"@t":"2016-02-12","@tr":"not-a-trace-id"}`,
		`{"@t":"2016-02-12","@sp":true}`,
		`{"@t":"2016-02-12","@sp":"bb11"}`,
		`{"@t":"2016-02-12","@i":true}`,
		`{"@t":"2016-02-12","@i":-1}`,
		`{"@t":"2016-02-12","@l":3}`,
	}

	for _, doc := range documents {
		t.Run(doc, func(t *testing.T) {
			evt, ok, err := New(strings.NewReader(doc)).TryRead()
			if err == nil {
				t.Fatalf("TryRead() = %+v, %v, want error", evt, ok)
			}
			if ok || evt != nil {
				t.Errorf("TryRead() returned an event alongside error %v", err)
			}
			if !errors.Is(err, parser.ErrInvalidData) {
				t.Errorf("TryRead() error = %v, want ErrInvalidData", err)
			}
			var fe *parser.FormatError
			if !errors.As(err, &fe) || fe.Line != 1 {
				t.Errorf("TryRead() error = %v, want *FormatError at line 1", err)
			}
		})
	}
}

func TestReader_Events(t *testing.T) {
	t.Run("all events", func(t *testing.T) {
		r := New(openTestdata(t))
		defer r.Close()

		count := 0
		for evt, err := range r.Events(context.Background()) {
			if err != nil {
				t.Fatalf("Events() unexpected error: %v", err)
			}
			if evt == nil {
				t.Fatal("Events() yielded nil event")
			}
			count++
		}
		if count != 6 {
			t.Errorf("Events() yielded %d events, want 6", count)
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		input := strings.Join([]string{validLine, invalidLine, validLine}, "\n")
		r := New(strings.NewReader(input))

		var events int
		var errs []error
		for evt, err := range r.Events(context.Background()) {
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if evt != nil {
				events++
			}
		}
		if events != 1 || len(errs) != 1 {
			t.Errorf("Events() gave %d events and %d errors, want 1 and 1", events, len(errs))
		}
	})

	t.Run("break stops early", func(t *testing.T) {
		r := New(openTestdata(t))
		defer r.Close()

		for range r.Events(context.Background()) {
			break
		}
		if r.Line() != 1 {
			t.Errorf("Line() after break = %d, want 1", r.Line())
		}
	})
}

func TestReader_ReadContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(strings.NewReader(validLine))
	if _, err := r.ReadContext(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadContext() error = %v, want context.Canceled", err)
	}
	if r.Line() != 0 {
		t.Errorf("Line() = %d, want 0", r.Line())
	}
}

func TestReader_ReadAll(t *testing.T) {
	r := New(strings.NewReader(validLine + "\n" + invalidLine + "\n" + validLine))
	events, err := r.ReadAll()
	if !errors.Is(err, parser.ErrInvalidData) {
		t.Errorf("ReadAll() error = %v, want ErrInvalidData", err)
	}
	if len(events) != 1 {
		t.Errorf("ReadAll() returned %d events, want 1", len(events))
	}
}

func TestReader_LargeInput(t *testing.T) {
	const totalLines = 10000

	var b strings.Builder
	for i := 1; i <= totalLines; i++ {
		fmt.Fprintf(&b, `{"@t":"2016-10-12T04:20:58Z","@mt":"Item {N}","N":%d}`+"\n", i)
	}

	r := New(strings.NewReader(b.String()))
	events, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() unexpected error: %v", err)
	}
	if len(events) != totalLines {
		t.Fatalf("ReadAll() returned %d events, want %d", len(events), totalLines)
	}

	for i, evt := range events {
		v, _ := evt.Property("N")
		if got := v.(event.Scalar).Value; got != int64(i+1) {
			t.Errorf("event %d N = %v, want %d", i, got, i+1)
		}
	}
}

func TestReader_WithMaxLineSize(t *testing.T) {
	const limit = 256

	t.Run("oversized line fails", func(t *testing.T) {
		longLine := `{"@t":"2016-10-12T04:20:58Z","@m":"` + strings.Repeat("x", limit) + `"}`
		r := New(strings.NewReader(longLine), WithMaxLineSize(limit))

		_, err := r.Read()
		if !errors.Is(err, bufio.ErrTooLong) {
			t.Errorf("Read() error = %v, want %v", err, bufio.ErrTooLong)
		}
	})

	t.Run("line within limit succeeds", func(t *testing.T) {
		r := New(strings.NewReader(validLine), WithMaxLineSize(limit))
		if _, err := r.Read(); err != nil {
			t.Errorf("Read() unexpected error: %v", err)
		}
	})
}

func TestReader_WithDecoderOptions(t *testing.T) {
	r := New(strings.NewReader(`{"@t":"2016-10-12T04:20:58Z","Price":0.1}`),
		WithDecoderOptions(parser.WithDecimalFloats()))

	evt, err := r.Read()
	if err != nil {
		t.Fatalf("Read() unexpected error: %v", err)
	}
	v, _ := evt.Property("Price")
	if _, ok := v.(event.Scalar).Value.(decimal.Decimal); !ok {
		t.Errorf("Price = %T, want decimal.Decimal", v.(event.Scalar).Value)
	}
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestReader_Close(t *testing.T) {
	input := &closeRecorder{Reader: strings.NewReader(validLine)}
	r := New(input)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if !input.closed {
		t.Error("Close() did not close the input")
	}

	if err := New(strings.NewReader("")).Close(); err != nil {
		t.Errorf("Close() on a plain reader = %v, want nil", err)
	}
}

func TestDecodeOne(t *testing.T) {
	evt, err := DecodeOne(validLine)
	if err != nil {
		t.Fatalf("DecodeOne() unexpected error: %v", err)
	}
	if got := evt.RenderMessage(); got != "Hello 1" {
		t.Errorf("RenderMessage() = %q, want %q", got, "Hello 1")
	}

	if _, err := DecodeOne(""); !errors.Is(err, parser.ErrEmptyDocument) {
		t.Errorf("DecodeOne(\"\") error = %v, want ErrEmptyDocument", err)
	}
}
