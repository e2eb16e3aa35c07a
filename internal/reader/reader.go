// Package reader reads CLEF events from a line-delimited stream.
//
// Each non-blank line holds one JSON document. Events are decoded on
// demand: nothing is read ahead of the line being returned.
package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/juliosaraiva/clefreader/internal/event"
	"github.com/juliosaraiva/clefreader/internal/parser"
)

// Default configuration values.
const (
	DefaultMaxLineSize = 1024 * 1024 // 1MB max line size
	DefaultBufferSize  = 64 * 1024   // 64KB initial buffer
)

const byteOrderMark = "\ufeff"

// Reader pulls events from an io.Reader one line at a time.
// A Reader is not safe for concurrent use.
type Reader struct {
	input       io.Reader
	scanner     *bufio.Scanner
	decoder     *parser.Decoder
	decoderOpts []parser.Option
	lineNumber  int
	maxSize     int
}

// Option configures the Reader.
type Option func(*Reader)

// WithMaxLineSize sets the maximum allowed line size.
// Longer lines fail with bufio.ErrTooLong and end the stream.
func WithMaxLineSize(size int) Option {
	return func(r *Reader) {
		r.maxSize = size
	}
}

// WithDecoderOptions passes options through to the event decoder.
func WithDecoderOptions(opts ...parser.Option) Option {
	return func(r *Reader) {
		r.decoderOpts = append(r.decoderOpts, opts...)
	}
}

// New creates a Reader over input.
func New(input io.Reader, opts ...Option) *Reader {
	r := &Reader{
		input:   input,
		maxSize: DefaultMaxLineSize,
	}

	for _, opt := range opts {
		opt(r)
	}

	scanner := bufio.NewScanner(input)
	buf := make([]byte, min(DefaultBufferSize, r.maxSize))
	scanner.Buffer(buf, r.maxSize)

	r.scanner = scanner
	r.decoder = parser.NewDecoder(r.decoderOpts...)
	return r
}

// Read returns the next event. It returns io.EOF when the input is
// exhausted. A *parser.FormatError leaves the Reader usable: the next call
// continues with the following line.
func (r *Reader) Read() (*event.Event, error) {
	return r.ReadContext(context.Background())
}

// ReadContext is like Read but stops with ctx.Err() once ctx is done.
func (r *Reader) ReadContext(ctx context.Context) (*event.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNumber+1, err)
			}
			return nil, io.EOF
		}

		r.lineNumber++
		text := r.scanner.Text()
		if r.lineNumber == 1 {
			text = strings.TrimPrefix(text, byteOrderMark)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		return r.decoder.DecodeLine(r.lineNumber, text)
	}
}

// TryRead returns the next event and true, or false at the end of input.
func (r *Reader) TryRead() (*event.Event, bool, error) {
	evt, err := r.Read()
	switch {
	case err == io.EOF:
		return nil, false, nil
	case err != nil:
		return nil, false, err
	default:
		return evt, true, nil
	}
}

// Events yields events until the end of input. The first error is yielded
// and ends the sequence.
func (r *Reader) Events(ctx context.Context) iter.Seq2[*event.Event, error] {
	return func(yield func(*event.Event, error) bool) {
		for {
			evt, err := r.ReadContext(ctx)
			if err == io.EOF {
				return
			}
			if !yield(evt, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll reads every event until the end of input or the first error.
func (r *Reader) ReadAll() ([]*event.Event, error) {
	var events []*event.Event
	for evt, err := range r.Events(context.Background()) {
		if err != nil {
			return events, err
		}
		events = append(events, evt)
	}
	return events, nil
}

// Line returns the number of the last line consumed, blank lines included.
func (r *Reader) Line() int {
	return r.lineNumber
}

// Close closes the underlying input if it is an io.Closer.
func (r *Reader) Close() error {
	if c, ok := r.input.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// DecodeOne decodes a single CLEF document.
func DecodeOne(document string, opts ...parser.Option) (*event.Event, error) {
	return parser.DecodeString(document, opts...)
}
