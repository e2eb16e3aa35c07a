// Package source opens CLEF inputs, transparently decompressing gzip and
// zstd streams.
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Compression identifies how an input stream is encoded.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Detect reports the compression of a stream from its leading bytes.
func Detect(header []byte) Compression {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return Gzip
	case bytes.HasPrefix(header, zstdMagic):
		return Zstd
	default:
		return None
	}
}

// Open opens path for reading, or standard input when path is "-".
// Compressed files are decompressed on the fly.
func Open(path string) (io.ReadCloser, error) {
	if path == Stdin {
		return NewReader(io.NopCloser(os.Stdin))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	rc, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return rc, nil
}

// NewReader wraps rc so that reads return decompressed data. Closing the
// result closes rc.
func NewReader(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	header, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read header: %w", err)
	}

	switch Detect(header) {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &stream{Reader: zr, closers: []io.Closer{zr, rc}}, nil

	case Zstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return &stream{Reader: zr, closers: []io.Closer{zstdCloser{zr}, rc}}, nil

	default:
		return &stream{Reader: br, closers: []io.Closer{rc}}, nil
	}
}

type stream struct {
	io.Reader
	closers []io.Closer
}

func (s *stream) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// zstd.Decoder.Close returns nothing.
type zstdCloser struct {
	d *zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
