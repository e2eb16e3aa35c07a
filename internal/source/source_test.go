package source

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const sample = `{"@t":"2016-10-12T04:20:58.0554314Z","@m":"Hello"}` + "\n"

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(data)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data string) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll([]byte(data), nil)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   Compression
	}{
		{name: "gzip", header: []byte{0x1f, 0x8b, 0x08, 0x00}, want: Gzip},
		{name: "zstd", header: []byte{0x28, 0xb5, 0x2f, 0xfd}, want: Zstd},
		{name: "json", header: []byte(`{"@t`), want: None},
		{name: "short", header: []byte{0x1f}, want: None},
		{name: "empty", header: nil, want: None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.header); got != tt.want {
				t.Errorf("Detect(%x) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{name: "plain", file: "events.clef", data: []byte(sample)},
		{name: "gzip", file: "events.clef.gz", data: gzipBytes(t, sample)},
		{name: "zstd", file: "events.clef.zst", data: zstdBytes(t, sample)},
		{name: "empty", file: "empty.clef", data: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}

			rc, err := Open(path)
			if err != nil {
				t.Fatalf("Open(%s) unexpected error: %v", tt.file, err)
			}
			defer rc.Close()

			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("ReadAll unexpected error: %v", err)
			}

			want := sample
			if tt.data == nil {
				want = ""
			}
			if string(got) != want {
				t.Errorf("content = %q, want %q", got, want)
			}
		})
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.clef")); err == nil {
		t.Fatal("Open() expected error for missing file, got nil")
	}
}

func TestNewReader_CorruptGzip(t *testing.T) {
	data := []byte{0x1f, 0x8b, 0x00, 0x00}
	if _, err := NewReader(io.NopCloser(bytes.NewReader(data))); err == nil {
		t.Fatal("NewReader() expected error for corrupt gzip header, got nil")
	}
}

type trackingCloser struct {
	io.Reader
	closed int
}

func (c *trackingCloser) Close() error {
	c.closed++
	return nil
}

func TestNewReader_ClosesUnderlying(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "plain", data: []byte(sample)},
		{name: "gzip", data: gzipBytes(t, sample)},
		{name: "zstd", data: zstdBytes(t, sample)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			under := &trackingCloser{Reader: bytes.NewReader(tt.data)}
			rc, err := NewReader(under)
			if err != nil {
				t.Fatalf("NewReader() unexpected error: %v", err)
			}
			if err := rc.Close(); err != nil {
				t.Fatalf("Close() unexpected error: %v", err)
			}
			if under.closed != 1 {
				t.Errorf("underlying closed %d times, want 1", under.closed)
			}
		})
	}
}
