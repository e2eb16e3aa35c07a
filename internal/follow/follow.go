// Package follow tails a growing file.
//
// A Reader never reports io.EOF while its context is alive: at the end of
// the file it waits for fsnotify write events (with a polling fallback) and
// resumes. Cancelling the context makes Read return ctx.Err().
package follow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval bounds how long Read waits without a watcher event.
const DefaultPollInterval = time.Second

// Reader is an io.ReadCloser over a file that is still being written.
type Reader struct {
	ctx          context.Context
	path         string
	file         *os.File
	watcher      *fsnotify.Watcher
	pollInterval time.Duration
	fromEnd      bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithPollInterval sets how often the file is re-checked when no watcher
// event arrives.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithFromEnd skips the content already in the file.
func WithFromEnd() Option {
	return func(r *Reader) {
		r.fromEnd = true
	}
}

// Open starts following path. The Reader stops when ctx is done.
func Open(ctx context.Context, path string, opts ...Option) (*Reader, error) {
	r := &Reader{
		ctx:          ctx,
		path:         path,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("follow %s: %w", path, err)
	}
	if r.fromEnd {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, fmt.Errorf("follow %s: %w", path, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("follow %s: create watcher: %w", path, err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		f.Close()
		return nil, fmt.Errorf("follow %s: watch: %w", path, err)
	}

	r.file = f
	r.watcher = watcher
	log.Printf("[follow] watching %s", path)
	return r, nil
}

// Read reads appended data, blocking at the end of the file until more is
// written, the file is removed, or the context is done.
func (r *Reader) Read(p []byte) (int, error) {
	for {
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}

		n, err := r.file.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}

		if err := r.wait(); err != nil {
			return 0, err
		}
	}
}

// wait blocks until the file may have grown. It returns io.EOF once the
// file is gone.
func (r *Reader) wait() error {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	select {
	case <-r.ctx.Done():
		return r.ctx.Err()

	case ev, ok := <-r.watcher.Events:
		if !ok {
			return io.EOF
		}
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			log.Printf("[follow] %s was removed, stopping", r.path)
			return io.EOF
		}

	case err, ok := <-r.watcher.Errors:
		if !ok {
			return io.EOF
		}
		log.Printf("[follow] watcher error on %s: %v", r.path, err)

	case <-timer.C:
	}

	return r.rewindIfTruncated()
}

func (r *Reader) rewindIfTruncated() error {
	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("follow %s: %w", r.path, err)
	}
	offset, err := r.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("follow %s: %w", r.path, err)
	}
	if info.Size() < offset {
		log.Printf("[follow] %s was truncated, reading from the start", r.path)
		if _, err := r.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("follow %s: %w", r.path, err)
		}
	}
	return nil
}

// Close stops watching and closes the file.
func (r *Reader) Close() error {
	werr := r.watcher.Close()
	if err := r.file.Close(); err != nil {
		return err
	}
	return werr
}
