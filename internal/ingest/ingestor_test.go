package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juliosaraiva/clefreader/internal/sink"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]sink.Record
	err     error
}

func (f *fakeSink) WriteBatch(_ context.Context, records []sink.Record) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.batches = append(f.batches, append([]sink.Record(nil), records...))
	return int64(len(records)), nil
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) sizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.batches))
	for i, b := range f.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func (f *fakeSink) total() int {
	n := 0
	for _, s := range f.sizes() {
		n += s
	}
	return n
}

func record(line int) sink.Record {
	return sink.Record{Line: line, Message: fmt.Sprintf("event %d", line)}
}

func runAsync(ctx context.Context, ig *Ingestor) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- ig.Run(ctx)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return within 5s")
	}
}

func TestIngestor_BatchesBySize(t *testing.T) {
	fs := &fakeSink{}
	ig := NewIngestor(fs, 100, 3, time.Hour)
	done := runAsync(context.Background(), ig)

	for i := 1; i <= 7; i++ {
		if err := ig.Enqueue(context.Background(), record(i)); err != nil {
			t.Fatalf("Enqueue(%d) returned error: %v", i, err)
		}
	}
	ig.Close()
	waitDone(t, done)

	if got := fmt.Sprint(fs.sizes()); got != "[3 3 1]" {
		t.Errorf("batch sizes = %s, want [3 3 1]", got)
	}

	var lines []int
	for _, b := range fs.batches {
		for _, r := range b {
			lines = append(lines, r.Line)
		}
	}
	if got := fmt.Sprint(lines); got != "[1 2 3 4 5 6 7]" {
		t.Errorf("records written out of order: %s", got)
	}

	if written, dropped := ig.Stats(); written != 7 || dropped != 0 {
		t.Errorf("Stats() = (%d, %d), want (7, 0)", written, dropped)
	}
}

func TestIngestor_FlushesAfterMaxWait(t *testing.T) {
	fs := &fakeSink{}
	ig := NewIngestor(fs, 100, 100, 20*time.Millisecond)
	done := runAsync(context.Background(), ig)
	defer func() {
		ig.Close()
		waitDone(t, done)
	}()

	for i := 1; i <= 2; i++ {
		if err := ig.Enqueue(context.Background(), record(i)); err != nil {
			t.Fatalf("Enqueue(%d) returned error: %v", i, err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for fs.total() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("records were not flushed by the timer, sizes = %v", fs.sizes())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIngestor_CancelFlushesPending(t *testing.T) {
	fs := &fakeSink{}
	ig := NewIngestor(fs, 10, 2, time.Hour)

	for i := 1; i <= 5; i++ {
		if err := ig.Enqueue(context.Background(), record(i)); err != nil {
			t.Fatalf("Enqueue(%d) returned error: %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	waitDone(t, runAsync(ctx, ig))

	if fs.total() != 5 {
		t.Errorf("wrote %d records after cancel, want 5", fs.total())
	}
	for _, size := range fs.sizes() {
		if size > 2 {
			t.Errorf("batch of %d exceeds max size 2", size)
		}
	}
}

func TestIngestor_FailedBatchIsDropped(t *testing.T) {
	fs := &fakeSink{err: errors.New("connection refused")}
	ig := NewIngestor(fs, 10, 2, time.Hour)
	done := runAsync(context.Background(), ig)

	for i := 1; i <= 3; i++ {
		if err := ig.Enqueue(context.Background(), record(i)); err != nil {
			t.Fatalf("Enqueue(%d) returned error: %v", i, err)
		}
	}
	ig.Close()
	waitDone(t, done)

	if written, dropped := ig.Stats(); written != 0 || dropped != 3 {
		t.Errorf("Stats() = (%d, %d), want (0, 3)", written, dropped)
	}
}

func TestIngestor_EnqueueRespectsContext(t *testing.T) {
	ig := NewIngestor(&fakeSink{}, 1, 1, time.Hour)

	if err := ig.Enqueue(context.Background(), record(1)); err != nil {
		t.Fatalf("first Enqueue returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ig.Enqueue(ctx, record(2)); !errors.Is(err, context.Canceled) {
		t.Errorf("Enqueue on full queue = %v, want context.Canceled", err)
	}
}

func TestIngestor_CloseTwice(t *testing.T) {
	ig := NewIngestor(&fakeSink{}, 1, 1, time.Hour)
	ig.Close()
	ig.Close()
	waitDone(t, runAsync(context.Background(), ig))
}
