// Package ingest batches records on their way to a sink.
package ingest

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juliosaraiva/clefreader/internal/sink"
)

// flushTimeout bounds the final flush after the run context is cancelled.
const flushTimeout = 10 * time.Second

// Ingestor collects records from a bounded queue and writes them to a sink
// in batches of at most batchMaxSize, or whatever has arrived after
// batchMaxWait.
type Ingestor struct {
	queue        chan sink.Record
	sink         sink.Sink
	batchMaxSize int
	batchMaxWait time.Duration

	written   atomic.Int64
	dropped   atomic.Int64
	closeOnce sync.Once
}

// NewIngestor creates an Ingestor. Non-positive sizes fall back to 1.
func NewIngestor(s sink.Sink, queueMaxSize, batchMaxSize int, batchMaxWait time.Duration) *Ingestor {
	return &Ingestor{
		queue:        make(chan sink.Record, max(queueMaxSize, 1)),
		sink:         s,
		batchMaxSize: max(batchMaxSize, 1),
		batchMaxWait: batchMaxWait,
	}
}

// Run writes batches until Close is called and the queue is drained, or
// until ctx is done. Either way the pending batch is flushed before Run
// returns. A failed batch is logged and dropped.
func (ig *Ingestor) Run(ctx context.Context) error {
	batch := make([]sink.Record, 0, ig.batchMaxSize)
	t := time.NewTimer(ig.batchMaxWait)
	defer t.Stop()

	resetTimer := func() {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(ig.batchMaxWait)
	}

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			resetTimer()
			return
		}
		affected, err := ig.sink.WriteBatch(ctx, batch)
		if err != nil {
			ig.dropped.Add(int64(len(batch)))
			log.Printf("[ingest] batch insert FAILED: err=%v dropped=%d", err, len(batch))
		} else {
			ig.written.Add(affected)
			log.Printf("[ingest] batch insert OK: inserted=%d size=%d", affected, len(batch))
		}
		batch = batch[:0]
		resetTimer()
	}

	for {
		select {
		case <-ctx.Done():
			ig.drain(&batch)
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			for len(batch) > 0 {
				n := min(len(batch), ig.batchMaxSize)
				rest := append([]sink.Record(nil), batch[n:]...)
				batch = batch[:n]
				flush(fctx)
				batch = append(batch, rest...)
			}
			cancel()
			return nil

		case rec, ok := <-ig.queue:
			if !ok {
				flush(ctx)
				return nil
			}
			batch = append(batch, rec)
			if len(batch) >= ig.batchMaxSize {
				flush(ctx)
			}

		case <-t.C:
			flush(ctx)
		}
	}
}

// drain moves whatever is already queued into batch without blocking.
func (ig *Ingestor) drain(batch *[]sink.Record) {
	for {
		select {
		case rec, ok := <-ig.queue:
			if !ok {
				return
			}
			*batch = append(*batch, rec)
		default:
			return
		}
	}
}

// Enqueue adds rec to the queue, waiting for room until ctx is done.
// It must not be called after Close.
func (ig *Ingestor) Enqueue(ctx context.Context, rec sink.Record) error {
	select {
	case ig.queue <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no more records will be enqueued.
func (ig *Ingestor) Close() {
	ig.closeOnce.Do(func() {
		close(ig.queue)
	})
}

// Stats reports how many records were written and how many were dropped
// with failed batches.
func (ig *Ingestor) Stats() (written, dropped int64) {
	return ig.written.Load(), ig.dropped.Load()
}
