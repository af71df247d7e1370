package store

import (
	"context"

	"github.com/ambientlog/condense/pkg/events"
)

// defaultBatchSize bounds how many events a BatchSink buffers before writing
// a transaction.
const defaultBatchSize = 256

// BatchSink adapts a Store to the compressor's sink contract, buffering
// emissions and flushing them in transactional batches. Callers must invoke
// Flush after the final emission.
type BatchSink struct {
	store *Store
	ctx   context.Context
	limit int
	buf   []events.Compressed
}

// NewBatchSink wraps the store. A non-positive batchSize selects the default.
func NewBatchSink(ctx context.Context, s *Store, batchSize int) *BatchSink {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &BatchSink{
		store: s,
		ctx:   ctx,
		limit: batchSize,
		buf:   make([]events.Compressed, 0, batchSize),
	}
}

// Emit buffers one event, writing a batch once the buffer fills.
func (b *BatchSink) Emit(ev events.Compressed) error {
	b.buf = append(b.buf, ev)
	if len(b.buf) < b.limit {
		return nil
	}
	return b.Flush()
}

// Flush writes any buffered events.
func (b *BatchSink) Flush() error {
	if len(b.buf) == 0 {
		return nil
	}
	if err := b.store.InsertBatch(b.ctx, b.buf); err != nil {
		return err
	}
	b.buf = b.buf[:0]
	return nil
}
