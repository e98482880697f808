package lfbase

import (
	"context"
	"sync"
)

// Processor consumes finalized records. OnEnd runs synchronously on
// the goroutine that finished the span or emitted the log, exactly
// once per record.
type Processor interface {
	OnEnd(rec *SpanRecord)
	// ForceFlush pushes everything buffered so far downstream. It
	// returns once the push completes or ctx is done.
	ForceFlush(ctx context.Context) error
	// Shutdown flushes and releases resources. The processor drops
	// records received after Shutdown returns.
	Shutdown(ctx context.Context) error
}

// Exporter delivers finished batches somewhere durable.
type Exporter interface {
	Export(ctx context.Context, batch []*SpanRecord) error
	Shutdown(ctx context.Context) error
}

// MultiProcessor hands every record to each member in order.
type MultiProcessor []Processor

var _ Processor = MultiProcessor(nil)

func (m MultiProcessor) OnEnd(rec *SpanRecord) {
	for _, p := range m {
		p.OnEnd(rec)
	}
}

func (m MultiProcessor) ForceFlush(ctx context.Context) error {
	return m.fanOut(ctx, Processor.ForceFlush)
}

func (m MultiProcessor) Shutdown(ctx context.Context) error {
	return m.fanOut(ctx, Processor.Shutdown)
}

// fanOut runs op on every member concurrently and keeps the first
// error it sees.
func (m MultiProcessor) fanOut(ctx context.Context, op func(Processor, context.Context) error) error {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first error
	)
	wg.Add(len(m))
	for _, p := range m {
		go func(p Processor) {
			defer wg.Done()
			if err := op(p, ctx); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	return first
}
