package lfexport

import (
	"context"
	"sync"
	"time"

	"github.com/pydantic/logfire-go/lfbase"

	"go.uber.org/zap"
)

// Defaults for BatcherOptions zero values.
const (
	DefaultQueueSize     = 2048
	DefaultBatchSize     = 512
	DefaultScheduleDelay = 500 * time.Millisecond
)

// BatcherOptions tune the background batcher.
type BatcherOptions struct {
	QueueSize     int
	BatchSize     int
	ScheduleDelay time.Duration
	Diagnostics   *zap.Logger
	Metrics       *Metrics
}

// Batcher is the lfbase.Processor in front of an Exporter: a bounded
// queue drained by one background goroutine that owns every network
// call and fallback write. Producers only ever touch the queue, so
// OnEnd never blocks on I/O.
type Batcher struct {
	exp       lfbase.Exporter
	delay     time.Duration
	batchSize int
	queueSize int
	diag      *zap.Logger
	metrics   *Metrics

	mu    sync.Mutex
	queue []*lfbase.SpanRecord

	wake    chan struct{}
	flushCh chan flushRequest
	done    chan struct{}

	shutOnce sync.Once
	shutErr  error
}

type flushRequest struct {
	ctx context.Context
	res chan error
}

var _ lfbase.Processor = &Batcher{}

func NewBatcher(exp lfbase.Exporter, opts BatcherOptions) *Batcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize > opts.QueueSize {
		opts.BatchSize = opts.QueueSize
	}
	if opts.ScheduleDelay <= 0 {
		opts.ScheduleDelay = DefaultScheduleDelay
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	b := &Batcher{
		exp:       exp,
		delay:     opts.ScheduleDelay,
		batchSize: opts.BatchSize,
		queueSize: opts.QueueSize,
		diag:      opts.Diagnostics,
		metrics:   opts.Metrics,
		queue:     make([]*lfbase.SpanRecord, 0, opts.QueueSize),
		wake:      make(chan struct{}, 1),
		flushCh:   make(chan flushRequest),
		done:      make(chan struct{}),
	}
	go b.loop()
	return b
}

// OnEnd enqueues rec. A full queue drops its oldest record: fresh
// telemetry says more about a stuck exporter than stale telemetry
// does. Records arriving after Shutdown finished are dropped whole.
func (b *Batcher) OnEnd(rec *lfbase.SpanRecord) {
	if b.isDone() {
		b.metrics.DroppedRecords.Inc()
		return
	}
	b.mu.Lock()
	if len(b.queue) >= b.queueSize {
		copy(b.queue, b.queue[1:])
		b.queue[len(b.queue)-1] = rec
		b.metrics.DroppedRecords.Inc()
	} else {
		b.queue = append(b.queue, rec)
	}
	n := len(b.queue)
	b.mu.Unlock()

	b.metrics.QueueLength.Set(float64(n))
	if n >= b.batchSize {
		select {
		case b.wake <- struct{}{}:
		default:
		}
	}
}

// ForceFlush pushes everything queued through the exporter, on the
// batcher goroutine, and waits for it.
func (b *Batcher) ForceFlush(ctx context.Context) error {
	req := flushRequest{ctx: ctx, res: make(chan error, 1)}
	select {
	case b.flushCh <- req:
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown runs one final drain, bounded by ctx, then stops the
// goroutine. Records enqueued while the drain runs are included;
// anything arriving later is dropped and counted.
func (b *Batcher) Shutdown(ctx context.Context) error {
	b.shutOnce.Do(func() {
		b.shutErr = b.ForceFlush(ctx)
		close(b.done)

		b.mu.Lock()
		leftover := len(b.queue)
		b.queue = nil
		b.mu.Unlock()
		if leftover > 0 {
			b.metrics.DroppedRecords.Add(float64(leftover))
			b.diag.Warn("records dropped at shutdown", zap.Int("records", leftover))
		}

		if err := b.exp.Shutdown(ctx); err != nil && b.shutErr == nil {
			b.shutErr = err
		}
	})
	return b.shutErr
}

func (b *Batcher) isDone() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

func (b *Batcher) loop() {
	timer := time.NewTimer(b.delay)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			b.drain(context.Background(), 1)
			timer.Reset(b.delay)
		case <-b.wake:
			// size trigger: only ship full batches, the timer picks
			// up the remainder
			b.drain(context.Background(), b.batchSize)
		case req := <-b.flushCh:
			req.res <- b.drain(req.ctx, 1)
		case <-b.done:
			return
		}
	}
}

// drain exports head batches while at least atLeast records remain.
func (b *Batcher) drain(ctx context.Context, atLeast int) error {
	var first error
	for {
		batch := b.take(atLeast)
		if len(batch) == 0 {
			return first
		}
		if err := b.exp.Export(ctx, batch); err != nil {
			if first == nil {
				first = err
			}
			b.diag.Error("export chain error",
				zap.Int("records", len(batch)), zap.Error(err))
		}
	}
}

func (b *Batcher) take(atLeast int) []*lfbase.SpanRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) < atLeast || len(b.queue) == 0 {
		return nil
	}
	n := len(b.queue)
	if n > b.batchSize {
		n = b.batchSize
	}
	batch := make([]*lfbase.SpanRecord, n)
	copy(batch, b.queue)
	rest := copy(b.queue, b.queue[n:])
	for i := rest; i < len(b.queue); i++ {
		b.queue[i] = nil
	}
	b.queue = b.queue[:rest]
	b.metrics.QueueLength.Set(float64(rest))
	return batch
}
