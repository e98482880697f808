package lftest

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// IncrementalIDGenerator hands out trace and span ids from two
// counters that start at 1, so a test can predict every id a call
// sequence allocates. A span call takes the real id first and the
// shadow id second.
type IncrementalIDGenerator struct {
	traces atomic.Uint64
	spans  atomic.Uint64
}

var _ sdktrace.IDGenerator = &IncrementalIDGenerator{}

func NewIDGenerator() *IncrementalIDGenerator {
	return &IncrementalIDGenerator{}
}

func (g *IncrementalIDGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	var tid trace.TraceID
	binary.BigEndian.PutUint64(tid[8:], g.traces.Add(1))
	return tid, g.NewSpanID(ctx, tid)
}

func (g *IncrementalIDGenerator) NewSpanID(context.Context, trace.TraceID) trace.SpanID {
	var sid trace.SpanID
	binary.BigEndian.PutUint64(sid[:], g.spans.Add(1))
	return sid
}

// TimeGenerator is a record timestamp source that starts at one second
// past the epoch and advances one second per call, so timestamps come
// out 1e9, 2e9, 3e9 nanoseconds.
type TimeGenerator struct {
	mu    sync.Mutex
	clock *clockz.FakeClock
}

func NewTimeGenerator() *TimeGenerator {
	return &TimeGenerator{clock: clockz.NewFakeClockAt(time.Unix(1, 0))}
}

// Now returns the current fake time and steps the clock.
func (g *TimeGenerator) Now() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	g.clock.Advance(time.Second)
	return now
}
