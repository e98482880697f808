// Package lfbase defines the record type that the rest of the SDK
// produces and the processor and exporter contracts that consume it.
// Everything above this package builds records; everything below it
// (batching, fallback storage, HTTP export) moves them.
package lfbase

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Event is a point-in-time annotation attached to a span. The only
// producer in this SDK is exception capture, which appends events
// named "exception".
type Event struct {
	Name       string
	Time       time.Time
	Attributes []attribute.KeyValue
}

// SpanRecord is one finalized unit of telemetry: a real span, the
// shadow start_span emitted when it opened, or a log. Records handed
// to Processor.OnEnd are read-only from then on.
type SpanRecord struct {
	TraceID  trace.TraceID
	SpanID   trace.SpanID
	ParentID trace.SpanID // zero for roots
	Name     string
	Kind     SpanKind
	Start    time.Time
	End      time.Time
	// Attributes keep assignment order and hold unique keys. Values are
	// restricted to string, int64, float64, bool, and string slices.
	Attributes []attribute.KeyValue
	Events     []Event
}

func (r *SpanRecord) HasParent() bool { return r.ParentID.IsValid() }

// Clone returns a copy sharing no attribute or event storage with the
// original. Processors that retain records past OnEnd clone them first.
func (r *SpanRecord) Clone() *SpanRecord {
	dup := *r
	dup.Attributes = append([]attribute.KeyValue(nil), r.Attributes...)
	if r.Events != nil {
		dup.Events = make([]Event, len(r.Events))
		for i, ev := range r.Events {
			ev.Attributes = append([]attribute.KeyValue(nil), ev.Attributes...)
			dup.Events[i] = ev
		}
	}
	return &dup
}
