package lftest

import (
	"context"
	"sync"

	"github.com/pydantic/logfire-go/lfbase"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Recorder is an lfbase.Processor that keeps every finalized record in
// memory, in arrival order. The exported fields may be read directly
// under WithLock; the snapshot accessors are safe without it.
type Recorder struct {
	lock sync.Mutex

	// Records holds every record in OnEnd order. SpanIndex maps each
	// record's own span id to it, shadows included.
	Records   []*lfbase.SpanRecord
	SpanIndex map[trace.SpanID]*lfbase.SpanRecord

	FlushCount int
	IsShutdown bool

	exported []map[string]any // decoded-wire cache, grown lazily
	id       string
	t        testingT
}

var _ lfbase.Processor = &Recorder{}

// New builds a Recorder that logs a one-line summary per record to t
// and shuts itself down in t's Cleanup. A nil t is allowed for tests
// that manage the recorder by hand.
func New(t testingT) *Recorder {
	r := &Recorder{
		SpanIndex: make(map[trace.SpanID]*lfbase.SpanRecord),
		t:         t,
		id:        "lftest-" + uuid.New().String(),
	}
	if t != nil {
		r.id = t.Name() + "-" + r.id
		t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
	}
	return r
}

func (r *Recorder) OnEnd(rec *lfbase.SpanRecord) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.IsShutdown {
		return
	}
	rec = rec.Clone()
	r.Records = append(r.Records, rec)
	r.SpanIndex[rec.SpanID] = rec
	if r.t != nil {
		r.t.Log(string(rec.Kind), rec.SpanID.String(), rec.Name)
	}
}

func (r *Recorder) ForceFlush(context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.FlushCount++
	return nil
}

func (r *Recorder) Shutdown(context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.IsShutdown = true
	return nil
}

// WithLock runs f holding the recorder's lock so f can walk the
// exported fields while producers are still emitting.
func (r *Recorder) WithLock(f func(*Recorder) error) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return f(r)
}

// Snapshot returns copies of every record so far; mutating them never
// touches the recorder's own state.
func (r *Recorder) Snapshot() []*lfbase.SpanRecord {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]*lfbase.SpanRecord, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Clone()
	}
	return out
}

// Span returns the record owning id, or nil.
func (r *Recorder) Span(id trace.SpanID) *lfbase.SpanRecord {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.SpanIndex[id]
}

// Kinds returns the record kinds in arrival order.
func (r *Recorder) Kinds() []lfbase.SpanKind {
	r.lock.Lock()
	defer r.lock.Unlock()
	kinds := make([]lfbase.SpanKind, len(r.Records))
	for i, rec := range r.Records {
		kinds[i] = rec.Kind
	}
	return kinds
}

// Attr returns the value of key on rec, or an invalid Value when the
// key is absent.
func Attr(rec *lfbase.SpanRecord, key string) (attribute.Value, bool) {
	for _, kv := range rec.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// Exported renders every record through its wire marshaler and decodes
// it back to a generic map, the shape assertions on exported spans
// read most naturally. Decoding happens once per record; each call
// hands out deep copies, so callers may mutate them.
func (r *Recorder) Exported() []map[string]any {
	r.lock.Lock()
	defer r.lock.Unlock()
	for i := len(r.exported); i < len(r.Records); i++ {
		var m map[string]any
		body, err := r.Records[i].MarshalJSON()
		if err == nil {
			_ = sonic.Unmarshal(body, &m)
		}
		r.exported = append(r.exported, m)
	}
	out := make([]map[string]any, len(r.exported))
	for i, m := range r.exported {
		if m != nil {
			out[i] = deepcopy.Copy(m).(map[string]any)
		}
	}
	return out
}
