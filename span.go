package logfire

import (
	"context"
	"encoding/binary"
	"strconv"
	"time"

	"github.com/pydantic/logfire-go/lfattr"
	"github.com/pydantic/logfire-go/lfbase"
	"github.com/pydantic/logfire-go/lfexc"
	"github.com/pydantic/logfire-go/lfnum"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// WithSpanName names the span record instead of the raw template. The
// template still renders the message, and {span_name} resolves to
// name there.
func WithSpanName(name string) lfattr.Arg {
	return lfattr.A(string(lfattr.SpanName.Key()), name)
}

// WithEndOnExit(false) detaches scope exit from record finalize: End
// only closes the scope until a later Activate arms it again.
func WithEndOnExit(end bool) lfattr.Arg {
	return lfattr.A(string(lfattr.EndOnExit.Key()), end)
}

type spanState int32

const (
	stateCreated spanState = iota
	stateActive
	stateEnded
)

// Span is one real span plus the shadow start record already emitted
// for it. A Span belongs to the goroutine chain that created it; to
// hand work to another goroutine, pass the context, not the Span.
type Span struct {
	lg    *Logger
	state spanState
	err   error // usage bug from creation; the span is inert

	traceID  trace.TraceID
	spanID   trace.SpanID
	parentID trace.SpanID

	name        string
	template    string
	message     string
	start       time.Time
	startParent string
	endOnExit   bool
	level       lfnum.Level

	caller   []attribute.KeyValue
	tags     []string
	nullArgs []string
	user     []attribute.KeyValue
	events   []lfbase.Event
}

// Span opens a span. The shadow start record is emitted immediately;
// the real record follows from End. The returned context carries the
// span as the active parent for everything created under it.
//
// A malformed template or a placeholder with no argument is a usage
// bug: nothing is emitted, the returned Span is inert, and the error
// is available from Err. Encoding problems are not usage bugs; they
// degrade to stringified attributes and a diagnostics line.
func (lg *Logger) Span(ctx context.Context, template string, args ...lfattr.Arg) (context.Context, *Span) {
	if lg.noop() {
		return ctx, &Span{state: stateEnded}
	}

	name := ""
	endOnExit := true
	var kept []lfattr.Arg
	for _, a := range args {
		switch a.Name {
		case string(lfattr.SpanName.Key()):
			if s, ok := a.Value.(string); ok {
				name = s
			}
		case string(lfattr.EndOnExit.Key()):
			if b, ok := a.Value.(bool); ok {
				endOnExit = b
			}
		default:
			kept = append(kept, a)
		}
	}

	res, err := lfattr.Encode(template, name, lg.tags, kept)
	if err != nil {
		var ee *lfattr.EncodingError
		if !errors.As(err, &ee) {
			lg.pipe.diag.Error("rejected span call",
				zap.String("template", template), zap.Error(err))
			return ctx, &Span{state: stateEnded, err: err}
		}
		lg.pipe.diag.Warn("argument encoding fell back to a string",
			zap.String("template", template), zap.Error(err))
	}

	s := &Span{
		lg:        lg,
		state:     stateCreated,
		name:      template,
		template:  template,
		message:   res.Message,
		endOnExit: endOnExit,
		caller:    callerAttrs(1),
		tags:      res.Tags,
		nullArgs:  res.NullArgs,
		user:      res.Attrs,
	}
	if name != "" {
		s.name = name
	}

	s.startParent = "0"
	if a, ok := activeFrom(ctx); ok {
		s.traceID = a.traceID
		s.parentID = a.spanID
		s.spanID = lg.pipe.idgen.NewSpanID(ctx, a.traceID)
		s.startParent = spanIDDecimal(a.spanID)
	} else {
		s.traceID, s.spanID = lg.pipe.idgen.NewIDs(ctx)
	}
	s.start = lg.pipe.now()

	s.emitShadow(ctx)
	s.state = stateActive
	return ContextWithSpan(ctx, s), s
}

// emitShadow sends the start_span record: a fresh id parented to the
// real span, zero duration, the real record's name suffixed with
// " (start)", and the previously active span id in decimal.
func (s *Span) emitShadow(ctx context.Context) {
	rec := &lfbase.SpanRecord{
		TraceID:  s.traceID,
		SpanID:   s.lg.pipe.idgen.NewSpanID(ctx, s.traceID),
		ParentID: s.spanID,
		Name:     s.name + " (start)",
		Kind:     lfbase.KindStartSpan,
		Start:    s.start,
		End:      s.start,
	}
	rec.Attributes = assembleAttrs(recordParts{
		caller:      s.caller,
		template:    s.template,
		message:     s.message,
		kind:        lfbase.KindStartSpan,
		tags:        s.tags,
		nullArgs:    s.nullArgs,
		startParent: s.startParent,
		user:        s.user,
	})
	s.lg.pipe.proc.OnEnd(rec)
}

// End finalizes the span: end timestamp from the configured source,
// kind span, exception events attached, emitted exactly once. Extra
// End calls do nothing. With end-on-exit disabled, End only closes
// the scope and the record stays open for a later Activate/End pair.
func (s *Span) End() {
	if s == nil || s.lg == nil || s.state != stateActive || !s.endOnExit {
		return
	}
	s.state = stateEnded

	rec := &lfbase.SpanRecord{
		TraceID:  s.traceID,
		SpanID:   s.spanID,
		ParentID: s.parentID,
		Name:     s.name,
		Kind:     lfbase.KindSpan,
		Start:    s.start,
		End:      s.lg.pipe.now(),
		Events:   s.events,
	}
	rec.Attributes = assembleAttrs(recordParts{
		caller:   s.caller,
		template: s.template,
		message:  s.message,
		kind:     lfbase.KindSpan,
		level:    s.level,
		tags:     s.tags,
		nullArgs: s.nullArgs,
		user:     s.user,
	})
	s.lg.pipe.proc.OnEnd(rec)
}

// SetEndOnExit switches whether a plain End finalizes the record.
func (s *Span) SetEndOnExit(end bool) {
	if s == nil || s.state == stateEnded {
		return
	}
	s.endOnExit = end
}

// Activate puts the span back on ctx as the active parent and arms
// End to finalize. Pairs with WithEndOnExit(false) to stretch one
// logical span across several scopes.
func (s *Span) Activate(ctx context.Context) context.Context {
	if s == nil || s.lg == nil || s.state != stateActive {
		return ctx
	}
	s.endOnExit = true
	return ContextWithSpan(ctx, s)
}

// RecordException attaches an exception event to the record. Failures
// inside capture are swallowed; err itself is never modified. Ended
// spans ignore the call.
func (s *Span) RecordException(err error) {
	if s == nil || s.lg == nil || s.state != stateActive || err == nil {
		return
	}
	s.events = append(s.events, lfbase.Event{
		Name:       "exception",
		Time:       s.lg.pipe.now(),
		Attributes: lfexc.Capture(err),
	})
}

// Fail records err and marks the final record at error level.
func (s *Span) Fail(err error) {
	if s == nil || s.lg == nil || s.state != stateActive || err == nil {
		return
	}
	s.RecordException(err)
	s.level = lfnum.ErrorLevel
}

// SetAttribute encodes value and adds it to the record, replacing a
// previous value under the same name. Reserved names and encoding
// failures degrade to diagnostics; ended spans ignore mutation.
func (s *Span) SetAttribute(name string, value any) {
	if s == nil || s.lg == nil || s.state != stateActive {
		return
	}
	res, err := lfattr.Encode("", "", nil, []lfattr.Arg{lfattr.A(name, value)})
	if err != nil {
		s.lg.pipe.diag.Warn("span attribute degraded",
			zap.String("attribute", name), zap.Error(err))
	}
	s.nullArgs = append(s.nullArgs, res.NullArgs...)
	for _, kv := range res.Attrs {
		s.putUser(kv)
	}
}

func (s *Span) putUser(kv attribute.KeyValue) {
	for i, old := range s.user {
		if old.Key == kv.Key {
			s.user[i] = kv
			return
		}
	}
	s.user = append(s.user, kv)
}

// Err reports the usage-bug error from span creation, if any.
func (s *Span) Err() error {
	if s == nil {
		return nil
	}
	return s.err
}

// IsRecording reports whether the span can still be mutated and will
// emit on End.
func (s *Span) IsRecording() bool {
	return s != nil && s.lg != nil && s.state == stateActive
}

func (s *Span) TraceID() trace.TraceID { return s.traceID }
func (s *Span) SpanID() trace.SpanID   { return s.spanID }

func spanIDDecimal(sid trace.SpanID) string {
	return strconv.FormatUint(binary.BigEndian.Uint64(sid[:]), 10)
}
