package logfire

import (
	"context"

	"github.com/pydantic/logfire-go/lfattr"
	"github.com/pydantic/logfire-go/lfbase"
	"github.com/pydantic/logfire-go/lfnum"

	"github.com/muir/list"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Logger is an immutable handle on a configured pipeline. Handles are
// cheap and share everything; deriving one never mutates the receiver,
// so a handle can be stored in a package variable and specialized
// freely at use sites.
type Logger struct {
	pipe *pipeline
	tags []string
}

// WithTags returns a logger whose records carry the receiver's tags
// followed by names, in call order. Duplicates are kept; tags merge by
// concatenation only.
func (lg *Logger) WithTags(names ...string) *Logger {
	if len(names) == 0 {
		return lg
	}
	return &Logger{
		pipe: lg.pipe,
		tags: append(list.Copy(lg.tags), names...),
	}
}

// Tags returns a copy of the handle's tag list.
func (lg *Logger) Tags() []string { return list.Copy(lg.tags) }

func (lg *Logger) noop() bool {
	return lg == nil || lg.pipe == nil || lg.pipe.disabled
}

// Flush pushes every finished record downstream and returns when the
// push completes or ctx is done.
func (lg *Logger) Flush(ctx context.Context) error {
	if lg.noop() {
		return nil
	}
	return lg.pipe.proc.ForceFlush(ctx)
}

// Shutdown drains the pipeline best-effort and stops it, metrics
// reader included. Records produced afterwards are dropped. Without a
// deadline on ctx the drain is capped at 5 seconds.
func (lg *Logger) Shutdown(ctx context.Context) error {
	if lg.noop() {
		return nil
	}
	return lg.pipe.close(ctx)
}

// Trace emits one log record at trace level.
func (lg *Logger) Trace(ctx context.Context, template string, args ...lfattr.Arg) error {
	return lg.log(ctx, lfnum.TraceLevel, template, args)
}

// Debug emits one log record at debug level.
func (lg *Logger) Debug(ctx context.Context, template string, args ...lfattr.Arg) error {
	return lg.log(ctx, lfnum.DebugLevel, template, args)
}

// Info emits one log record at info level.
func (lg *Logger) Info(ctx context.Context, template string, args ...lfattr.Arg) error {
	return lg.log(ctx, lfnum.InfoLevel, template, args)
}

// Notice emits one log record at notice level.
func (lg *Logger) Notice(ctx context.Context, template string, args ...lfattr.Arg) error {
	return lg.log(ctx, lfnum.NoticeLevel, template, args)
}

// Warn emits one log record at warning level.
func (lg *Logger) Warn(ctx context.Context, template string, args ...lfattr.Arg) error {
	return lg.log(ctx, lfnum.WarnLevel, template, args)
}

// Error emits one log record at error level.
func (lg *Logger) Error(ctx context.Context, template string, args ...lfattr.Arg) error {
	return lg.log(ctx, lfnum.ErrorLevel, template, args)
}

// Critical emits one log record at critical level.
func (lg *Logger) Critical(ctx context.Context, template string, args ...lfattr.Arg) error {
	return lg.log(ctx, lfnum.CriticalLevel, template, args)
}

// Log emits one log record at an arbitrary level.
func (lg *Logger) Log(ctx context.Context, level lfnum.Level, template string, args ...lfattr.Arg) error {
	return lg.log(ctx, level, template, args)
}

// log renders and emits a single kind=log record. A template error is
// a usage bug returned to the caller with nothing emitted; encoding
// errors degrade to stringified attributes and a diagnostics line.
func (lg *Logger) log(ctx context.Context, level lfnum.Level, template string, args []lfattr.Arg) error {
	if lg.noop() {
		return nil
	}
	res, err := lfattr.Encode(template, "", lg.tags, args)
	if err != nil {
		var ee *lfattr.EncodingError
		if !errors.As(err, &ee) {
			lg.pipe.diag.Error("rejected log call",
				zap.String("template", template), zap.Error(err))
			return err
		}
		lg.pipe.diag.Warn("argument encoding fell back to a string",
			zap.String("template", template), zap.Error(err))
	}

	now := lg.pipe.now()
	rec := &lfbase.SpanRecord{
		Name:  res.Message,
		Kind:  lfbase.KindLog,
		Start: now,
		End:   now,
	}
	if a, ok := activeFrom(ctx); ok {
		rec.TraceID = a.traceID
		rec.ParentID = a.spanID
		rec.SpanID = lg.pipe.idgen.NewSpanID(ctx, a.traceID)
	} else {
		rec.TraceID, rec.SpanID = lg.pipe.idgen.NewIDs(ctx)
	}
	rec.Attributes = assembleAttrs(recordParts{
		caller:   callerAttrs(2),
		template: template,
		message:  res.Message,
		kind:     lfbase.KindLog,
		level:    level,
		tags:     res.Tags,
		nullArgs: res.NullArgs,
		user:     res.Attrs,
	})
	lg.pipe.proc.OnEnd(rec)
	return nil
}

// recordParts is everything that feeds the reserved attribute section.
type recordParts struct {
	caller      []attribute.KeyValue
	template    string
	message     string
	kind        lfbase.SpanKind
	level       lfnum.Level // zero omits logfire.level
	tags        []string
	nullArgs    []string
	startParent string // decimal, shadow records only; empty omits
	user        []attribute.KeyValue
}

// assembleAttrs lays the reserved section out in a fixed order ahead
// of the user attributes, so identical calls produce byte-identical
// records.
func assembleAttrs(p recordParts) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(p.caller)+7+len(p.user))
	attrs = append(attrs, p.caller...)
	attrs = append(attrs,
		lfattr.MessageTemplate.String(p.template),
		lfattr.Message.String(p.message),
		lfattr.SpanType.String(string(p.kind)),
	)
	if p.level != 0 {
		attrs = append(attrs, lfattr.LogLevel.String(p.level.String()))
	}
	if len(p.tags) > 0 {
		attrs = append(attrs, lfattr.Tags.StringSlice(p.tags))
	}
	if len(p.nullArgs) > 0 {
		attrs = append(attrs, lfattr.NullArgs.StringSlice(p.nullArgs))
	}
	if p.startParent != "" {
		attrs = append(attrs, lfattr.StartParentID.String(p.startParent))
	}
	return append(attrs, p.user...)
}
