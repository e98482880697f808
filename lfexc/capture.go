/*
Package lfexc serializes live errors into structured exception
attributes. Capture never panics and never fails: when it cannot
serialize something it degrades to an empty trace rather than mask the
error being propagated.
*/
package lfexc

import (
	"fmt"
	"reflect"

	"github.com/pydantic/logfire-go/lfattr"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

var json = sonic.Config{SortMapKeys: true}.Froze()

// OnInternalError receives errors that capture itself swallowed. It
// exists so that SDK diagnostics can observe them; it must not panic.
// Overridden during Configure.
var OnInternalError = func(error) {}

// CaptureError marks a failure inside capture itself. It is only ever
// handed to OnInternalError; the error being captured propagates
// unchanged.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return "exception capture: " + e.Err.Error() }
func (e *CaptureError) Unwrap() error { return e.Err }

func internalError(err error) {
	OnInternalError(&CaptureError{Err: err})
}

// FieldError is one structured field-validation failure. Errors that
// implement Validator get an exception.logfire.data attribute listing
// them in order.
type FieldError struct {
	Type  string `json:"type"`
	Loc   []any  `json:"loc"`
	Msg   string `json:"msg"`
	Input any    `json:"input"`
}

// Validator is implemented by errors describing structured
// field-validation failures.
type Validator interface {
	error
	ValidationErrors() []FieldError
}

type frameEntry struct {
	Filename string `json:"filename"`
	Lineno   int    `json:"lineno"`
	Name     string `json:"name"`
	Line     string `json:"line"`
	Locals   any    `json:"locals"` // always null, runtime values never leak
}

type stackEntry struct {
	ExcType     string       `json:"exc_type"`
	ExcValue    string       `json:"exc_value"`
	SyntaxError any          `json:"syntax_error"` // always null in Go
	IsCause     bool         `json:"is_cause"`
	Frames      []frameEntry `json:"frames"`
}

type exceptionTrace struct {
	Stacks []stackEntry `json:"stacks"`
}

// Capture serializes err into the attribute set of an exception event:
// exception.type, exception.message, exception.stacktrace,
// exception.logfire.trace, and exception.logfire.data when err carries
// validation failures.
func Capture(err error) (attrs []attribute.KeyValue) {
	defer func() {
		if r := recover(); r != nil {
			internalError(errors.Errorf("capture panicked: %v", r))
			attrs = minimalAttrs(err)
		}
	}()
	if err == nil {
		return nil
	}

	attrs = append(attrs,
		lfattr.ExceptionType.String(typeName(err)),
		lfattr.ExceptionMessage.String(err.Error()),
		lfattr.ExceptionStacktrace.String(fmt.Sprintf("%+v", err)),
	)

	var v Validator
	if errors.As(err, &v) {
		if body, jerr := json.Marshal(v.ValidationErrors()); jerr == nil {
			attrs = append(attrs, lfattr.ExceptionData.String(string(body)))
		} else {
			internalError(errors.Wrap(jerr, "cannot marshal validation errors"))
		}
	}

	trace := exceptionTrace{Stacks: walkChain(err)}
	body, jerr := json.Marshal(trace)
	if jerr != nil {
		internalError(errors.Wrap(jerr, "cannot marshal exception trace"))
		body = []byte(`{"stacks":[]}`)
	}
	attrs = append(attrs, lfattr.ExceptionTrace.String(string(body)))
	return attrs
}

// CapturePanic adapts a recovered panic value to the same attribute
// shape. Non-error values become a panic-typed entry.
func CapturePanic(v any) []attribute.KeyValue {
	if err, ok := v.(error); ok {
		return Capture(err)
	}
	return Capture(errors.Errorf("panic: %v", v))
}

func minimalAttrs(err error) []attribute.KeyValue {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return []attribute.KeyValue{
		lfattr.ExceptionType.String(typeName(err)),
		lfattr.ExceptionMessage.String(msg),
		lfattr.ExceptionTrace.String(`{"stacks":[]}`),
	}
}

// walkChain produces one stack entry per distinct error text in the
// cause chain, outer to inner. Wrapper layers that keep their cause's
// text (stack annotations) merge into the entry of the text they
// describe. Frames a stack shares with the entry above it appear only
// in that outer entry.
func walkChain(err error) []stackEntry {
	var stacks []stackEntry
	var prevFrames []frameEntry
	for cur := err; cur != nil; cur = unwrap(cur) {
		text := cur.Error()
		if len(stacks) > 0 && stacks[len(stacks)-1].ExcValue == text {
			// annotation layer: adopt its stack if the entry has none
			if len(stacks[len(stacks)-1].Frames) == 0 {
				if frames := framesOf(cur); frames != nil {
					frames = trimSharedSuffix(frames, prevFrames)
					stacks[len(stacks)-1].Frames = frames
					prevFrames = frames
				}
			}
			continue
		}
		frames := trimSharedSuffix(framesOf(cur), prevFrames)
		stacks = append(stacks, stackEntry{
			ExcType:  typeName(cur),
			ExcValue: text,
			IsCause:  len(stacks) > 0,
			Frames:   frames,
		})
		if len(frames) > 0 {
			prevFrames = frames
		}
	}
	return stacks
}

func unwrap(err error) error {
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return u.Unwrap()
	}
	if c, ok := err.(interface{ Cause() error }); ok {
		return c.Cause()
	}
	return nil
}

// trimSharedSuffix drops the tail frames already shown by the entry
// above: a cause captured on the same goroutine repeats its wrapper's
// callers.
func trimSharedSuffix(frames, outer []frameEntry) []frameEntry {
	i := len(frames) - 1
	j := len(outer) - 1
	for i >= 0 && j >= 0 && sameFrame(frames[i], outer[j]) {
		i--
		j--
	}
	return frames[:i+1]
}

func sameFrame(a, b frameEntry) bool {
	return a.Filename == b.Filename && a.Lineno == b.Lineno && a.Name == b.Name
}

func typeName(err error) string {
	if err == nil {
		return ""
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
