package lfexc_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pydantic/logfire-go/lfexc"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsString()
	}
	return m
}

type capturedTrace struct {
	Stacks []struct {
		ExcType     string `json:"exc_type"`
		ExcValue    string `json:"exc_value"`
		SyntaxError any    `json:"syntax_error"`
		IsCause     bool   `json:"is_cause"`
		Frames      []struct {
			Filename string `json:"filename"`
			Lineno   int    `json:"lineno"`
			Name     string `json:"name"`
			Line     string `json:"line"`
			Locals   any    `json:"locals"`
		} `json:"frames"`
	} `json:"stacks"`
}

func decodeTrace(t *testing.T, attrs map[string]string) capturedTrace {
	t.Helper()
	raw, ok := attrs["exception.logfire.trace"]
	require.True(t, ok, "exception.logfire.trace present")
	var trace capturedTrace
	require.NoError(t, json.Unmarshal([]byte(raw), &trace))
	return trace
}

func TestCaptureSimple(t *testing.T) {
	attrs := attrMap(lfexc.Capture(errors.New("boom")))

	assert.Equal(t, "fundamental", attrs["exception.type"])
	assert.Equal(t, "boom", attrs["exception.message"])
	assert.Contains(t, attrs["exception.stacktrace"], "boom")
	assert.Contains(t, attrs["exception.stacktrace"], "capture_test.go")

	trace := decodeTrace(t, attrs)
	require.Len(t, trace.Stacks, 1)
	stack := trace.Stacks[0]
	assert.Equal(t, "boom", stack.ExcValue)
	assert.False(t, stack.IsCause)
	assert.Nil(t, stack.SyntaxError)
	require.NotEmpty(t, stack.Frames)
	top := stack.Frames[0]
	assert.True(t, strings.HasSuffix(top.Filename, "capture_test.go"), top.Filename)
	assert.Equal(t, "TestCaptureSimple", top.Name)
	assert.Greater(t, top.Lineno, 0)
	assert.Contains(t, top.Line, "errors.New")
	assert.Nil(t, top.Locals)
}

func TestCaptureWrappedChain(t *testing.T) {
	inner := errors.New("inner")
	outer := errors.Wrap(inner, "ctx")
	attrs := attrMap(lfexc.Capture(outer))

	assert.Equal(t, "ctx: inner", attrs["exception.message"])

	trace := decodeTrace(t, attrs)
	require.Len(t, trace.Stacks, 2)

	assert.Equal(t, "ctx: inner", trace.Stacks[0].ExcValue)
	assert.False(t, trace.Stacks[0].IsCause)
	require.NotEmpty(t, trace.Stacks[0].Frames)

	assert.Equal(t, "inner", trace.Stacks[1].ExcValue)
	assert.True(t, trace.Stacks[1].IsCause)
	// frames shared with the wrapping stack appear only once, so the
	// cause keeps just the line where it was created
	require.Len(t, trace.Stacks[1].Frames, 1)
	assert.Equal(t, "TestCaptureWrappedChain", trace.Stacks[1].Frames[0].Name)
	assert.NotEqual(t, trace.Stacks[0].Frames[0].Lineno, trace.Stacks[1].Frames[0].Lineno)
}

func TestCaptureNoStack(t *testing.T) {
	attrs := attrMap(lfexc.Capture(assert.AnError))
	trace := decodeTrace(t, attrs)
	require.Len(t, trace.Stacks, 1)
	assert.Empty(t, trace.Stacks[0].Frames, "errors without a recorded stack still get an entry")
}

type validationFailure struct {
	fields []lfexc.FieldError
}

func (v *validationFailure) Error() string { return "2 validation errors" }
func (v *validationFailure) ValidationErrors() []lfexc.FieldError {
	return v.fields
}

func TestCaptureValidationData(t *testing.T) {
	err := &validationFailure{fields: []lfexc.FieldError{
		{Type: "int_parsing", Loc: []any{"a"}, Msg: "not an integer", Input: "haha"},
		{Type: "missing", Loc: []any{"b", 0.0}, Msg: "field required", Input: nil},
	}}
	attrs := attrMap(lfexc.Capture(err))

	assert.Equal(t, "validationFailure", attrs["exception.type"])
	assert.JSONEq(t,
		`[{"type":"int_parsing","loc":["a"],"msg":"not an integer","input":"haha"},
		  {"type":"missing","loc":["b",0],"msg":"field required","input":null}]`,
		attrs["exception.logfire.data"])
}

func TestCaptureValidationDataThroughChain(t *testing.T) {
	err := errors.Wrap(&validationFailure{fields: []lfexc.FieldError{
		{Type: "missing", Loc: []any{"x"}, Msg: "field required"},
	}}, "handling request")
	attrs := attrMap(lfexc.Capture(err))
	require.Contains(t, attrs, "exception.logfire.data")
}

func TestCaptureNil(t *testing.T) {
	assert.Nil(t, lfexc.Capture(nil))
}

func TestCapturePanicValue(t *testing.T) {
	attrs := attrMap(lfexc.CapturePanic("went sideways"))
	assert.Equal(t, "panic: went sideways", attrs["exception.message"])

	attrs = attrMap(lfexc.CapturePanic(errors.New("typed")))
	assert.Equal(t, "typed", attrs["exception.message"])
}

func TestCaptureNeverFails(t *testing.T) {
	var seen []error
	prev := lfexc.OnInternalError
	lfexc.OnInternalError = func(err error) { seen = append(seen, err) }
	defer func() { lfexc.OnInternalError = prev }()

	err := &validationFailure{fields: []lfexc.FieldError{
		{Type: "bad", Loc: []any{"x"}, Msg: "unserializable", Input: make(chan int)},
	}}
	attrs := attrMap(lfexc.Capture(err))

	assert.NotContains(t, attrs, "exception.logfire.data")
	assert.Contains(t, attrs, "exception.logfire.trace")
	require.NotEmpty(t, seen)
	var ce *lfexc.CaptureError
	assert.True(t, errors.As(seen[0], &ce))
}
