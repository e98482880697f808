package logfire

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pydantic/logfire-go/lfattr"

	"go.opentelemetry.io/otel/attribute"
)

// callerAttrs captures the instrumentation site skip frames above the
// caller of callerAttrs. File is reduced to its base name and the
// function to its bare name so records stay stable across checkouts.
func callerAttrs(skip int) []attribute.KeyValue {
	pc := make([]uintptr, 1)
	if runtime.Callers(skip+2, pc) == 0 {
		return nil
	}
	frame, _ := runtime.CallersFrames(pc).Next()
	if frame.File == "" {
		return nil
	}
	fn := frame.Function
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.LastIndexByte(fn, '.'); i >= 0 {
		fn = fn[i+1:]
	}
	return []attribute.KeyValue{
		lfattr.CodeFilepath.String(filepath.Base(frame.File)),
		lfattr.CodeLineno.Int64(int64(frame.Line)),
		lfattr.CodeFunction.String(fn),
	}
}
