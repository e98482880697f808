package lfexc

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// framesOf converts a recorded stack into frame entries in recorded
// order: the error site first, its callers after. Errors without a
// recorded stack yield nil.
func framesOf(err error) []frameEntry {
	st, ok := err.(stackTracer)
	if !ok {
		return nil
	}
	trace := st.StackTrace()
	if len(trace) == 0 {
		return nil
	}
	pcs := make([]uintptr, len(trace))
	for i, f := range trace {
		pcs[i] = uintptr(f)
	}
	var entries []frameEntry
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		if fr.File != "" || fr.Function != "" {
			entries = append(entries, frameEntry{
				Filename: fr.File,
				Lineno:   fr.Line,
				Name:     shortFuncName(fr.Function),
				Line:     sourceLine(fr.File, fr.Line),
			})
		}
		if !more {
			break
		}
	}
	return entries
}

func shortFuncName(full string) string {
	if i := strings.LastIndex(full, "/"); i >= 0 {
		full = full[i+1:]
	}
	if i := strings.LastIndex(full, "."); i >= 0 {
		full = full[i+1:]
	}
	return full
}

// sourceCache holds the split contents of source files seen in stack
// traces. Reading the file is best effort: binaries deployed away from
// their sources simply get empty line text.
var sourceCache struct {
	sync.Mutex
	files map[string][]string
}

const sourceCacheMaxFiles = 128

func sourceLine(file string, line int) string {
	if file == "" || line <= 0 {
		return ""
	}
	sourceCache.Lock()
	defer sourceCache.Unlock()
	if sourceCache.files == nil {
		sourceCache.files = make(map[string][]string)
	}
	lines, cached := sourceCache.files[file]
	if !cached {
		if len(sourceCache.files) >= sourceCacheMaxFiles {
			return ""
		}
		data, err := os.ReadFile(file)
		if err != nil {
			sourceCache.files[file] = nil
			return ""
		}
		lines = strings.Split(string(data), "\n")
		sourceCache.files[file] = lines
	}
	if line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}
