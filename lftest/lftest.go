/*
Package lftest provides the pieces a test needs to assert on emitted
telemetry without a network: an in-memory Recorder processor, an id
generator that counts up from 1, and a fake-clock time source that
steps one second per record. Wire them together with Config and every
test run produces byte-identical records.
*/
package lftest

import (
	"github.com/pydantic/logfire-go"
	"github.com/pydantic/logfire-go/lfbase"
)

// testingT is the slice of *testing.T this package needs.
type testingT interface {
	Log(...interface{})
	Name() string
	Cleanup(func())
}

// Config returns a deterministic Config routed into a fresh Recorder:
// incremental ids, one-second timestamps, the recorder as the only
// processor, and nop diagnostics. The recorder shuts down in t's
// Cleanup.
func Config(t testingT) (logfire.Config, *Recorder) {
	rec := New(t)
	return logfire.Config{
		Processors:  []lfbase.Processor{rec},
		IDGenerator: NewIDGenerator(),
		Now:         NewTimeGenerator().Now,
	}, rec
}
