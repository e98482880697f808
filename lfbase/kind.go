package lfbase

// SpanKind says which of the three record shapes a SpanRecord is. The
// same value travels on the wire as the logfire.span_type attribute.
type SpanKind string

const (
	// KindSpan is a real span: End >= Start, emitted when the scope ends.
	KindSpan SpanKind = "span"
	// KindStartSpan is the shadow record emitted when a span opens. Its
	// parent is the real span and its Start equals its End.
	KindStartSpan SpanKind = "start_span"
	// KindLog is a point-in-time record, Start equals End.
	KindLog SpanKind = "log"
)
