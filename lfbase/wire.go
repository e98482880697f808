package lfbase

import (
	"math"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// builder assembles wire JSON directly into a byte slice so that
// attribute keys come out in record order. A reflection-based encoder
// would either sort them or randomize them.
type builder struct {
	b []byte
}

var needsEscape [256]bool

func init() {
	for c := 0; c < 0x20; c++ {
		needsEscape[c] = true
	}
	needsEscape['"'] = true
	needsEscape['\\'] = true
}

// comma inserts a separator unless the previous byte opens a
// container or a key.
func (w *builder) comma() {
	n := len(w.b)
	if n == 0 {
		return
	}
	switch w.b[n-1] {
	case '[', '{', ':':
		return
	}
	w.b = append(w.b, ',')
}

func (w *builder) addKey(k string) {
	w.comma()
	w.addString(k)
	w.b = append(w.b, ':')
}

// addSafeString skips the escape scan. Callers use it only for values
// known to be clean, like hex-encoded ids.
func (w *builder) addSafeString(s string) {
	w.b = append(w.b, '"')
	w.b = append(w.b, s...)
	w.b = append(w.b, '"')
}

func (w *builder) addString(s string) {
	w.b = append(w.b, '"')
	clean := true
	for i := 0; i < len(s); i++ {
		if needsEscape[s[i]] {
			clean = false
			break
		}
	}
	if clean {
		w.b = append(w.b, s...)
	} else {
		w.escape(s)
	}
	w.b = append(w.b, '"')
}

const hexDigits = "0123456789abcdef"

func (w *builder) escape(s string) {
	j := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !needsEscape[c] {
			continue
		}
		w.b = append(w.b, s[j:i]...)
		switch c {
		case '"':
			w.b = append(w.b, '\\', '"')
		case '\\':
			w.b = append(w.b, '\\', '\\')
		case '\n':
			w.b = append(w.b, '\\', 'n')
		case '\r':
			w.b = append(w.b, '\\', 'r')
		case '\t':
			w.b = append(w.b, '\\', 't')
		default:
			w.b = append(w.b, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		}
		j = i + 1
	}
	w.b = append(w.b, s[j:]...)
}

func (w *builder) addInt64(v int64)     { w.b = strconv.AppendInt(w.b, v, 10) }
// addFloat64 renders finite values as JSON numbers. JSON has no
// literal for NaN or the infinities, so those ship as strings.
func (w *builder) addFloat64(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		w.addSafeString(strconv.FormatFloat(v, 'g', -1, 64))
		return
	}
	w.b = strconv.AppendFloat(w.b, v, 'f', -1, 64)
}
func (w *builder) addBool(v bool)       { w.b = strconv.AppendBool(w.b, v) }

func (w *builder) addContext(tid trace.TraceID, sid trace.SpanID) {
	w.b = append(w.b, '{')
	w.addKey("trace_id")
	w.addSafeString(tid.String())
	w.addKey("span_id")
	w.addSafeString(sid.String())
	w.addKey("is_remote")
	w.addBool(false)
	w.b = append(w.b, '}')
}

func (w *builder) addValue(v attribute.Value) {
	switch v.Type() {
	case attribute.BOOL:
		w.addBool(v.AsBool())
	case attribute.INT64:
		w.addInt64(v.AsInt64())
	case attribute.FLOAT64:
		w.addFloat64(v.AsFloat64())
	case attribute.STRING:
		w.addString(v.AsString())
	case attribute.STRINGSLICE:
		w.b = append(w.b, '[')
		for _, s := range v.AsStringSlice() {
			w.comma()
			w.addString(s)
		}
		w.b = append(w.b, ']')
	default:
		w.addString(v.Emit())
	}
}

func (w *builder) addAttributes(attrs []attribute.KeyValue) {
	w.b = append(w.b, '{')
	for _, kv := range attrs {
		w.addKey(string(kv.Key))
		w.addValue(kv.Value)
	}
	w.b = append(w.b, '}')
}

func (w *builder) addEvent(ev Event) {
	w.b = append(w.b, '{')
	w.addKey("name")
	w.addString(ev.Name)
	w.addKey("timestamp")
	w.addInt64(ev.Time.UnixNano())
	w.addKey("attributes")
	w.addAttributes(ev.Attributes)
	w.b = append(w.b, '}')
}

func (w *builder) addRecord(r *SpanRecord) {
	w.b = append(w.b, '{')
	w.addKey("name")
	w.addString(r.Name)
	w.addKey("context")
	w.addContext(r.TraceID, r.SpanID)
	w.addKey("parent")
	if r.HasParent() {
		w.addContext(r.TraceID, r.ParentID)
	} else {
		w.b = append(w.b, "null"...)
	}
	w.addKey("start_time")
	w.addInt64(r.Start.UnixNano())
	w.addKey("end_time")
	w.addInt64(r.End.UnixNano())
	w.addKey("attributes")
	w.addAttributes(r.Attributes)
	w.addKey("events")
	w.b = append(w.b, '[')
	for _, ev := range r.Events {
		w.comma()
		w.addEvent(ev)
	}
	w.b = append(w.b, ']', '}')
}

// MarshalJSON renders the wire shape the backend ingests.
func (r *SpanRecord) MarshalJSON() ([]byte, error) {
	w := builder{b: make([]byte, 0, 512)}
	w.addRecord(r)
	return w.b, nil
}

// EncodeBatch renders the POST body for the traces endpoint:
// {"spans":[...]}.
func EncodeBatch(batch []*SpanRecord) []byte {
	w := builder{b: make([]byte, 0, 256+512*len(batch))}
	w.b = append(w.b, `{"spans":[`...)
	for _, r := range batch {
		w.comma()
		w.addRecord(r)
	}
	w.b = append(w.b, ']', '}')
	return w.b
}
