package lfbase_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pydantic/logfire-go/lfbase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func tid(n byte) trace.TraceID {
	var t trace.TraceID
	t[15] = n
	return t
}

func sid(n byte) trace.SpanID {
	var s trace.SpanID
	s[7] = n
	return s
}

func TestRecordWire(t *testing.T) {
	rec := &lfbase.SpanRecord{
		TraceID:  tid(1),
		SpanID:   sid(2),
		ParentID: sid(1),
		Name:     "GET /items",
		Kind:     lfbase.KindSpan,
		Start:    time.Unix(2, 0).UTC(),
		End:      time.Unix(3, 0).UTC(),
		Attributes: []attribute.KeyValue{
			attribute.String("logfire.span_type", "span"),
			attribute.String("logfire.msg", "GET /items"),
			attribute.Int64("count", 2),
			attribute.Bool("ok", true),
			attribute.Float64("ratio", 0.5),
			attribute.StringSlice("logfire.tags", []string{"web", "db"}),
		},
	}

	body, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "GET /items",
		"context": {
			"trace_id": "00000000000000000000000000000001",
			"span_id": "0000000000000002",
			"is_remote": false
		},
		"parent": {
			"trace_id": "00000000000000000000000000000001",
			"span_id": "0000000000000001",
			"is_remote": false
		},
		"start_time": 2000000000,
		"end_time": 3000000000,
		"attributes": {
			"logfire.span_type": "span",
			"logfire.msg": "GET /items",
			"count": 2,
			"ok": true,
			"ratio": 0.5,
			"logfire.tags": ["web", "db"]
		},
		"events": []
	}`, string(body))
}

func TestRecordWireRootHasNullParent(t *testing.T) {
	rec := &lfbase.SpanRecord{
		TraceID: tid(1),
		SpanID:  sid(1),
		Name:    "root",
		Kind:    lfbase.KindLog,
		Start:   time.Unix(5, 0),
		End:     time.Unix(5, 0),
	}
	body, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"parent":null`)
	assert.Contains(t, string(body), `"attributes":{}`)
}

func TestRecordWireAttributeOrder(t *testing.T) {
	rec := &lfbase.SpanRecord{
		TraceID: tid(1),
		SpanID:  sid(1),
		Name:    "ordered",
		Start:   time.Unix(1, 0),
		End:     time.Unix(1, 0),
		Attributes: []attribute.KeyValue{
			attribute.String("zebra", "z"),
			attribute.String("apple", "a"),
			attribute.String("mango", "m"),
		},
	}
	body, err := json.Marshal(rec)
	require.NoError(t, err)
	s := string(body)
	z := strings.Index(s, `"zebra"`)
	a := strings.Index(s, `"apple"`)
	m := strings.Index(s, `"mango"`)
	assert.True(t, z < a && a < m, "assignment order preserved: %s", s)
}

func TestRecordWireEscaping(t *testing.T) {
	rec := &lfbase.SpanRecord{
		TraceID: tid(1),
		SpanID:  sid(1),
		Name:    "say \"hi\"\n\tdone\x00",
		Start:   time.Unix(1, 0),
		End:     time.Unix(1, 0),
		Attributes: []attribute.KeyValue{
			attribute.String("path", `C:\temp`),
		},
	}
	body, err := json.Marshal(rec)
	require.NoError(t, err)
	require.True(t, json.Valid(body), "body: %s", body)

	var decoded struct {
		Name  string `json:"name"`
		Attrs struct {
			Path string `json:"path"`
		} `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, rec.Name, decoded.Name)
	assert.Equal(t, `C:\temp`, decoded.Attrs.Path)
}

func TestRecordWireNonFiniteFloats(t *testing.T) {
	rec := &lfbase.SpanRecord{
		TraceID: tid(1),
		SpanID:  sid(1),
		Name:    "ratios",
		Start:   time.Unix(1, 0),
		End:     time.Unix(1, 0),
		Attributes: []attribute.KeyValue{
			attribute.Float64("nan", math.NaN()),
			attribute.Float64("up", math.Inf(1)),
			attribute.Float64("down", math.Inf(-1)),
			attribute.Float64("ok", 0.25),
		},
	}
	body, err := json.Marshal(rec)
	require.NoError(t, err)
	require.True(t, json.Valid(body), "body: %s", body)

	var decoded struct {
		Attrs map[string]any `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "NaN", decoded.Attrs["nan"])
	assert.Equal(t, "+Inf", decoded.Attrs["up"])
	assert.Equal(t, "-Inf", decoded.Attrs["down"])
	assert.Equal(t, 0.25, decoded.Attrs["ok"])
}

func TestRecordWireEvents(t *testing.T) {
	rec := &lfbase.SpanRecord{
		TraceID: tid(1),
		SpanID:  sid(1),
		Name:    "failing",
		Start:   time.Unix(1, 0),
		End:     time.Unix(2, 0),
		Events: []lfbase.Event{{
			Name: "exception",
			Time: time.Unix(2, 0),
			Attributes: []attribute.KeyValue{
				attribute.String("exception.type", "fundamental"),
				attribute.String("exception.message", "boom"),
			},
		}},
	}
	body, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded struct {
		Events []struct {
			Name      string `json:"name"`
			Timestamp int64  `json:"timestamp"`
			Attrs     map[string]any
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Len(t, decoded.Events, 1)
	assert.Equal(t, "exception", decoded.Events[0].Name)
	assert.Equal(t, time.Unix(2, 0).UnixNano(), decoded.Events[0].Timestamp)
}

func TestEncodeBatch(t *testing.T) {
	recs := []*lfbase.SpanRecord{
		{TraceID: tid(1), SpanID: sid(1), Name: "a", Start: time.Unix(1, 0), End: time.Unix(1, 0)},
		{TraceID: tid(1), SpanID: sid(2), Name: "b", Start: time.Unix(2, 0), End: time.Unix(2, 0)},
	}
	body := lfbase.EncodeBatch(recs)
	require.True(t, json.Valid(body), "body: %s", body)

	var decoded struct {
		Spans []json.RawMessage `json:"spans"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Len(t, decoded.Spans, 2)
}

func TestEncodeBatchEmpty(t *testing.T) {
	assert.Equal(t, `{"spans":[]}`, string(lfbase.EncodeBatch(nil)))
}

func TestRecordClone(t *testing.T) {
	rec := &lfbase.SpanRecord{
		TraceID: tid(1),
		SpanID:  sid(1),
		Name:    "orig",
		Attributes: []attribute.KeyValue{
			attribute.String("k", "v"),
		},
		Events: []lfbase.Event{{
			Name:       "exception",
			Attributes: []attribute.KeyValue{attribute.String("e", "1")},
		}},
	}
	dup := rec.Clone()

	rec.Attributes[0] = attribute.String("k", "changed")
	rec.Events[0].Attributes[0] = attribute.String("e", "changed")

	assert.Equal(t, "v", dup.Attributes[0].Value.AsString())
	assert.Equal(t, "1", dup.Events[0].Attributes[0].Value.AsString())
}
