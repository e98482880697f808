package lfattr

import (
	"fmt"
	"reflect"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// json is the engine behind attribute flattening. Sorted map keys keep
// the output deterministic for identical inputs.
var json = sonic.Config{SortMapKeys: true}.Froze()

// Flattened values carry one of a closed set of datatype tags. The tag
// tells the backend how to decode data without runtime type
// introspection on the producing side.
const (
	datatypeSequence = "sequence"
	datatypeMapping  = "mapping"
	datatypeRecord   = "record"
	datatypeOpaque   = "opaque"
)

// taggedValue is the wire shape of a flattened non-primitive value.
// Field order matches the documented layout.
type taggedValue struct {
	Datatype string `json:"$__datatype__"`
	Data     any    `json:"data"`
	Cls      string `json:"cls,omitempty"`
}

// Containers nest; past this depth values degrade to display strings.
const maxFlattenDepth = 8

// FlattenJSON encodes a non-primitive value to its tagged JSON form,
// the body stored under a <name>__JSON key.
func FlattenJSON(v any) (string, error) {
	body, err := json.Marshal(flatten(reflect.ValueOf(v), 0))
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(body), nil
}

func flatten(rv reflect.Value, depth int) any {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	if tagged, ok := flattenWellKnown(rv); ok {
		return tagged
	}
	if depth > maxFlattenDepth {
		return taggedValue{Datatype: datatypeOpaque, Data: display(rv.Interface()), Cls: typeName(rv.Type())}
	}
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Slice, reflect.Array:
		data := make([]any, rv.Len())
		for i := range data {
			data[i] = flatten(rv.Index(i), depth+1)
		}
		return taggedValue{Datatype: datatypeSequence, Data: data, Cls: rv.Type().Name()}
	case reflect.Map:
		data := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			data[fmt.Sprint(iter.Key().Interface())] = flatten(iter.Value(), depth+1)
		}
		return taggedValue{Datatype: datatypeMapping, Data: data, Cls: rv.Type().Name()}
	case reflect.Struct:
		// Record data marshals natively so json struct tags are
		// honored and field order follows the declaration.
		return taggedValue{Datatype: datatypeRecord, Data: rv.Interface(), Cls: rv.Type().Name()}
	default:
		return taggedValue{Datatype: datatypeOpaque, Data: display(rv.Interface()), Cls: typeName(rv.Type())}
	}
}

// flattenWellKnown fixes the encoding of types whose native marshaling
// would be ambiguous or lossy on the receiving end.
func flattenWellKnown(rv reflect.Value) (taggedValue, bool) {
	if !rv.CanInterface() {
		return taggedValue{}, false
	}
	switch v := rv.Interface().(type) {
	case time.Time:
		return taggedValue{Datatype: datatypeOpaque, Data: v.Format(time.RFC3339Nano), Cls: "time.Time"}, true
	case time.Duration:
		return taggedValue{Datatype: datatypeOpaque, Data: v.String(), Cls: "time.Duration"}, true
	case []byte:
		return taggedValue{Datatype: datatypeOpaque, Data: string(v), Cls: "bytes"}, true
	case error:
		return taggedValue{Datatype: datatypeOpaque, Data: v.Error(), Cls: typeName(rv.Type())}, true
	}
	return taggedValue{}, false
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

// display is the value's human form, used in rendered messages and as
// the safe fallback when encoding fails.
func display(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case time.Duration:
		return v.String()
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
