package lfattr

import (
	"math"
	"reflect"

	"github.com/muir/list"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Arg is one named argument to a span or log call.
type Arg struct {
	Name  string
	Value any
}

// A builds an Arg.
func A(name string, value any) Arg { return Arg{Name: name, Value: value} }

// Result is the encoder output. Attrs holds only user attributes, in
// call order; the record builder prepends the reserved section.
type Result struct {
	Message  string
	Attrs    []attribute.KeyValue
	NullArgs []string // names whose value was nil, call order
	Tags     []string // copied through untouched
}

// Encode renders the template against the named arguments and encodes
// every argument to its wire attribute. Encoding identical inputs
// yields identical results.
//
// A TemplateArgumentError (malformed template, placeholder with no
// argument) is fatal: the Result is unusable. An EncodingError is
// recovered: the Result is complete except that the offending argument
// was stored as its display string, and the caller should report the
// error through diagnostics.
func Encode(template string, spanName string, tags []string, args []Arg) (Result, error) {
	t, err := ParseTemplate(template)
	if err != nil {
		return Result{}, err
	}

	res := Result{Tags: list.Copy(tags)}
	var encodingErr error

	seen := make(map[string]struct{}, len(args))
	for _, arg := range args {
		if _, dup := seen[arg.Name]; dup {
			if encodingErr == nil {
				encodingErr = errors.WithStack(&EncodingError{
					Key: arg.Name,
					Err: errors.New("duplicate argument name"),
				})
			}
			continue
		}
		seen[arg.Name] = struct{}{}

		if IsReserved(arg.Name) {
			if encodingErr == nil {
				encodingErr = errors.WithStack(&EncodingError{
					Key: arg.Name,
					Err: errors.New("collides with a reserved attribute"),
				})
			}
			continue
		}

		kv, isNull, err := encodeArg(arg)
		switch {
		case isNull:
			res.NullArgs = append(res.NullArgs, arg.Name)
		case err != nil:
			if encodingErr == nil {
				encodingErr = err
			}
			res.Attrs = append(res.Attrs, attribute.String(arg.Name, display(arg.Value)))
		default:
			res.Attrs = append(res.Attrs, kv)
		}
	}

	res.Message, err = t.Render(func(name string) (string, bool) {
		for _, arg := range args {
			if arg.Name == name {
				return display(arg.Value), true
			}
		}
		if name == "span_name" && spanName != "" {
			return spanName, true
		}
		return "", false
	})
	if err != nil {
		return Result{}, err
	}
	return res, encodingErr
}

// encodeArg maps one argument to its attribute. Primitive kinds store
// directly; nil values are reported, not stored; everything else
// flattens to a tagged JSON sibling key.
func encodeArg(arg Arg) (kv attribute.KeyValue, isNull bool, err error) {
	if arg.Value == nil {
		return kv, true, nil
	}
	rv := reflect.ValueOf(arg.Value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			return kv, true, nil
		}
	}
	if _, wellKnown := flattenWellKnown(rv); !wellKnown {
		switch rv.Kind() {
		case reflect.Bool:
			return attribute.Bool(arg.Name, rv.Bool()), false, nil
		case reflect.String:
			return attribute.String(arg.Name, rv.String()), false, nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return attribute.Int64(arg.Name, rv.Int()), false, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			if rv.Uint() > math.MaxInt64 {
				return attribute.Float64(arg.Name, float64(rv.Uint())), false, nil
			}
			return attribute.Int64(arg.Name, int64(rv.Uint())), false, nil
		case reflect.Float32, reflect.Float64:
			return attribute.Float64(arg.Name, rv.Float()), false, nil
		}
	}
	body, err := FlattenJSON(arg.Value)
	if err != nil {
		return kv, false, errors.WithStack(&EncodingError{Key: arg.Name, Err: err})
	}
	return attribute.String(arg.Name+"__JSON", body), false, nil
}
