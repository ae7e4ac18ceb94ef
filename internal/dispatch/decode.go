package dispatch

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// ErrNotObject rejects payloads that are not JSON objects.
var ErrNotObject = errors.New("dispatch: payload is not an object")

// Validator is implemented by payloads with constraints beyond their shape.
type Validator interface {
	Validate() error
}

// Requirer lists json keys that must be present and non-null.
type Requirer interface {
	RequiredFields() []string
}

// integralNumber keeps JSON numbers with a fraction out of integer fields,
// which mapstructure would otherwise truncate.
func integralNumber(from reflect.Kind, to reflect.Kind, data any) (any, error) {
	if from != reflect.Float64 && from != reflect.Float32 {
		return data, nil
	}
	switch to {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	f := reflect.ValueOf(data).Float()
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("dispatch: %v is not an integer", data)
	}
	return data, nil
}

// Decode narrows an untyped payload to T. Keys are matched by json tag and
// primitive types are not coerced, so a number where a string is expected fails.
func Decode[T any](data any) (T, error) {
	var out T
	obj, ok := data.(map[string]any)
	if !ok {
		return out, ErrNotObject
	}
	if r, ok := any(&out).(Requirer); ok {
		for _, field := range r.RequiredFields() {
			if v, ok := obj[field]; !ok || v == nil {
				return out, fmt.Errorf("dispatch: missing required field %q", field)
			}
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &out,
		TagName:    "json",
		DecodeHook: mapstructure.DecodeHookFuncKind(integralNumber),
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(obj); err != nil {
		return out, err
	}

	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, err
		}
	}
	return out, nil
}
