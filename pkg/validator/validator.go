package validator

import (
	"fmt"
	"reflect"
)

// Validator checks a single value and may rewrite it on the way through.
// It returns the (possibly transformed) value together with any error
// messages. An empty error list means the value is valid.
type Validator interface {
	Validate(value any) (any, []string)
}

// Func adapts a closure to the Validator interface.
type Func func(value any) (any, []string)

func (f Func) Validate(value any) (any, []string) {
	return f(value)
}

// Chain runs validators in order, threading the value through each one and
// concatenating every error list. All validators run even after one fails.
func Chain(value any, validators []Validator) (any, []string) {
	var errs []string
	for _, v := range validators {
		var more []string
		value, more = v.Validate(value)
		errs = append(errs, more...)
	}
	return value, errs
}

// Required rejects nil and/or empty values. Null and empty are distinct
// failure reasons: a nil value reports "cannot be null", a present-but-empty
// value reports "cannot be empty". The null check wins when both apply.
type Required struct {
	AllowNull  bool
	AllowEmpty bool
}

func (r Required) Validate(value any) (any, []string) {
	if isNull(value) {
		if r.AllowNull {
			return value, nil
		}
		return value, []string{"value cannot be null"}
	}
	if !r.AllowEmpty && isEmpty(value) {
		return value, []string{"value cannot be empty"}
	}
	return value, nil
}

// isNull reports whether the value is nil, including typed nil pointers,
// which is how nullable columns surface unset values.
func isNull(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return rv.IsNil()
	}
	return false
}

// isEmpty reports whether a non-nil value is its type's zero/empty form.
func isEmpty(value any) bool {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.Len() == 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	}
	return false
}

// OneOf accepts only values contained in Allowed.
type OneOf struct {
	Allowed []any
}

func (o OneOf) Validate(value any) (any, []string) {
	for _, allowed := range o.Allowed {
		if value == allowed {
			return value, nil
		}
	}
	return value, []string{fmt.Sprintf("%v is not an allowed value", value)}
}
