// Package validator provides small composable value validators used by
// pgmodel's validated columns.
//
// A Validator maps a raw value to a (possibly transformed) value plus a list
// of human-readable error strings:
//
//	value, errs := v.Validate(raw)
//
// Validators are pure with respect to external state: they never touch the
// database or the session, only their own configuration. A column runs its
// validators in declaration order, threading the value through each one and
// concatenating every error list; validation accumulates, it never
// short-circuits.
//
// # Built-in validators
//
//   - Required rejects nil and/or empty values, with the two conditions
//     controlled independently by AllowNull and AllowEmpty.
//   - Email matches a configurable email pattern. The empty string passes;
//     combine with Required when a value must also be present.
//   - MinLen and MaxLen bound string length.
//   - Matches checks an arbitrary regular expression.
//   - OneOf tests membership in a fixed set of allowed values.
//
// Custom validators are ordinary implementations of the Validator interface,
// or closures wrapped with Func:
//
//	trim := validator.Func(func(v any) (any, []string) {
//	    s, ok := v.(string)
//	    if !ok {
//	        return v, nil
//	    }
//	    return strings.TrimSpace(s), nil
//	})
package validator
