package validator

import (
	"fmt"
	"regexp"
)

// defaultEmailPattern is permissive about the local part (quoted strings
// allowed) and requires either a dotted domain or a bracketed IPv4 literal.
var defaultEmailPattern = regexp.MustCompile(
	`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))` +
		`@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])` +
		`|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

// Email validates that a string looks like an email address.
//
// A non-string value always fails. Nil and the empty string pass: Email only
// judges the shape of a value that is present, so callers that also need
// presence combine it with Required.
type Email struct {
	// Pattern overrides the default email regular expression when set.
	Pattern *regexp.Regexp
}

func (e Email) Validate(value any) (any, []string) {
	if value == nil {
		return value, nil
	}
	pattern := e.Pattern
	if pattern == nil {
		pattern = defaultEmailPattern
	}
	s, ok := value.(string)
	if !ok || (s != "" && !pattern.MatchString(s)) {
		return value, []string{fmt.Sprintf("%v is not a valid email", value)}
	}
	return value, nil
}

// MinLen requires a string of at least Min bytes. Non-string values fail.
type MinLen struct {
	Min int
}

func (m MinLen) Validate(value any) (any, []string) {
	s, ok := value.(string)
	if !ok {
		return value, []string{"value must be a string"}
	}
	if len(s) < m.Min {
		return value, []string{fmt.Sprintf("value must be at least %d characters long", m.Min)}
	}
	return value, nil
}

// MaxLen requires a string of at most Max bytes. Non-string values fail.
type MaxLen struct {
	Max int
}

func (m MaxLen) Validate(value any) (any, []string) {
	s, ok := value.(string)
	if !ok {
		return value, []string{"value must be a string"}
	}
	if len(s) > m.Max {
		return value, []string{fmt.Sprintf("value must be at most %d characters long", m.Max)}
	}
	return value, nil
}

// Matches requires a string matching the given pattern. Nil and the empty
// string pass, mirroring Email.
type Matches struct {
	Pattern *regexp.Regexp
	// Message overrides the default error text when set.
	Message string
}

func (m Matches) Validate(value any) (any, []string) {
	if value == nil {
		return value, nil
	}
	s, ok := value.(string)
	if !ok || (s != "" && !m.Pattern.MatchString(s)) {
		msg := m.Message
		if msg == "" {
			msg = fmt.Sprintf("%v does not match the required format", value)
		}
		return value, []string{msg}
	}
	return value, nil
}
