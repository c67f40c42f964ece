package query

import (
	"errors"
	"strings"
)

// Op is a filter operator.
type Op string

const (
	// Comparison and membership operators.
	OpEq Op = "eq"
	OpNe Op = "ne"
	OpGe Op = "ge"
	OpGt Op = "gt"
	OpLt Op = "lt"
	OpLe Op = "le"
	OpIn Op = "in"

	// Pattern-match operators; the i-prefixed forms match case-insensitively.
	OpContains    Op = "contains"
	OpIContains   Op = "icontains"
	OpStartsWith  Op = "startswith"
	OpIStartsWith Op = "istartswith"
	OpEndsWith    Op = "endswith"
	OpIEndsWith   Op = "iendswith"

	// Relationship operators. OpHas membership-tests the primary keys of the
	// secondary relationship derived from the base name; OpIsEmpty tests
	// whether the relationship has any rows at all.
	OpHas     Op = "has"
	OpIsEmpty Op = "is_empty"
)

const (
	// Separator splits field-path segments and the operator suffix.
	Separator = "__"
	// NotPrefix negates the operator it prefixes.
	NotPrefix = "not_"
)

// operators maps grammar suffixes to operators. A trailing segment not in
// this table is part of the field path.
var operators = map[string]Op{
	"ne":          OpNe,
	"ge":          OpGe,
	"gt":          OpGt,
	"lt":          OpLt,
	"le":          OpLe,
	"in":          OpIn,
	"contains":    OpContains,
	"icontains":   OpIContains,
	"startswith":  OpStartsWith,
	"istartswith": OpIStartsWith,
	"endswith":    OpEndsWith,
	"iendswith":   OpIEndsWith,
	"has":         OpHas,
	"is_empty":    OpIsEmpty,
}

// ErrEmptyKey reports a criterion key with no field name.
var ErrEmptyKey = errors.New("query: empty criterion key")

// Criterion is a single structured filter: a field path (one segment for a
// plain column, more when traversing into a related or aliased class), an
// operator, an operand, and a negation flag.
type Criterion struct {
	Path  []string
	Op    Op
	Value any
	Not   bool
}

// Field returns the final path segment, the column the criterion targets.
func (c Criterion) Field() string {
	if len(c.Path) == 0 {
		return ""
	}
	return c.Path[len(c.Path)-1]
}

// ParseKey parses the key grammar into a Criterion. The last "__"-separated
// segment is taken as the operator when it names one (after stripping an
// optional "not_" prefix); otherwise the whole key is a field path and the
// operator is equality. A single-segment key is always an equality test,
// even when the segment collides with an operator name.
func ParseKey(key string, value any) (Criterion, error) {
	if key == "" {
		return Criterion{}, ErrEmptyKey
	}

	segments := strings.Split(key, Separator)
	crit := Criterion{Path: segments, Op: OpEq, Value: value}
	if len(segments) < 2 {
		return crit, nil
	}

	last := segments[len(segments)-1]
	negated := strings.HasPrefix(last, NotPrefix)
	opKey := strings.TrimPrefix(last, NotPrefix)

	if op, ok := operators[opKey]; ok {
		crit.Path = segments[:len(segments)-1]
		crit.Op = op
		crit.Not = negated
	}
	return crit, nil
}
