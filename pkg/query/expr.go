package query

import (
	"fmt"
	"sort"
)

// M is a flat criteria map in the key grammar, combined with AND:
//
//	finder.Find(query.M{"age__gt": 18, "name__icontains": "one"})
type M map[string]any

// Criteria parses the map into criteria ordered by key, so generated SQL is
// deterministic regardless of map iteration order.
func (m M) Criteria() ([]Criterion, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	criteria := make([]Criterion, 0, len(keys))
	for _, k := range keys {
		crit, err := ParseKey(k, m[k])
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, crit)
	}
	return criteria, nil
}

// Expr is a node in a boolean criteria tree: a single Cond or an And/Or
// Group of nested expressions and M maps.
type Expr interface {
	expr()
}

// Cond is a single-criterion expression.
type Cond struct {
	Criterion
}

func (Cond) expr() {}

// Logic selects how a Group combines its parts.
type Logic int

const (
	LogicAnd Logic = iota
	LogicOr
)

// Group combines parts with AND or OR. Parts hold M maps and nested Exprs.
type Group struct {
	Logic Logic
	Parts []any
}

func (Group) expr() {}

// And combines criteria maps and expressions with AND.
func And(parts ...any) Group {
	return Group{Logic: LogicAnd, Parts: parts}
}

// Or combines criteria maps and expressions with OR.
func Or(parts ...any) Group {
	return Group{Logic: LogicOr, Parts: parts}
}

// F builds a single-criterion expression from one grammar key. It exists so
// the same field can be repeated inside one combinator:
//
//	query.Or(query.F("name", "Foo"), query.F("name", "Bar"))
//
// Panics on an empty key; keys are compile-time literals in practice.
func F(key string, value any) Cond {
	crit, err := ParseKey(key, value)
	if err != nil {
		panic(fmt.Sprintf("query.F: %v", err))
	}
	return Cond{Criterion: crit}
}
