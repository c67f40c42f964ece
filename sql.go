package pgmodel

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dmitrymomot/pgmodel/pkg/query"
)

// qi quotes an identifier for Postgres.
func qi(name string) string { return `"` + name + `"` }

// qc qualifies a column with a table or alias reference.
func qc(alias, column string) string { return qi(alias) + "." + qi(column) }

// sqlBuilder accumulates positional arguments and hands out placeholders.
type sqlBuilder struct {
	args []any
	subq int
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// subAlias generates a fresh alias for a correlated subquery.
func (b *sqlBuilder) subAlias() string {
	b.subq++
	return fmt.Sprintf("sq%d", b.subq)
}

// renderer resolves criteria paths against schema metadata and declared join
// aliases, and renders them to SQL predicates.
type renderer struct {
	b       *sqlBuilder
	aliases map[string]*finderJoin
}

// part renders one criteria argument: a query.M map (AND of its criteria), a
// query.Cond, or a query.Group combinator.
func (r *renderer) part(part any, schema *Schema, alias string) (string, error) {
	switch p := part.(type) {
	case query.M:
		criteria, err := p.Criteria()
		if err != nil {
			return "", err
		}
		clauses := make([]string, 0, len(criteria))
		for _, c := range criteria {
			sql, err := r.criterion(c, schema, alias)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, sql)
		}
		return joinClauses(clauses, " AND "), nil
	case query.Cond:
		return r.criterion(p.Criterion, schema, alias)
	case query.Criterion:
		return r.criterion(p, schema, alias)
	case query.Group:
		sep := " AND "
		if p.Logic == query.LogicOr {
			sep = " OR "
		}
		clauses := make([]string, 0, len(p.Parts))
		for _, nested := range p.Parts {
			sql, err := r.part(nested, schema, alias)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, sql)
		}
		return joinClauses(clauses, sep), nil
	default:
		return "", fmt.Errorf("pgmodel: unsupported criteria argument %T", part)
	}
}

func joinClauses(clauses []string, sep string) string {
	switch len(clauses) {
	case 0:
		return "TRUE"
	case 1:
		return clauses[0]
	}
	return "(" + strings.Join(clauses, sep) + ")"
}

// criterion renders one structured criterion against the given schema, with
// alias as the SQL reference of its table.
//
// Resolution order: relationship operators bind to the current schema's
// relations; a leading segment naming a declared join alias crosses into the
// joined class; a leading segment naming a relation renders a correlated
// EXISTS; a single remaining segment is a column.
func (r *renderer) criterion(c query.Criterion, schema *Schema, alias string) (string, error) {
	if len(c.Path) == 0 {
		return "", query.ErrEmptyKey
	}

	if len(c.Path) == 1 {
		switch c.Op {
		case query.OpIsEmpty:
			return r.isEmpty(c, schema, alias)
		case query.OpHas:
			return r.has(c, schema, alias)
		}
		col, ok := schema.Column(c.Path[0])
		if !ok {
			return "", fmt.Errorf("%w: %q on %s", ErrUnknownColumn, c.Path[0], schema.Table)
		}
		return r.predicate(qc(alias, col.Name), c.Op, c.Value, c.Not)
	}

	head, rest := c.Path[0], c.Path[1:]
	if j, ok := r.aliases[head]; ok {
		nested := c
		nested.Path = rest
		return r.criterion(nested, j.rel.Target, j.alias)
	}

	rel, ok := schema.Relation(head)
	if !ok {
		return "", fmt.Errorf("%w: %q on %s", ErrUnknownRelationship, head, schema.Table)
	}
	inner := c
	inner.Path = rest
	inner.Not = false
	return r.exists(rel, alias, c.Not, func(subAlias string) (string, error) {
		return r.criterion(inner, rel.Target, subAlias)
	})
}

// exists renders a correlated (NOT) EXISTS over a relation, with innerFn
// producing the additional predicate on the related table's alias. A nil
// innerFn tests bare existence.
func (r *renderer) exists(rel *Relation, outer string, negate bool, innerFn func(string) (string, error)) (string, error) {
	sub := r.b.subAlias()

	var from, corr string
	switch rel.Kind {
	case HasOne:
		if rel.Target.pk == nil {
			return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, rel.Target.Table)
		}
		from = fmt.Sprintf("%s AS %s", qi(rel.Target.Table), qi(sub))
		corr = fmt.Sprintf("%s = %s", qc(sub, rel.Target.pk.Name), qc(outer, rel.LocalColumn))
	case HasMany:
		if rel.owner.pk == nil {
			return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, rel.owner.Table)
		}
		from = fmt.Sprintf("%s AS %s", qi(rel.Target.Table), qi(sub))
		corr = fmt.Sprintf("%s = %s", qc(sub, rel.ForeignColumn), qc(outer, rel.owner.pk.Name))
	case ManyToMany:
		link := r.b.subAlias()
		if rel.Target.pk == nil {
			return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, rel.Target.Table)
		}
		if rel.owner.pk == nil {
			return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, rel.owner.Table)
		}
		from = fmt.Sprintf("%s AS %s JOIN %s AS %s ON %s = %s",
			qi(rel.JoinTable), qi(link), qi(rel.Target.Table), qi(sub),
			qc(sub, rel.Target.pk.Name), qc(link, rel.JoinForeign))
		corr = fmt.Sprintf("%s = %s", qc(link, rel.JoinLocal), qc(outer, rel.owner.pk.Name))
	default:
		return "", fmt.Errorf("pgmodel: unsupported relation kind %d", rel.Kind)
	}

	where := corr
	if innerFn != nil {
		inner, err := innerFn(sub)
		if err != nil {
			return "", err
		}
		where += " AND " + inner
	}

	kw := "EXISTS"
	if negate {
		kw = "NOT EXISTS"
	}
	return fmt.Sprintf("%s (SELECT 1 FROM %s WHERE %s)", kw, from, where), nil
}

// isEmpty renders the relationship emptiness test: value true asserts no
// related rows, false asserts at least one; the not_ prefix inverts.
func (r *renderer) isEmpty(c query.Criterion, schema *Schema, alias string) (string, error) {
	rel, ok := schema.Relation(c.Path[0])
	if !ok {
		return "", fmt.Errorf("%w: %q on %s", ErrUnknownRelationship, c.Path[0], schema.Table)
	}
	empty, ok := c.Value.(bool)
	if !ok {
		return "", fmt.Errorf("pgmodel: is_empty on %q expects a bool, got %T", rel.Name, c.Value)
	}
	return r.exists(rel, alias, empty != c.Not, nil)
}

// has membership-tests the primary keys of the secondary relationship named
// "<base>_has".
func (r *renderer) has(c query.Criterion, schema *Schema, alias string) (string, error) {
	name := c.Path[0] + HasSuffix
	rel, ok := schema.Relation(name)
	if !ok {
		return "", fmt.Errorf("%w: %q on %s", ErrUnknownRelationship, name, schema.Table)
	}
	if rel.Target.pk == nil {
		return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, rel.Target.Table)
	}
	return r.exists(rel, alias, c.Not, func(subAlias string) (string, error) {
		return r.predicate(qc(subAlias, rel.Target.pk.Name), query.OpIn, listify(c.Value), false)
	})
}

// HasSuffix names the secondary relationship the "has" operator resolves
// against: "teams__has" membership-tests the relation "teams_has".
const HasSuffix = "_has"

// predicate renders a single-column comparison. Negation is null-inclusive:
// NOT (col >= x) also matches rows where col is NULL, unlike bare SQL
// three-valued logic.
func (r *renderer) predicate(colRef string, op query.Op, value any, not bool) (string, error) {
	if op == query.OpEq && value == nil {
		if not {
			return colRef + " IS NOT NULL", nil
		}
		return colRef + " IS NULL", nil
	}
	if op == query.OpNe && value == nil {
		if not {
			return colRef + " IS NULL", nil
		}
		return colRef + " IS NOT NULL", nil
	}

	var positive string
	switch op {
	case query.OpEq:
		positive = fmt.Sprintf("%s = %s", colRef, r.b.arg(value))
	case query.OpNe:
		positive = fmt.Sprintf("%s <> %s", colRef, r.b.arg(value))
	case query.OpGe:
		positive = fmt.Sprintf("%s >= %s", colRef, r.b.arg(value))
	case query.OpGt:
		positive = fmt.Sprintf("%s > %s", colRef, r.b.arg(value))
	case query.OpLt:
		positive = fmt.Sprintf("%s < %s", colRef, r.b.arg(value))
	case query.OpLe:
		positive = fmt.Sprintf("%s <= %s", colRef, r.b.arg(value))
	case query.OpIn:
		items := listify(value)
		if len(items) == 0 {
			positive = "FALSE"
			break
		}
		placeholders := make([]string, len(items))
		for i, item := range items {
			placeholders[i] = r.b.arg(item)
		}
		positive = fmt.Sprintf("%s IN (%s)", colRef, strings.Join(placeholders, ", "))
	case query.OpContains:
		positive = fmt.Sprintf("%s LIKE %s", colRef, r.b.arg("%"+toPattern(value)+"%"))
	case query.OpIContains:
		positive = fmt.Sprintf("%s ILIKE %s", colRef, r.b.arg("%"+toPattern(value)+"%"))
	case query.OpStartsWith:
		positive = fmt.Sprintf("%s LIKE %s", colRef, r.b.arg(toPattern(value)+"%"))
	case query.OpIStartsWith:
		positive = fmt.Sprintf("%s ILIKE %s", colRef, r.b.arg(toPattern(value)+"%"))
	case query.OpEndsWith:
		positive = fmt.Sprintf("%s LIKE %s", colRef, r.b.arg("%"+toPattern(value)))
	case query.OpIEndsWith:
		positive = fmt.Sprintf("%s ILIKE %s", colRef, r.b.arg("%"+toPattern(value)))
	default:
		return "", fmt.Errorf("pgmodel: unsupported operator %q", op)
	}

	if not {
		return fmt.Sprintf("(%s IS NULL OR NOT (%s))", colRef, positive), nil
	}
	return positive, nil
}

func toPattern(value any) string {
	return fmt.Sprintf("%v", value)
}

// listify flattens a slice or array value into []any; scalars become a
// single-element list.
func listify(value any) []any {
	if value == nil {
		return nil
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return []any{value}
	}
	items := make([]any, v.Len())
	for i := range items {
		items[i] = v.Index(i).Interface()
	}
	return items
}
