package pgmodel

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/dmitrymomot/pgmodel/pkg/query"
)

// finderJoin is one CJoin declaration: a named, optionally outer join
// through a relation, hanging off the base table or a previous alias.
type finderJoin struct {
	alias       string
	rel         *Relation
	parentAlias string
	outer       bool
}

// Finder builds and executes one query against a schema. It accumulates
// join declarations and criteria, then renders them on All/First/Count/
// Update/Values. Builder errors are deferred to execution, so calls chain:
//
//	users.Query().
//	    CJoin("company", "company").
//	    Find(query.M{"company__name__icontains": "acme"}).
//	    All(ctx)
//
// A Finder is single-use and not safe for concurrent use.
type Finder[T any] struct {
	schema  *Schema
	session *Session

	joins   []*finderJoin
	aliases map[string]*finderJoin
	parts   []any
	order   []string
	limit   int
	offset  int
	err     error
}

func newFinder[T any](schema *Schema, session *Session) *Finder[T] {
	return &Finder[T]{
		schema:  schema,
		session: session,
		aliases: make(map[string]*finderJoin),
	}
}

// CJoin declares a join under the given alias. A "-" prefix on the alias
// makes it a LEFT JOIN. The relationship is a relation name on the base
// schema, or "prevAlias__relation" to nest under an earlier alias; nested
// aliases must be declared after their base. Criteria and projections
// reference the joined class as "alias__field".
func (f *Finder[T]) CJoin(alias, relationship string) *Finder[T] {
	if f.err != nil {
		return f
	}

	outer := strings.HasPrefix(alias, "-")
	name := strings.TrimPrefix(alias, "-")
	if name == "" {
		f.err = fmt.Errorf("pgmodel: empty join alias")
		return f
	}
	if _, dup := f.aliases[name]; dup {
		f.err = fmt.Errorf("pgmodel: duplicate join alias %q", name)
		return f
	}

	base := f.schema
	parentAlias := f.schema.Table
	relName := relationship
	if head, rest, nested := strings.Cut(relationship, query.Separator); nested {
		j, ok := f.aliases[head]
		if !ok {
			f.err = fmt.Errorf("%w: %q", ErrUnknownAlias, head)
			return f
		}
		base = j.rel.Target
		parentAlias = j.alias
		relName = rest
	}

	rel, ok := base.Relation(relName)
	if !ok {
		f.err = fmt.Errorf("%w: %q on %s", ErrUnknownRelationship, relName, base.Table)
		return f
	}

	j := &finderJoin{alias: name, rel: rel, parentAlias: parentAlias, outer: outer}
	f.joins = append(f.joins, j)
	f.aliases[name] = j
	return f
}

// Find adds criteria, ANDed with everything added before. Arguments are
// query.M maps, query.Cond values and query.Group combinators.
func (f *Finder[T]) Find(args ...any) *Finder[T] {
	f.parts = append(f.parts, args...)
	return f
}

// OrderBy sets the sort keys: "field" or "alias__field", with a "-" prefix
// for descending.
func (f *Finder[T]) OrderBy(keys ...string) *Finder[T] {
	f.order = append(f.order, keys...)
	return f
}

// Limit caps the number of returned rows; zero means no cap.
func (f *Finder[T]) Limit(n int) *Finder[T] {
	f.limit = n
	return f
}

// Offset skips the first n rows.
func (f *Finder[T]) Offset(n int) *Finder[T] {
	f.offset = n
	return f
}

// All runs the query and returns the matching entities, tracked by the
// session for change history. Inner joins to to-many relations can repeat
// base rows, as they do in SQL.
func (f *Finder[T]) All(ctx context.Context) ([]*T, error) {
	refs := make([]string, len(f.schema.Columns))
	for i, col := range f.schema.Columns {
		refs[i] = qc(f.schema.Table, col.Name)
	}

	sql, args, err := f.buildSelect(strings.Join(refs, ", "))
	if err != nil {
		return nil, err
	}
	rows, err := f.session.query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgmodel: select %s: %w", f.schema.Table, err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		if len(vals) != len(f.schema.Columns) {
			return nil, fmt.Errorf("pgmodel: select %s: expected %d columns, got %d",
				f.schema.Table, len(f.schema.Columns), len(vals))
		}
		doc := new(T)
		entity := reflect.ValueOf(doc).Elem()
		for i, col := range f.schema.Columns {
			if err := f.schema.setValue(entity, col, vals[i]); err != nil {
				return nil, err
			}
		}
		f.session.track(f.schema, doc, entity)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgmodel: select %s: %w", f.schema.Table, err)
	}
	return out, nil
}

// First returns the first matching entity, or nil without error when
// nothing matches.
func (f *Finder[T]) First(ctx context.Context) (*T, error) {
	f.limit = 1
	docs, err := f.All(ctx)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Count returns the number of matching rows, duplicates from joins
// included.
func (f *Finder[T]) Count(ctx context.Context) (int64, error) {
	sql, args, err := f.buildSelect("COUNT(*)")
	if err != nil {
		return 0, err
	}
	rows, err := f.session.query(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("pgmodel: count %s: %w", f.schema.Table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, rows.Err()
	}
	vals, err := rows.Values()
	if err != nil {
		return 0, err
	}
	n, err := toInt64(vals[0])
	if err != nil {
		return 0, fmt.Errorf("pgmodel: count %s: %w", f.schema.Table, err)
	}
	return n, rows.Err()
}

// Update runs a targeted UPDATE of the base table's matching rows and
// returns the number affected. Joins are not supported; tracked entities'
// snapshots are not refreshed, so reload rows you keep using.
func (f *Finder[T]) Update(ctx context.Context, changes map[string]any) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if len(f.joins) > 0 {
		return 0, ErrJoinedUpdate
	}
	if len(changes) == 0 {
		return 0, nil
	}

	names := make([]string, 0, len(changes))
	for name := range changes {
		if _, ok := f.schema.Column(name); !ok {
			return 0, fmt.Errorf("%w: %q on %s", ErrUnknownColumn, name, f.schema.Table)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	b := &sqlBuilder{}
	sets := make([]string, len(names))
	for i, name := range names {
		sets[i] = fmt.Sprintf("%s = %s", qi(name), b.arg(changes[name]))
	}

	where, err := f.buildWhere(b)
	if err != nil {
		return 0, err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s", qi(f.schema.Table), strings.Join(sets, ", "))
	if where != "" {
		sql += " WHERE " + where
	}

	affected, err := f.session.exec(ctx, sql, b.args...)
	if err != nil {
		return 0, fmt.Errorf("pgmodel: update %s: %w", f.schema.Table, err)
	}
	return affected, nil
}

// Values projects the given keys ("field" or "alias__field") instead of
// whole entities, one map per row keyed by the requested keys.
func (f *Finder[T]) Values(ctx context.Context, keys ...string) ([]map[string]any, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("pgmodel: values requires at least one key")
	}
	refs := make([]string, len(keys))
	for i, key := range keys {
		ref, err := f.resolveRef(key)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}

	sql, args, err := f.buildSelect(strings.Join(refs, ", "))
	if err != nil {
		return nil, err
	}
	rows, err := f.session.query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgmodel: values %s: %w", f.schema.Table, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(keys))
		for i, key := range keys {
			row[key] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// resolveRef resolves a projection or sort key to a qualified column
// reference.
func (f *Finder[T]) resolveRef(key string) (string, error) {
	head, rest, nested := strings.Cut(key, query.Separator)
	if !nested {
		col, ok := f.schema.Column(head)
		if !ok {
			return "", fmt.Errorf("%w: %q on %s", ErrUnknownColumn, head, f.schema.Table)
		}
		return qc(f.schema.Table, col.Name), nil
	}
	j, ok := f.aliases[head]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlias, head)
	}
	col, ok := j.rel.Target.Column(rest)
	if !ok {
		return "", fmt.Errorf("%w: %q on %s", ErrUnknownColumn, rest, j.rel.Target.Table)
	}
	return qc(j.alias, col.Name), nil
}

func (f *Finder[T]) buildWhere(b *sqlBuilder) (string, error) {
	if len(f.parts) == 0 {
		return "", nil
	}
	r := &renderer{b: b, aliases: f.aliases}
	clauses := make([]string, 0, len(f.parts))
	for _, part := range f.parts {
		sql, err := r.part(part, f.schema, f.schema.Table)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, sql)
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return strings.Join(clauses, " AND "), nil
}

func (f *Finder[T]) buildFrom() (string, error) {
	from := qi(f.schema.Table)
	for _, j := range f.joins {
		kw := "JOIN"
		if j.outer {
			kw = "LEFT JOIN"
		}
		rel := j.rel
		switch rel.Kind {
		case HasOne:
			if rel.Target.pk == nil {
				return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, rel.Target.Table)
			}
			from += fmt.Sprintf(" %s %s AS %s ON %s = %s",
				kw, qi(rel.Target.Table), qi(j.alias),
				qc(j.alias, rel.Target.pk.Name), qc(j.parentAlias, rel.LocalColumn))
		case HasMany:
			if rel.owner.pk == nil {
				return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, rel.owner.Table)
			}
			from += fmt.Sprintf(" %s %s AS %s ON %s = %s",
				kw, qi(rel.Target.Table), qi(j.alias),
				qc(j.alias, rel.ForeignColumn), qc(j.parentAlias, rel.owner.pk.Name))
		case ManyToMany:
			if rel.owner.pk == nil {
				return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, rel.owner.Table)
			}
			if rel.Target.pk == nil {
				return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, rel.Target.Table)
			}
			link := j.alias + "_link"
			from += fmt.Sprintf(" %s %s AS %s ON %s = %s %s %s AS %s ON %s = %s",
				kw, qi(rel.JoinTable), qi(link),
				qc(link, rel.JoinLocal), qc(j.parentAlias, rel.owner.pk.Name),
				kw, qi(rel.Target.Table), qi(j.alias),
				qc(j.alias, rel.Target.pk.Name), qc(link, rel.JoinForeign))
		}
	}
	return from, nil
}

func (f *Finder[T]) buildSelect(selectList string) (string, []any, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	from, err := f.buildFrom()
	if err != nil {
		return "", nil, err
	}

	b := &sqlBuilder{}
	where, err := f.buildWhere(b)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", selectList, from)
	if where != "" {
		sql += " WHERE " + where
	}

	if len(f.order) > 0 {
		keys := make([]string, len(f.order))
		for i, key := range f.order {
			dir := " ASC"
			if strings.HasPrefix(key, "-") {
				dir = " DESC"
				key = key[1:]
			}
			ref, err := f.resolveRef(key)
			if err != nil {
				return "", nil, err
			}
			keys[i] = ref + dir
		}
		sql += " ORDER BY " + strings.Join(keys, ", ")
	}
	if f.limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", f.limit)
	}
	if f.offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", f.offset)
	}
	return sql, b.args, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
