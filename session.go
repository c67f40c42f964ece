package pgmodel

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"strings"
	"time"

	"github.com/dmitrymomot/pgmodel/pkg/logger"
)

// entityState is the session's bookkeeping for one tracked entity.
// flushed holds the column values as of the last flush (or load) inside the
// current transaction; committed holds the values as of the last commit, nil
// when the entity was never committed.
type entityState struct {
	schema    *Schema
	pending   bool
	flushed   map[string]any
	committed map[string]any
}

// Session is a unit-of-work over a Driver. It tracks added entities,
// flushes inserts and dirty updates inside a transaction, and exposes
// commit/rollback. Reads issued through a session's finders see the open
// transaction's uncommitted writes.
//
// A Session is not safe for concurrent use; open one per request or worker.
type Session struct {
	driver Driver
	tx     Tx
	log    *slog.Logger

	states map[any]*entityState
	order  []any
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger routes statement logging to the given logger. Statements log
// at debug level with their SQL and arguments.
func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// NewSession wraps a driver into a fresh unit of work.
func NewSession(driver Driver, opts ...SessionOption) *Session {
	s := &Session{
		driver: driver,
		log:    slog.Default(),
		states: make(map[any]*entityState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool { return s.tx != nil }

// Add stages an entity for insertion on the next flush. Adding an already
// tracked entity is a no-op.
func (s *Session) Add(schema *Schema, doc any) error {
	if _, err := schema.structValue(doc); err != nil {
		return err
	}
	if _, ok := s.states[doc]; ok {
		return nil
	}
	s.states[doc] = &entityState{schema: schema, pending: true}
	s.order = append(s.order, doc)
	return nil
}

// Expunge detaches an entity from the session: it will no longer be flushed
// or change-tracked. The struct itself is left untouched.
func (s *Session) Expunge(doc any) {
	if _, ok := s.states[doc]; !ok {
		return
	}
	delete(s.states, doc)
	for i, d := range s.order {
		if d == doc {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Flush writes pending inserts and dirty updates to the database inside the
// session's transaction, opening one if needed. With arguments it flushes
// only those entities; without, everything tracked, in the order entities
// were first seen. Flushed rows are invisible to other sessions until
// Commit.
func (s *Session) Flush(ctx context.Context, docs ...any) error {
	targets := docs
	if len(targets) == 0 {
		targets = s.order
	}

	for _, doc := range targets {
		st, ok := s.states[doc]
		if !ok {
			continue
		}
		entity, err := st.schema.structValue(doc)
		if err != nil {
			return err
		}
		if st.pending {
			if err := s.insert(ctx, st, entity); err != nil {
				return err
			}
			continue
		}
		if err := s.update(ctx, st, entity); err != nil {
			return err
		}
	}
	return nil
}

// Commit flushes everything tracked and commits the transaction. Without an
// open transaction (and nothing to flush) it is a no-op.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	if s.tx == nil {
		return nil
	}
	if err := s.tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgmodel: commit: %w", err)
	}
	s.tx = nil
	for _, st := range s.states {
		st.committed = maps.Clone(st.flushed)
	}
	return nil
}

// Rollback aborts the open transaction and rewinds tracked state: entities
// flushed but never committed return to untracked with a zeroed primary key,
// committed entities rewind their snapshots to the committed values.
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx != nil {
		if err := s.tx.Rollback(ctx); err != nil {
			return fmt.Errorf("pgmodel: rollback: %w", err)
		}
		s.tx = nil
	}
	for doc, st := range s.states {
		if st.committed == nil {
			if st.schema.pk != nil {
				if entity, err := st.schema.structValue(doc); err == nil {
					entity.FieldByIndex(st.schema.pk.index).SetZero()
				}
			}
			s.Expunge(doc)
			continue
		}
		st.flushed = maps.Clone(st.committed)
		st.pending = false
	}
	return nil
}

// Delete removes the entity's row and detaches it. A never-flushed entity is
// just detached.
func (s *Session) Delete(ctx context.Context, schema *Schema, doc any) error {
	entity, err := schema.structValue(doc)
	if err != nil {
		return err
	}
	if schema.isNew(entity) {
		s.Expunge(doc)
		return nil
	}
	if schema.pk == nil {
		return ErrNoPrimaryKey
	}
	if err := s.begin(ctx); err != nil {
		return err
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", qi(schema.Table), qi(schema.pk.Name))
	if _, err := s.exec(ctx, sql, schema.pkValue(entity)); err != nil {
		return fmt.Errorf("pgmodel: delete %s: %w", schema.Table, err)
	}
	s.Expunge(doc)
	return nil
}

// track registers an entity loaded from the database, seeding both
// snapshots from its current values.
func (s *Session) track(schema *Schema, doc any, entity reflect.Value) {
	snap := schema.snapshot(entity)
	if st, ok := s.states[doc]; ok {
		st.pending = false
		st.flushed = snap
		st.committed = maps.Clone(snap)
		return
	}
	s.states[doc] = &entityState{
		schema:    schema,
		flushed:   snap,
		committed: maps.Clone(snap),
	}
	s.order = append(s.order, doc)
}

// state returns the tracking record for doc, nil when untracked.
func (s *Session) state(doc any) *entityState { return s.states[doc] }

func (s *Session) begin(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.driver.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgmodel: begin: %w", err)
	}
	s.tx = tx
	return nil
}

func (s *Session) querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.driver
}

func (s *Session) exec(ctx context.Context, sql string, args ...any) (int64, error) {
	start := time.Now()
	n, err := s.querier().Exec(ctx, sql, args...)
	s.log.DebugContext(ctx, "pgmodel exec",
		logger.SQL(sql), logger.Args(args), logger.Duration(time.Since(start)), logger.Error(err))
	return n, err
}

func (s *Session) query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rows, err := s.querier().Query(ctx, sql, args...)
	s.log.DebugContext(ctx, "pgmodel query",
		logger.SQL(sql), logger.Args(args), logger.Duration(time.Since(start)), logger.Error(err))
	return rows, err
}

func (s *Session) insert(ctx context.Context, st *entityState, entity reflect.Value) error {
	schema := st.schema

	for _, col := range schema.Columns {
		if col.Default != nil && entity.FieldByIndex(col.index).IsZero() {
			if err := schema.setValue(entity, col, col.Default()); err != nil {
				return err
			}
		}
	}

	var (
		names        []string
		placeholders []string
		args         []any
	)
	for _, col := range schema.Columns {
		if col.PrimaryKey && entity.FieldByIndex(col.index).IsZero() {
			continue // database assigns it
		}
		names = append(names, qi(col.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, schema.value(entity, col))
	}

	if err := s.begin(ctx); err != nil {
		return err
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qi(schema.Table), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if schema.pk != nil {
		sql += fmt.Sprintf(" RETURNING %s", qi(schema.pk.Name))
		rows, err := s.query(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("pgmodel: insert %s: %w", schema.Table, err)
		}
		defer rows.Close()
		if rows.Next() {
			vals, err := rows.Values()
			if err != nil {
				return fmt.Errorf("pgmodel: insert %s: %w", schema.Table, err)
			}
			if len(vals) > 0 {
				if err := schema.setValue(entity, schema.pk, vals[0]); err != nil {
					return err
				}
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("pgmodel: insert %s: %w", schema.Table, err)
		}
	} else if _, err := s.exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("pgmodel: insert %s: %w", schema.Table, err)
	}

	st.pending = false
	st.flushed = schema.snapshot(entity)
	return nil
}

func (s *Session) update(ctx context.Context, st *entityState, entity reflect.Value) error {
	schema := st.schema
	if schema.pk == nil {
		return ErrNoPrimaryKey
	}

	dirty := make([]*Column, 0)
	for _, col := range schema.Columns {
		if col.PrimaryKey {
			continue
		}
		if !equalValue(st.flushed[col.Name], schema.value(entity, col)) {
			dirty = append(dirty, col)
		}
	}
	if len(dirty) == 0 {
		return nil
	}

	for _, col := range schema.Columns {
		if col.OnUpdate == nil || col.PrimaryKey {
			continue
		}
		if err := schema.setValue(entity, col, col.OnUpdate()); err != nil {
			return err
		}
		if !containsColumn(dirty, col) {
			dirty = append(dirty, col)
		}
	}

	var (
		sets []string
		args []any
	)
	for _, col := range dirty {
		sets = append(sets, fmt.Sprintf("%s = $%d", qi(col.Name), len(args)+1))
		args = append(args, schema.value(entity, col))
	}
	args = append(args, schema.pkValue(entity))

	if err := s.begin(ctx); err != nil {
		return err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		qi(schema.Table), strings.Join(sets, ", "), qi(schema.pk.Name), len(args))
	if _, err := s.exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("pgmodel: update %s: %w", schema.Table, err)
	}

	st.flushed = schema.snapshot(entity)
	return nil
}

// findPK looks up the primary key of the first row where column = value.
// Unique checks and slug deduplication use it; it runs inside the open
// transaction so freshly flushed rows are visible.
func (s *Session) findPK(ctx context.Context, schema *Schema, col *Column, value any) (any, bool, error) {
	if schema.pk == nil {
		return nil, false, ErrNoPrimaryKey
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 LIMIT 1",
		qi(schema.pk.Name), qi(schema.Table), qi(col.Name))
	rows, err := s.query(ctx, sql, value)
	if err != nil {
		return nil, false, fmt.Errorf("pgmodel: lookup %s.%s: %w", schema.Table, col.Name, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, false, rows.Err()
	}
	vals, err := rows.Values()
	if err != nil {
		return nil, false, err
	}
	return vals[0], true, rows.Err()
}

func containsColumn(cols []*Column, col *Column) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

// equalValue compares snapshot values; times compare by instant so the
// monotonic clock reading never flags a false change.
func equalValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
	}
	return reflect.DeepEqual(a, b)
}
