package pgmodel

import (
	"context"
	"fmt"
	"reflect"

	"github.com/dmitrymomot/pgmodel/pkg/query"
	"github.com/dmitrymomot/pgmodel/pkg/validator"
)

// Model binds a schema to a session and orchestrates the entity lifecycle:
// validation with aggregated field errors, saving through the unit of work,
// deletion, change history and dynamic queries.
type Model[T any] struct {
	schema  *Schema
	session *Session
}

// NewModel builds a model over an existing schema and session.
func NewModel[T any](schema *Schema, session *Session) *Model[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t != schema.Type {
		panic(fmt.Sprintf("pgmodel: NewModel[%s] given schema of %s", t.Name(), schema.Type.Name()))
	}
	return &Model[T]{schema: schema, session: session}
}

// Schema returns the model's schema.
func (m *Model[T]) Schema() *Schema { return m.schema }

// Session returns the model's session.
func (m *Model[T]) Session() *Session { return m.session }

// Query starts an empty finder.
func (m *Model[T]) Query() *Finder[T] { return newFinder[T](m.schema, m.session) }

// Find starts a finder with initial criteria.
func (m *Model[T]) Find(args ...any) *Finder[T] { return m.Query().Find(args...) }

// Lifecycle hooks are optional interfaces on the entity type. BeforeValidate
// runs before column validation (after slug generation); CustomValidation
// returns extra field errors merged into the result; BeforeSave/AfterSave
// bracket a successful save; AfterDelete runs after deletion.
type (
	BeforeValidator interface{ BeforeValidate(fields []string) }
	CustomValidator interface {
		CustomValidation(fields []string) map[string][]string
	}
	BeforeSaver  interface{ BeforeSave() }
	AfterSaver   interface{ AfterSave() }
	AfterDeleter interface{ AfterDelete() }
)

// Validate runs slug generation, the BeforeValidate hook, per-column
// validation and the CustomValidation hook. With fields given, only those
// columns are validated. All failures are collected; a non-nil return is
// either a *ValidationError or an infrastructure error from a uniqueness
// lookup.
//
// Validators may transform values; transformed values are written back to
// the struct even when validation fails overall.
func (m *Model[T]) Validate(ctx context.Context, doc *T, fields ...string) error {
	entity, err := m.schema.structValue(doc)
	if err != nil {
		return err
	}

	if m.schema.slug != nil {
		if err := m.generateSlug(ctx, doc, entity); err != nil {
			return err
		}
	}

	if h, ok := any(doc).(BeforeValidator); ok {
		h.BeforeValidate(fields)
	}

	cols := m.schema.Columns
	if len(fields) > 0 {
		cols = make([]*Column, 0, len(fields))
		for _, name := range fields {
			col, ok := m.schema.Column(name)
			if !ok {
				return fmt.Errorf("%w: %q on %s", ErrUnknownColumn, name, m.schema.Table)
			}
			cols = append(cols, col)
		}
	}

	verr := &ValidationError{Entity: m.schema.Type.Name()}
	for _, col := range cols {
		msgs, err := m.validateColumn(ctx, doc, entity, col)
		if err != nil {
			return err
		}
		verr.Add(col.Name, msgs...)
	}

	if h, ok := any(doc).(CustomValidator); ok {
		for field, msgs := range h.CustomValidation(fields) {
			verr.Add(field, msgs...)
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// validateColumn checks one column and returns its messages. The checks
// accumulate rather than short-circuit, and the (possibly transformed)
// value is always written back.
func (m *Model[T]) validateColumn(ctx context.Context, doc *T, entity reflect.Value, col *Column) ([]string, error) {
	value := m.schema.value(entity, col)

	// A missing FK can be derived from a populated related object.
	if value == nil && col.NotNull {
		if derived, ok := m.deriveForeignKey(entity, col); ok {
			value = derived
		}
	}

	var msgs []string
	value, msgs = validator.Chain(value, col.Validators)

	if value == nil && col.NotNull && col.Default == nil && !col.PrimaryKey {
		msgs = append(msgs, "cannot be null")
	}

	if col.MaxLength > 0 {
		if s, ok := value.(string); ok && len([]rune(s)) > col.MaxLength {
			msgs = append(msgs, fmt.Sprintf("cannot be longer than %d characters", col.MaxLength))
		}
	}

	if col.Unique && col.CheckUnique && value != nil {
		hist, err := m.HistoryChange(doc, col.Name)
		if err != nil {
			return nil, err
		}
		if m.schema.isNew(entity) || hist.WasChanged {
			pk, found, err := m.session.findPK(ctx, m.schema, col, value)
			if err != nil {
				return nil, err
			}
			if found && !equalValue(pk, m.schema.pkValue(entity)) {
				msgs = append(msgs, fmt.Sprintf("value %v already exists", value))
			}
		}
	}

	if err := m.schema.setValue(entity, col, value); err != nil {
		msgs = append(msgs, err.Error())
	}
	return msgs, nil
}

// deriveForeignKey reads the primary key of the related object populated on
// the relation whose local column this is.
func (m *Model[T]) deriveForeignKey(entity reflect.Value, col *Column) (any, bool) {
	for _, rel := range m.schema.relations {
		if rel.Kind != HasOne || rel.LocalColumn != col.Name || rel.fieldIndex == nil {
			continue
		}
		f := entity.FieldByIndex(rel.fieldIndex)
		if f.Kind() == reflect.Pointer {
			if f.IsNil() {
				continue
			}
			f = f.Elem()
		}
		if rel.Target.pk == nil || f.Type() != rel.Target.Type {
			continue
		}
		if f.FieldByIndex(rel.Target.pk.index).IsZero() {
			continue
		}
		return rel.Target.value(f, rel.Target.pk), true
	}
	return nil, false
}

type saveConfig struct {
	flush          bool
	commit         bool
	fields         []string
	validateFields []string
}

// SaveOption adjusts how Save persists an entity.
type SaveOption func(*saveConfig)

// Flush writes the entity inside the open transaction without committing,
// so it is visible to this session's finders but not to others.
func Flush() SaveOption { return func(c *saveConfig) { c.flush = true } }

// Commit flushes everything tracked and commits the transaction.
func Commit() SaveOption { return func(c *saveConfig) { c.commit = true } }

// Fields restricts the save to a targeted UPDATE of the named columns. The
// entity must already be persisted.
func Fields(fields ...string) SaveOption {
	return func(c *saveConfig) { c.fields = fields }
}

// ValidateFields restricts validation to the named columns, independently of
// which columns are saved.
func ValidateFields(fields ...string) SaveOption {
	return func(c *saveConfig) { c.validateFields = fields }
}

// Save validates the entity and stages or writes it. Without options the
// entity is only staged on the session; Flush and Commit control when SQL
// runs. With Fields, a targeted UPDATE of just those columns is issued
// instead of full unit-of-work tracking.
func (m *Model[T]) Save(ctx context.Context, doc *T, opts ...SaveOption) error {
	var cfg saveConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	entity, err := m.schema.structValue(doc)
	if err != nil {
		return err
	}

	validateFields := cfg.validateFields
	if validateFields == nil {
		validateFields = cfg.fields
	}
	if err := m.Validate(ctx, doc, validateFields...); err != nil {
		return err
	}

	if h, ok := any(doc).(BeforeSaver); ok {
		h.BeforeSave()
	}

	if len(cfg.fields) > 0 {
		if err := m.saveFields(ctx, doc, entity, cfg.fields); err != nil {
			return err
		}
	} else if err := m.session.Add(m.schema, doc); err != nil {
		return err
	}

	switch {
	case cfg.commit:
		if err := m.session.Commit(ctx); err != nil {
			return err
		}
	case cfg.flush:
		if err := m.session.Flush(ctx, doc); err != nil {
			return err
		}
	}

	if h, ok := any(doc).(AfterSaver); ok {
		h.AfterSave()
	}
	return nil
}

// saveFields issues a targeted UPDATE of the named columns only.
func (m *Model[T]) saveFields(ctx context.Context, doc *T, entity reflect.Value, fields []string) error {
	if m.schema.isNew(entity) {
		return ErrFieldsOnNewEntity
	}
	if m.schema.pk == nil {
		return ErrNoPrimaryKey
	}

	changes := make(map[string]any, len(fields))
	for _, name := range fields {
		col, ok := m.schema.Column(name)
		if !ok {
			return fmt.Errorf("%w: %q on %s", ErrUnknownColumn, name, m.schema.Table)
		}
		changes[name] = m.schema.value(entity, col)
	}

	if _, err := m.Query().
		Find(query.M{m.schema.pk.Name: m.schema.pkValue(entity)}).
		Update(ctx, changes); err != nil {
		return err
	}

	// Keep history consistent for the written columns.
	if st := m.session.state(any(doc)); st != nil && st.flushed != nil {
		for name, value := range changes {
			st.flushed[name] = value
		}
	}
	return nil
}

// Delete removes the entity's row, optionally committing, and runs the
// AfterDelete hook.
func (m *Model[T]) Delete(ctx context.Context, doc *T, commit bool) error {
	if err := m.session.Delete(ctx, m.schema, doc); err != nil {
		return err
	}
	if commit {
		if err := m.session.Commit(ctx); err != nil {
			return err
		}
	}
	if h, ok := any(doc).(AfterDeleter); ok {
		h.AfterDelete()
	}
	return nil
}

// History describes how one column changed since the entity was last
// flushed or loaded.
type History struct {
	WasChanged bool
	Previous   any
	Current    any
}

// HistoryChange compares the column's current value against the session's
// last-flushed snapshot. Entities never flushed report no change.
func (m *Model[T]) HistoryChange(doc *T, field string) (History, error) {
	col, ok := m.schema.Column(field)
	if !ok {
		return History{}, fmt.Errorf("%w: %q on %s", ErrUnknownColumn, field, m.schema.Table)
	}
	entity, err := m.schema.structValue(doc)
	if err != nil {
		return History{}, err
	}

	st := m.session.state(any(doc))
	if st == nil || st.pending || st.flushed == nil {
		return History{}, nil
	}

	prev := st.flushed[col.Name]
	cur := m.schema.value(entity, col)
	if equalValue(prev, cur) {
		return History{Previous: prev, Current: cur}, nil
	}
	return History{WasChanged: true, Previous: prev, Current: cur}, nil
}

// Populate sets columns from a map, converting values as setValue does.
func (m *Model[T]) Populate(doc *T, values map[string]any) error {
	entity, err := m.schema.structValue(doc)
	if err != nil {
		return err
	}
	for name, value := range values {
		col, ok := m.schema.Column(name)
		if !ok {
			return fmt.Errorf("%w: %q on %s", ErrUnknownColumn, name, m.schema.Table)
		}
		if err := m.schema.setValue(entity, col, value); err != nil {
			return err
		}
	}
	return nil
}

// PK returns the entity's primary-key value, nil when the schema has no
// primary key.
func (m *Model[T]) PK(doc *T) any {
	entity, err := m.schema.structValue(doc)
	if err != nil {
		return nil
	}
	return m.schema.pkValue(entity)
}

// IsNew reports whether the entity was never flushed.
func (m *Model[T]) IsNew(doc *T) bool {
	entity, err := m.schema.structValue(doc)
	if err != nil {
		return true
	}
	return m.schema.isNew(entity)
}

// ForcePK flushes the entity if its primary key is still unset, then returns
// the key. Useful when a related row needs the key before commit.
func (m *Model[T]) ForcePK(ctx context.Context, doc *T) (any, error) {
	entity, err := m.schema.structValue(doc)
	if err != nil {
		return nil, err
	}
	if m.schema.isNew(entity) {
		if err := m.session.Add(m.schema, doc); err != nil {
			return nil, err
		}
		if err := m.session.Flush(ctx, doc); err != nil {
			return nil, err
		}
	}
	return m.schema.pkValue(entity), nil
}
