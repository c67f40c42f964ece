package pgmodel

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pgmodel/pkg/validator"
)

// Column holds the persistence and validation metadata of one mapped
// struct field.
type Column struct {
	// Name is the database column name, FieldName the Go struct field.
	Name      string
	FieldName string

	PrimaryKey bool
	Unique     bool
	// CheckUnique enables the application-level duplicate lookup during
	// validation, on top of whatever constraint the database enforces.
	CheckUnique bool
	NotNull     bool
	// MaxLength caps string values; zero means unlimited.
	MaxLength int

	// Default supplies a value for columns left at their zero value on
	// insert. OnUpdate supplies a value on every update of a dirty row.
	Default  func() any
	OnUpdate func() any

	Validators []validator.Validator

	index  []int
	goType reflect.Type
}

// nilable reports whether the field's Go representation can hold an absent
// value. Non-nilable columns skip the null check: they always carry a value.
func (c *Column) nilable() bool {
	switch c.goType.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

// RelationKind discriminates how two schemas are linked.
type RelationKind int

const (
	// HasOne links through a foreign-key column on this table.
	HasOne RelationKind = iota
	// HasMany links through a foreign-key column on the target table.
	HasMany
	// ManyToMany links through a join table.
	ManyToMany
)

// Relation describes a named link from one schema to another. Criteria
// traverse relations by name; finders join through them.
type Relation struct {
	Name   string
	Kind   RelationKind
	Target *Schema

	// LocalColumn is the FK column here (HasOne); ForeignColumn the FK
	// column on the target (HasMany).
	LocalColumn   string
	ForeignColumn string

	// Join* describe the link table of a ManyToMany relation: JoinLocal
	// references this table's primary key, JoinForeign the target's.
	JoinTable   string
	JoinLocal   string
	JoinForeign string

	// FieldName is the struct field holding the loaded related value, when
	// the entity carries one. HasOne uses it to derive a missing FK from a
	// populated related object during validation.
	FieldName  string
	fieldIndex []int

	owner *Schema
}

type slugConfig struct {
	column string
	source string
}

// Schema is the metadata of one mapped entity type: its table, columns,
// relations and slug configuration. Build one per type with NewSchema at
// package initialization and share it between models.
type Schema struct {
	Table string
	Type  reflect.Type

	Columns []*Column

	columns   map[string]*Column
	relations map[string]*Relation
	pk        *Column
	slug      *slugConfig
}

// SchemaOption customizes a schema after reflection.
type SchemaOption func(*Schema)

// ColumnOption customizes one column's metadata.
type ColumnOption func(*Column)

// PrimaryKey marks the column as the primary key.
func PrimaryKey() ColumnOption { return func(c *Column) { c.PrimaryKey = true } }

// Unique marks the column unique at the database level.
func Unique() ColumnOption { return func(c *Column) { c.Unique = true } }

// CheckUnique enables the duplicate lookup during validation. The lookup
// only runs on columns that are also Unique.
func CheckUnique() ColumnOption { return func(c *Column) { c.CheckUnique = true } }

// NotNull forbids absent values.
func NotNull() ColumnOption { return func(c *Column) { c.NotNull = true } }

// MaxLen caps string length.
func MaxLen(n int) ColumnOption { return func(c *Column) { c.MaxLength = n } }

// Default sets the insert-time value generator, applied when the field is
// still at its zero value.
func Default(fn func() any) ColumnOption { return func(c *Column) { c.Default = fn } }

// OnUpdate sets the update-time value generator, applied whenever a dirty
// row is flushed.
func OnUpdate(fn func() any) ColumnOption { return func(c *Column) { c.OnUpdate = fn } }

// Use attaches validators, run in order during validation.
func Use(v ...validator.Validator) ColumnOption {
	return func(c *Column) { c.Validators = append(c.Validators, v...) }
}

// Override applies column options to a reflected column. It panics when the
// column does not exist; schemas are declared at init time and a typo here
// is a programming error.
func Override(column string, opts ...ColumnOption) SchemaOption {
	return func(s *Schema) {
		col, ok := s.columns[column]
		if !ok {
			panic(fmt.Sprintf("pgmodel: override of unknown column %q on %s", column, s.Table))
		}
		for _, opt := range opts {
			opt(col)
		}
	}
}

// WithSlug enables slug generation: before validation the slug column is
// derived from the source column, truncated to the slug column's MaxLength
// and deduplicated with a numeric suffix. The entity must embed SlugField
// or declare a "slug" column itself.
func WithSlug(source string) SchemaOption {
	return func(s *Schema) {
		if _, ok := s.columns[slugColumn]; !ok {
			panic(fmt.Sprintf("pgmodel: WithSlug on %s without a %q column", s.Table, slugColumn))
		}
		if _, ok := s.columns[source]; !ok {
			panic(fmt.Sprintf("pgmodel: WithSlug source %q is not a column of %s", source, s.Table))
		}
		s.slug = &slugConfig{column: slugColumn, source: source}
	}
}

const slugColumn = "slug"

// NewSchema reflects T into a Schema. Only fields carrying a `db` tag become
// columns; the tag holds the column name plus optional flags:
//
//	Name *string `db:"name,notnull"`
//	ID   int64   `db:"id,pk"`
//
// Embedded capability types (IntID, UUIDID, Timestamps, SlugField, CatalogEntry)
// contribute their columns with generators and constraints pre-wired.
// Declaration mistakes panic: schemas are built once at init time.
func NewSchema[T any](table string, opts ...SchemaOption) *Schema {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("pgmodel: NewSchema requires a struct type, got %s", t))
	}

	s := &Schema{
		Table:     table,
		Type:      t,
		columns:   make(map[string]*Column),
		relations: make(map[string]*Relation),
	}

	for _, f := range reflect.VisibleFields(t) {
		if f.PkgPath != "" || f.Anonymous {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		col := parseColumnTag(tag, f)
		if _, dup := s.columns[col.Name]; dup {
			panic(fmt.Sprintf("pgmodel: duplicate column %q on %s", col.Name, table))
		}
		s.columns[col.Name] = col
		s.Columns = append(s.Columns, col)
		if col.PrimaryKey {
			if s.pk != nil {
				panic(fmt.Sprintf("pgmodel: multiple primary keys on %s", table))
			}
			s.pk = col
		}
	}

	s.applyCapabilities(t)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func parseColumnTag(tag string, f reflect.StructField) *Column {
	parts := strings.Split(tag, ",")
	col := &Column{
		Name:      parts[0],
		FieldName: f.Name,
		index:     f.Index,
		goType:    f.Type,
	}
	for _, flag := range parts[1:] {
		switch flag {
		case "pk":
			col.PrimaryKey = true
		case "unique":
			col.Unique = true
		case "notnull":
			col.NotNull = true
		default:
			panic(fmt.Sprintf("pgmodel: unknown db tag flag %q on field %s", flag, f.Name))
		}
	}
	return col
}

// applyCapabilities wires generators and constraints for the well-known
// embedded capability types.
func (s *Schema) applyCapabilities(t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		switch f.Type {
		case reflect.TypeOf(UUIDID{}):
			if col, ok := s.columns["id"]; ok {
				col.Default = func() any { return uuid.New() }
			}
		case reflect.TypeOf(Timestamps{}):
			if col, ok := s.columns["created_at"]; ok {
				col.Default = func() any { return time.Now().UTC() }
			}
			if col, ok := s.columns["updated_at"]; ok {
				col.OnUpdate = func() any { return time.Now().UTC() }
			}
		case reflect.TypeOf(SlugField{}):
			if col, ok := s.columns[slugColumn]; ok {
				col.CheckUnique = true
			}
		case reflect.TypeOf(CatalogEntry{}):
			if col, ok := s.columns["name"]; ok {
				col.MaxLength = catalogNameMaxLen
			}
			if col, ok := s.columns["is_active"]; ok {
				col.Default = func() any { return true }
			}
		}
	}
}

const catalogNameMaxLen = 24

// Column returns the column with the given database name.
func (s *Schema) Column(name string) (*Column, bool) {
	col, ok := s.columns[name]
	return col, ok
}

// Relation returns the relation with the given name.
func (s *Schema) Relation(name string) (*Relation, bool) {
	rel, ok := s.relations[name]
	return rel, ok
}

// PK returns the primary-key column, or nil when the schema has none.
func (s *Schema) PK() *Column { return s.pk }

// RelationOption customizes a relation declaration.
type RelationOption func(*Relation)

// Field names the struct field that carries the loaded related value.
func Field(name string) RelationOption {
	return func(r *Relation) { r.FieldName = name }
}

// HasOne declares a to-one relation through localColumn, the FK column on
// this table referencing target's primary key. Relations are declared after
// both schemas exist, so mutually related schemas do not cycle at init.
func (s *Schema) HasOne(name string, target *Schema, localColumn string, opts ...RelationOption) {
	if _, ok := s.columns[localColumn]; !ok {
		panic(fmt.Sprintf("pgmodel: HasOne %q on %s: no column %q", name, s.Table, localColumn))
	}
	s.addRelation(&Relation{Name: name, Kind: HasOne, Target: target, LocalColumn: localColumn}, opts)
}

// HasMany declares a to-many relation through foreignColumn, the FK column
// on the target table referencing this table's primary key.
func (s *Schema) HasMany(name string, target *Schema, foreignColumn string, opts ...RelationOption) {
	s.addRelation(&Relation{Name: name, Kind: HasMany, Target: target, ForeignColumn: foreignColumn}, opts)
}

// ManyToMany declares a relation through a join table. joinLocal is the
// join-table column referencing this table's primary key, joinForeign the
// one referencing the target's. The "__has" operator resolves against the
// relation named "<base>_has", conventionally a ManyToMany shadowing a
// HasMany over the same join table.
func (s *Schema) ManyToMany(name string, target *Schema, joinTable, joinLocal, joinForeign string, opts ...RelationOption) {
	s.addRelation(&Relation{
		Name: name, Kind: ManyToMany, Target: target,
		JoinTable: joinTable, JoinLocal: joinLocal, JoinForeign: joinForeign,
	}, opts)
}

func (s *Schema) addRelation(rel *Relation, opts []RelationOption) {
	if _, dup := s.relations[rel.Name]; dup {
		panic(fmt.Sprintf("pgmodel: duplicate relation %q on %s", rel.Name, s.Table))
	}
	rel.owner = s
	for _, opt := range opts {
		opt(rel)
	}
	if rel.FieldName != "" {
		f, ok := s.Type.FieldByName(rel.FieldName)
		if !ok {
			panic(fmt.Sprintf("pgmodel: relation %q on %s: no field %q", rel.Name, s.Table, rel.FieldName))
		}
		rel.fieldIndex = f.Index
	}
	s.relations[rel.Name] = rel
}

// structValue unwraps doc into the addressable struct value of this schema's
// type.
func (s *Schema) structValue(doc any) (reflect.Value, error) {
	v := reflect.ValueOf(doc)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("pgmodel: expected non-nil *%s, got %T", s.Type.Name(), doc)
	}
	v = v.Elem()
	if v.Type() != s.Type {
		return reflect.Value{}, fmt.Errorf("pgmodel: expected *%s, got %T", s.Type.Name(), doc)
	}
	return v, nil
}

// value reads the column's current value from the struct. Nil pointers read
// as nil; non-nil pointers are dereferenced.
func (s *Schema) value(entity reflect.Value, col *Column) any {
	f := entity.FieldByIndex(col.index)
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return nil
		}
		f = f.Elem()
	}
	return f.Interface()
}

// setValue writes v into the column's field, converting across compatible
// kinds and wrapping into pointers as needed. A nil v zeroes the field.
func (s *Schema) setValue(entity reflect.Value, col *Column, v any) error {
	f := entity.FieldByIndex(col.index)
	if v == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}

	target := f
	tt := f.Type()
	if tt.Kind() == reflect.Pointer {
		tt = tt.Elem()
		p := reflect.New(tt)
		target = p.Elem()
		defer func() { f.Set(p) }()
	}

	vv := reflect.ValueOf(v)
	switch {
	case vv.Type() == tt:
		target.Set(vv)
	case vv.Type().ConvertibleTo(tt) && compatibleKinds(vv.Type(), tt):
		target.Set(vv.Convert(tt))
	default:
		return fmt.Errorf("pgmodel: cannot assign %T to column %s.%s (%s)", v, s.Table, col.Name, tt)
	}
	return nil
}

// compatibleKinds guards Convert against lossy cross-family conversions
// (e.g. int to string, which Convert happily performs as a rune).
func compatibleKinds(from, to reflect.Type) bool {
	num := func(k reflect.Kind) bool {
		return k >= reflect.Int && k <= reflect.Float64
	}
	fk, tk := from.Kind(), to.Kind()
	switch {
	case num(fk) && num(tk):
		return true
	case fk == reflect.String && tk == reflect.String:
		return true
	case fk == tk:
		return true
	case fk == reflect.Array && tk == reflect.Array:
		return from.ConvertibleTo(to)
	}
	return false
}

// pkValue returns the primary-key value of doc, nil when absent.
func (s *Schema) pkValue(entity reflect.Value) any {
	if s.pk == nil {
		return nil
	}
	return s.value(entity, s.pk)
}

// isNew reports whether the entity was never flushed: its primary key is
// still at the zero value.
func (s *Schema) isNew(entity reflect.Value) bool {
	if s.pk == nil {
		return true
	}
	f := entity.FieldByIndex(s.pk.index)
	return f.IsZero()
}

// snapshot captures all column values for change tracking.
func (s *Schema) snapshot(entity reflect.Value) map[string]any {
	snap := make(map[string]any, len(s.Columns))
	for _, col := range s.Columns {
		snap[col.Name] = s.value(entity, col)
	}
	return snap
}
