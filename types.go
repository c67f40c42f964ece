package pgmodel

import (
	"time"

	"github.com/google/uuid"
)

// Capability structs are embedded into entity types to pull in common
// column sets. NewSchema recognizes them and pre-wires their generators and
// constraints; Override can still adjust anything per schema.

// IntID adds a bigserial primary key. Zero means the row was never flushed;
// the database assigns the value on insert. The type is not named ID so the
// promoted ID field stays directly selectable on the entity.
type IntID struct {
	ID int64 `db:"id,pk"`
}

// UUIDID adds a UUID primary key generated client-side on insert.
type UUIDID struct {
	ID uuid.UUID `db:"id,pk"`
}

// Timestamps adds creation and modification times. CreatedAt is filled on
// insert, UpdatedAt on every update of a dirty row; both in UTC.
type Timestamps struct {
	CreatedAt time.Time  `db:"created_at,notnull"`
	UpdatedAt *time.Time `db:"updated_at"`
}

// SlugField adds a unique, duplicate-checked slug column. Pair it with
// WithSlug to derive the value from another column before validation.
type SlugField struct {
	Slug string `db:"slug,unique"`
}

// CatalogEntry adds the columns of a fixed lookup table served by Catalog:
// a required bounded name and an active flag defaulting to true. IsActive is
// a pointer so an explicit false is distinguishable from an unset value and
// survives the insert default.
type CatalogEntry struct {
	Name     *string `db:"name,notnull"`
	IsActive *bool   `db:"is_active,notnull"`
}
