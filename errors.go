package pgmodel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNoPrimaryKey indicates a schema without a primary-key column.
	ErrNoPrimaryKey = errors.New("pgmodel: schema has no primary key")
	// ErrUnknownColumn indicates a criterion or field list naming a column
	// the schema does not declare.
	ErrUnknownColumn = errors.New("pgmodel: unknown column")
	// ErrUnknownRelationship indicates a criterion path traversing a
	// relationship the schema does not declare.
	ErrUnknownRelationship = errors.New("pgmodel: unknown relationship")
	// ErrUnknownAlias indicates a finder criterion referencing a join alias
	// that was never declared with CJoin.
	ErrUnknownAlias = errors.New("pgmodel: unknown join alias")
	// ErrFieldsOnNewEntity indicates a fields-restricted save of an entity
	// that has never been flushed; a targeted UPDATE needs a primary key.
	ErrFieldsOnNewEntity = errors.New("pgmodel: fields option requires a persisted entity")
	// ErrJoinedUpdate indicates a bulk update on a finder with declared
	// joins; UPDATE targets a single table.
	ErrJoinedUpdate = errors.New("pgmodel: update does not support joins")
	// ErrUnknownCatalogKey indicates a catalog lookup by a name absent from
	// the catalog's key table.
	ErrUnknownCatalogKey = errors.New("pgmodel: unknown catalog key")
	// ErrCatalogEntryMissing indicates a known catalog key whose row is
	// absent from the database.
	ErrCatalogEntryMissing = errors.New("pgmodel: catalog entry missing")
	// ErrNoTransaction indicates a commit or rollback without an open
	// transaction.
	ErrNoTransaction = errors.New("pgmodel: no open transaction")
)

// ValidationError aggregates per-field validation failures for one entity.
// Fields maps column names to the list of messages collected for them.
type ValidationError struct {
	Entity string
	Fields map[string][]string
}

// Error renders fields in sorted order so the message is stable.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pgmodel: validation failed for %s:", e.Entity)

	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s: %s;", f, strings.Join(e.Fields[f], ", "))
	}
	return strings.TrimSuffix(b.String(), ";")
}

// Add appends messages for a field, allocating the map on first use.
func (e *ValidationError) Add(field string, messages ...string) {
	if len(messages) == 0 {
		return
	}
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], messages...)
}

// AsValidationError unwraps err into a *ValidationError when it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
