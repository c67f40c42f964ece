package pgmodel

import (
	"context"
	"fmt"
	"reflect"

	"github.com/dmitrymomot/pgmodel/pkg/slug"
)

// generateSlug derives the slug column from the configured source column
// before validation: normalized, truncated word-wise to the slug column's
// MaxLength, then deduplicated with a numeric suffix that shortens the base
// so the result still fits. A collision with the entity's own row is not a
// collision.
//
// Runs for new entities with an empty slug, and again whenever the source
// column changed on a persisted entity.
func (m *Model[T]) generateSlug(ctx context.Context, doc *T, entity reflect.Value) error {
	cfg := m.schema.slug
	slugCol, ok := m.schema.Column(cfg.column)
	if !ok {
		return fmt.Errorf("%w: %q on %s", ErrUnknownColumn, cfg.column, m.schema.Table)
	}
	srcCol, ok := m.schema.Column(cfg.source)
	if !ok {
		return fmt.Errorf("%w: %q on %s", ErrUnknownColumn, cfg.source, m.schema.Table)
	}

	current, _ := m.schema.value(entity, slugCol).(string)
	if m.schema.isNew(entity) {
		if current != "" {
			return nil // caller assigned one explicitly
		}
	} else {
		hist, err := m.HistoryChange(doc, cfg.source)
		if err != nil {
			return err
		}
		if !hist.WasChanged {
			return nil
		}
	}

	source := m.schema.value(entity, srcCol)
	if source == nil {
		return nil // nothing to derive from; NotNull on the source will report it
	}
	src, ok := source.(string)
	if !ok {
		src = fmt.Sprintf("%v", source)
	}

	candidate := slug.TruncateWords(slug.Make(src), slugCol.MaxLength)
	if err := m.schema.setValue(entity, slugCol, candidate); err != nil {
		return err
	}

	selfPK := m.schema.pkValue(entity)
	pk, found, err := m.session.findPK(ctx, m.schema, slugCol, candidate)
	if err != nil {
		return err
	}
	base := candidate
	for n := 1; found && !equalValue(pk, selfPK); n++ {
		candidate = slug.NumberSuffix(base, n, slugCol.MaxLength)
		if err := m.schema.setValue(entity, slugCol, candidate); err != nil {
			return err
		}
		pk, found, err = m.session.findPK(ctx, m.schema, slugCol, candidate)
		if err != nil {
			return err
		}
	}
	return nil
}
