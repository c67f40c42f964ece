package pgmodel

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/pgmodel/pkg/query"
)

// Catalog serves the rows of a fixed lookup table by declared names. Each
// name maps to a lookup key (by default matched against the "slug" column);
// the first access queries the database, detaches the entity from the
// session so later flushes never touch it, and caches it for the process
// lifetime. Repeat lookups return the identical instance.
type Catalog[T any] struct {
	model *Model[T]
	field string
	keys  map[string]string

	mu    sync.Mutex
	cache map[string]*T
}

// CatalogOption configures a catalog.
type CatalogOption func(*catalogConfig)

type catalogConfig struct {
	field string
}

// LookupField sets the column the keys are matched against, "slug" by
// default.
func LookupField(name string) CatalogOption {
	return func(c *catalogConfig) { c.field = name }
}

// NewCatalog declares a catalog over a model with a name→key table.
func NewCatalog[T any](model *Model[T], keys map[string]string, opts ...CatalogOption) *Catalog[T] {
	cfg := catalogConfig{field: slugColumn}
	for _, opt := range opts {
		opt(&cfg)
	}
	if _, ok := model.schema.Column(cfg.field); !ok {
		panic(fmt.Sprintf("pgmodel: catalog lookup field %q is not a column of %s", cfg.field, model.schema.Table))
	}
	return &Catalog[T]{
		model: model,
		field: cfg.field,
		keys:  keys,
		cache: make(map[string]*T),
	}
}

// Get returns the entry declared under name. An undeclared name is
// ErrUnknownCatalogKey; a declared name whose row does not exist is
// ErrCatalogEntryMissing.
func (c *Catalog[T]) Get(ctx context.Context, name string) (*T, error) {
	key, ok := c.keys[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCatalogKey, name)
	}
	return c.Key(ctx, key)
}

// Key returns the entry with the given raw lookup key, bypassing the name
// table.
func (c *Catalog[T]) Key(ctx context.Context, key string) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if doc, ok := c.cache[key]; ok {
		return doc, nil
	}

	doc, err := c.model.Find(query.M{c.field: key}).First(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s=%q in %s", ErrCatalogEntryMissing, c.field, key, c.model.schema.Table)
	}

	// Catalog entries are shared read-only instances; keep the unit of work
	// away from them.
	c.model.session.Expunge(any(doc))
	c.cache[key] = doc
	return doc, nil
}

// KeysFromYAML loads a catalog name→key table from YAML:
//
//	ADMIN: admin
//	MEMBER: member
func KeysFromYAML(r io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pgmodel: read catalog keys: %w", err)
	}
	keys := make(map[string]string)
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("pgmodel: parse catalog keys: %w", err)
	}
	return keys, nil
}
