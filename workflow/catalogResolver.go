package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/gelato_backoffice/models"
)

// CatalogResolver finds the catalog entry whose normalized name equals the
// normalized raw name. Hits and misses are memoized in the run's MatchCache;
// transport errors are not.
type CatalogResolver struct {
	store models.Store
	cache *MatchCache
}

func NewCatalogResolver(store models.Store, cache *MatchCache) *CatalogResolver {
	return &CatalogResolver{store: store, cache: cache}
}

// Resolve looks rawName up in a single category table.
func (r *CatalogResolver) Resolve(ctx context.Context, category models.Category, rawName string) (*models.CatalogEntry, bool, error) {
	if !category.IsValid() {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if entry, found, ok := r.cache.lookup(category, rawName); ok {
		return entry, found, nil
	}

	want := NormalizeName(rawName)
	if want == "" {
		r.cache.remember(category, rawName, nil, false)
		return nil, false, nil
	}

	rows, err := r.entries(ctx, category)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %q in %s: %w", rawName, category, err)
	}
	for _, row := range rows {
		if NormalizeName(row.Name) == want {
			r.cache.remember(category, rawName, row, true)
			return row.Clone(), true, nil
		}
	}
	r.cache.remember(category, rawName, nil, false)
	return nil, false, nil
}

// ResolveAny walks the categories in their fixed order and returns the first
// exact match. A transport error on any category aborts the lookup.
func (r *CatalogResolver) ResolveAny(ctx context.Context, rawName string) (*models.CatalogEntry, bool, error) {
	for _, category := range models.Categories() {
		entry, found, err := r.Resolve(ctx, category, rawName)
		if err != nil {
			return nil, false, err
		}
		if found {
			return entry, true, nil
		}
	}
	return nil, false, nil
}

func (r *CatalogResolver) entries(ctx context.Context, category models.Category) ([]*models.CatalogEntry, error) {
	if rows, ok := r.cache.table(category); ok {
		return rows, nil
	}
	rows, err := r.store.ListCatalogEntries(ctx, category)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		row.Category = category
	}
	r.cache.rememberTable(category, rows)
	return rows, nil
}
