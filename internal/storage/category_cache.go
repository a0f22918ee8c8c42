package storage

import (
	"context"

	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/ledger"
)

// CachedCategories memoizes category lookups by title. Categories are
// append-only, so a cached hit never goes stale; misses are not cached
// because another process may create the title at any time.
type CachedCategories struct {
	ledger.Store
	byTitle cache.Cache[core.Category]
}

var _ ledger.Store = (*CachedCategories)(nil)

func NewCachedCategories(store ledger.Store, size int) *CachedCategories {
	return &CachedCategories{
		Store:   store,
		byTitle: cache.NewLRUCache[core.Category](size, 0),
	}
}

func (c *CachedCategories) FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error) {
	if cat, ok := c.byTitle.Get(title); ok {
		return cat, true, nil
	}
	cat, ok, err := c.Store.FindCategoryByTitle(ctx, title)
	if err != nil || !ok {
		return cat, ok, err
	}
	c.byTitle.Set(title, cat)
	return cat, true, nil
}

func (c *CachedCategories) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	var (
		out     []core.Category
		missing []string
	)
	for _, t := range distinct(titles) {
		if cat, ok := c.byTitle.Get(t); ok {
			out = append(out, cat)
			continue
		}
		missing = append(missing, t)
	}
	if len(missing) == 0 {
		return out, nil
	}

	found, err := c.Store.FindCategoriesByTitles(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, cat := range found {
		c.byTitle.Set(cat.Title, cat)
	}
	return append(out, found...), nil
}

func (c *CachedCategories) CreateCategory(ctx context.Context, title string) (core.Category, error) {
	cat, err := c.Store.CreateCategory(ctx, title)
	if err != nil {
		return cat, err
	}
	c.byTitle.Set(cat.Title, cat)
	return cat, nil
}

func (c *CachedCategories) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	cats, err := c.Store.CreateCategories(ctx, titles)
	if err != nil {
		return nil, err
	}
	for _, cat := range cats {
		c.byTitle.Set(cat.Title, cat)
	}
	return cats, nil
}
