package workflow

import (
	"sync"

	"github.com/mmdatafocus/gelato_backoffice/models"
)

type matchKey struct {
	category models.Category
	name     string
}

type matchResult struct {
	entry *models.CatalogEntry
	found bool
}

// MatchCache memoizes (category, raw name) resolutions, misses included, and
// the rows read from each category table. It lives for exactly one
// reconciliation run; build a new one per run.
type MatchCache struct {
	mu      sync.Mutex
	matches map[matchKey]matchResult
	tables  map[models.Category][]*models.CatalogEntry
}

func NewMatchCache() *MatchCache {
	return &MatchCache{
		matches: map[matchKey]matchResult{},
		tables:  map[models.Category][]*models.CatalogEntry{},
	}
}

func (c *MatchCache) lookup(category models.Category, rawName string) (*models.CatalogEntry, bool, bool) {
	if c == nil {
		return nil, false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.matches[matchKey{category, rawName}]
	if !ok {
		return nil, false, false
	}
	return r.entry.Clone(), r.found, true
}

func (c *MatchCache) remember(category models.Category, rawName string, entry *models.CatalogEntry, found bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches[matchKey{category, rawName}] = matchResult{entry: entry.Clone(), found: found}
}

func (c *MatchCache) table(category models.Category) ([]*models.CatalogEntry, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.tables[category]
	return rows, ok
}

func (c *MatchCache) rememberTable(category models.Category, rows []*models.CatalogEntry) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[category] = rows
}

// Len is the number of memoized name resolutions.
func (c *MatchCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.matches)
}
