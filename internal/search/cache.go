package search

import (
	"sync"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/metrics"
)

// Cache is the shared in-memory search cache: one SearchRecord per anime id,
// kept in insertion order. It only grows until Reset replaces it wholesale.
type Cache struct {
	mu      sync.RWMutex
	records []domain.SearchRecord
	index   map[string]int // id -> position in records
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		index: make(map[string]int),
	}
}

// Merge projects every anime to a SearchRecord and unions the batches into the
// cache. The first occurrence of an id within one call wins; an id already in
// the cache is overwritten in place so its position is kept.
func (c *Cache) Merge(batches ...[]domain.Anime) {
	incoming := dedupe(batches)
	if len(incoming) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range incoming {
		if pos, ok := c.index[rec.ID]; ok {
			c.records[pos] = rec
			continue
		}
		c.index[rec.ID] = len(c.records)
		c.records = append(c.records, rec)
	}
	metrics.CacheRecords.Set(float64(len(c.records)))
}

// Reset replaces the cache contents with the given batches
func (c *Cache) Reset(batches ...[]domain.Anime) {
	incoming := dedupe(batches)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = incoming
	c.index = make(map[string]int, len(incoming))
	for i, rec := range incoming {
		c.index[rec.ID] = i
	}
	metrics.CacheRecords.Set(float64(len(c.records)))
}

// Snapshot returns a copy of the cache contents in insertion order
func (c *Cache) Snapshot() []domain.SearchRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.SearchRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of cached records
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Get returns the record for an id
func (c *Cache) Get(id string) (domain.SearchRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pos, ok := c.index[id]
	if !ok {
		return domain.SearchRecord{}, false
	}
	return c.records[pos], true
}

// dedupe flattens batches into records, keeping the first occurrence per id.
// Rows without an id cannot be keyed or navigated to and are skipped.
func dedupe(batches [][]domain.Anime) []domain.SearchRecord {
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total == 0 {
		return nil
	}

	seen := make(map[string]struct{}, total)
	out := make([]domain.SearchRecord, 0, total)
	for _, batch := range batches {
		for _, a := range batch {
			if a.ID == "" {
				continue
			}
			if _, dup := seen[a.ID]; dup {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, a.SearchRecord())
		}
	}
	return out
}
