package search

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/metrics"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
)

const (
	DefaultResultLimit    = 10
	DefaultMinQueryLength = 2
)

// Source tells where a result came from
type Source int

const (
	SourceNone  Source = iota // Term not searchable, nothing was consulted
	SourceCache               // Served from the local cache
	SourceLive                // Served by a live backend lookup
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceLive:
		return "live"
	default:
		return "none"
	}
}

// Finder performs the live title lookup
type Finder interface {
	FindAnimeByTitle(ctx context.Context, term string, limit int) ([]domain.Anime, error)
}

// Result is the outcome of one search
type Result struct {
	Term    string
	Records []domain.SearchRecord
	Source  Source
	Err     error // Live lookup failure; Records is empty when set
}

// Engine resolves a typed term to matches, local cache first
type Engine struct {
	cache    *Cache
	finder   Finder
	logger   *slog.Logger
	limit    int
	minLen   int
	inflight singleflight.Group
}

// Option configures an Engine
type Option func(*Engine)

// WithResultLimit caps the number of results per search
func WithResultLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithMinQueryLength sets the number of runes below which no search runs
func WithMinQueryLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minLen = n
		}
	}
}

// NewEngine creates a query engine over the shared cache
func NewEngine(cache *Cache, finder Finder, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cache:  cache,
		finder: finder,
		logger: logger,
		limit:  DefaultResultLimit,
		minLen: DefaultMinQueryLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MinQueryLength returns the configured minimum term length
func (e *Engine) MinQueryLength() int {
	return e.minLen
}

// IsSearchable reports whether the trimmed term is long enough to search
func (e *Engine) IsSearchable(term string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(term)) >= e.minLen
}

// Local matches the term against the cache only. Case-insensitive substring
// match, insertion order, capped at the result limit.
func (e *Engine) Local(term string) []domain.SearchRecord {
	if !e.IsSearchable(term) {
		return nil
	}

	// A Caser carries state, so each call gets its own.
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(term))

	var matches []domain.SearchRecord
	for _, rec := range e.cache.Snapshot() {
		if strings.Contains(fold.String(rec.Title), needle) {
			matches = append(matches, rec)
			if len(matches) == e.limit {
				break
			}
		}
	}
	return matches
}

// Search serves the term from the cache when it has matches, otherwise runs a
// live lookup and folds the results back into the cache. Failures are logged
// and returned in Result.Err, never panicked or propagated further.
func (e *Engine) Search(ctx context.Context, term string) Result {
	term = strings.TrimSpace(term)
	res := Result{Term: term}

	if !e.IsSearchable(term) {
		return res
	}

	if local := e.Local(term); len(local) > 0 {
		metrics.CacheHitsTotal.Inc()
		res.Records = local
		res.Source = SourceCache
		return res
	}

	res.Source = SourceLive
	records, err := e.live(ctx, term)
	if err != nil {
		res.Err = err
		return res
	}
	res.Records = records
	return res
}

func (e *Engine) live(ctx context.Context, term string) ([]domain.SearchRecord, error) {
	if e.finder == nil {
		return nil, nil
	}

	key := cases.Fold().String(term)
	v, err, _ := e.inflight.Do(key, func() (interface{}, error) {
		metrics.LiveLookupsTotal.Inc()
		e.logger.Debug("live search lookup", "term", term)

		found, err := e.finder.FindAnimeByTitle(ctx, term, e.limit)
		if err != nil {
			metrics.LiveLookupFailuresTotal.Inc()
			e.logger.Error("live search lookup failed", "term", term, "error", err)
			return nil, err
		}

		if len(found) > e.limit {
			found = found[:e.limit]
		}
		e.cache.Merge(found)

		records := make([]domain.SearchRecord, 0, len(found))
		for _, a := range found {
			if a.ID == "" {
				continue
			}
			records = append(records, a.SearchRecord())
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}

	shared := v.([]domain.SearchRecord)
	out := make([]domain.SearchRecord, len(shared))
	copy(out, shared)
	return out, nil
}
