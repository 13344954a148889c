package catalog

import "github.com/mmcdole/anikino/internal/domain"

// Queries provides synchronous, store-only reads for the first paint
// before the network refresh lands.
type Queries struct {
	store domain.CatalogStore
	index Indexer
}

// NewQueries creates a new Queries instance. Listings read from the store
// are merged into index so search works offline too.
func NewQueries(store domain.CatalogStore, index Indexer) *Queries {
	return &Queries{store: store, index: index}
}

// CachedHome rebuilds the home feed from the last saved rows
func (q *Queries) CachedHome() (*HomeFeed, bool) {
	recent, okRecent := q.store.GetListing(ListingRecent)
	popular, okPopular := q.store.GetListing(ListingPopular)
	if !okRecent && !okPopular {
		return nil, false
	}
	q.index.Merge(recent, popular)

	feed := &HomeFeed{Recent: recent, Popular: popular}
	if len(recent) > 0 {
		featured := recent[0]
		feed.Featured = &featured
		if eps, ok := q.store.GetEpisodes(listingFeaturedEpisode); ok && len(eps) > 0 && eps[0].AnimeID == featured.ID {
			ep := eps[0]
			feed.FeaturedEpisode = &ep
		}
	}
	return feed, true
}

func (q *Queries) CachedBrowse() ([]domain.Anime, bool) {
	items, ok := q.store.GetListing(ListingBrowse)
	if ok {
		q.index.Merge(items)
	}
	return items, ok
}

func (q *Queries) CachedRecentlyAdded() ([]domain.Anime, bool) {
	items, ok := q.store.GetListing(ListingRecentlyAdded)
	if ok {
		q.index.Merge(items)
	}
	return items, ok
}

func (q *Queries) CachedEpisodes(animeID string) ([]domain.Episode, bool) {
	return q.store.GetEpisodes(animeID)
}
