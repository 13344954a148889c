package domain

// CatalogStore persists listing pages and episode lists between runs.
// Keys are "listing:{name}" and "anime:{id}" so an anime's episodes can be
// dropped without touching the listings.
type CatalogStore interface {
	// === Listings (home, browse, recent) ===
	GetListing(name string) ([]Anime, bool)
	SaveListing(name string, items []Anime) error

	// === Episodes ===
	GetEpisodes(animeID string) ([]Episode, bool)
	SaveEpisodes(animeID string, episodes []Episode) error

	// === Invalidation ===
	InvalidateListings()
	InvalidateAnime(animeID string) // episodes of the anime plus every listing
	InvalidateAll()

	Close() error
}
