package catalog

import "github.com/mmcdole/anikino/internal/domain"

// Listing names used as store keys
const (
	// ListingRecent is the home page "Recently Added" row (newest first)
	ListingRecent = "recent"

	// ListingPopular is the home page "Popular" row (newest release year first)
	ListingPopular = "popular"

	// ListingBrowse is the full catalog ordered by title
	ListingBrowse = "browse"

	// ListingRecentlyAdded is the recently added page
	ListingRecentlyAdded = "recently_added"

	// listingFeaturedEpisode holds the featured anime's first episode as a one-element list
	listingFeaturedEpisode = "featured_episode"
)

// Listing orders
var (
	orderRecent  = domain.ListOptions{OrderBy: "created_at", Descending: true}
	orderPopular = domain.ListOptions{OrderBy: "release_year", Descending: true}
	orderTitle   = domain.ListOptions{OrderBy: "title"}
)

func withLimit(opts domain.ListOptions, limit int) domain.ListOptions {
	opts.Limit = limit
	return opts
}
