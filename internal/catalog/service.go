package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mmcdole/anikino/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRecentLimit        = 6
	DefaultPopularLimit       = 12
	DefaultRecentlyAddedLimit = 24
	defaultDetailSize         = 128
	defaultDetailTTL          = 10 * time.Minute
)

// Indexer receives every batch of anime the service fetches.
// *search.Cache implements it.
type Indexer interface {
	Merge(batches ...[]domain.Anime)
	Reset(batches ...[]domain.Anime)
}

// Options tunes listing sizes and the detail cache
type Options struct {
	RecentLimit  int
	PopularLimit int
	DetailSize   int
	DetailTTL    time.Duration
	PageSize     int // Page size for full-catalog fetches
}

func (o Options) withDefaults() Options {
	if o.RecentLimit <= 0 {
		o.RecentLimit = DefaultRecentLimit
	}
	if o.PopularLimit <= 0 {
		o.PopularLimit = DefaultPopularLimit
	}
	if o.DetailSize <= 0 {
		o.DetailSize = defaultDetailSize
	}
	if o.DetailTTL <= 0 {
		o.DetailTTL = defaultDetailTTL
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultChunkSize
	}
	return o
}

// HomeFeed is everything the home view shows
type HomeFeed struct {
	Featured        *domain.Anime   // First of Recent, nil when the catalog is empty
	FeaturedEpisode *domain.Episode // First episode of Featured, nil if it has none
	Recent          []domain.Anime
	Popular         []domain.Anime
}

// WatchTarget is an episode with its neighbours
type WatchTarget struct {
	Anime   *domain.Anime
	Episode domain.Episode
	Prev    *domain.Episode
	Next    *domain.Episode
}

// Service orchestrates backend reads, the listing store and the search index.
type Service struct {
	client  domain.CatalogRepository
	store   domain.CatalogStore
	index   Indexer
	details *expirable.LRU[string, domain.Anime]
	opts    Options
	logger  *slog.Logger
}

// NewService creates a new catalog service.
func NewService(client domain.CatalogRepository, store domain.CatalogStore, index Indexer, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &Service{
		client:  client,
		store:   store,
		index:   index,
		details: expirable.NewLRU[string, domain.Anime](opts.DetailSize, nil, opts.DetailTTL),
		opts:    opts,
		logger:  logger,
	}
}

// Home fetches the recent and popular rows concurrently, plus the featured
// anime's first episode. Both rows feed the search index.
func (s *Service) Home(ctx context.Context) (*HomeFeed, error) {
	var recent, popular []domain.Anime

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = s.client.ListAnime(gctx, withLimit(orderRecent, s.opts.RecentLimit))
		return err
	})
	g.Go(func() error {
		var err error
		popular, err = s.client.ListAnime(gctx, withLimit(orderPopular, s.opts.PopularLimit))
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to fetch home feed", "error", err)
		return nil, err
	}

	s.saveListing(ListingRecent, recent)
	s.saveListing(ListingPopular, popular)
	s.remember(recent, popular)
	s.index.Merge(recent, popular)

	feed := &HomeFeed{Recent: recent, Popular: popular}
	if len(recent) > 0 {
		featured := recent[0]
		feed.Featured = &featured

		// A missing first episode only disables "watch now"
		ep, err := s.firstEpisode(ctx, featured.ID)
		if err != nil {
			s.logger.Warn("failed to fetch featured episode", "animeID", featured.ID, "error", err)
		}
		feed.FeaturedEpisode = ep
	}

	s.logger.Debug("fetched home feed", "recent", len(recent), "popular", len(popular))
	return feed, nil
}

func (s *Service) firstEpisode(ctx context.Context, animeID string) (*domain.Episode, error) {
	episodes, err := s.Episodes(ctx, animeID)
	if err != nil {
		return nil, err
	}
	if len(episodes) == 0 {
		if err := s.store.SaveEpisodes(listingFeaturedEpisode, nil); err != nil {
			s.logger.Error("failed to save featured episode", "error", err)
		}
		return nil, nil
	}
	first := episodes[0]
	if err := s.store.SaveEpisodes(listingFeaturedEpisode, []domain.Episode{first}); err != nil {
		s.logger.Error("failed to save featured episode", "error", err)
	}
	return &first, nil
}

// Browse fetches the whole catalog ordered by title
func (s *Service) Browse(ctx context.Context) ([]domain.Anime, error) {
	all, err := fetchAll(ctx,
		func(ctx context.Context, offset, limit int) ([]domain.Anime, error) {
			opts := withLimit(orderTitle, limit)
			opts.Offset = offset
			return s.client.ListAnime(ctx, opts)
		},
		-1,
		s.opts.PageSize,
		nil,
	)
	if err != nil {
		s.logger.Error("failed to browse catalog", "error", err)
		return nil, err
	}

	s.saveListing(ListingBrowse, all)
	s.remember(all)
	s.index.Merge(all)
	s.logger.Debug("fetched browse listing", "count", len(all))
	return all, nil
}

// RecentlyAdded returns the newest anime
func (s *Service) RecentlyAdded(ctx context.Context, limit int) ([]domain.Anime, error) {
	if limit <= 0 {
		limit = DefaultRecentlyAddedLimit
	}
	items, err := s.client.ListAnime(ctx, withLimit(orderRecent, limit))
	if err != nil {
		s.logger.Error("failed to fetch recently added", "error", err)
		return nil, err
	}

	s.saveListing(ListingRecentlyAdded, items)
	s.remember(items)
	s.index.Merge(items)
	return items, nil
}

// Anime returns one anime, from the detail cache when fresh
func (s *Service) Anime(ctx context.Context, id string) (*domain.Anime, error) {
	if a, ok := s.details.Get(id); ok {
		return &a, nil
	}

	a, err := s.client.GetAnime(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("failed to fetch anime", "animeID", id, "error", err)
		}
		return nil, err
	}
	s.details.Add(a.ID, *a)
	s.index.Merge([]domain.Anime{*a})
	return a, nil
}

// Episodes returns an anime's episodes ascending by number
func (s *Service) Episodes(ctx context.Context, animeID string) ([]domain.Episode, error) {
	episodes, err := s.client.ListEpisodes(ctx, animeID)
	if err != nil {
		s.logger.Error("failed to fetch episodes", "animeID", animeID, "error", err)
		return nil, err
	}
	if err := s.store.SaveEpisodes(animeID, episodes); err != nil {
		s.logger.Error("failed to save episodes", "animeID", animeID, "error", err)
	}
	s.logger.Debug("fetched episodes", "animeID", animeID, "count", len(episodes))
	return episodes, nil
}

// Watch resolves an episode of an anime together with its neighbours
func (s *Service) Watch(ctx context.Context, animeID, episodeID string) (*WatchTarget, error) {
	var (
		anime    *domain.Anime
		episodes []domain.Episode
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		anime, err = s.Anime(gctx, animeID)
		return err
	})
	g.Go(func() error {
		var err error
		episodes, err = s.Episodes(gctx, animeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, ep := range episodes {
		if ep.ID != episodeID {
			continue
		}
		target := &WatchTarget{Anime: anime, Episode: ep}
		if i > 0 {
			prev := episodes[i-1]
			target.Prev = &prev
		}
		if i < len(episodes)-1 {
			next := episodes[i+1]
			target.Next = &next
		}
		return target, nil
	}
	return nil, fmt.Errorf("episode %s of anime %s: %w", episodeID, animeID, domain.ErrNotFound)
}

// WarmUp fetches every anime and replaces the search index with the result
func (s *Service) WarmUp(ctx context.Context, onProgress func(loaded, total int)) (int, error) {
	total, err := s.client.CountAnime(ctx)
	if err != nil {
		s.logger.Warn("failed to count catalog, paging blind", "error", err)
		total = -1
	}

	all, err := fetchAll(ctx,
		func(ctx context.Context, offset, limit int) ([]domain.Anime, error) {
			opts := withLimit(orderTitle, limit)
			opts.Offset = offset
			return s.client.ListAnime(ctx, opts)
		},
		total,
		s.opts.PageSize,
		onProgress,
	)
	if err != nil {
		s.logger.Error("failed to warm search index", "error", err)
		return 0, err
	}

	s.index.Reset(all)
	s.saveListing(ListingBrowse, all)
	s.remember(all)
	s.logger.Info("warmed search index", "count", len(all))
	return len(all), nil
}

// Forget drops an anime from the detail cache
func (s *Service) Forget(animeID string) {
	s.details.Remove(animeID)
}

func (s *Service) saveListing(name string, items []domain.Anime) {
	if err := s.store.SaveListing(name, items); err != nil {
		s.logger.Error("failed to save listing", "listing", name, "error", err)
	}
}

// remember seeds the detail cache from listing rows, which carry full records
func (s *Service) remember(batches ...[]domain.Anime) {
	for _, batch := range batches {
		for _, a := range batch {
			if a.ID != "" {
				s.details.Add(a.ID, a)
			}
		}
	}
}
