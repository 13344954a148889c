package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/search"
	"github.com/mmcdole/anikino/internal/store"
)

// fakeCatalog is an in-memory CatalogRepository
type fakeCatalog struct {
	mu       sync.Mutex
	anime    []domain.Anime
	episodes map[string][]domain.Episode
	listErr  error
	countErr error
	gets     int
	lists    []domain.ListOptions
}

func (f *fakeCatalog) ListAnime(_ context.Context, opts domain.ListOptions) ([]domain.Anime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, opts)
	if f.listErr != nil {
		return nil, f.listErr
	}

	rows := append([]domain.Anime(nil), f.anime...)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if opts.Descending {
			a, b = b, a
		}
		switch opts.OrderBy {
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		case "release_year":
			return a.ReleaseYear < b.ReleaseYear
		default:
			return a.Title < b.Title
		}
	})

	if opts.Offset >= len(rows) {
		return nil, nil
	}
	rows = rows[opts.Offset:]
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows, nil
}

func (f *fakeCatalog) CountAnime(context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.anime), nil
}

func (f *fakeCatalog) FindAnimeByTitle(_ context.Context, term string, limit int) ([]domain.Anime, error) {
	var out []domain.Anime
	for _, a := range f.anime {
		if strings.Contains(strings.ToLower(a.Title), strings.ToLower(term)) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetAnime(_ context.Context, id string) (*domain.Anime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	for _, a := range f.anime {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) ListEpisodes(_ context.Context, animeID string) ([]domain.Episode, error) {
	return f.episodes[animeID], nil
}

func (f *fakeCatalog) GetEpisode(_ context.Context, id string) (*domain.Episode, error) {
	for _, eps := range f.episodes {
		for _, e := range eps {
			if e.ID == id {
				cp := e
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func testCatalog(n int) *fakeCatalog {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &fakeCatalog{episodes: map[string][]domain.Episode{}}
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		f.anime = append(f.anime, domain.Anime{
			ID:          id,
			Title:       "Title " + strings.ToUpper(id),
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			ReleaseYear: 2000 + (i*7)%20,
		})
	}
	return f
}

func newTestService(t *testing.T, f *fakeCatalog, opts Options) (*Service, *search.Cache, *store.CatalogStore) {
	t.Helper()
	st, err := store.NewCatalogStore("", "")
	if err != nil {
		t.Fatal(err)
	}
	cache := search.NewCache()
	return NewService(f, st, cache, nil, opts), cache, st
}

func TestService_Home(t *testing.T) {
	f := testCatalog(20)
	f.episodes["t"] = []domain.Episode{
		{ID: "t1", AnimeID: "t", EpisodeNumber: 1},
		{ID: "t2", AnimeID: "t", EpisodeNumber: 2},
	}
	svc, cache, st := newTestService(t, f, Options{})

	feed, err := svc.Home(context.Background())
	if err != nil {
		t.Fatalf("Home: %v", err)
	}

	if len(feed.Recent) != DefaultRecentLimit || len(feed.Popular) != DefaultPopularLimit {
		t.Fatalf("recent=%d popular=%d", len(feed.Recent), len(feed.Popular))
	}
	if feed.Featured == nil || feed.Featured.ID != "t" {
		t.Errorf("Featured = %+v, want newest (t)", feed.Featured)
	}
	if feed.FeaturedEpisode == nil || feed.FeaturedEpisode.ID != "t1" {
		t.Errorf("FeaturedEpisode = %+v, want t1", feed.FeaturedEpisode)
	}
	for i := 1; i < len(feed.Popular); i++ {
		if feed.Popular[i].ReleaseYear > feed.Popular[i-1].ReleaseYear {
			t.Errorf("popular not ordered by year desc at %d", i)
		}
	}

	// Both rows feed the search cache, deduplicated
	seen := map[string]bool{}
	for _, a := range append(feed.Recent, feed.Popular...) {
		seen[a.ID] = true
	}
	if cache.Len() != len(seen) {
		t.Errorf("cache has %d records, want %d", cache.Len(), len(seen))
	}

	if _, ok := st.GetListing(ListingRecent); !ok {
		t.Error("recent listing not saved")
	}
	if _, ok := st.GetListing(ListingPopular); !ok {
		t.Error("popular listing not saved")
	}
}

func TestService_HomeEmptyCatalog(t *testing.T) {
	svc, _, _ := newTestService(t, testCatalog(0), Options{})

	feed, err := svc.Home(context.Background())
	if err != nil {
		t.Fatalf("Home: %v", err)
	}
	if feed.Featured != nil || feed.FeaturedEpisode != nil {
		t.Errorf("feed = %+v, want no featured", feed)
	}
}

func TestService_HomeError(t *testing.T) {
	f := testCatalog(3)
	f.listErr = domain.ErrServerOffline
	svc, cache, _ := newTestService(t, f, Options{})

	if _, err := svc.Home(context.Background()); !errors.Is(err, domain.ErrServerOffline) {
		t.Errorf("err = %v, want ErrServerOffline", err)
	}
	if cache.Len() != 0 {
		t.Errorf("cache has %d records after failure", cache.Len())
	}
}

func TestService_BrowsePaginates(t *testing.T) {
	f := testCatalog(25)
	svc, cache, _ := newTestService(t, f, Options{PageSize: 10})

	all, err := svc.Browse(context.Background())
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}
	if len(all) != 25 {
		t.Fatalf("len = %d, want 25", len(all))
	}
	if len(f.lists) != 3 {
		t.Errorf("list calls = %d, want 3", len(f.lists))
	}
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i].Title < all[j].Title }) {
		t.Error("browse not ordered by title")
	}
	if cache.Len() != 25 {
		t.Errorf("cache len = %d", cache.Len())
	}
}

func TestService_AnimeUsesDetailCache(t *testing.T) {
	f := testCatalog(3)
	svc, _, _ := newTestService(t, f, Options{})

	for i := 0; i < 3; i++ {
		a, err := svc.Anime(context.Background(), "b")
		if err != nil || a.ID != "b" {
			t.Fatalf("Anime = %+v, %v", a, err)
		}
	}
	if f.gets != 1 {
		t.Errorf("backend gets = %d, want 1", f.gets)
	}

	svc.Forget("b")
	svc.Anime(context.Background(), "b")
	if f.gets != 2 {
		t.Errorf("backend gets after Forget = %d, want 2", f.gets)
	}

	if _, err := svc.Anime(context.Background(), "zz"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing anime err = %v", err)
	}
}

func TestService_Watch(t *testing.T) {
	f := testCatalog(2)
	f.episodes["a"] = []domain.Episode{
		{ID: "e1", AnimeID: "a", EpisodeNumber: 1},
		{ID: "e2", AnimeID: "a", EpisodeNumber: 2},
		{ID: "e3", AnimeID: "a", EpisodeNumber: 3},
	}
	svc, _, _ := newTestService(t, f, Options{})

	w, err := svc.Watch(context.Background(), "a", "e2")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if w.Prev == nil || w.Prev.ID != "e1" || w.Next == nil || w.Next.ID != "e3" {
		t.Errorf("neighbours = %+v / %+v", w.Prev, w.Next)
	}

	w, _ = svc.Watch(context.Background(), "a", "e1")
	if w.Prev != nil {
		t.Error("first episode should have no prev")
	}

	if _, err := svc.Watch(context.Background(), "a", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown episode err = %v", err)
	}
}

func TestService_WarmUpResetsIndex(t *testing.T) {
	f := testCatalog(12)
	svc, cache, _ := newTestService(t, f, Options{PageSize: 5})
	cache.Merge([]domain.Anime{{ID: "stale", Title: "Deleted Show"}})

	var progress [][2]int
	n, err := svc.WarmUp(context.Background(), func(loaded, total int) {
		progress = append(progress, [2]int{loaded, total})
	})
	if err != nil {
		t.Fatalf("WarmUp: %v", err)
	}
	if n != 12 || cache.Len() != 12 {
		t.Errorf("n = %d cache = %d, want 12", n, cache.Len())
	}
	if _, ok := cache.Get("stale"); ok {
		t.Error("stale record survived warm-up")
	}
	if len(progress) != 3 || progress[2] != [2]int{12, 12} {
		t.Errorf("progress = %v", progress)
	}
}

func TestService_WarmUpWithoutCount(t *testing.T) {
	f := testCatalog(7)
	f.countErr = errors.New("count unsupported")
	svc, cache, _ := newTestService(t, f, Options{PageSize: 5})

	if n, err := svc.WarmUp(context.Background(), nil); err != nil || n != 7 {
		t.Fatalf("WarmUp = %d, %v", n, err)
	}
	if cache.Len() != 7 {
		t.Errorf("cache len = %d", cache.Len())
	}
}

func TestQueries_CachedHome(t *testing.T) {
	f := testCatalog(8)
	f.episodes["h"] = []domain.Episode{{ID: "h1", AnimeID: "h", EpisodeNumber: 1}}
	svc, _, st := newTestService(t, f, Options{})
	if _, err := svc.Home(context.Background()); err != nil {
		t.Fatal(err)
	}

	fresh := search.NewCache()
	q := NewQueries(st, fresh)

	feed, ok := q.CachedHome()
	if !ok {
		t.Fatal("no cached home")
	}
	if feed.Featured == nil || feed.Featured.ID != "h" {
		t.Errorf("Featured = %+v", feed.Featured)
	}
	if feed.FeaturedEpisode == nil || feed.FeaturedEpisode.ID != "h1" {
		t.Errorf("FeaturedEpisode = %+v", feed.FeaturedEpisode)
	}
	if fresh.Len() == 0 {
		t.Error("cached listings did not feed the search cache")
	}

	if _, ok := NewQueries(mustStore(t), fresh).CachedHome(); ok {
		t.Error("empty store returned a home feed")
	}
}

func mustStore(t *testing.T) *store.CatalogStore {
	t.Helper()
	st, err := store.NewCatalogStore("", "")
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestFetchAll(t *testing.T) {
	data := make([]int, 23)
	for i := range data {
		data[i] = i
	}
	page := func(_ context.Context, offset, limit int) ([]int, error) {
		if offset >= len(data) {
			return nil, nil
		}
		end := offset + limit
		if end > len(data) {
			end = len(data)
		}
		return data[offset:end], nil
	}

	got, err := fetchAll(context.Background(), page, -1, 10, nil)
	if err != nil || len(got) != 23 {
		t.Errorf("fetchAll = %d items, %v", len(got), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fetchAll(ctx, page, -1, 10, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled fetchAll err = %v", err)
	}
}
