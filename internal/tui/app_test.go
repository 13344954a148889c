package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/mmcdole/anikino/internal/adapter"
	"github.com/mmcdole/anikino/internal/catalog"
	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/search"
	"github.com/mmcdole/anikino/internal/tui/components"
)

type fakeCatalog struct {
	mu       sync.Mutex
	anime    []domain.Anime
	episodes map[string][]domain.Episode
	homeErr  error
	calls    []string
}

func (f *fakeCatalog) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCatalog) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCatalog) Home(context.Context) (*catalog.HomeFeed, error) {
	f.record("home")
	if f.homeErr != nil {
		return nil, f.homeErr
	}
	feed := &catalog.HomeFeed{Recent: f.anime, Popular: f.anime}
	if len(f.anime) > 0 {
		feed.Featured = &f.anime[0]
		if eps := f.episodes[f.anime[0].ID]; len(eps) > 0 {
			feed.FeaturedEpisode = &eps[0]
		}
	}
	return feed, nil
}

func (f *fakeCatalog) Browse(context.Context) ([]domain.Anime, error) {
	f.record("browse")
	return f.anime, nil
}

func (f *fakeCatalog) RecentlyAdded(_ context.Context, limit int) ([]domain.Anime, error) {
	f.record("recent")
	if limit < len(f.anime) {
		return f.anime[:limit], nil
	}
	return f.anime, nil
}

func (f *fakeCatalog) Anime(_ context.Context, id string) (*domain.Anime, error) {
	f.record("anime:" + id)
	for i := range f.anime {
		if f.anime[i].ID == id {
			return &f.anime[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) Episodes(_ context.Context, animeID string) ([]domain.Episode, error) {
	f.record("episodes:" + animeID)
	return f.episodes[animeID], nil
}

func (f *fakeCatalog) Watch(_ context.Context, animeID, episodeID string) (*catalog.WatchTarget, error) {
	f.record("watch:" + episodeID)
	eps := f.episodes[animeID]
	for i, ep := range eps {
		if ep.ID != episodeID {
			continue
		}
		target := &catalog.WatchTarget{Episode: ep}
		for j := range f.anime {
			if f.anime[j].ID == animeID {
				target.Anime = &f.anime[j]
			}
		}
		if i > 0 {
			target.Prev = &eps[i-1]
		}
		if i+1 < len(eps) {
			target.Next = &eps[i+1]
		}
		return target, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) WarmUp(context.Context, func(loaded, total int)) (int, error) {
	f.record("warmup")
	return len(f.anime), nil
}

type fakeCached struct {
	feed *catalog.HomeFeed
}

func (c fakeCached) CachedHome() (*catalog.HomeFeed, bool) { return c.feed, c.feed != nil }
func (c fakeCached) CachedBrowse() ([]domain.Anime, bool)  { return nil, false }
func (c fakeCached) CachedRecentlyAdded() ([]domain.Anime, bool) {
	return nil, false
}
func (c fakeCached) CachedEpisodes(string) ([]domain.Episode, bool) { return nil, false }

type fakePlayer struct {
	mu       sync.Mutex
	launched []adapter.PlayTarget
	err      error
}

func (p *fakePlayer) Launch(target adapter.PlayTarget) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.launched = append(p.launched, target)
	return nil
}

type noFinder struct{}

func (noFinder) FindAnimeByTitle(context.Context, string, int) ([]domain.Anime, error) {
	return nil, nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		anime: []domain.Anime{
			{ID: "a1", Title: "Frieren", ReleaseYear: 2023, Genres: []string{"Fantasy"}, Status: domain.StatusOngoing},
			{ID: "a2", Title: "Cowboy Bebop", ReleaseYear: 1998, Status: domain.StatusCompleted},
			{ID: "a3", Title: "Bleach", ReleaseYear: 2004, Status: domain.StatusCompleted},
		},
		episodes: map[string][]domain.Episode{
			"a1": {
				{ID: "e1", AnimeID: "a1", EpisodeNumber: 1, Title: "The Journey's End", VideoURL: "https://video.example/e1"},
				{ID: "e2", AnimeID: "a1", EpisodeNumber: 2, Title: "It Didn't Have to Be Magic", VideoURL: "https://video.example/e2"},
			},
		},
	}
}

func newTestModel(t *testing.T, svc *fakeCatalog, cached CachedCatalog, player Player) Model {
	t.Helper()
	engine := search.NewEngine(search.NewCache(), noFinder{}, nil)
	m := NewModel(svc, cached, engine, player, nil, Options{Debounce: 300 * time.Millisecond})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// runLoads executes a command that only issues network loads, expanding batches
func runLoads(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runLoads(t, c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func loadHome(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(t, m, LoadHomeCmd(m.Catalog)())
	return m
}

func TestNewModel_StartsLoading(t *testing.T) {
	m := newTestModel(t, testCatalog(), nil, &fakePlayer{})

	if !m.Loading() {
		t.Error("model should be loading before the home feed arrives")
	}
	if !m.Recent.IsLoading() || !m.Popular.IsLoading() {
		t.Error("home rows should show the loading state")
	}
	if m.Featured != nil {
		t.Errorf("Featured = %v, want nil", m.Featured)
	}
}

func TestNewModel_PaintsCachedHome(t *testing.T) {
	svc := testCatalog()
	feed, _ := svc.Home(context.Background())
	m := newTestModel(t, svc, fakeCached{feed: feed}, &fakePlayer{})

	if m.Featured == nil || m.Featured.Title != "Frieren" {
		t.Fatalf("Featured = %v, want Frieren from the store", m.Featured)
	}
	if m.Recent.IsLoading() {
		t.Error("cached rows should not show the loading state")
	}
	if !m.Loading() {
		t.Error("network refresh should still be pending")
	}
}

func TestModel_HomeLoaded(t *testing.T) {
	m := loadHome(t, newTestModel(t, testCatalog(), nil, &fakePlayer{}))

	if m.Loading() {
		t.Error("pending loads should be zero after the home feed")
	}
	if m.Featured == nil || m.Featured.ID != "a1" {
		t.Fatalf("Featured = %v, want a1", m.Featured)
	}
	if m.FeaturedEpisode == nil || m.FeaturedEpisode.ID != "e1" {
		t.Errorf("FeaturedEpisode = %v, want e1", m.FeaturedEpisode)
	}
	if got := m.Recent.ItemCount(); got != 3 {
		t.Errorf("recent rows = %d, want 3", got)
	}

	view := m.View()
	for _, want := range []string{"FEATURED", "Frieren", "Popular", "watch now"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_HomeError(t *testing.T) {
	svc := testCatalog()
	svc.homeErr = domain.ErrServerOffline
	m := loadHome(t, newTestModel(t, svc, nil, &fakePlayer{}))

	if !m.StatusIsErr || !strings.Contains(m.StatusMsg, "loading home") {
		t.Errorf("status = %q (err=%v), want home error toast", m.StatusMsg, m.StatusIsErr)
	}
	if m.Recent.IsLoading() {
		t.Error("loading state should clear on error")
	}
}

func TestModel_EnterOpensDetail(t *testing.T) {
	svc := testCatalog()
	m := loadHome(t, newTestModel(t, svc, nil, &fakePlayer{}))

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Page != PageDetail {
		t.Fatalf("Page = %v, want Detail", m.Page)
	}
	if m.Detail == nil || m.Detail.ID != "a1" {
		t.Fatalf("Detail = %v, want a1", m.Detail)
	}
	if !m.Episodes.IsLoading() {
		t.Error("episodes should be loading")
	}

	for _, msg := range runLoads(t, cmd) {
		m, _ = update(t, m, msg)
	}
	if got := m.Episodes.ItemCount(); got != 2 {
		t.Errorf("episodes = %d, want 2", got)
	}
	if m.Episodes.Title() != "Episodes (2)" {
		t.Errorf("episodes title = %q", m.Episodes.Title())
	}
	if calls := svc.Calls(); calls[len(calls)-1] != "episodes:a1" {
		t.Errorf("calls = %v, listing row should not be refetched", calls)
	}

	// Back returns to the page the detail was opened from
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.Page != PageHome {
		t.Errorf("Page after back = %v, want Home", m.Page)
	}
}

func TestModel_StaleEpisodesIgnored(t *testing.T) {
	m := loadHome(t, newTestModel(t, testCatalog(), nil, &fakePlayer{}))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m, _ = update(t, m, EpisodesLoadedMsg{AnimeID: "other", Episodes: []domain.Episode{{ID: "x"}}})
	if !m.Episodes.IsEmpty() {
		t.Error("episodes for another anime should be ignored")
	}
}

func TestModel_SearchSelectionOpensDetail(t *testing.T) {
	svc := testCatalog()
	m := loadHome(t, newTestModel(t, svc, nil, &fakePlayer{}))

	m, _ = update(t, m, keyRune('/'))
	if !m.Search.IsOpen() || m.State != StateSearching {
		t.Fatal("/ should open the search dialog")
	}

	m, cmd := update(t, m, components.SearchSelectedMsg{Record: domain.SearchRecord{ID: "a3", Title: "Bleach"}})
	if m.Page != PageDetail || m.State != StateBrowsing {
		t.Fatalf("Page = %v State = %v", m.Page, m.State)
	}
	if m.Detail != nil {
		t.Error("detail should be fetched, not taken from the search record")
	}

	for _, msg := range runLoads(t, cmd) {
		m, _ = update(t, m, msg)
	}
	if m.Detail == nil || m.Detail.Title != "Bleach" {
		t.Errorf("Detail = %v, want Bleach", m.Detail)
	}
	if m.Loading() {
		t.Error("anime and episode loads should both be done")
	}
}

func TestPlayEpisodeCmd(t *testing.T) {
	svc := testCatalog()
	player := &fakePlayer{}

	msg := PlayEpisodeCmd(svc, player, "a1", "e1")()
	started, ok := msg.(PlaybackStartedMsg)
	if !ok {
		t.Fatalf("msg = %#v, want PlaybackStartedMsg", msg)
	}
	if len(player.launched) != 1 {
		t.Fatalf("launched = %v", player.launched)
	}
	got := player.launched[0]
	if got.URL != "https://video.example/e1" || got.Title != "Frieren - Episode 1: The Journey's End" {
		t.Errorf("target = %+v", got)
	}

	m := loadHome(t, newTestModel(t, svc, nil, player))
	m, _ = update(t, m, started)
	if !strings.Contains(m.StatusMsg, "next: Episode 2") {
		t.Errorf("status = %q", m.StatusMsg)
	}

	player.err = errors.New("no player found")
	if _, ok := PlayEpisodeCmd(svc, player, "a1", "e2")().(ErrMsg); !ok {
		t.Error("launch failure should produce ErrMsg")
	}
	if _, ok := PlayEpisodeCmd(svc, player, "a1", "missing")().(ErrMsg); !ok {
		t.Error("unknown episode should produce ErrMsg")
	}
}

func TestModel_StatusClearsByID(t *testing.T) {
	m := newTestModel(t, testCatalog(), nil, &fakePlayer{})

	m, _ = update(t, m, StatusMsg{Message: "first"})
	m, _ = update(t, m, StatusMsg{Message: "second"})

	// The first toast's timer must not clear the newer one
	m, _ = update(t, m, ClearStatusMsg{ID: 1})
	if m.StatusMsg != "second" {
		t.Fatalf("status = %q, want second", m.StatusMsg)
	}
	m, _ = update(t, m, ClearStatusMsg{ID: 2})
	if m.StatusMsg != "" {
		t.Errorf("status = %q, want cleared", m.StatusMsg)
	}
}

func TestModel_SwitchPageLoadsOnce(t *testing.T) {
	svc := testCatalog()
	m := loadHome(t, newTestModel(t, svc, nil, &fakePlayer{}))

	m, cmd := update(t, m, keyRune('2'))
	if m.Page != PageBrowse || cmd == nil {
		t.Fatalf("Page = %v cmd = %v", m.Page, cmd)
	}
	m, _ = update(t, m, cmd())
	if got := m.Browse.ItemCount(); got != 3 {
		t.Errorf("browse rows = %d, want 3", got)
	}
	if !strings.Contains(m.View(), "Cowboy Bebop") {
		t.Error("browse view should list the catalog")
	}

	m, _ = update(t, m, keyRune('1'))
	m, cmd = update(t, m, keyRune('2'))
	if cmd != nil {
		t.Error("revisiting a loaded page should not reload it")
	}
	if m.Page != PageBrowse {
		t.Errorf("Page = %v", m.Page)
	}
}

func TestModel_HelpClosesOnAnyKey(t *testing.T) {
	m := newTestModel(t, testCatalog(), nil, &fakePlayer{})

	m, _ = update(t, m, keyRune('?'))
	if m.State != StateHelp || !strings.Contains(m.View(), "NAVIGATION") {
		t.Fatal("? should show help")
	}
	m, cmd := update(t, m, keyRune('q'))
	if m.State != StateBrowsing || cmd != nil {
		t.Error("a key on the help screen should only close it")
	}
}

func TestModel_Teatest_BrowseAndQuit(t *testing.T) {
	svc := testCatalog()
	engine := search.NewEngine(search.NewCache(), noFinder{}, nil)
	m := NewModel(svc, nil, engine, &fakePlayer{}, nil, Options{})

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(120, 40))

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("Frieren"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(keyRune('q'))
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final := tm.FinalModel(t).(Model)
	if final.Featured == nil || final.Featured.Title != "Frieren" {
		t.Errorf("Featured = %v, want Frieren", final.Featured)
	}
	if final.Page != PageHome {
		t.Errorf("Page = %v, want Home", final.Page)
	}
}
