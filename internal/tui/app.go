package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/anikino/internal/adapter"
	"github.com/mmcdole/anikino/internal/catalog"
	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/search"
	"github.com/mmcdole/anikino/internal/tui/components"
	"github.com/mmcdole/anikino/internal/tui/styles"
)

// Catalog is the read side the TUI drives. *catalog.Service implements it.
type Catalog interface {
	Home(ctx context.Context) (*catalog.HomeFeed, error)
	Browse(ctx context.Context) ([]domain.Anime, error)
	RecentlyAdded(ctx context.Context, limit int) ([]domain.Anime, error)
	Anime(ctx context.Context, id string) (*domain.Anime, error)
	Episodes(ctx context.Context, animeID string) ([]domain.Episode, error)
	Watch(ctx context.Context, animeID, episodeID string) (*catalog.WatchTarget, error)
	WarmUp(ctx context.Context, onProgress func(loaded, total int)) (int, error)
}

// CachedCatalog serves the last saved listings. *catalog.Queries implements it.
type CachedCatalog interface {
	CachedHome() (*catalog.HomeFeed, bool)
	CachedBrowse() ([]domain.Anime, bool)
	CachedRecentlyAdded() ([]domain.Anime, bool)
	CachedEpisodes(animeID string) ([]domain.Episode, bool)
}

// Player opens an episode's video URL
type Player interface {
	Launch(target adapter.PlayTarget) error
}

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateSearching
	StateHelp
)

// Page is the top-level screen
type Page int

const (
	PageHome Page = iota
	PageBrowse
	PageRecent
	PageDetail
)

func (p Page) String() string {
	switch p {
	case PageBrowse:
		return "Browse"
	case PageRecent:
		return "Recently Added"
	case PageDetail:
		return "Detail"
	default:
		return "Home"
	}
}

const (
	statusTimeout      = 4 * time.Second
	errorStatusTimeout = 4 * time.Second

	// Vertical chrome: header line + footer line
	ChromeHeight = 2

	// Home: featured banner height
	FeaturedHeight = 4

	MinColumnWidth = 20
)

// Options configures the model
type Options struct {
	Debounce      time.Duration
	RecentLimit   int // Recently added page size
	InitialSearch string
}

// Model is the main Bubble Tea model for the application
type Model struct {
	State ApplicationState
	Page  Page
	Ready bool

	// Services
	Catalog Catalog
	Cached  CachedCatalog
	Player  Player
	logger  *slog.Logger
	opts    Options

	// UI Components
	Search    components.SearchDialog
	Recent    *components.ListColumn // Home: recently added row
	Popular   *components.ListColumn // Home: popular row
	Browse    *components.ListColumn
	Added     *components.ListColumn // Recently added page
	Episodes  *components.ListColumn // Detail page
	Inspector components.Inspector
	spinner   spinner.Model

	// Data
	Featured        *domain.Anime
	FeaturedEpisode *domain.Episode
	Detail          *domain.Anime
	detailID        string
	returnPage      Page

	// Focus on the home page: 0 recent, 1 popular
	homeFocus int

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg    string
	StatusIsErr  bool
	statusID     int
	pending      int // Network loads in flight
	SpinnerFrame int
	loaded       map[Page]bool
}

// NewModel creates a new application model. Listings already saved in the
// store are shown immediately; Init refreshes them from the network.
func NewModel(svc Catalog, cached CachedCatalog, engine *search.Engine, player Player, logger *slog.Logger, opts Options) Model {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = catalog.DefaultRecentlyAddedLimit
	}

	m := Model{
		State:     StateBrowsing,
		Page:      PageHome,
		Catalog:   svc,
		Cached:    cached,
		Player:    player,
		logger:    logger,
		opts:      opts,
		Search:    components.NewSearchDialog(engine, opts.Debounce),
		Recent:    components.NewAnimeColumn("Recently Added", nil),
		Popular:   components.NewAnimeColumn("Popular", nil),
		Browse:    components.NewAnimeColumn("All Anime", nil),
		Added:     components.NewAnimeColumn("Recently Added", nil),
		Episodes:  components.NewEpisodesColumn("Episodes", nil),
		Inspector: components.NewInspector("Info"),
		spinner:   spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.SpinnerStyle)),
		loaded:    make(map[Page]bool),
	}
	m.Popular.SetRanked(true)
	m.Recent.SetFocused(true)
	m.Browse.SetFocused(true)
	m.Added.SetFocused(true)
	m.Episodes.SetFocused(true)

	// Init issues the home load
	m.pending = 1

	fromStore := false
	if cached != nil {
		if feed, ok := cached.CachedHome(); ok {
			m.applyHome(feed)
			fromStore = true
		}
	}
	m.Recent.SetLoading(!fromStore)
	m.Popular.SetLoading(!fromStore)
	return m
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		LoadHomeCmd(m.Catalog),
	}
	if m.opts.InitialSearch != "" {
		cmds = append(cmds, func() tea.Msg { return openSearchMsg{term: m.opts.InitialSearch} })
	}
	return tea.Batch(cmds...)
}

// openSearchMsg opens the search dialog with a pre-filled term
type openSearchMsg struct {
	term string
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.SpinnerFrame++
		for _, col := range m.columns() {
			col.SetSpinnerFrame(m.SpinnerFrame)
		}
		return m, cmd

	// Search dialog plumbing: debounce ticks and responses are routed even
	// when the dialog is closed so stale ones are discarded there.
	case components.SearchDebounceMsg, components.SearchResultMsg:
		var cmd tea.Cmd
		m.Search, cmd = m.Search.Update(msg)
		if !m.Search.IsOpen() {
			m.State = StateBrowsing
		}
		return m, cmd

	case openSearchMsg:
		cmd := m.openSearch()
		var typed tea.Cmd
		for _, r := range msg.term {
			var c tea.Cmd
			m.Search, c = m.Search.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
			typed = c
		}
		return m, tea.Batch(cmd, typed)

	case components.SearchSelectedMsg:
		m.State = StateBrowsing
		return m, m.openDetail(msg.Record.ID, nil)

	case components.SearchFailedMsg:
		return m, m.setStatus(fmt.Sprintf("Search failed for %q: %v", msg.Term, msg.Err), true)

	case HomeLoadedMsg:
		if !msg.Cached {
			m.done()
		}
		m.applyHome(msg.Feed)
		m.loaded[PageHome] = !msg.Cached
		return m, nil

	case BrowseLoadedMsg:
		m.done()
		m.Browse.SetAnime(msg.Anime)
		m.loaded[PageBrowse] = true
		return m, nil

	case RecentLoadedMsg:
		m.done()
		m.Added.SetAnime(msg.Anime)
		m.loaded[PageRecent] = true
		return m, nil

	case AnimeLoadedMsg:
		m.done()
		if msg.Anime != nil && msg.Anime.ID == m.detailID {
			m.Detail = msg.Anime
			m.Inspector.SetItem(m.Detail)
		}
		return m, nil

	case EpisodesLoadedMsg:
		m.done()
		if msg.AnimeID == m.detailID {
			m.Episodes.SetEpisodes(msg.Episodes)
			m.Episodes.SetTitle(fmt.Sprintf("Episodes (%d)", len(msg.Episodes)))
		}
		return m, nil

	case PlaybackStartedMsg:
		m.done()
		text := "Playing " + msg.Target.Episode.Label()
		if msg.Target.Next != nil {
			text += " · next: " + msg.Target.Next.Label()
		}
		return m, m.setStatus(text, false)

	case WarmUpDoneMsg:
		m.done()
		return m, m.setStatus(fmt.Sprintf("Search index loaded: %d anime", msg.Count), false)

	case ErrMsg:
		m.done()
		m.Recent.SetLoading(false)
		m.Popular.SetLoading(false)
		m.Browse.SetLoading(false)
		m.Added.SetLoading(false)
		m.Episodes.SetLoading(false)
		m.logger.Error("tui operation failed", "context", msg.Context, "error", msg.Err)
		return m, m.setStatus(msg.Error(), true)

	case StatusMsg:
		return m, m.setStatus(msg.Message, msg.IsError)

	case ClearStatusMsg:
		if msg.ID == m.statusID {
			m.StatusMsg = ""
			m.StatusIsErr = false
		}
		return m, nil
	}

	if m.Search.IsOpen() {
		var cmd tea.Cmd
		m.Search, cmd = m.Search.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.State == StateHelp {
		m.State = StateBrowsing
		return m, nil
	}

	if m.Search.IsOpen() {
		var cmd tea.Cmd
		m.Search, cmd = m.Search.Update(msg)
		if !m.Search.IsOpen() {
			m.State = StateBrowsing
		}
		return m, cmd
	}

	col := m.focusedColumn()

	// A column typing into its filter owns every key
	if col != nil && col.IsFilterTyping() {
		col.Update(msg)
		m.syncInspector()
		return m, nil
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.State = StateHelp
		return m, nil

	case key.Matches(msg, Keys.Search):
		return m, m.openSearch()

	case key.Matches(msg, Keys.Filter):
		if col != nil && m.Page != PageHome {
			col.ToggleFilter()
			m.updateLayout()
		}
		return m, nil

	case key.Matches(msg, Keys.Home):
		return m, m.switchPage(PageHome)

	case key.Matches(msg, Keys.Browse):
		return m, m.switchPage(PageBrowse)

	case key.Matches(msg, Keys.Recent):
		return m, m.switchPage(PageRecent)

	case key.Matches(msg, Keys.NextPane), key.Matches(msg, Keys.PrevPane):
		if m.Page == PageHome {
			m.homeFocus = 1 - m.homeFocus
			m.Recent.SetFocused(m.homeFocus == 0)
			m.Popular.SetFocused(m.homeFocus == 1)
		}
		return m, nil

	case key.Matches(msg, Keys.Back):
		if col != nil && col.IsFiltering() {
			col.ClearFilter()
			m.updateLayout()
			return m, nil
		}
		if m.Page == PageDetail {
			return m, m.switchPage(m.returnPage)
		}
		return m, nil

	case key.Matches(msg, Keys.Enter):
		return m, m.activate()

	case key.Matches(msg, Keys.Watch):
		if m.Page == PageHome && m.Featured != nil && m.FeaturedEpisode != nil {
			m.pending++
			return m, PlayEpisodeCmd(m.Catalog, m.Player, m.Featured.ID, m.FeaturedEpisode.ID)
		}
		return m, nil

	case key.Matches(msg, Keys.Refresh):
		return m, m.refresh()

	case key.Matches(msg, Keys.WarmUp):
		m.pending++
		return m, tea.Batch(WarmUpCmd(m.Catalog), m.setStatus("Loading full search index...", false))
	}

	if col != nil {
		col.Update(msg)
		m.syncInspector()
	}
	return m, nil
}

func (m *Model) openSearch() tea.Cmd {
	m.State = StateSearching
	m.Search.SetSize(m.Width, m.Height)
	return m.Search.Open()
}

// activate handles enter: open the selected anime or play the selected episode
func (m *Model) activate() tea.Cmd {
	if m.Page == PageDetail {
		ep := m.Episodes.SelectedEpisode()
		if ep == nil {
			return nil
		}
		m.pending++
		return tea.Batch(
			PlayEpisodeCmd(m.Catalog, m.Player, ep.AnimeID, ep.ID),
			m.setStatus("Launching "+ep.Label()+"...", false),
		)
	}

	col := m.focusedColumn()
	if col == nil {
		return nil
	}
	if a := col.SelectedAnime(); a != nil {
		return m.openDetail(a.ID, a)
	}
	return nil
}

// openDetail shows an anime's detail page. known is the listing row when
// the caller has one; otherwise the anime is fetched.
func (m *Model) openDetail(id string, known *domain.Anime) tea.Cmd {
	if m.Page != PageDetail {
		m.returnPage = m.Page
	}
	m.Page = PageDetail
	m.detailID = id
	m.Detail = known
	if known != nil {
		m.Inspector.SetItem(known)
	} else {
		m.Inspector.SetItem(nil)
	}
	m.Episodes.SetEpisodes(nil)
	m.Episodes.SetTitle("Episodes")
	m.updateLayout()

	var cmds []tea.Cmd
	if known == nil {
		m.pending++
		cmds = append(cmds, LoadAnimeCmd(m.Catalog, id))
	}

	if m.Cached != nil {
		if eps, ok := m.Cached.CachedEpisodes(id); ok {
			m.Episodes.SetEpisodes(eps)
		}
	}
	if m.Episodes.IsEmpty() {
		m.Episodes.SetLoading(true)
	}
	m.pending++
	cmds = append(cmds, LoadEpisodesCmd(m.Catalog, id))
	return tea.Batch(cmds...)
}

// switchPage changes the top-level page, loading it on first visit
func (m *Model) switchPage(p Page) tea.Cmd {
	if p == PageDetail && m.detailID == "" {
		p = PageHome
	}
	m.Page = p
	m.updateLayout()
	m.syncInspector()

	if m.loaded[p] {
		return nil
	}

	switch p {
	case PageBrowse:
		if m.Browse.IsEmpty() && m.Cached != nil {
			if items, ok := m.Cached.CachedBrowse(); ok {
				m.Browse.SetAnime(items)
			}
		}
		m.Browse.SetLoading(m.Browse.IsEmpty())
		m.loaded[p] = true
		m.pending++
		return LoadBrowseCmd(m.Catalog)

	case PageRecent:
		if m.Added.IsEmpty() && m.Cached != nil {
			if items, ok := m.Cached.CachedRecentlyAdded(); ok {
				m.Added.SetAnime(items)
			}
		}
		m.Added.SetLoading(m.Added.IsEmpty())
		m.loaded[p] = true
		m.pending++
		return LoadRecentCmd(m.Catalog, m.opts.RecentLimit)
	}
	return nil
}

// refresh reloads the current page from the network
func (m *Model) refresh() tea.Cmd {
	m.pending++
	switch m.Page {
	case PageBrowse:
		return LoadBrowseCmd(m.Catalog)
	case PageRecent:
		return LoadRecentCmd(m.Catalog, m.opts.RecentLimit)
	case PageDetail:
		m.pending++
		return tea.Batch(LoadAnimeCmd(m.Catalog, m.detailID), LoadEpisodesCmd(m.Catalog, m.detailID))
	default:
		return LoadHomeCmd(m.Catalog)
	}
}

func (m *Model) applyHome(feed *catalog.HomeFeed) {
	if feed == nil {
		return
	}
	m.Featured = feed.Featured
	m.FeaturedEpisode = feed.FeaturedEpisode
	m.Recent.SetAnime(feed.Recent)
	m.Popular.SetAnime(feed.Popular)
}

// setStatus shows a transient toast that clears itself
func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusID++
	m.StatusMsg = text
	m.StatusIsErr = isErr
	delay := statusTimeout
	if isErr {
		delay = errorStatusTimeout
	}
	return ClearStatusCmd(m.statusID, delay)
}

func (m *Model) done() {
	if m.pending > 0 {
		m.pending--
	}
}

// Loading reports whether a network load is in flight
func (m Model) Loading() bool {
	return m.pending > 0
}

// focusedColumn returns the list the cursor keys drive on the current page
func (m Model) focusedColumn() *components.ListColumn {
	switch m.Page {
	case PageHome:
		if m.homeFocus == 1 {
			return m.Popular
		}
		return m.Recent
	case PageBrowse:
		return m.Browse
	case PageRecent:
		return m.Added
	case PageDetail:
		return m.Episodes
	}
	return nil
}

func (m Model) columns() []*components.ListColumn {
	return []*components.ListColumn{m.Recent, m.Popular, m.Browse, m.Added, m.Episodes}
}

// syncInspector points the inspector at the current selection
func (m *Model) syncInspector() {
	switch m.Page {
	case PageBrowse, PageRecent:
		if col := m.focusedColumn(); col != nil {
			if a := col.SelectedAnime(); a != nil {
				m.Inspector.SetItem(a)
				return
			}
		}
		m.Inspector.SetItem(nil)
	case PageDetail:
		if m.Detail != nil {
			m.Inspector.SetItem(m.Detail)
		}
	}
}
