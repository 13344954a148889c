package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/tui/styles"
	"github.com/sahilm/fuzzy"
)

// Spinner frames for loading animation
var listColumnSpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Layout constants for list columns
const (
	// Border adds 1 char on each side
	BorderWidth  = 2
	BorderHeight = 2

	// Scroll indicators ("↑ more" and "↓ more") each take 1 line
	ScrollIndicatorLines = 2
)

// ColumnType identifies the type of content in a column
type ColumnType int

const (
	ColumnTypeAnime ColumnType = iota
	ColumnTypeEpisodes
)

// ListColumn is a scrollable, filterable list of anime or episodes
type ListColumn struct {
	// Only one of these is populated, matching columnType
	anime    []domain.Anime
	episodes []domain.Episode

	columnType ColumnType
	ranked     bool // Prefix anime rows with their position

	// Selection
	cursor     int
	offset     int
	maxVisible int

	// Dimensions
	width   int
	height  int
	focused bool

	title string

	// Loading state
	loading      bool
	spinnerFrame int

	// Filter state
	filterActive bool
	filterInput  textinput.Model
	filterQuery  string
	filteredIdx  []int // indices into the original slice
}

// NewListColumn creates a new list column with the given type and title
func NewListColumn(colType ColumnType, title string) *ListColumn {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return &ListColumn{
		columnType:  colType,
		title:       title,
		filterInput: ti,
	}
}

// NewAnimeColumn creates a column for displaying anime
func NewAnimeColumn(title string, anime []domain.Anime) *ListColumn {
	col := NewListColumn(ColumnTypeAnime, title)
	col.anime = anime
	return col
}

// NewEpisodesColumn creates a column for displaying episodes
func NewEpisodesColumn(title string, episodes []domain.Episode) *ListColumn {
	col := NewListColumn(ColumnTypeEpisodes, title)
	col.episodes = episodes
	return col
}

// SetRanked toggles the "1." "2." position prefix on anime rows
func (c *ListColumn) SetRanked(ranked bool) {
	c.ranked = ranked
}

func (c *ListColumn) Update(msg tea.Msg) (*ListColumn, tea.Cmd) {
	if !c.focused {
		return c, nil
	}

	// Typing into the filter
	if c.filterActive && c.filterInput.Focused() {
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch {
			case key.Matches(msg, ListColumnKeys.Escape):
				c.clearFilter()
				return c, nil
			case key.Matches(msg, ListColumnKeys.Enter):
				c.filterInput.Blur()
				return c, nil
			case msg.Type == tea.KeyBackspace && c.filterInput.Value() == "":
				c.clearFilter()
				return c, nil
			}
		}

		var cmd tea.Cmd
		c.filterInput, cmd = c.filterInput.Update(msg)
		c.applyFilter()
		return c, cmd
	}

	// Filter accepted, navigating its results
	if c.filterActive {
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch {
			case key.Matches(msg, ListColumnKeys.Escape):
				c.clearFilter()
				return c, nil
			case key.Matches(msg, ListColumnKeys.Filter):
				c.filterInput.Focus()
				return c, nil
			}
		}
	}

	count := c.ItemCount()
	if count == 0 {
		return c, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, ListColumnKeys.Down):
			if c.cursor < count-1 {
				c.cursor++
				c.ensureVisible()
			}
		case key.Matches(msg, ListColumnKeys.Up):
			if c.cursor > 0 {
				c.cursor--
				c.ensureVisible()
			}
		case key.Matches(msg, ListColumnKeys.Home):
			c.cursor = 0
			c.offset = 0
		case key.Matches(msg, ListColumnKeys.End):
			c.cursor = count - 1
			c.ensureVisible()
		case key.Matches(msg, ListColumnKeys.HalfDown):
			c.cursor += c.maxVisible / 2
			if c.cursor >= count {
				c.cursor = count - 1
			}
			c.ensureVisible()
		case key.Matches(msg, ListColumnKeys.HalfUp):
			c.cursor -= c.maxVisible / 2
			if c.cursor < 0 {
				c.cursor = 0
			}
			c.ensureVisible()
		}
	}

	return c, nil
}

func (c *ListColumn) View() string {
	style := styles.InactiveBorder
	if c.focused {
		style = styles.ActiveBorder
	}

	content := c.renderContent()

	// Subtract the frame so the rendered size equals c.width x c.height
	frameW, frameH := style.GetFrameSize()

	return style.
		Width(c.width - frameW).
		Height(c.height - frameH).
		Render(content)
}

func (c *ListColumn) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.recalcMaxVisible()
	c.ensureVisible()
}

func (c *ListColumn) SetFocused(focused bool) {
	c.focused = focused
}

func (c *ListColumn) IsFocused() bool {
	return c.focused
}

func (c *ListColumn) Title() string {
	return c.title
}

func (c *ListColumn) SetTitle(title string) {
	c.title = title
}

func (c *ListColumn) SelectedIndex() int {
	return c.cursor
}

func (c *ListColumn) SetSelectedIndex(idx int) {
	max := c.ItemCount() - 1
	if max < 0 {
		c.cursor = 0
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx > max {
		idx = max
	}
	c.cursor = idx
	c.ensureVisible()
}

func (c *ListColumn) ItemCount() int {
	if c.filteredIdx != nil {
		return len(c.filteredIdx)
	}
	return c.rawItemCount()
}

func (c *ListColumn) IsEmpty() bool {
	return c.ItemCount() == 0
}

func (c *ListColumn) SetLoading(loading bool) {
	c.loading = loading
}

func (c *ListColumn) IsLoading() bool {
	return c.loading
}

// SetSpinnerFrame updates the spinner animation frame
func (c *ListColumn) SetSpinnerFrame(frame int) {
	c.spinnerFrame = frame
}

// SetAnime replaces the content with anime, keeping the cursor on the
// same id when it is still present
func (c *ListColumn) SetAnime(anime []domain.Anime) {
	var keep string
	if a := c.SelectedAnime(); a != nil {
		keep = a.ID
	}
	c.reset()
	c.columnType = ColumnTypeAnime
	c.anime = anime
	for i, a := range anime {
		if a.ID == keep {
			c.SetSelectedIndex(i)
			break
		}
	}
}

// SetEpisodes replaces the content with episodes
func (c *ListColumn) SetEpisodes(episodes []domain.Episode) {
	c.reset()
	c.columnType = ColumnTypeEpisodes
	c.episodes = episodes
}

func (c *ListColumn) reset() {
	c.loading = false
	c.cursor = 0
	c.offset = 0
	c.clearFilter()
}

// ColumnType returns the column's content type
func (c *ListColumn) ColumnType() ColumnType {
	return c.columnType
}

// SelectedAnime returns the selected anime (if in an anime column)
func (c *ListColumn) SelectedAnime() *domain.Anime {
	if c.columnType != ColumnTypeAnime || c.cursor >= c.ItemCount() {
		return nil
	}
	a := c.anime[c.mapIndex(c.cursor)]
	return &a
}

// SelectedEpisode returns the selected episode (if in an episodes column)
func (c *ListColumn) SelectedEpisode() *domain.Episode {
	if c.columnType != ColumnTypeEpisodes || c.cursor >= c.ItemCount() {
		return nil
	}
	e := c.episodes[c.mapIndex(c.cursor)]
	return &e
}

// ToggleFilter activates the filter input
func (c *ListColumn) ToggleFilter() {
	c.filterActive = true
	c.filterInput.Focus()
	c.recalcMaxVisible()
}

// IsFiltering returns true if filter mode is active
func (c *ListColumn) IsFiltering() bool {
	return c.filterActive
}

// IsFilterTyping returns true if filter is active AND input is focused
func (c *ListColumn) IsFilterTyping() bool {
	return c.filterActive && c.filterInput.Focused()
}

// ClearFilter deactivates the filter and shows all items
func (c *ListColumn) ClearFilter() {
	c.clearFilter()
}

// Internal methods

func (c *ListColumn) recalcMaxVisible() {
	// Interior height minus the title line and scroll indicators
	interiorHeight := c.height - BorderHeight
	c.maxVisible = interiorHeight - ScrollIndicatorLines - 1
	if c.filterActive {
		c.maxVisible--
	}
	if c.maxVisible < 1 {
		c.maxVisible = 1
	}
}

func (c *ListColumn) ensureVisible() {
	// Size not known yet
	if c.maxVisible <= 0 {
		return
	}
	if c.cursor < c.offset {
		c.offset = c.cursor
	}
	if c.cursor >= c.offset+c.maxVisible {
		c.offset = c.cursor - c.maxVisible + 1
	}
}

func (c *ListColumn) clearFilter() {
	c.filterActive = false
	c.filterQuery = ""
	c.filteredIdx = nil
	c.filterInput.SetValue("")
	c.filterInput.Blur()
	c.recalcMaxVisible()
}

func (c *ListColumn) applyFilter() {
	query := c.filterInput.Value()
	c.filterQuery = query

	if query == "" {
		c.filteredIdx = nil
		return
	}

	titles := c.getTitles()
	lowerTitles := make([]string, len(titles))
	for i, t := range titles {
		lowerTitles[i] = strings.ToLower(t)
	}

	matches := fuzzy.Find(strings.ToLower(query), lowerTitles)

	c.filteredIdx = make([]int, len(matches))
	for i, match := range matches {
		c.filteredIdx[i] = match.Index
	}

	c.cursor = 0
	c.offset = 0
}

func (c *ListColumn) getTitles() []string {
	switch c.columnType {
	case ColumnTypeAnime:
		titles := make([]string, len(c.anime))
		for i, a := range c.anime {
			titles[i] = a.Title
		}
		return titles
	case ColumnTypeEpisodes:
		titles := make([]string, len(c.episodes))
		for i, e := range c.episodes {
			titles[i] = e.Label()
		}
		return titles
	default:
		return nil
	}
}

func (c *ListColumn) rawItemCount() int {
	switch c.columnType {
	case ColumnTypeAnime:
		return len(c.anime)
	case ColumnTypeEpisodes:
		return len(c.episodes)
	default:
		return 0
	}
}

func (c *ListColumn) mapIndex(i int) int {
	if c.filteredIdx != nil && i < len(c.filteredIdx) {
		return c.filteredIdx[i]
	}
	return i
}

// Rendering

func (c *ListColumn) renderContent() string {
	itemWidth := c.width - BorderWidth
	if itemWidth < 10 {
		itemWidth = 10
	}

	titleLine := styles.AccentStyle.Render(styles.Truncate(c.title, itemWidth))

	if c.loading {
		spinner := listColumnSpinnerFrames[c.spinnerFrame%len(listColumnSpinnerFrames)]
		loadingLine := styles.DimStyle.Render(spinner + " Loading...")
		return titleLine + "\n" + " " + "\n" + loadingLine + "\n" + " "
	}

	count := c.ItemCount()
	if count == 0 {
		emptyMsg := styles.DimStyle.Render("Nothing here yet")
		if c.filterActive && c.filterQuery != "" {
			emptyMsg = styles.DimStyle.Render("No matches")
		}
		content := titleLine + "\n" + " " + "\n" + emptyMsg + "\n" + " "
		if c.filterActive {
			content += "\n" + c.renderFilterBar()
		}
		return content
	}

	var lines []string

	end := c.offset + c.maxVisible
	if end > count {
		end = count
	}

	for i := c.offset; i < end; i++ {
		selected := i == c.cursor && c.focused
		idx := c.mapIndex(i)

		switch c.columnType {
		case ColumnTypeAnime:
			lines = append(lines, c.renderAnimeItem(c.anime[idx], idx, selected, itemWidth))
		case ColumnTypeEpisodes:
			lines = append(lines, c.renderEpisodeItem(c.episodes[idx], selected, itemWidth))
		}
	}

	// Header and footer lines are always reserved to avoid layout shifts
	header := " "
	if c.offset > 0 {
		header = styles.DimStyle.Render("↑ more")
	}
	footer := " "
	if end < count {
		footer = styles.DimStyle.Render("↓ more")
	}

	content := titleLine + "\n" + header + "\n" + strings.Join(lines, "\n") + "\n" + footer
	if c.filterActive {
		content += "\n" + c.renderFilterBar()
	}
	return content
}

func (c *ListColumn) renderAnimeItem(a domain.Anime, idx int, selected bool, width int) string {
	indicatorChar := styles.OngoingChar
	indicatorFg := styles.Yellow
	if a.Status == domain.StatusCompleted {
		indicatorChar = styles.CompletedChar
		indicatorFg = styles.Green
	}

	prefix := ""
	if c.ranked {
		prefix = fmt.Sprintf("%d. ", idx+1)
	}

	title := fmt.Sprintf("%s%s (%s)", prefix, a.Title, a.YearLabel())

	// Indicator, space and margins
	availableForTitle := width - 4
	if availableForTitle < 5 {
		availableForTitle = 5
	}
	title = styles.Truncate(title, availableForTitle)

	parts := []styles.RowPart{
		{Text: indicatorChar, Foreground: &indicatorFg},
		{Text: " " + title},
	}
	return styles.RenderListRow(parts, selected, width)
}

func (c *ListColumn) renderEpisodeItem(e domain.Episode, selected bool, width int) string {
	code := fmt.Sprintf("E%02d", e.EpisodeNumber)
	accent := styles.Accent
	dim := styles.DimGray

	duration := ""
	if e.Duration > 0 {
		duration = " " + e.FormattedDuration()
	}

	availableForTitle := width - 4 - lipgloss.Width(code) - lipgloss.Width(duration)
	if availableForTitle < 5 {
		availableForTitle = 5
	}
	title := styles.Truncate(e.Title, availableForTitle)

	parts := []styles.RowPart{
		{Text: styles.EpisodeChar, Foreground: &accent},
		{Text: " " + code, Foreground: &accent},
		{Text: " " + title},
		{Text: duration, Foreground: &dim},
	}
	return styles.RenderListRow(parts, selected, width)
}

func (c *ListColumn) renderFilterBar() string {
	input := c.filterInput.View()

	countStr := ""
	if c.filterQuery != "" {
		countStr = styles.DimStyle.Render(fmt.Sprintf(" [%d/%d]", c.ItemCount(), c.rawItemCount()))
	}
	return input + countStr
}
