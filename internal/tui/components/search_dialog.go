package components

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/metrics"
	"github.com/mmcdole/anikino/internal/search"
	"github.com/mmcdole/anikino/internal/tui/styles"
)

const (
	DefaultSearchDebounce = 300 * time.Millisecond
	searchTimeout         = 15 * time.Second
)

// SearchDebounceMsg fires after the debounce delay of a keystroke.
// Only the message carrying the latest ID runs a search.
type SearchDebounceMsg struct {
	ID int
}

// SearchResultMsg carries a finished search tagged with its request token
type SearchResultMsg struct {
	Token  uint64
	Result search.Result
}

// SearchSelectedMsg is emitted when the user picks a result
type SearchSelectedMsg struct {
	Record domain.SearchRecord
}

// SearchFailedMsg is emitted when a live lookup fails
type SearchFailedMsg struct {
	Term string
	Err  error
}

// SearchDialog is the incremental search modal. It debounces keystrokes,
// serves cache matches synchronously and only commits the latest live response.
type SearchDialog struct {
	engine   *search.Engine
	debounce time.Duration

	input   textinput.Model
	term    string
	results []domain.SearchRecord
	cursor  int
	open    bool
	loading bool

	debounceID int
	tracker    search.Tracker

	width  int
	height int
}

// NewSearchDialog creates a search dialog backed by engine
func NewSearchDialog(engine *search.Engine, debounce time.Duration) SearchDialog {
	if debounce <= 0 {
		debounce = DefaultSearchDebounce
	}

	ti := textinput.New()
	ti.Placeholder = "Search anime..."
	ti.CharLimit = 100
	ti.Width = 40
	ti.Prompt = "🔍 "
	ti.PromptStyle = styles.AccentStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return SearchDialog{
		engine:   engine,
		debounce: debounce,
		input:    ti,
	}
}

// Open shows the dialog and focuses the input. Prior results are kept.
func (d *SearchDialog) Open() tea.Cmd {
	d.open = true
	d.input.Focus()
	return textinput.Blink
}

// Close hides the dialog, resets the term and results and invalidates
// every pending debounce and in-flight request.
func (d *SearchDialog) Close() {
	d.open = false
	d.input.Blur()
	d.input.SetValue("")
	d.term = ""
	d.results = nil
	d.cursor = 0
	d.loading = false
	d.debounceID++
	d.tracker.Invalidate()
}

func (d SearchDialog) IsOpen() bool {
	return d.open
}

func (d SearchDialog) IsLoading() bool {
	return d.loading
}

func (d SearchDialog) Term() string {
	return d.term
}

// Results returns the committed results
func (d SearchDialog) Results() []domain.SearchRecord {
	return d.results
}

// Selected returns the record under the cursor
func (d SearchDialog) Selected() (domain.SearchRecord, bool) {
	if d.cursor < 0 || d.cursor >= len(d.results) {
		return domain.SearchRecord{}, false
	}
	return d.results[d.cursor], true
}

// SetSize updates the component dimensions
func (d *SearchDialog) SetSize(width, height int) {
	d.width = width
	d.height = height
	d.input.Width = d.modalWidth() - 12
}

// Update handles keys and the dialog's own messages
func (d SearchDialog) Update(msg tea.Msg) (SearchDialog, tea.Cmd) {
	switch msg := msg.(type) {
	case SearchDebounceMsg:
		return d.handleDebounce(msg)

	case SearchResultMsg:
		return d.handleResult(msg)

	case tea.KeyMsg:
		if !d.open {
			return d, nil
		}
		switch {
		case key.Matches(msg, SearchDialogKeys.Escape):
			d.Close()
			return d, nil

		case key.Matches(msg, SearchDialogKeys.Enter):
			rec, ok := d.Selected()
			if !ok {
				return d, nil
			}
			d.Close()
			return d, func() tea.Msg { return SearchSelectedMsg{Record: rec} }

		case key.Matches(msg, SearchDialogKeys.Down):
			if d.cursor < len(d.results)-1 {
				d.cursor++
			}
			return d, nil

		case key.Matches(msg, SearchDialogKeys.Up):
			if d.cursor > 0 {
				d.cursor--
			}
			return d, nil
		}

		var cmd tea.Cmd
		d.input, cmd = d.input.Update(msg)
		searchCmd := d.termChanged(d.input.Value())
		return d, tea.Batch(cmd, searchCmd)
	}

	if !d.open {
		return d, nil
	}
	var cmd tea.Cmd
	d.input, cmd = d.input.Update(msg)
	return d, cmd
}

// termChanged records a new term and schedules its debounced search
func (d *SearchDialog) termChanged(value string) tea.Cmd {
	if value == d.term {
		return nil
	}
	d.term = value
	d.debounceID++

	if !d.engine.IsSearchable(value) {
		d.results = nil
		d.cursor = 0
		d.loading = false
		d.tracker.Invalidate()
		return nil
	}

	id := d.debounceID
	return tea.Tick(d.debounce, func(time.Time) tea.Msg {
		return SearchDebounceMsg{ID: id}
	})
}

func (d SearchDialog) handleDebounce(msg SearchDebounceMsg) (SearchDialog, tea.Cmd) {
	if !d.open || msg.ID != d.debounceID || !d.engine.IsSearchable(d.term) {
		return d, nil
	}

	token := d.tracker.Next()

	// Cache matches are committed here without a round trip
	if local := d.engine.Local(d.term); len(local) > 0 {
		metrics.CacheHitsTotal.Inc()
		d.results = local
		d.cursor = 0
		d.loading = false
		return d, nil
	}

	d.loading = true
	engine, term := d.engine, d.term
	return d, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
		defer cancel()
		return SearchResultMsg{Token: token, Result: engine.Search(ctx, term)}
	}
}

func (d SearchDialog) handleResult(msg SearchResultMsg) (SearchDialog, tea.Cmd) {
	if !d.tracker.Current(msg.Token) {
		metrics.StaleResponsesDiscardedTotal.Inc()
		return d, nil
	}

	d.loading = false
	d.results = msg.Result.Records
	d.cursor = 0

	if msg.Result.Err != nil {
		term, err := msg.Result.Term, msg.Result.Err
		return d, func() tea.Msg { return SearchFailedMsg{Term: term, Err: err} }
	}
	return d, nil
}

func (d SearchDialog) modalWidth() int {
	w := d.width * 2 / 3
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

// View renders the dialog centered in its area
func (d SearchDialog) View() string {
	if !d.open {
		return ""
	}

	modalWidth := d.modalWidth()

	var b strings.Builder
	b.WriteString(styles.ModalTitleStyle.Render("Search"))
	b.WriteString("\n")
	b.WriteString(d.input.View())
	b.WriteString("\n\n")
	b.WriteString(d.Body(modalWidth - 6))

	content := lipgloss.NewStyle().
		Width(modalWidth - 4).
		Render(b.String())

	modal := styles.ModalStyle.
		Width(modalWidth).
		Render(content)

	return lipgloss.Place(d.width, d.height, lipgloss.Center, lipgloss.Center, modal)
}

// Body renders the state below the input: loading, idle prompt,
// no results, or the result rows.
func (d SearchDialog) Body(width int) string {
	switch {
	case d.loading:
		return styles.SpinnerStyle.Render("Searching...")
	case !d.engine.IsSearchable(d.term):
		return styles.DimStyle.Render(fmt.Sprintf("Type at least %d characters to search", d.engine.MinQueryLength()))
	case len(d.results) == 0:
		return styles.DimStyle.Render(fmt.Sprintf("No anime found for %q", strings.TrimSpace(d.term)))
	}

	var lines []string
	for i, rec := range d.results {
		lines = append(lines, renderSearchRow(rec, i == d.cursor, width))
	}
	return strings.Join(lines, "\n")
}

func renderSearchRow(rec domain.SearchRecord, selected bool, width int) string {
	year := rec.YearLabel()
	poster := rec.Poster()
	posterFg := styles.DimGray

	titleWidth := width - len(year) - 6
	if titleWidth < 8 {
		titleWidth = 8
	}

	accent := styles.AccentSoft
	parts := []styles.RowPart{
		{Text: styles.Truncate(rec.Title, titleWidth)},
		{Text: " " + year, Foreground: &accent},
	}
	row := styles.RenderListRow(parts, selected, width)

	// Poster reference on its own dim line, placeholder when missing
	posterLine := lipgloss.NewStyle().Foreground(posterFg).Render("   " + styles.Truncate(poster, width-4))
	return row + "\n" + posterLine
}
