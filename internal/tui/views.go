package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/anikino/internal/tui/styles"
)

// Layout proportions
const (
	// Browse and recently added: [List | Inspector]
	ListColumnPercent = 55

	// Detail: [Inspector | Episodes]
	DetailInfoPercent = 40
)

// updateLayout updates component sizes based on window size
func (m *Model) updateLayout() {
	if m.Width == 0 || m.Height == 0 {
		return
	}

	contentHeight := m.Height - ChromeHeight
	m.Search.SetSize(m.Width, m.Height)

	switch m.Page {
	case PageHome:
		rowsHeight := contentHeight
		if m.Featured != nil {
			rowsHeight -= FeaturedHeight
		}
		left := max(m.Width/2, MinColumnWidth)
		m.Recent.SetSize(left, rowsHeight)
		m.Popular.SetSize(m.Width-left, rowsHeight)

	case PageBrowse, PageRecent:
		left := max(m.Width*ListColumnPercent/100, MinColumnWidth)
		m.focusedColumn().SetSize(left, contentHeight)
		m.Inspector.SetSize(m.Width-left, contentHeight)

	case PageDetail:
		left := max(m.Width*DetailInfoPercent/100, MinColumnWidth)
		m.Inspector.SetSize(left, contentHeight)
		m.Episodes.SetSize(m.Width-left, contentHeight)
	}
}

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	if m.State == StateHelp {
		return m.renderHelp()
	}

	if m.Search.IsOpen() {
		return m.Search.View()
	}

	// Sizes depend on the page and on whether a featured banner exists
	m.updateLayout()

	var content string
	switch m.Page {
	case PageHome:
		rows := lipgloss.JoinHorizontal(lipgloss.Top, m.Recent.View(), m.Popular.View())
		if m.Featured != nil {
			content = lipgloss.JoinVertical(lipgloss.Left, m.renderFeatured(), rows)
		} else {
			content = rows
		}

	case PageBrowse, PageRecent:
		m.syncInspector()
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.focusedColumn().View(), m.Inspector.View())

	case PageDetail:
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.Inspector.View(), m.Episodes.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		content,
		m.renderFooter(),
	)
}

// renderHeader renders the app name and page tabs
func (m Model) renderHeader() string {
	brand := styles.AccentStyle.Bold(true).Render("anikino") + " "

	var tabs []string
	for _, p := range []Page{PageHome, PageBrowse, PageRecent} {
		label := fmt.Sprintf("%d %s", int(p)+1, p)
		if m.Page == p || (m.Page == PageDetail && m.returnPage == p) {
			tabs = append(tabs, styles.ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, styles.InactiveTabStyle.Render(label))
		}
	}

	header := brand + strings.Join(tabs, " ")
	if m.Page == PageDetail && m.Detail != nil {
		room := m.Width - lipgloss.Width(header)
		header += styles.DimStyle.Render(styles.Truncate(" › "+m.Detail.Title, room))
	}
	return header
}

// renderFeatured renders the home banner for the newest anime
func (m Model) renderFeatured() string {
	f := m.Featured
	width := m.Width - 4

	title := styles.TitleStyle.Render(styles.Truncate(f.Title, width))
	parts := []string{f.YearLabel()}
	if len(f.Genres) > 0 {
		parts = append(parts, f.GenreList())
	}
	if f.Status != "" {
		parts = append(parts, string(f.Status))
	}
	meta := styles.SubtitleStyle.Render(styles.Truncate(strings.Join(parts, " • "), width))

	action := styles.DimStyle.Render("No episodes yet")
	if m.FeaturedEpisode != nil {
		action = styles.HelpKeyStyle.Render("w") + styles.HelpDescStyle.Render(" watch now: "+m.FeaturedEpisode.Label())
	}

	return lipgloss.NewStyle().
		Padding(0, 1).
		Height(FeaturedHeight).
		Render(styles.BadgeStyle.Render("FEATURED") + "\n" + title + "\n" + meta + "\n" + action)
}

// renderFooter renders a single-line minimal footer
func (m Model) renderFooter() string {
	var left string
	switch {
	case m.StatusMsg != "":
		if m.StatusIsErr {
			left = styles.ToastErrorStyle.Render(m.StatusMsg)
		} else {
			left = styles.ToastStyle.Render(m.StatusMsg)
		}
	case m.Loading():
		left = m.spinner.View() + " " + styles.DimStyle.Render("Loading...")
	}

	right := styles.HelpKeyStyle.Render("/") + styles.HelpDescStyle.Render(" search  ") +
		styles.HelpKeyStyle.Render("?") + styles.HelpDescStyle.Render(" help")

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// renderHelp renders the help screen
func (m Model) renderHelp() string {
	help := `
NAVIGATION                      ACTIONS
  j/k        Up/down              Enter   Open / play episode
  g/G        First/last item      w       Watch featured episode
  Ctrl+u/d   Scroll half page     r       Refresh
  Tab        Switch home row      W       Load full search index
  Esc/h      Back                 q       Quit

PAGES                           SEARCH
  1          Home                 / C-k   Search anime
  2          Browse               f       Filter list
  3          Recently added       ?       This help

Press any key to return...
`

	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(help))
}
