package components

import (
	"fmt"
	"strings"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/tui/styles"
)

// Layout constants for inspector
const (
	InspectorBorderHeight     = 2
	InspectorScrollIndicators = 2
)

// inspectorContent holds the three-zone layout content
type inspectorContent struct {
	header string // fixed top
	body   string // scrollable middle
	footer string // fixed bottom
}

// Inspector displays the details of an anime or episode
type Inspector struct {
	item       interface{}
	title      string
	width      int
	height     int
	offset     int
	maxVisible int
}

// NewInspector creates a new inspector component
func NewInspector(title string) Inspector {
	return Inspector{title: title}
}

// SetItem sets the item to display: *domain.Anime or *domain.Episode
func (i *Inspector) SetItem(item interface{}) {
	i.item = item
	i.offset = 0
}

// SetSize updates the component dimensions
func (i *Inspector) SetSize(width, height int) {
	i.width = width
	i.height = height
	// Border, scroll indicators, title and blank line
	i.maxVisible = height - InspectorBorderHeight - InspectorScrollIndicators - 2
	if i.maxVisible < 1 {
		i.maxVisible = 1
	}
}

// HasItem returns true if there is an item to display
func (i Inspector) HasItem() bool {
	return i.item != nil
}

// ScrollDown scrolls the body by one line
func (i *Inspector) ScrollDown() {
	i.offset++
}

// ScrollUp scrolls the body by one line
func (i *Inspector) ScrollUp() {
	if i.offset > 0 {
		i.offset--
	}
}

// View renders the component
func (i Inspector) View() string {
	style := styles.InactiveBorder

	contentWidth := i.width - 3
	if contentWidth < 10 {
		contentWidth = 10
	}
	content := i.renderInspector(contentWidth)

	titleLine := styles.AccentStyle.Render(styles.Truncate(i.title, contentWidth))

	// Header is fixed, body scrolls, footer is pinned
	headerLines := splitLines(content.header)
	footerLines := splitLines(content.footer)
	bodyLines := splitLines(content.body)

	availableForBody := i.maxVisible - len(headerLines) - len(footerLines)
	if availableForBody < 1 {
		availableForBody = 1
	}

	maxOffset := len(bodyLines) - availableForBody
	if maxOffset < 0 {
		maxOffset = 0
	}
	offset := i.offset
	if offset > maxOffset {
		offset = maxOffset
	}

	end := offset + availableForBody
	if end > len(bodyLines) {
		end = len(bodyLines)
	}
	visibleBody := bodyLines[offset:end]

	up := " "
	if offset > 0 {
		up = styles.DimStyle.Render("↑ more")
	}
	down := " "
	if end < len(bodyLines) {
		down = styles.DimStyle.Render("↓ more")
	}

	parts := []string{titleLine, ""}
	if len(headerLines) > 0 {
		parts = append(parts, headerLines...)
	}
	parts = append(parts, up)
	parts = append(parts, visibleBody...)
	for j := len(visibleBody); j < availableForBody; j++ {
		parts = append(parts, "")
	}
	parts = append(parts, down)
	if len(footerLines) > 0 {
		parts = append(parts, footerLines...)
	}

	frameW, frameH := style.GetFrameSize()
	return style.
		Width(i.width - frameW).
		Height(i.height - frameH).
		Render(strings.Join(parts, "\n"))
}

func (i Inspector) renderInspector(width int) inspectorContent {
	switch v := i.item.(type) {
	case *domain.Anime:
		return renderAnimeInspector(*v, width)
	case *domain.Episode:
		return renderEpisodeInspector(*v, width)
	default:
		return inspectorContent{body: styles.DimStyle.Render("Nothing selected")}
	}
}

func renderAnimeInspector(a domain.Anime, width int) inspectorContent {
	var header strings.Builder
	header.WriteString(styles.TitleStyle.Render(styles.Truncate(a.Title, width)))
	header.WriteString("\n")

	meta := []string{a.YearLabel()}
	if a.Status != "" {
		meta = append(meta, strings.ToUpper(string(a.Status[:1]))+string(a.Status[1:]))
	}
	header.WriteString(styles.SubtitleStyle.Render(strings.Join(meta, " • ")))
	if genres := a.GenreList(); genres != "" {
		header.WriteString("\n")
		header.WriteString(styles.DimStyle.Render(styles.Truncate(genres, width)))
	}

	body := styles.DimStyle.Render("No description available.")
	if strings.TrimSpace(a.Description) != "" {
		body = wordWrap(a.Description, width)
	}

	footer := styles.DimStyle.Render(styles.Truncate("Poster: "+a.Poster(), width))
	return inspectorContent{header: header.String(), body: body, footer: footer}
}

func renderEpisodeInspector(e domain.Episode, width int) inspectorContent {
	var header strings.Builder
	header.WriteString(styles.TitleStyle.Render(styles.Truncate(e.Label(), width)))
	if e.Duration > 0 {
		header.WriteString("\n")
		header.WriteString(styles.SubtitleStyle.Render(e.FormattedDuration()))
	}

	body := styles.DimStyle.Render("No description available.")
	if strings.TrimSpace(e.Description) != "" {
		body = wordWrap(e.Description, width)
	}

	footer := styles.DimStyle.Render(fmt.Sprintf("enter: play • %s", styles.Truncate(e.VideoURL, width-14)))
	return inspectorContent{header: header.String(), body: body, footer: footer}
}

// splitLines splits a string into lines, returning empty slice for empty string
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// wordWrap wraps text to the specified width
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	lineLen := 0

	for _, word := range strings.Fields(text) {
		wordLen := len([]rune(word))

		if lineLen > 0 && lineLen+wordLen+1 > width {
			result.WriteString("\n")
			lineLen = 0
		}
		if lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}

		result.WriteString(word)
		lineLen += wordLen
	}

	return result.String()
}
