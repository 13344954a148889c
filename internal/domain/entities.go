package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PlaceholderPoster is shown wherever a poster reference is missing or unusable
const PlaceholderPoster = "/placeholder.svg"

// YearUnknown is the sentinel year for records whose release year is missing or malformed
const YearUnknown = 0

// AnimeStatus is the airing state of a series
type AnimeStatus string

const (
	StatusOngoing   AnimeStatus = "ongoing"
	StatusCompleted AnimeStatus = "completed"
)

// Valid reports whether the status is one the catalog accepts
func (s AnimeStatus) Valid() bool {
	return s == StatusOngoing || s == StatusCompleted
}

// Anime is a full catalog record
type Anime struct {
	ID          string      // Backend row identifier (uuid)
	CreatedAt   time.Time   // When the row was added
	Title       string      // Display title
	Description string      // Synopsis
	ImageURL    string      // Poster image URL
	Genres      []string    // Genre tags
	ReleaseYear int         // Release year, YearUnknown if missing
	Status      AnimeStatus // ongoing or completed
}

// SearchRecord projects the anime to the lightweight record held by the search cache
func (a Anime) SearchRecord() SearchRecord {
	return SearchRecord{
		ID:        a.ID,
		Title:     a.Title,
		PosterURL: a.ImageURL,
		Year:      a.ReleaseYear,
	}
}

// YearLabel returns the release year for display, "N/A" when unknown
func (a Anime) YearLabel() string {
	return yearLabel(a.ReleaseYear)
}

// Poster returns the poster URL or the placeholder when it is unusable
func (a Anime) Poster() string {
	return posterOrPlaceholder(a.ImageURL)
}

// GenreList returns the genres joined for display
func (a Anime) GenreList() string {
	if len(a.Genres) == 0 {
		return "-"
	}
	return strings.Join(a.Genres, ", ")
}

// Episode is a single playable episode of an anime
type Episode struct {
	ID            string
	AnimeID       string
	CreatedAt     time.Time
	Title         string
	EpisodeNumber int
	Description   string
	VideoURL      string // Embed URL handed to the external player
	ThumbnailURL  string
	Duration      int // Minutes
}

// Label returns "Episode N: Title"
func (e Episode) Label() string {
	if e.Title == "" {
		return fmt.Sprintf("Episode %d", e.EpisodeNumber)
	}
	return fmt.Sprintf("Episode %d: %s", e.EpisodeNumber, e.Title)
}

// FormattedDuration returns the runtime in a human-readable format
func (e Episode) FormattedDuration() string {
	if e.Duration <= 0 {
		return ""
	}
	h := e.Duration / 60
	mins := e.Duration % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// Thumbnail returns the thumbnail URL or the placeholder
func (e Episode) Thumbnail() string {
	return posterOrPlaceholder(e.ThumbnailURL)
}

// Admin is a row of the admins table
type Admin struct {
	ID       string
	Username string
	Email    string
	Role     string
}

// RoleAdmin is the only role that grants catalog writes
const RoleAdmin = "admin"

// IsAdmin reports whether the row grants admin access
func (a *Admin) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Session is an authenticated backend session
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Email        string
}

// Expired reports whether the access token is past (or within a minute of) its expiry
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(time.Minute).Before(s.ExpiresAt)
}

// SearchRecord is the unit held by the search cache
type SearchRecord struct {
	ID        string
	Title     string
	PosterURL string
	Year      int
}

// Poster returns the poster URL or the placeholder when it is missing or malformed
func (r SearchRecord) Poster() string {
	return posterOrPlaceholder(r.PosterURL)
}

// YearLabel returns the year for display, "N/A" when unknown
func (r SearchRecord) YearLabel() string {
	return yearLabel(r.Year)
}

func yearLabel(year int) string {
	if year <= YearUnknown {
		return "N/A"
	}
	return strconv.Itoa(year)
}

func posterOrPlaceholder(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PlaceholderPoster
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return PlaceholderPoster
	}
	return raw
}

// ListOptions controls listing queries
type ListOptions struct {
	Limit      int    // 0 = backend default
	Offset     int    // Rows to skip
	OrderBy    string // Column name, empty for backend order
	Descending bool
}
