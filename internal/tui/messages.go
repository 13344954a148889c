package tui

import (
	"github.com/mmcdole/anikino/internal/catalog"
	"github.com/mmcdole/anikino/internal/domain"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// HomeLoadedMsg signals that the home feed has been loaded
type HomeLoadedMsg struct {
	Feed   *catalog.HomeFeed
	Cached bool // Read from the local store, a network refresh follows
}

// BrowseLoadedMsg signals that the full catalog has been loaded
type BrowseLoadedMsg struct {
	Anime  []domain.Anime
	Cached bool
}

// RecentLoadedMsg signals that the recently added page has been loaded
type RecentLoadedMsg struct {
	Anime  []domain.Anime
	Cached bool
}

// AnimeLoadedMsg signals that a single anime has been loaded
type AnimeLoadedMsg struct {
	Anime *domain.Anime
}

// EpisodesLoadedMsg signals that an anime's episodes have been loaded
type EpisodesLoadedMsg struct {
	AnimeID  string
	Episodes []domain.Episode
}

// PlaybackStartedMsg signals that the player was launched
type PlaybackStartedMsg struct {
	Target *catalog.WatchTarget
}

// WarmUpDoneMsg signals that the search index holds the whole catalog
type WarmUpDoneMsg struct {
	Count int
}

// StatusMsg sets a temporary status message
type StatusMsg struct {
	Message string
	IsError bool
}

// ClearStatusMsg clears the status toast it was scheduled for
type ClearStatusMsg struct {
	ID int
}
