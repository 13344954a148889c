package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/anikino/internal/adapter"
	"github.com/mmcdole/anikino/internal/catalog"
)

// Command factories for async operations

// LoadHomeCmd loads the home feed
func LoadHomeCmd(svc Catalog) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		feed, err := svc.Home(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading home"}
		}
		return HomeLoadedMsg{Feed: feed}
	}
}

// LoadBrowseCmd loads the full catalog
func LoadBrowseCmd(svc Catalog) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second) // 60s for large catalogs
		defer cancel()

		anime, err := svc.Browse(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading catalog"}
		}
		return BrowseLoadedMsg{Anime: anime}
	}
}

// LoadRecentCmd loads the recently added page
func LoadRecentCmd(svc Catalog, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		anime, err := svc.RecentlyAdded(ctx, limit)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading recently added"}
		}
		return RecentLoadedMsg{Anime: anime}
	}
}

// LoadAnimeCmd loads a single anime
func LoadAnimeCmd(svc Catalog, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		anime, err := svc.Anime(ctx, id)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading anime"}
		}
		return AnimeLoadedMsg{Anime: anime}
	}
}

// LoadEpisodesCmd loads the episodes of an anime
func LoadEpisodesCmd(svc Catalog, animeID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		episodes, err := svc.Episodes(ctx, animeID)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading episodes"}
		}
		return EpisodesLoadedMsg{AnimeID: animeID, Episodes: episodes}
	}
}

// PlayEpisodeCmd resolves an episode and hands its video URL to the player
func PlayEpisodeCmd(svc Catalog, player Player, animeID, episodeID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		target, err := svc.Watch(ctx, animeID, episodeID)
		if err != nil {
			return ErrMsg{Err: err, Context: "resolving episode"}
		}

		title := target.Episode.Label()
		if target.Anime != nil {
			title = fmt.Sprintf("%s - %s", target.Anime.Title, title)
		}
		if err := player.Launch(adapter.PlayTarget{URL: target.Episode.VideoURL, Title: title}); err != nil {
			return ErrMsg{Err: err, Context: "starting playback"}
		}
		return PlaybackStartedMsg{Target: target}
	}
}

// WarmUpCmd loads every anime into the search index
func WarmUpCmd(svc Catalog) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		n, err := svc.WarmUp(ctx, nil)
		if err != nil {
			return ErrMsg{Err: err, Context: "warming search index"}
		}
		return WarmUpDoneMsg{Count: n}
	}
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(id int, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ClearStatusMsg{ID: id}
	})
}

var _ Catalog = (*catalog.Service)(nil)
var _ CachedCatalog = (*catalog.Queries)(nil)
