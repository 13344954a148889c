package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/tui/styles"
)

const adminTimeout = 60 * time.Second

// AdminCmd groups the catalog management commands
type AdminCmd struct {
	Anime    AdminAnimeCmd    `cmd:"" help:"Manage anime."`
	Episodes AdminEpisodesCmd `cmd:"" help:"Manage episodes."`
}

type AdminAnimeCmd struct {
	List   AnimeListCmd   `cmd:"" help:"List anime, optionally filtered by title."`
	Add    AnimeAddCmd    `cmd:"" help:"Add an anime."`
	Edit   AnimeEditCmd   `cmd:"" help:"Edit an anime."`
	Delete AnimeDeleteCmd `cmd:"" help:"Delete an anime and its episodes."`
}

type AdminEpisodesCmd struct {
	List   EpisodeListCmd   `cmd:"" help:"List an anime's episodes."`
	Add    EpisodeAddCmd    `cmd:"" help:"Add an episode to an anime."`
	Edit   EpisodeEditCmd   `cmd:"" help:"Edit an episode."`
	Delete EpisodeDeleteCmd `cmd:"" help:"Delete an episode."`
}

// AnimeListCmd prints the catalog as a table
type AnimeListCmd struct {
	Filter string `arg:"" optional:"" help:"Fuzzy title filter."`
}

func (c *AnimeListCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	all, err := a.catalog.Browse(ctx)
	if err != nil {
		return fmt.Errorf("failed to list anime: %w", err)
	}
	if c.Filter != "" {
		all = filterAnime(c.Filter, all)
	}

	rows := make([][]string, 0, len(all))
	for _, an := range all {
		rows = append(rows, []string{an.ID, an.Title, an.YearLabel(), string(an.Status), an.GenreList()})
	}
	fmt.Println(renderTable([]string{"ID", "TITLE", "YEAR", "STATUS", "GENRES"}, rows))
	fmt.Printf("%d anime\n", len(rows))
	return nil
}

// AnimeFlags are the editable anime fields
type AnimeFlags struct {
	Description string   `help:"Synopsis."`
	ImageURL    string   `name:"image-url" help:"Poster image URL."`
	Genres      []string `sep:"," help:"Comma-separated genres."`
	Year        int      `help:"Release year."`
}

// AnimeAddCmd creates an anime
type AnimeAddCmd struct {
	Title  string `required:"" help:"Title."`
	Status string `enum:"ongoing,completed" default:"ongoing" help:"ongoing or completed."`
	AnimeFlags
}

func (c *AnimeAddCmd) Run(g *Globals) error {
	return withAdmin(g, func(ctx context.Context, a *app) error {
		created, err := a.admin.CreateAnime(ctx, domain.AnimeInput{
			Title:       c.Title,
			Description: c.Description,
			ImageURL:    c.ImageURL,
			Genres:      c.Genres,
			ReleaseYear: c.Year,
			Status:      domain.AnimeStatus(c.Status),
		})
		if err != nil {
			return fmt.Errorf("failed to add anime: %w", err)
		}
		fmt.Printf("✓ Added %s (%s)\n", created.Title, created.ID)
		return nil
	})
}

// AnimeEditCmd updates the given fields of an anime
type AnimeEditCmd struct {
	Anime  string `arg:"" help:"Anime id or title."`
	Title  string `help:"New title."`
	Status string `help:"ongoing or completed."`
	AnimeFlags
}

// apply copies the flags that were set onto in
func (c *AnimeEditCmd) apply(in *domain.AnimeInput) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
			changed = true
		}
	}
	set(&in.Title, c.Title)
	set(&in.Description, c.Description)
	set(&in.ImageURL, c.ImageURL)
	if c.Status != "" {
		in.Status = domain.AnimeStatus(c.Status)
		changed = true
	}
	if len(c.Genres) > 0 {
		in.Genres = c.Genres
		changed = true
	}
	if c.Year > 0 {
		in.ReleaseYear = c.Year
		changed = true
	}
	return changed
}

func (c *AnimeEditCmd) Run(g *Globals) error {
	return withAdmin(g, func(ctx context.Context, a *app) error {
		current, err := resolveAnime(ctx, a, c.Anime)
		if err != nil {
			return err
		}

		in := domain.AnimeInputFrom(*current)
		if !c.apply(&in) {
			return errors.New("nothing to change, pass at least one field flag")
		}

		updated, err := a.admin.UpdateAnime(ctx, current.ID, in)
		if err != nil {
			return fmt.Errorf("failed to update anime: %w", err)
		}
		fmt.Printf("✓ Updated %s (%s)\n", updated.Title, updated.ID)
		return nil
	})
}

// AnimeDeleteCmd deletes an anime and its episodes
type AnimeDeleteCmd struct {
	Anime string `arg:"" help:"Anime id or title."`
	Yes   bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *AnimeDeleteCmd) Run(g *Globals) error {
	return withAdmin(g, func(ctx context.Context, a *app) error {
		target, err := resolveAnime(ctx, a, c.Anime)
		if err != nil {
			return err
		}
		if !c.Yes && !confirm(os.Stdin, os.Stdout, fmt.Sprintf("Delete %q and all its episodes?", target.Title)) {
			fmt.Println("Cancelled")
			return nil
		}

		if err := a.admin.DeleteAnime(ctx, target.ID); err != nil {
			return fmt.Errorf("failed to delete anime: %w", err)
		}
		fmt.Printf("✓ Deleted %s\n", target.Title)
		return nil
	})
}

// EpisodeListCmd prints an anime's episodes as a table
type EpisodeListCmd struct {
	Anime string `arg:"" help:"Anime id or title."`
}

func (c *EpisodeListCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	an, err := resolveAnime(ctx, a, c.Anime)
	if err != nil {
		return err
	}
	episodes, err := a.catalog.Episodes(ctx, an.ID)
	if err != nil {
		return fmt.Errorf("failed to list episodes: %w", err)
	}

	rows := make([][]string, 0, len(episodes))
	for _, ep := range episodes {
		rows = append(rows, []string{ep.ID, strconv.Itoa(ep.EpisodeNumber), ep.Title, ep.FormattedDuration()})
	}
	fmt.Println(styles.TitleStyle.Render(an.Title))
	fmt.Println(renderTable([]string{"ID", "#", "TITLE", "DURATION"}, rows))
	return nil
}

// EpisodeFlags are the editable episode fields
type EpisodeFlags struct {
	Description  string `help:"Episode synopsis."`
	ThumbnailURL string `name:"thumbnail-url" help:"Thumbnail image URL."`
	Duration     int    `help:"Runtime in minutes."`
}

// EpisodeAddCmd creates an episode
type EpisodeAddCmd struct {
	Anime    string `arg:"" help:"Anime id or title."`
	Number   int    `required:"" short:"n" help:"Episode number."`
	Title    string `required:"" help:"Episode title."`
	VideoURL string `name:"video-url" required:"" help:"Embed URL of the video."`
	EpisodeFlags
}

func (c *EpisodeAddCmd) Run(g *Globals) error {
	return withAdmin(g, func(ctx context.Context, a *app) error {
		an, err := resolveAnime(ctx, a, c.Anime)
		if err != nil {
			return err
		}

		ep, err := a.admin.CreateEpisode(ctx, domain.EpisodeInput{
			AnimeID:       an.ID,
			Title:         c.Title,
			EpisodeNumber: c.Number,
			Description:   c.Description,
			VideoURL:      c.VideoURL,
			ThumbnailURL:  c.ThumbnailURL,
			Duration:      c.Duration,
		})
		if err != nil {
			return fmt.Errorf("failed to add episode: %w", err)
		}
		fmt.Printf("✓ Added %s to %s (%s)\n", ep.Label(), an.Title, ep.ID)
		return nil
	})
}

// EpisodeEditCmd updates the given fields of an episode
type EpisodeEditCmd struct {
	ID       string `arg:"" help:"Episode id."`
	Number   int    `short:"n" help:"Episode number."`
	Title    string `help:"Episode title."`
	VideoURL string `name:"video-url" help:"Embed URL of the video."`
	EpisodeFlags
}

func (c *EpisodeEditCmd) apply(in *domain.EpisodeInput) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
			changed = true
		}
	}
	set(&in.Title, c.Title)
	set(&in.VideoURL, c.VideoURL)
	set(&in.Description, c.Description)
	set(&in.ThumbnailURL, c.ThumbnailURL)
	if c.Number > 0 {
		in.EpisodeNumber = c.Number
		changed = true
	}
	if c.Duration > 0 {
		in.Duration = c.Duration
		changed = true
	}
	return changed
}

func (c *EpisodeEditCmd) Run(g *Globals) error {
	return withAdmin(g, func(ctx context.Context, a *app) error {
		current, err := lookupEpisode(ctx, a, c.ID)
		if err != nil {
			return err
		}

		in := domain.EpisodeInputFrom(*current)
		if !c.apply(&in) {
			return errors.New("nothing to change, pass at least one field flag")
		}

		updated, err := a.admin.UpdateEpisode(ctx, current.ID, in)
		if err != nil {
			return fmt.Errorf("failed to update episode: %w", err)
		}
		fmt.Printf("✓ Updated %s (%s)\n", updated.Label(), updated.ID)
		return nil
	})
}

// EpisodeDeleteCmd deletes an episode
type EpisodeDeleteCmd struct {
	ID  string `arg:"" help:"Episode id."`
	Yes bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *EpisodeDeleteCmd) Run(g *Globals) error {
	return withAdmin(g, func(ctx context.Context, a *app) error {
		ep, err := lookupEpisode(ctx, a, c.ID)
		if err != nil {
			return err
		}
		if !c.Yes && !confirm(os.Stdin, os.Stdout, fmt.Sprintf("Delete %q?", ep.Label())) {
			fmt.Println("Cancelled")
			return nil
		}

		if err := a.admin.DeleteEpisode(ctx, ep.AnimeID, ep.ID); err != nil {
			return fmt.Errorf("failed to delete episode: %w", err)
		}
		fmt.Printf("✓ Deleted %s\n", ep.Label())
		return nil
	})
}

// withAdmin wires the app, checks the admin session and runs fn
func withAdmin(g *Globals, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	admin, err := requireAdmin(ctx, a)
	if err != nil {
		return err
	}
	a.logger.Info("admin command", "email", admin.Email)
	return fn(ctx, a)
}

// resolveAnime finds an anime by id, or by title among the backend's
// substring matches and then the whole catalog.
func resolveAnime(ctx context.Context, a *app, ref string) (*domain.Anime, error) {
	ref = strings.TrimSpace(ref)
	if _, err := uuid.Parse(ref); err == nil {
		return a.catalog.Anime(ctx, ref)
	}

	candidates, err := a.backend.FindAnimeByTitle(ctx, ref, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %q: %w", ref, err)
	}
	if match, err := matchAnime(ref, candidates); err == nil || !errors.Is(err, domain.ErrNotFound) {
		return match, err
	}

	all, err := a.catalog.Browse(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %q: %w", ref, err)
	}
	return matchAnime(ref, all)
}

// matchAnime picks the anime whose title matches ref: an exact
// case-insensitive title first, then the single closest fuzzy match.
func matchAnime(ref string, all []domain.Anime) (*domain.Anime, error) {
	for i := range all {
		if strings.EqualFold(all[i].Title, ref) {
			return &all[i], nil
		}
	}

	titles := make([]string, len(all))
	for i, an := range all {
		titles[i] = an.Title
	}
	ranks := fuzzy.RankFindFold(ref, titles)
	if len(ranks) == 0 {
		return nil, fmt.Errorf("%w: no anime matches %q", domain.ErrNotFound, ref)
	}
	sort.Sort(ranks)

	if len(ranks) > 1 && ranks[0].Distance == ranks[1].Distance {
		var names []string
		for i, r := range ranks {
			if i == 5 {
				names = append(names, "...")
				break
			}
			names = append(names, fmt.Sprintf("%q", r.Target))
		}
		return nil, fmt.Errorf("%q is ambiguous: %s; use the anime id", ref, strings.Join(names, ", "))
	}
	return &all[ranks[0].OriginalIndex], nil
}

// filterAnime keeps the anime whose titles fuzzy-match term, best first
func filterAnime(term string, all []domain.Anime) []domain.Anime {
	titles := make([]string, len(all))
	for i, an := range all {
		titles[i] = an.Title
	}
	ranks := fuzzy.RankFindFold(term, titles)
	sort.Stable(ranks)

	out := make([]domain.Anime, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, all[r.OriginalIndex])
	}
	return out
}

func lookupEpisode(ctx context.Context, a *app, id string) (*domain.Episode, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: episode id %q is not a uuid", domain.ErrInvalidInput, id)
	}
	ep, err := a.backend.GetEpisode(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load episode %s: %w", id, err)
	}
	return ep, nil
}

// confirm asks a yes/no question, defaulting to no
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.DimGray)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.AccentStyle.Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}
