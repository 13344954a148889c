package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/mmcdole/anikino/internal/adapter"
	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/tui"
)

// BrowseCmd runs the interactive catalog browser
type BrowseCmd struct {
	Query string `help:"Open the search dialog with this term." short:"q" placeholder:"TERM"`
}

// Run starts the TUI, or the setup flow when the backend is not configured.
func (c *BrowseCmd) Run(g *Globals) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("browse needs a terminal; use \"anikino search\" for plain output")
	}

	cfg, logger, closer, err := loadConfig(g)
	if err != nil {
		return err
	}
	if !cfg.IsConfigured() {
		defer closer.Close()
		return runSetupFlow(cfg, os.Stdin, os.Stdout)
	}

	a, err := wireApp(cfg, logger, closer)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("starting anikino", "version", Version)

	launcher := adapter.NewLauncher(a.cfg.Player.Command, a.cfg.Player.Args, logger)
	model := tui.NewModel(a.catalog, a.queries, a.engine, launcher, logger, tui.Options{
		Debounce:      a.cfg.Search.Debounce,
		InitialSearch: c.Query,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	logger.Info("starting TUI")
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// SearchCmd runs one search without the TUI
type SearchCmd struct {
	Term string `arg:"" help:"Title or part of a title."`
	Warm bool   `help:"Load the whole catalog into the search index first."`
}

func (c *SearchCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if c.Warm {
		n, err := a.catalog.WarmUp(ctx, func(loaded, total int) {
			if total > 0 {
				fmt.Fprintf(os.Stderr, "\rLoading catalog... %d/%d", loaded, total)
			} else {
				fmt.Fprintf(os.Stderr, "\rLoading catalog... %d", loaded)
			}
		})
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		a.logger.Info("search index warmed", "records", n)
	} else {
		// Whatever the last session saved makes the local path useful offline
		a.queries.CachedHome()
		a.queries.CachedBrowse()
	}

	if !a.engine.IsSearchable(c.Term) {
		return fmt.Errorf("%w: search term needs at least %d characters", domain.ErrInvalidInput, a.engine.MinQueryLength())
	}

	res := a.engine.Search(ctx, c.Term)
	if res.Err != nil {
		return fmt.Errorf("search failed: %w", res.Err)
	}
	printRecords(os.Stdout, res.Records)
	fmt.Fprintf(os.Stderr, "%d result(s) from %s\n", len(res.Records), res.Source)
	return nil
}

func printRecords(w io.Writer, records []domain.SearchRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No anime found")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s (%s)\n", rec.ID, rec.Title, rec.YearLabel())
	}
}
