package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/mmcdole/anikino/internal/adapter"
	"github.com/mmcdole/anikino/internal/adapter/source"
	"github.com/mmcdole/anikino/internal/domain"
)

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                    \r"

// SetupCmd configures the backend project
type SetupCmd struct{}

func (c *SetupCmd) Run(g *Globals) error {
	cfg, _, closer, err := loadConfig(g)
	if err != nil {
		return err
	}
	defer closer.Close()
	return runSetupFlow(cfg, os.Stdin, os.Stdout)
}

// runSetupFlow asks for the project URL and anon key, checks that the
// backend answers, and saves the config.
func runSetupFlow(cfg *adapter.Config, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Welcome to anikino!")
	fmt.Fprintln(out)

	reader := bufio.NewReader(in)
	readLine := func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	for {
		url, err := readLine("Enter your project URL (e.g., https://xyz.supabase.co): ")
		if err != nil {
			return err
		}
		if err := source.ValidateURL(url); err != nil {
			fmt.Fprintf(out, "%v. Please try again.\n", err)
			continue
		}

		key, err := readLine("Enter the project's anon key: ")
		if err != nil {
			return err
		}
		if key == "" {
			fmt.Fprintln(out, "Anon key cannot be empty. Please try again.")
			continue
		}

		fmt.Fprintln(out)
		count, err := checkBackendWithSpinner(out, &source.SourceConfig{
			URL:       url,
			AnonKey:   key,
			RateLimit: cfg.Backend.RateLimit,
			Burst:     cfg.Backend.Burst,
			Timeout:   cfg.Backend.Timeout,
		})
		if err != nil {
			fmt.Fprintf(out, "✗ Could not reach the catalog: %v\n", err)
			fmt.Fprintln(out, "Please check the URL and key and try again.")
			fmt.Fprintln(out)
			continue
		}
		fmt.Fprintf(out, "✓ Connected: %d anime in the catalog\n", count)

		cfg.Backend.URL = url
		cfg.Backend.AnonKey = key
		break
	}

	if err := adapter.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Configuration saved to %s\n", cfg.Path())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run anikino again to start browsing.")
	return nil
}

// checkBackendWithSpinner counts the catalog rows with a visual spinner
func checkBackendWithSpinner(out io.Writer, sc *source.SourceConfig) (int, error) {
	client, err := source.NewClient(sc, adapter.NullLogger())
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	type result struct {
		count int
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		n, err := client.CountAnime(ctx)
		resultCh <- result{n, err}
	}()

	frames := spinner.MiniDot.Frames
	frame := 0
	fmt.Fprintf(out, "\r%s Checking catalog...", frames[frame])

	ticker := time.NewTicker(spinner.MiniDot.FPS)
	defer ticker.Stop()

	for {
		select {
		case res := <-resultCh:
			fmt.Fprint(out, clearSpinnerLine)
			return res.count, res.err

		case <-ticker.C:
			frame++
			fmt.Fprintf(out, "\r%s Checking catalog...", frames[frame%len(frames)])

		case <-ctx.Done():
			fmt.Fprint(out, clearSpinnerLine)
			return 0, fmt.Errorf("check timed out")
		}
	}
}

// LoginCmd signs in as an admin and saves the session
type LoginCmd struct {
	Email string `help:"Admin email." short:"e"`
}

func (c *LoginCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	email := c.Email
	if email == "" {
		email = a.cfg.Session.Email
	}
	creds, err := source.PromptCredentials(os.Stdin, os.Stdout, email)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, admin, err := a.admin.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	name := admin.Username
	if name == "" {
		name = admin.Email
	}
	fmt.Printf("✓ Logged in as %s\n", name)
	return nil
}

// LogoutCmd forgets the saved admin session
type LogoutCmd struct{}

func (c *LogoutCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.admin.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	fmt.Println("✓ Logged out")
	return nil
}

// requireAdmin resolves the saved session to an admin or explains how to log in
func requireAdmin(ctx context.Context, a *app) (*domain.Admin, error) {
	admin, err := a.admin.RequireAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w (run \"anikino login\")", err)
	}
	return admin, nil
}
