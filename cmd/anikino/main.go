package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Globals are flags shared by every command
type Globals struct {
	Config string `help:"Config file path." type:"path" env:"ANIKINO_CONFIG" placeholder:"FILE"`
}

// CLI is the top-level command structure for anikino.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version." short:"V"`
	Browse  BrowseCmd        `cmd:"" default:"withargs" help:"Browse the catalog (default)."`
	Search  SearchCmd        `cmd:"" help:"Search anime by title and print the matches."`
	Setup   SetupCmd         `cmd:"" help:"Configure the backend project."`
	Login   LoginCmd         `cmd:"" help:"Sign in as an admin."`
	Logout  LogoutCmd        `cmd:"" help:"Sign out and forget the saved session."`
	Admin   AdminCmd         `cmd:"" help:"Manage the catalog (admins only)."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("anikino"),
		kong.Description("A terminal browser for an anime streaming catalog."),
		kong.UsageOnError(),
		kong.Vars{"version": "anikino " + Version},
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
