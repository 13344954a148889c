package adapter

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/anikino/internal/domain"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Search.Debounce != 300*time.Millisecond {
		t.Errorf("Debounce = %v", cfg.Search.Debounce)
	}
	if cfg.Search.MinQueryLength != 2 || cfg.Search.ResultLimit != 10 {
		t.Errorf("Search = %+v", cfg.Search)
	}
	if cfg.Home.RecentLimit != 6 || cfg.Home.PopularLimit != 12 {
		t.Errorf("Home = %+v", cfg.Home)
	}
	if cfg.IsConfigured() {
		t.Error("default config should not be configured")
	}
}

func TestConfig_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Backend.URL = "https://proj.supabase.co"
	cfg.Backend.AnonKey = "anon"
	cfg.Search.Debounce = 150 * time.Millisecond
	cfg.Player.Command = "mpv"
	cfg.Player.Args = []string{"--fs"}

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !loaded.IsConfigured() {
		t.Error("reloaded config should be configured")
	}
	if loaded.Search.Debounce != 150*time.Millisecond {
		t.Errorf("Debounce = %v", loaded.Search.Debounce)
	}
	if !reflect.DeepEqual(loaded.Player.Args, []string{"--fs"}) {
		t.Errorf("Player.Args = %v", loaded.Player.Args)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("ANIKINO_BACKEND_URL", "https://env.supabase.co")
	t.Setenv("ANIKINO_SEARCH_MIN_QUERY_LENGTH", "3")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend.URL != "https://env.supabase.co" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Search.MinQueryLength != 3 {
		t.Errorf("MinQueryLength = %d", cfg.Search.MinQueryLength)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backend: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	store := NewSessionStore(cfg)

	if _, ok := store.LoadSession(); ok {
		t.Fatal("fresh store returned a session")
	}

	exp := time.Unix(1893456000, 0).UTC()
	want := &domain.Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: exp, Email: "x@y.z", UserID: "u"}
	if err := store.SaveSession(want); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := NewSessionStore(reloaded).LoadSession()
	if !ok {
		t.Fatal("session not persisted")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("session = %+v, want %+v", got, want)
	}

	if err := store.ClearSession(); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if _, ok := store.LoadSession(); ok {
		t.Error("session survived ClearSession")
	}
}

func TestSetupLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "anikino.log")
	logger, closer, err := SetupLogger(&LoggingConfig{File: path, Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	logger.Debug("hello", "k", "v")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log = %s", data)
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("warning").String() != "WARN" || parseLogLevel("bogus").String() != "INFO" {
		t.Error("unexpected level mapping")
	}
}

type launchCall struct {
	name string
	args []string
}

func fakeLauncher(command string, args []string, goos string, inPath ...string) (*Launcher, *[]launchCall) {
	var calls []launchCall
	l := NewLauncher(command, args, NullLogger())
	l.goos = goos
	l.lookPath = func(name string) (string, error) {
		for _, p := range inPath {
			if p == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	record := func(name string, args ...string) error {
		calls = append(calls, launchCall{name, args})
		return nil
	}
	l.start = record
	l.run = func(name string, args ...string) error {
		return errors.New("app not installed")
	}
	return l, &calls
}

func TestLauncher_Configured(t *testing.T) {
	l, calls := fakeLauncher("/opt/bin/mpv", []string{"--fs"}, "linux", "/opt/bin/mpv")

	err := l.Launch(PlayTarget{URL: "https://embed/1", Title: "Frieren - Episode 1"})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	want := []launchCall{{"/opt/bin/mpv", []string{"--fs", "--force-media-title=Frieren - Episode 1", "https://embed/1"}}}
	if !reflect.DeepEqual(*calls, want) {
		t.Errorf("calls = %+v, want %+v", *calls, want)
	}
}

func TestLauncher_DetectsPlayer(t *testing.T) {
	l, calls := fakeLauncher("", nil, "linux", "celluloid")

	if err := l.Launch(PlayTarget{URL: "https://embed/2"}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if len(*calls) != 1 || (*calls)[0].name != "celluloid" {
		t.Errorf("calls = %+v, want celluloid", *calls)
	}
}

func TestLauncher_FallsBackToSystemDefault(t *testing.T) {
	l, calls := fakeLauncher("", nil, "linux")

	if err := l.Launch(PlayTarget{URL: "https://embed/3"}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	want := []launchCall{{"xdg-open", []string{"https://embed/3"}}}
	if !reflect.DeepEqual(*calls, want) {
		t.Errorf("calls = %+v, want %+v", *calls, want)
	}
}

func TestLauncher_RequiresURL(t *testing.T) {
	l, _ := fakeLauncher("", nil, "linux")
	if err := l.Launch(PlayTarget{}); err == nil {
		t.Error("expected error for empty url")
	}
}
