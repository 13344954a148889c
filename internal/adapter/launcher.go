package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// PlayTarget is what the launcher opens: an episode embed URL and a title
// for players that can show one.
type PlayTarget struct {
	URL   string
	Title string
}

// Launcher opens episode embed URLs in an external player or browser
type Launcher struct {
	command string   // configured player command, empty to detect
	args    []string // additional arguments for the player
	goos    string
	logger  *slog.Logger

	// Process hooks; replaced in tests
	lookPath func(string) (string, error)
	start    func(name string, args ...string) error // Does not wait
	run      func(name string, args ...string) error // Waits, so a missing app is reported
}

// launchPath defines a single way to launch a player
type launchPath struct {
	path      string   // Command path: "mpv", "vlc", or "open-a:AppName"
	openFlags []string // For "open-a:" paths only - flags for macOS open command
}

// playerConfig defines platform-specific launch configurations for a player
type playerConfig struct {
	titleFlag string                  // Window title flag, e.g. "--force-media-title="
	platforms map[string][]launchPath // Platform -> launch paths to try in order
}

// players registry. Only players that can resolve hosted embed pages
// (through yt-dlp or their own site parsers) are listed.
var players = map[string]playerConfig{
	"mpv": {
		titleFlag: "--force-media-title=",
		platforms: map[string][]launchPath{
			"darwin":  {{path: "mpv"}},
			"linux":   {{path: "mpv"}},
			"windows": {{path: "mpv"}},
		},
	},
	"iina": {
		titleFlag: "--mpv-force-media-title=",
		platforms: map[string][]launchPath{
			"darwin": {{path: "open-a:IINA", openFlags: []string{"-n"}}},
		},
	},
	"celluloid": {
		titleFlag: "--mpv-force-media-title=",
		platforms: map[string][]launchPath{
			"linux": {{path: "celluloid"}},
		},
	},
	"vlc": {
		titleFlag: "--meta-title=",
		platforms: map[string][]launchPath{
			"darwin":  {{path: "vlc"}, {path: "open-a:VLC"}},
			"linux":   {{path: "vlc"}},
			"windows": {{path: "vlc"}},
		},
	},
}

// candidatePlayers defines the preferred player order for each platform
var candidatePlayers = map[string][]string{
	"darwin":  {"iina", "mpv", "vlc"},
	"linux":   {"mpv", "celluloid", "vlc"},
	"windows": {"mpv", "vlc"},
}

var errNoPlayer = errors.New("no candidate players found")

// NewLauncher creates a launcher for the configured player command
func NewLauncher(command string, args []string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command:  command,
		args:     args,
		goos:     runtime.GOOS,
		logger:   logger,
		lookPath: exec.LookPath,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Launch opens the target in the configured player, a detected player, or
// the system default handler, in that order.
func (l *Launcher) Launch(target PlayTarget) error {
	if target.URL == "" {
		return errors.New("episode has no video url")
	}

	if l.command != "" {
		l.logger.Info("using configured player", "command", l.command)
		return l.launchConfigured(target)
	}

	if name, err := l.detectAndLaunch(target); err == nil {
		l.logger.Info("launched with detected player", "player", name)
		return nil
	}

	l.logger.Info("no candidate players found, using system default")
	return l.launchDefault(target.URL)
}

func playerName(command string) string {
	base := strings.ToLower(filepath.Base(command))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func titleArgs(flag, title string) []string {
	if flag == "" || title == "" {
		return nil
	}
	return []string{flag + title}
}

func (l *Launcher) launchConfigured(target PlayTarget) error {
	args := append([]string{}, l.args...)
	cfg, known := players[playerName(l.command)]
	if known {
		args = append(args, titleArgs(cfg.titleFlag, target.Title)...)
	}

	// GUI apps on macOS are often not in PATH
	if l.goos == "darwin" {
		if _, err := l.lookPath(l.command); err != nil {
			var openFlags []string
			if known {
				for _, lp := range cfg.platforms["darwin"] {
					if strings.HasPrefix(lp.path, "open-a:") {
						openFlags = lp.openFlags
						break
					}
				}
			}
			l.logger.Info("using macOS 'open -a' to launch GUI app", "app", l.command)
			return l.openWithApp(l.command, target.URL, args, openFlags)
		}
	}

	args = append(args, target.URL)
	l.logger.Info("launching player", "command", l.command, "args", args)
	return l.start(l.command, args...)
}

// detectAndLaunch tries candidate players in order and returns the one that started
func (l *Launcher) detectAndLaunch(target PlayTarget) (string, error) {
	candidates, ok := candidatePlayers[l.goos]
	if !ok {
		candidates = candidatePlayers["linux"]
	}

	for _, name := range candidates {
		player, exists := players[name]
		if !exists {
			continue
		}
		paths, ok := player.platforms[l.goos]
		if !ok {
			continue
		}

		args := titleArgs(player.titleFlag, target.Title)
		for _, lp := range paths {
			var err error
			if strings.HasPrefix(lp.path, "open-a:") {
				err = l.openWithApp(strings.TrimPrefix(lp.path, "open-a:"), target.URL, args, lp.openFlags)
			} else {
				err = l.launchCommand(lp.path, target.URL, args)
			}
			if err == nil {
				return name, nil
			}
			l.logger.Debug("launch path not available", "player", name, "path", lp.path, "error", err)
		}
	}
	return "", errNoPlayer
}

// launchCommand starts a CLI player if it is in PATH
func (l *Launcher) launchCommand(command, url string, args []string) error {
	if _, err := l.lookPath(command); err != nil {
		return err
	}
	cmdArgs := append(append([]string{}, args...), url)
	return l.start(command, cmdArgs...)
}

// openWithApp launches a macOS app with "open -a"
func (l *Launcher) openWithApp(app, url string, playerArgs, openFlags []string) error {
	cmdArgs := append([]string{}, openFlags...)
	cmdArgs = append(cmdArgs, "-a", app)
	if len(playerArgs) > 0 {
		cmdArgs = append(cmdArgs, "--args")
		cmdArgs = append(cmdArgs, playerArgs...)
	}
	cmdArgs = append(cmdArgs, url)
	return l.run("open", cmdArgs...)
}

// launchDefault opens the URL using the system default handler, usually a browser
func (l *Launcher) launchDefault(url string) error {
	l.logger.Info("launching with system default", "os", l.goos, "url", url)

	var err error
	switch l.goos {
	case "darwin":
		err = l.start("open", url)
	case "windows":
		err = l.start("cmd", "/c", "start", "", url)
	default:
		err = l.start("xdg-open", url)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}
