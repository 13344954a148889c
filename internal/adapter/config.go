package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ANIKINO"

// Config holds all application configuration
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Session SessionConfig `mapstructure:"session"`
	Player  PlayerConfig  `mapstructure:"player"`
	Search  SearchConfig  `mapstructure:"search"`
	Home    HomeConfig    `mapstructure:"home"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	file string // Where SaveConfig writes; empty for the default location
}

// BackendConfig holds the hosted backend project settings
type BackendConfig struct {
	URL       string        `mapstructure:"url"`        // Project URL, e.g. https://xyz.supabase.co
	AnonKey   string        `mapstructure:"anon_key"`   // Public anon key
	RateLimit float64       `mapstructure:"rate_limit"` // Requests per second, 0 disables throttling
	Burst     int           `mapstructure:"burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SessionConfig holds the saved admin session
type SessionConfig struct {
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
	ExpiresAt    int64  `mapstructure:"expires_at"` // Unix seconds
	Email        string `mapstructure:"email"`
	UserID       string `mapstructure:"user_id"`
}

// PlayerConfig holds external player configuration
type PlayerConfig struct {
	Command string   `mapstructure:"command"` // Empty: detect a player, then the system default
	Args    []string `mapstructure:"args"`
}

// SearchConfig holds search dialog tuning
type SearchConfig struct {
	Debounce       time.Duration `mapstructure:"debounce"`
	MinQueryLength int           `mapstructure:"min_query_length"`
	ResultLimit    int           `mapstructure:"result_limit"`
}

// HomeConfig holds home feed sizes
type HomeConfig struct {
	RecentLimit  int `mapstructure:"recent_limit"`
	PopularLimit int `mapstructure:"popular_limit"`
}

// CacheConfig holds local cache settings
type CacheConfig struct {
	Dir        string        `mapstructure:"dir"` // Empty: memory only
	DetailSize int           `mapstructure:"detail_size"`
	DetailTTL  time.Duration `mapstructure:"detail_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File   string `mapstructure:"file"`
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds the optional Prometheus listener
type MetricsConfig struct {
	Listen string `mapstructure:"listen"` // e.g. 127.0.0.1:9464, empty disables
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			RateLimit: 10,
			Burst:     5,
			Timeout:   30 * time.Second,
		},
		Player: PlayerConfig{
			Args: []string{},
		},
		Search: SearchConfig{
			Debounce:       300 * time.Millisecond,
			MinQueryLength: 2,
			ResultLimit:    10,
		},
		Home: HomeConfig{
			RecentLimit:  6,
			PopularLimit: 12,
		},
		Cache: CacheConfig{
			Dir:        defaultCachePath(),
			DetailSize: 128,
			DetailTTL:  10 * time.Minute,
		},
		Logging: LoggingConfig{
			File:   defaultLogPath(),
			Level:  "INFO",
			Format: "json",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "anikino", "anikino.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "anikino", "anikino.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "anikino")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "anikino")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "anikino", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "anikino", "cache")
	}
}

// newViper builds a viper instance that knows every key, so environment
// overrides such as ANIKINO_BACKEND_URL apply even without a config file.
func newViper(defaults *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range flatten(defaults) {
		v.SetDefault(key, value)
	}
	return v
}

// flatten lists every config key with its value
func flatten(cfg *Config) map[string]interface{} {
	return map[string]interface{}{
		"backend.url":             cfg.Backend.URL,
		"backend.anon_key":        cfg.Backend.AnonKey,
		"backend.rate_limit":      cfg.Backend.RateLimit,
		"backend.burst":           cfg.Backend.Burst,
		"backend.timeout":         cfg.Backend.Timeout.String(),
		"session.access_token":    cfg.Session.AccessToken,
		"session.refresh_token":   cfg.Session.RefreshToken,
		"session.expires_at":      cfg.Session.ExpiresAt,
		"session.email":           cfg.Session.Email,
		"session.user_id":         cfg.Session.UserID,
		"player.command":          cfg.Player.Command,
		"player.args":             cfg.Player.Args,
		"search.debounce":         cfg.Search.Debounce.String(),
		"search.min_query_length": cfg.Search.MinQueryLength,
		"search.result_limit":     cfg.Search.ResultLimit,
		"home.recent_limit":       cfg.Home.RecentLimit,
		"home.popular_limit":      cfg.Home.PopularLimit,
		"cache.dir":               cfg.Cache.Dir,
		"cache.detail_size":       cfg.Cache.DetailSize,
		"cache.detail_ttl":        cfg.Cache.DetailTTL.String(),
		"logging.file":            cfg.Logging.File,
		"logging.level":           cfg.Logging.Level,
		"logging.format":          cfg.Logging.Format,
		"metrics.listen":          cfg.Metrics.Listen,
	}
}

// LoadConfig loads configuration from file and environment.
// An empty path searches the default config directory, then ".".
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// No config file yet, use defaults
		case path != "" && errors.Is(err, os.ErrNotExist):
			// Explicit path that does not exist yet; setup will create it
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.file = path
	if cfg.file == "" {
		cfg.file = v.ConfigFileUsed()
	}
	return cfg, nil
}

// Path returns the file SaveConfig writes to
func (c *Config) Path() string {
	if c.file != "" {
		return c.file
	}
	return filepath.Join(defaultConfigPath(), "config.yaml")
}

// SaveConfig writes the configuration to its file
func SaveConfig(cfg *Config) error {
	configFile := cfg.Path()

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Fresh instance so env overrides are not written back to disk
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range flatten(cfg) {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	// The file may hold session tokens
	if err := os.Chmod(configFile, 0600); err != nil {
		return fmt.Errorf("failed to restrict config file: %w", err)
	}
	return nil
}

// IsConfigured returns true if the backend URL and anon key are set
func (c *Config) IsConfigured() bool {
	return c.Backend.URL != "" && c.Backend.AnonKey != ""
}

// ClearSession removes the saved admin session while preserving other settings
func ClearSession(cfg *Config) error {
	cfg.Session = SessionConfig{}
	return SaveConfig(cfg)
}

// ClearCache removes the on-disk catalog cache
func ClearCache(cfg *Config) error {
	if cfg.Cache.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(cfg.Cache.Dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
