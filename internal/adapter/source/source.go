package source

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/mmcdole/anikino/internal/adapter"
	"github.com/mmcdole/anikino/internal/adapter/source/supabase"
	"github.com/mmcdole/anikino/internal/domain"
)

// Backend combines the read and auth interfaces the hosted backend implements.
// Writes go through AdminRepository, obtained per access token.
type Backend interface {
	domain.CatalogRepository
	domain.AuthClient
	AdminRepository(accessToken string) domain.AdminRepository
}

// SourceConfig contains the configuration needed to create a Backend
type SourceConfig struct {
	URL       string
	AnonKey   string
	RateLimit float64
	Burst     int
	Timeout   time.Duration
}

// supabaseBackend adapts *supabase.Client to Backend
type supabaseBackend struct {
	*supabase.Client
}

func (b supabaseBackend) AdminRepository(accessToken string) domain.AdminRepository {
	return b.Client.WithAccessToken(accessToken)
}

// NewClient validates the configuration and creates the backend client
func NewClient(cfg *SourceConfig, logger *slog.Logger) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("source config is nil")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if err := ValidateURL(cfg.URL); err != nil {
		return nil, err
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("backend anon key is required")
	}

	client := supabase.NewClient(cfg.URL, cfg.AnonKey, logger,
		supabase.WithRateLimit(cfg.RateLimit, cfg.Burst),
		supabase.WithTimeout(cfg.Timeout),
	)
	return supabaseBackend{client}, nil
}

// NewClientFromConfig creates a Backend from the application config
func NewClientFromConfig(cfg *adapter.Config, logger *slog.Logger) (Backend, error) {
	return NewClient(&SourceConfig{
		URL:       cfg.Backend.URL,
		AnonKey:   cfg.Backend.AnonKey,
		RateLimit: cfg.Backend.RateLimit,
		Burst:     cfg.Backend.Burst,
		Timeout:   cfg.Backend.Timeout,
	}, logger)
}

// ValidateURL checks that a project URL is absolute http(s)
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid backend URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend URL %q: must be http(s)://host", raw)
	}
	return nil
}
