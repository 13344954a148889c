package domain

import "context"

// CatalogRepository provides read access to the catalog tables
type CatalogRepository interface {
	// ListAnime returns one page of anime in the requested order
	ListAnime(ctx context.Context, opts ListOptions) ([]Anime, error)

	// CountAnime returns the total number of anime rows
	CountAnime(ctx context.Context) (int, error)

	// FindAnimeByTitle returns anime whose title contains term, case-insensitively
	FindAnimeByTitle(ctx context.Context, term string, limit int) ([]Anime, error)

	// GetAnime returns a single anime or ErrNotFound
	GetAnime(ctx context.Context, id string) (*Anime, error)

	// ListEpisodes returns all episodes of an anime ordered by episode number
	ListEpisodes(ctx context.Context, animeID string) ([]Episode, error)

	// GetEpisode returns a single episode or ErrNotFound
	GetEpisode(ctx context.Context, id string) (*Episode, error)
}

// AdminRepository provides write access; implementations carry the admin's access token
type AdminRepository interface {
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)

	InsertAnime(ctx context.Context, in AnimeInput) (*Anime, error)
	UpdateAnime(ctx context.Context, id string, in AnimeInput) (*Anime, error)
	DeleteAnime(ctx context.Context, id string) error

	InsertEpisode(ctx context.Context, in EpisodeInput) (*Episode, error)
	UpdateEpisode(ctx context.Context, id string, in EpisodeInput) (*Episode, error)
	DeleteEpisode(ctx context.Context, id string) error
	DeleteEpisodesByAnime(ctx context.Context, animeID string) (int, error)
}

// AuthClient talks to the hosted auth provider
type AuthClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// SessionStore persists the admin session between runs
type SessionStore interface {
	LoadSession() (*Session, bool)
	SaveSession(s *Session) error
	ClearSession() error
}
