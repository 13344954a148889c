package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/anikino/internal/domain"
)

// RepositoryFunc returns an AdminRepository that authenticates with accessToken
type RepositoryFunc func(accessToken string) domain.AdminRepository

// Indexer receives anime written by an admin so they become searchable at once
type Indexer interface {
	Merge(batches ...[]domain.Anime)
}

// Forgetter drops an anime from in-memory detail caches
type Forgetter interface {
	Forget(animeID string)
}

// Service gates catalog writes behind an admin session and keeps the
// local caches consistent with what was written.
type Service struct {
	auth     domain.AuthClient
	repoFor  RepositoryFunc
	sessions domain.SessionStore
	store    domain.CatalogStore
	index    Indexer
	details  Forgetter
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new admin service. index and details may be nil.
func NewService(
	auth domain.AuthClient,
	repoFor RepositoryFunc,
	sessions domain.SessionStore,
	store domain.CatalogStore,
	index Indexer,
	details Forgetter,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		auth:     auth,
		repoFor:  repoFor,
		sessions: sessions,
		store:    store,
		index:    index,
		details:  details,
		logger:   logger,
		now:      time.Now,
	}
}

// Login signs in with a password and keeps the session only when the
// account is listed as an admin.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Session, *domain.Admin, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.logger.Error("failed to sign in", "email", email, "error", err)
		return nil, nil, err
	}

	admin, err := s.repoFor(sess.AccessToken).GetAdminByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.signOut(ctx, sess.AccessToken)
		s.logger.Error("failed to look up admin", "email", email, "error", err)
		return nil, nil, err
	}
	if admin == nil || !admin.IsAdmin() {
		s.signOut(ctx, sess.AccessToken)
		s.logger.Warn("rejected non-admin login", "email", email)
		return nil, nil, domain.ErrNotAdmin
	}

	if err := s.sessions.SaveSession(sess); err != nil {
		s.logger.Error("failed to save session", "error", err)
		return nil, nil, err
	}
	s.logger.Info("admin logged in", "email", email, "userID", sess.UserID)
	return sess, admin, nil
}

// Session returns the saved session, refreshing it when the access token
// has expired. A rejected refresh clears the saved session.
func (s *Service) Session(ctx context.Context) (*domain.Session, error) {
	sess, ok := s.sessions.LoadSession()
	if !ok {
		return nil, domain.ErrNoSession
	}
	if !sess.Expired(s.now()) {
		return sess, nil
	}

	refreshed, err := s.auth.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailed) || errors.Is(err, domain.ErrNoSession) {
			if clearErr := s.sessions.ClearSession(); clearErr != nil {
				s.logger.Error("failed to clear session", "error", clearErr)
			}
			return nil, fmt.Errorf("session expired: %w", domain.ErrNoSession)
		}
		s.logger.Error("failed to refresh session", "error", err)
		return nil, err
	}
	if refreshed.Email == "" {
		refreshed.Email = sess.Email
	}
	if err := s.sessions.SaveSession(refreshed); err != nil {
		s.logger.Error("failed to save refreshed session", "error", err)
	}
	s.logger.Debug("refreshed session", "userID", refreshed.UserID)
	return refreshed, nil
}

// RequireAdmin resolves the current session and confirms the admin role
func (s *Service) RequireAdmin(ctx context.Context) (*domain.Admin, error) {
	sess, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}
	admin, err := s.repoFor(sess.AccessToken).GetAdminByEmail(ctx, sess.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotAdmin
	}
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() {
		return nil, domain.ErrNotAdmin
	}
	return admin, nil
}

// Logout revokes the saved session, if any, and forgets it locally
func (s *Service) Logout(ctx context.Context) error {
	if sess, ok := s.sessions.LoadSession(); ok {
		s.signOut(ctx, sess.AccessToken)
	}
	if err := s.sessions.ClearSession(); err != nil {
		s.logger.Error("failed to clear session", "error", err)
		return err
	}
	s.logger.Info("admin logged out")
	return nil
}

func (s *Service) signOut(ctx context.Context, accessToken string) {
	if err := s.auth.SignOut(ctx, accessToken); err != nil {
		s.logger.Warn("failed to sign out", "error", err)
	}
}

func (s *Service) repository(ctx context.Context) (domain.AdminRepository, error) {
	sess, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}
	return s.repoFor(sess.AccessToken), nil
}

func (s *Service) CreateAnime(ctx context.Context, in domain.AnimeInput) (*domain.Anime, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	repo, err := s.repository(ctx)
	if err != nil {
		return nil, err
	}

	anime, err := repo.InsertAnime(ctx, in)
	if err != nil {
		s.logger.Error("failed to create anime", "title", in.Title, "error", err)
		return nil, err
	}
	s.store.InvalidateListings()
	s.indexAnime(anime)
	s.logger.Info("created anime", "id", anime.ID, "title", anime.Title)
	return anime, nil
}

func (s *Service) UpdateAnime(ctx context.Context, id string, in domain.AnimeInput) (*domain.Anime, error) {
	if err := validateID("anime", id); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	repo, err := s.repository(ctx)
	if err != nil {
		return nil, err
	}

	anime, err := repo.UpdateAnime(ctx, id, in)
	if err != nil {
		s.logger.Error("failed to update anime", "id", id, "error", err)
		return nil, err
	}
	s.invalidateAnime(id)
	s.indexAnime(anime)
	s.logger.Info("updated anime", "id", id)
	return anime, nil
}

// DeleteAnime removes an anime together with its episodes
func (s *Service) DeleteAnime(ctx context.Context, id string) error {
	if err := validateID("anime", id); err != nil {
		return err
	}
	repo, err := s.repository(ctx)
	if err != nil {
		return err
	}

	n, err := repo.DeleteEpisodesByAnime(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete episodes of anime", "id", id, "error", err)
		return err
	}
	if err := repo.DeleteAnime(ctx, id); err != nil {
		s.logger.Error("failed to delete anime", "id", id, "error", err)
		return err
	}
	s.invalidateAnime(id)
	s.logger.Info("deleted anime", "id", id, "episodes", n)
	return nil
}

func (s *Service) CreateEpisode(ctx context.Context, in domain.EpisodeInput) (*domain.Episode, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := validateID("anime", in.AnimeID); err != nil {
		return nil, err
	}
	repo, err := s.repository(ctx)
	if err != nil {
		return nil, err
	}

	ep, err := repo.InsertEpisode(ctx, in)
	if err != nil {
		s.logger.Error("failed to create episode", "animeID", in.AnimeID, "error", err)
		return nil, err
	}
	s.invalidateAnime(in.AnimeID)
	s.logger.Info("created episode", "id", ep.ID, "animeID", ep.AnimeID, "number", ep.EpisodeNumber)
	return ep, nil
}

func (s *Service) UpdateEpisode(ctx context.Context, id string, in domain.EpisodeInput) (*domain.Episode, error) {
	if err := validateID("episode", id); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	repo, err := s.repository(ctx)
	if err != nil {
		return nil, err
	}

	ep, err := repo.UpdateEpisode(ctx, id, in)
	if err != nil {
		s.logger.Error("failed to update episode", "id", id, "error", err)
		return nil, err
	}
	s.invalidateAnime(in.AnimeID)
	s.logger.Info("updated episode", "id", id)
	return ep, nil
}

func (s *Service) DeleteEpisode(ctx context.Context, animeID, id string) error {
	if err := validateID("episode", id); err != nil {
		return err
	}
	repo, err := s.repository(ctx)
	if err != nil {
		return err
	}

	if err := repo.DeleteEpisode(ctx, id); err != nil {
		s.logger.Error("failed to delete episode", "id", id, "error", err)
		return err
	}
	if animeID != "" {
		s.invalidateAnime(animeID)
	} else {
		s.store.InvalidateListings()
	}
	s.logger.Info("deleted episode", "id", id)
	return nil
}

func (s *Service) invalidateAnime(id string) {
	s.store.InvalidateAnime(id)
	if s.details != nil {
		s.details.Forget(id)
	}
}

func (s *Service) indexAnime(a *domain.Anime) {
	if s.index != nil && a != nil {
		s.index.Merge([]domain.Anime{*a})
	}
}

// validateID rejects ids that are not UUIDs before they reach a filter
func validateID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s id %q is not a UUID", domain.ErrInvalidInput, kind, id)
	}
	return nil
}
