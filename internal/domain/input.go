package domain

import (
	"fmt"
	"strings"
)

// AnimeInput is the payload for creating or replacing an anime
type AnimeInput struct {
	Title       string
	Description string
	ImageURL    string
	Genres      []string
	ReleaseYear int
	Status      AnimeStatus
}

// Validate checks the required fields
func (in AnimeInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(in.Genres) == 0 {
		return fmt.Errorf("%w: at least one genre is required", ErrInvalidInput)
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: status must be %q or %q", ErrInvalidInput, StatusOngoing, StatusCompleted)
	}
	if in.ReleaseYear < 0 {
		return fmt.Errorf("%w: release year must not be negative", ErrInvalidInput)
	}
	return nil
}

// AnimeInputFrom builds an input carrying the current values of an anime
func AnimeInputFrom(a Anime) AnimeInput {
	genres := make([]string, len(a.Genres))
	copy(genres, a.Genres)
	return AnimeInput{
		Title:       a.Title,
		Description: a.Description,
		ImageURL:    a.ImageURL,
		Genres:      genres,
		ReleaseYear: a.ReleaseYear,
		Status:      a.Status,
	}
}

// EpisodeInput is the payload for creating or replacing an episode
type EpisodeInput struct {
	AnimeID       string
	Title         string
	EpisodeNumber int
	Description   string
	VideoURL      string
	ThumbnailURL  string
	Duration      int
}

// Validate checks the required fields
func (in EpisodeInput) Validate() error {
	if strings.TrimSpace(in.AnimeID) == "" {
		return fmt.Errorf("%w: anime id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.EpisodeNumber < 1 {
		return fmt.Errorf("%w: episode number must be at least 1", ErrInvalidInput)
	}
	if strings.TrimSpace(in.VideoURL) == "" {
		return fmt.Errorf("%w: video url is required", ErrInvalidInput)
	}
	if in.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	}
	return nil
}

// EpisodeInputFrom builds an input carrying the current values of an episode
func EpisodeInputFrom(e Episode) EpisodeInput {
	return EpisodeInput{
		AnimeID:       e.AnimeID,
		Title:         e.Title,
		EpisodeNumber: e.EpisodeNumber,
		Description:   e.Description,
		VideoURL:      e.VideoURL,
		ThumbnailURL:  e.ThumbnailURL,
		Duration:      e.Duration,
	}
}
