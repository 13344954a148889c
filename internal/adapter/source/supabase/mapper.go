package supabase

import (
	"strings"
	"time"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/spf13/cast"
)

// Rows are decoded loosely and coerced field by field. A malformed field
// becomes its zero value; a row is never rejected.

// MapAnimeList converts anime rows to domain anime
func MapAnimeList(rows []map[string]interface{}) []domain.Anime {
	out := make([]domain.Anime, 0, len(rows))
	for _, row := range rows {
		out = append(out, MapAnime(row))
	}
	return out
}

// MapAnime converts a single anime row
func MapAnime(row map[string]interface{}) domain.Anime {
	return domain.Anime{
		ID:          cast.ToString(row["id"]),
		CreatedAt:   toTime(row["created_at"]),
		Title:       cast.ToString(row["title"]),
		Description: cast.ToString(row["description"]),
		ImageURL:    strings.TrimSpace(cast.ToString(row["image_url"])),
		Genres:      toStrings(row["genres"]),
		ReleaseYear: toYear(row["release_year"]),
		Status:      domain.AnimeStatus(strings.ToLower(cast.ToString(row["status"]))),
	}
}

// MapEpisodes converts episode rows
func MapEpisodes(rows []map[string]interface{}) []domain.Episode {
	out := make([]domain.Episode, 0, len(rows))
	for _, row := range rows {
		out = append(out, MapEpisode(row))
	}
	return out
}

// MapEpisode converts a single episode row
func MapEpisode(row map[string]interface{}) domain.Episode {
	return domain.Episode{
		ID:            cast.ToString(row["id"]),
		AnimeID:       cast.ToString(row["anime_id"]),
		CreatedAt:     toTime(row["created_at"]),
		Title:         cast.ToString(row["title"]),
		EpisodeNumber: toInt(row["episode_number"]),
		Description:   cast.ToString(row["description"]),
		VideoURL:      strings.TrimSpace(cast.ToString(row["video_url"])),
		ThumbnailURL:  strings.TrimSpace(cast.ToString(row["thumbnail_url"])),
		Duration:      toInt(row["duration"]),
	}
}

// MapAdmin converts an admins row
func MapAdmin(row map[string]interface{}) domain.Admin {
	return domain.Admin{
		ID:       cast.ToString(row["id"]),
		Username: cast.ToString(row["username"]),
		Email:    cast.ToString(row["email"]),
		Role:     cast.ToString(row["role"]),
	}
}

// toYear coerces a release year; anything unusable becomes YearUnknown
func toYear(v interface{}) int {
	year := toInt(v)
	if year < 0 {
		return domain.YearUnknown
	}
	return year
}

func toInt(v interface{}) int {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0
	}
	return n
}

func toTime(v interface{}) time.Time {
	if v == nil {
		return time.Time{}
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// toStrings accepts a JSON array or a comma-separated string
func toStrings(v interface{}) []string {
	if s, ok := v.(string); ok {
		v = strings.Split(s, ",")
	}
	raw, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, g := range raw {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
