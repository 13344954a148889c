package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/spf13/cast"
)

// APIError is a non-2xx reply from PostgREST or GoTrue
type APIError struct {
	Status  int    // HTTP status code
	Code    string // PostgREST SQLSTATE/PGRST code or GoTrue error code
	Message string
	Details string
	Hint    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, msg)
}

// decodeAPIError reads both error shapes:
// PostgREST {"code","message","details","hint"} and
// GoTrue {"error","error_description"} / {"error_code","msg"}.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		apiErr.Message = string(body)
		return apiErr
	}

	apiErr.Code = firstString(raw, "error_code", "code", "error")
	apiErr.Message = firstString(raw, "message", "msg", "error_description", "error")
	apiErr.Details = cast.ToString(raw["details"])
	apiErr.Hint = cast.ToString(raw["hint"])
	return apiErr
}

func firstString(raw map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := cast.ToString(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

// animeWrite is the insert/update body for the anime table
type animeWrite struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url"`
	Genres      []string `json:"genres"`
	ReleaseYear *int     `json:"release_year"`
	Status      string   `json:"status"`
}

func newAnimeWrite(in domain.AnimeInput) animeWrite {
	w := animeWrite{
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Genres:      in.Genres,
		Status:      string(in.Status),
	}
	if w.Genres == nil {
		w.Genres = []string{}
	}
	if in.ReleaseYear != domain.YearUnknown {
		year := in.ReleaseYear
		w.ReleaseYear = &year
	}
	return w
}

// episodeWrite is the insert/update body for the episodes table
type episodeWrite struct {
	AnimeID       string `json:"anime_id"`
	Title         string `json:"title"`
	EpisodeNumber int    `json:"episode_number"`
	Description   string `json:"description"`
	VideoURL      string `json:"video_url"`
	ThumbnailURL  string `json:"thumbnail_url"`
	Duration      int    `json:"duration"`
}

func newEpisodeWrite(in domain.EpisodeInput) episodeWrite {
	return episodeWrite{
		AnimeID:       in.AnimeID,
		Title:         in.Title,
		EpisodeNumber: in.EpisodeNumber,
		Description:   in.Description,
		VideoURL:      in.VideoURL,
		ThumbnailURL:  in.ThumbnailURL,
		Duration:      in.Duration,
	}
}

// credentials is the body of a password grant
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshGrant is the body of a refresh_token grant
type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

// tokenResponse is GoTrue's session payload
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}
