package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mmcdole/anikino/internal/domain"
)

const testAnonKey = "anon-key"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, testAnonKey, nil, WithRateLimit(0, 0))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClient_ListAnime(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/anime" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("order") != "created_at.desc" || q.Get("limit") != "6" || q.Get("select") != "*" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("apikey") != testAnonKey || r.Header.Get("Authorization") != "Bearer "+testAnonKey {
			t.Errorf("auth headers = %q / %q", r.Header.Get("apikey"), r.Header.Get("Authorization"))
		}
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"id": "a1", "title": "Frieren", "release_year": 2023, "genres": []string{"Fantasy", "Adventure"},
				"status": "ongoing", "image_url": "https://img/f.jpg", "created_at": "2024-03-01T10:00:00.123456+00:00"},
			{"id": "a2", "title": "Mystery Row", "release_year": nil, "genres": nil},
		})
	})

	got, err := c.ListAnime(context.Background(), domain.ListOptions{Limit: 6, OrderBy: "created_at", Descending: true})
	if err != nil {
		t.Fatalf("ListAnime: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ReleaseYear != 2023 || got[0].Status != domain.StatusOngoing || len(got[0].Genres) != 2 {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[0].CreatedAt.Year() != 2024 {
		t.Errorf("CreatedAt = %v", got[0].CreatedAt)
	}
	if got[1].ReleaseYear != domain.YearUnknown || got[1].YearLabel() != "N/A" {
		t.Errorf("missing year coerced to %d", got[1].ReleaseYear)
	}
}

func TestClient_FindAnimeByTitle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("title"); got != `ilike.*50\% off*` {
			t.Errorf("title filter = %q", got)
		}
		if q.Get("order") != "title.asc" || q.Get("limit") != "10" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": "x", "title": "50% Off"}})
	})

	got, err := c.FindAnimeByTitle(context.Background(), "50% off", 10)
	if err != nil {
		t.Fatalf("FindAnimeByTitle: %v", err)
	}
	if len(got) != 1 || got[0].ID != "x" {
		t.Errorf("got %+v", got)
	}
}

func TestClient_GetAnimeNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "eq.missing" {
			t.Errorf("id filter = %q", r.URL.Query().Get("id"))
		}
		writeJSON(w, http.StatusOK, []interface{}{})
	})

	_, err := c.GetAnime(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClient_CountAnime(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Prefer") != "count=exact" {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		w.Header().Set("Content-Range", "0-0/42")
		writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": "a"}})
	})

	n, err := c.CountAnime(context.Background())
	if err != nil {
		t.Fatalf("CountAnime: %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d, want 42", n)
	}
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		header  string
		want    int
		wantErr bool
	}{
		{"0-9/42", 42, false},
		{"*/0", 0, false},
		{"0-9/*", 0, true},
		{"", 0, true},
		{"0-9/abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseContentRange(tt.header)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseContentRange(%q) = %d, %v", tt.header, got, err)
		}
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": "e1", "episode_number": "3"}})
	})

	got, err := c.ListEpisodes(context.Background(), "a1")
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(got) != 1 || got[0].EpisodeNumber != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestClient_InsertIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "down"})
	})

	_, err := c.WithAccessToken("tok").InsertAnime(context.Background(), domain.AnimeInput{Title: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Errorf("err = %v, want APIError 503", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "PGRST301", "message": "JWT expired"})
		})
		_, err := c.ListAnime(context.Background(), domain.ListOptions{})
		if !errors.Is(err, domain.ErrAuthFailed) {
			t.Errorf("err = %v, want ErrAuthFailed", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != "PGRST301" {
			t.Errorf("APIError not wrapped: %v", err)
		}
	})

	t.Run("bad request", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "22P02", "message": "invalid input syntax for type uuid", "hint": "check id"})
		})
		_, err := c.GetAnime(context.Background(), "nope")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("err = %v, want APIError", err)
		}
		if apiErr.Code != "22P02" || apiErr.Hint != "check id" {
			t.Errorf("APIError = %+v", apiErr)
		}
	})

	t.Run("offline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		c := NewClient(url, testAnonKey, nil, WithRateLimit(0, 0))
		_, err := c.ListAnime(context.Background(), domain.ListOptions{})
		if !errors.Is(err, domain.ErrServerOffline) {
			t.Errorf("err = %v, want ErrServerOffline", err)
		}
	})
}

func TestClient_WritesUseAccessToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		if r.URL.Query().Get("id") != "eq.a1" {
			t.Errorf("id filter = %q", r.URL.Query().Get("id"))
		}

		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("body: %v", err)
		}
		if payload["title"] != "Bleach" || payload["status"] != "completed" {
			t.Errorf("payload = %v", payload)
		}
		if _, ok := payload["id"]; ok {
			t.Error("payload must not carry id")
		}
		writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": "a1", "title": "Bleach", "status": "completed"}})
	})

	in := domain.AnimeInput{Title: "Bleach", Genres: []string{"Action"}, ReleaseYear: 2004, Status: domain.StatusCompleted}
	got, err := c.WithAccessToken("user-token").UpdateAnime(context.Background(), "a1", in)
	if err != nil {
		t.Fatalf("UpdateAnime: %v", err)
	}
	if got.ID != "a1" {
		t.Errorf("got %+v", got)
	}
}

func TestClient_DeleteMissingRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []interface{}{})
	})

	err := c.WithAccessToken("tok").DeleteEpisode(context.Background(), "gone")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDecodeAPIError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
		wantMsg  string
	}{
		{"postgrest", `{"code":"23505","message":"duplicate key","details":"Key exists"}`, "23505", "duplicate key"},
		{"gotrue legacy", `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, "invalid_grant", "Invalid login credentials"},
		{"gotrue current", `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`, "invalid_credentials", "Invalid login credentials"},
		{"plain text", `bad gateway`, "", "bad gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := decodeAPIError(400, []byte(tt.body))
			if e.Code != tt.wantCode || e.Message != tt.wantMsg {
				t.Errorf("got code=%q msg=%q", e.Code, e.Message)
			}
		})
	}
}
