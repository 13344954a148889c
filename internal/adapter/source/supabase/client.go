package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 10
	defaultBurst     = 5
	maxRetries       = 3
	baseRetryDelay   = 500 * time.Millisecond

	restPrefix = "/rest/v1"
	authPrefix = "/auth/v1"
)

// Client talks to a Supabase project: PostgREST for rows, GoTrue for auth.
// It implements domain.CatalogRepository and domain.AuthClient; a copy made
// with WithAccessToken implements domain.AdminRepository.
type Client struct {
	baseURL     string
	anonKey     string
	accessToken string // Bearer token; anon key when empty
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

var (
	_ domain.CatalogRepository = (*Client)(nil)
	_ domain.AdminRepository   = (*Client)(nil)
	_ domain.AuthClient        = (*Client)(nil)
)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit throttles outgoing requests; rps <= 0 disables throttling
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a client for the project at baseURL using the anon key
func NewClient(baseURL, anonKey string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: rate.NewLimiter(defaultRateLimit, defaultBurst),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithAccessToken returns a copy that authorizes as the signed-in user.
// The copy shares the HTTP client and rate limiter.
func (c *Client) WithAccessToken(token string) *Client {
	cp := *c
	cp.accessToken = token
	return &cp
}

// BaseURL returns the project URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one backend call
type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	prefer []string
}

// response is a successful backend reply
type response struct {
	body   []byte
	header http.Header
}

// doRequest performs an authenticated request against the project.
// 5xx replies are retried with exponential backoff, except for POST.
func (c *Client) doRequest(ctx context.Context, r request) (*response, error) {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL = reqURL + "?" + r.query.Encode()
	}

	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resource := resourceName(r.path)
	start := time.Now()
	defer func() {
		metrics.BackendRequestDuration.WithLabelValues(r.method, resource).Observe(time.Since(start).Seconds())
	}()

	retries := maxRetries
	if r.method == http.MethodPost {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "path", r.path)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, reqURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		c.setHeaders(req, r)

		c.logger.Debug("backend request", "method", r.method, "path", r.path, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.BackendRequestsTotal.WithLabelValues(r.method, resource, "error").Inc()
			c.logger.Error("backend request failed", "path", r.path, "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		metrics.BackendRequestsTotal.WithLabelValues(r.method, resource, statusClass(resp.StatusCode)).Inc()

		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			lastErr = decodeAPIError(resp.StatusCode, body)
			c.logger.Warn("backend server error, will retry",
				"status", resp.StatusCode,
				"body", string(body),
				"attempt", attempt,
				"maxRetries", retries,
				"path", r.path,
			)
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			apiErr := decodeAPIError(resp.StatusCode, body)
			c.logger.Warn("backend rejected credentials", "status", resp.StatusCode, "path", r.path, "message", apiErr.Message)
			return nil, fmt.Errorf("%w: %w", domain.ErrAuthFailed, apiErr)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := decodeAPIError(resp.StatusCode, body)
			c.logger.Error("backend request error", "status", resp.StatusCode, "path", r.path, "body", string(body))
			return nil, apiErr
		}

		return &response{body: body, header: resp.Header}, nil
	}

	c.logger.Error("backend request failed after retries", "error", lastErr, "path", r.path)
	return nil, lastErr
}

func (c *Client) setHeaders(req *http.Request, r request) {
	token := c.accessToken
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}
}

// resourceName reduces a path to a low-cardinality metric label
func resourceName(path string) string {
	switch {
	case strings.HasPrefix(path, restPrefix+"/"):
		return strings.TrimPrefix(path, restPrefix+"/")
	case strings.HasPrefix(path, authPrefix+"/"):
		return "auth"
	default:
		return "other"
	}
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// === REST helpers ===

// getRows runs a PostgREST select and decodes the rows
func (c *Client) getRows(ctx context.Context, table string, query url.Values) ([]map[string]interface{}, error) {
	resp, err := c.doRequest(ctx, request{
		method: http.MethodGet,
		path:   restPrefix + "/" + table,
		query:  query,
	})
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.body)
}

// writeRows runs an insert/update/delete and decodes the returned representation
func (c *Client) writeRows(ctx context.Context, method, table string, query url.Values, body interface{}) ([]map[string]interface{}, error) {
	resp, err := c.doRequest(ctx, request{
		method: method,
		path:   restPrefix + "/" + table,
		query:  query,
		body:   body,
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.body)
}

func decodeRows(body []byte) ([]map[string]interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var rows []map[string]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return rows, nil
}

func eq(v string) string {
	return "eq." + v
}

// orderParam renders ListOptions ordering as a PostgREST order value
func orderParam(opts domain.ListOptions) string {
	if opts.OrderBy == "" {
		return ""
	}
	dir := "asc"
	if opts.Descending {
		dir = "desc"
	}
	return opts.OrderBy + "." + dir
}

// escapeLike escapes LIKE metacharacters so the term matches literally
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// parseContentRange extracts the total from "0-9/42" or "*/0"
func parseContentRange(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("malformed content-range %q", header)
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("content-range %q has no total", header)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("malformed content-range %q: %w", header, err)
	}
	return n, nil
}

// === CatalogRepository ===

// ListAnime returns one page of anime
func (c *Client) ListAnime(ctx context.Context, opts domain.ListOptions) ([]domain.Anime, error) {
	query := url.Values{}
	query.Set("select", "*")
	if order := orderParam(opts); order != "" {
		query.Set("order", order)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	rows, err := c.getRows(ctx, "anime", query)
	if err != nil {
		return nil, err
	}
	return MapAnimeList(rows), nil
}

// CountAnime returns the number of anime rows using an exact count
func (c *Client) CountAnime(ctx context.Context) (int, error) {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")

	resp, err := c.doRequest(ctx, request{
		method: http.MethodGet,
		path:   restPrefix + "/anime",
		query:  query,
		prefer: []string{"count=exact"},
	})
	if err != nil {
		return 0, err
	}
	return parseContentRange(resp.header.Get("Content-Range"))
}

// FindAnimeByTitle runs a case-insensitive substring match on title
func (c *Client) FindAnimeByTitle(ctx context.Context, term string, limit int) ([]domain.Anime, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("title", "ilike.*"+escapeLike(term)+"*")
	query.Set("order", "title.asc")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	rows, err := c.getRows(ctx, "anime", query)
	if err != nil {
		return nil, err
	}
	return MapAnimeList(rows), nil
}

// GetAnime returns one anime by id
func (c *Client) GetAnime(ctx context.Context, id string) (*domain.Anime, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("id", eq(id))
	query.Set("limit", "1")

	rows, err := c.getRows(ctx, "anime", query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("anime %s: %w", id, domain.ErrNotFound)
	}
	a := MapAnime(rows[0])
	return &a, nil
}

// ListEpisodes returns an anime's episodes by ascending number
func (c *Client) ListEpisodes(ctx context.Context, animeID string) ([]domain.Episode, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("anime_id", eq(animeID))
	query.Set("order", "episode_number.asc")

	rows, err := c.getRows(ctx, "episodes", query)
	if err != nil {
		return nil, err
	}
	return MapEpisodes(rows), nil
}

// GetEpisode returns one episode by id
func (c *Client) GetEpisode(ctx context.Context, id string) (*domain.Episode, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("id", eq(id))
	query.Set("limit", "1")

	rows, err := c.getRows(ctx, "episodes", query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("episode %s: %w", id, domain.ErrNotFound)
	}
	e := MapEpisode(rows[0])
	return &e, nil
}

// === AdminRepository ===

// GetAdminByEmail returns the admins row for an email
func (c *Client) GetAdminByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("email", eq(email))
	query.Set("limit", "1")

	rows, err := c.getRows(ctx, "admins", query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("admin %s: %w", email, domain.ErrNotFound)
	}
	a := MapAdmin(rows[0])
	return &a, nil
}

func (c *Client) InsertAnime(ctx context.Context, in domain.AnimeInput) (*domain.Anime, error) {
	rows, err := c.writeRows(ctx, http.MethodPost, "anime", nil, newAnimeWrite(in))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("insert returned no rows")
	}
	a := MapAnime(rows[0])
	return &a, nil
}

func (c *Client) UpdateAnime(ctx context.Context, id string, in domain.AnimeInput) (*domain.Anime, error) {
	query := url.Values{}
	query.Set("id", eq(id))

	rows, err := c.writeRows(ctx, http.MethodPatch, "anime", query, newAnimeWrite(in))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("anime %s: %w", id, domain.ErrNotFound)
	}
	a := MapAnime(rows[0])
	return &a, nil
}

func (c *Client) DeleteAnime(ctx context.Context, id string) error {
	query := url.Values{}
	query.Set("id", eq(id))

	rows, err := c.writeRows(ctx, http.MethodDelete, "anime", query, nil)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("anime %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (c *Client) InsertEpisode(ctx context.Context, in domain.EpisodeInput) (*domain.Episode, error) {
	rows, err := c.writeRows(ctx, http.MethodPost, "episodes", nil, newEpisodeWrite(in))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("insert returned no rows")
	}
	e := MapEpisode(rows[0])
	return &e, nil
}

func (c *Client) UpdateEpisode(ctx context.Context, id string, in domain.EpisodeInput) (*domain.Episode, error) {
	query := url.Values{}
	query.Set("id", eq(id))

	rows, err := c.writeRows(ctx, http.MethodPatch, "episodes", query, newEpisodeWrite(in))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("episode %s: %w", id, domain.ErrNotFound)
	}
	e := MapEpisode(rows[0])
	return &e, nil
}

func (c *Client) DeleteEpisode(ctx context.Context, id string) error {
	query := url.Values{}
	query.Set("id", eq(id))

	rows, err := c.writeRows(ctx, http.MethodDelete, "episodes", query, nil)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("episode %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteEpisodesByAnime removes every episode of an anime and returns how many went
func (c *Client) DeleteEpisodesByAnime(ctx context.Context, animeID string) (int, error) {
	query := url.Values{}
	query.Set("anime_id", eq(animeID))

	rows, err := c.writeRows(ctx, http.MethodDelete, "episodes", query, nil)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
