package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mmcdole/anikino/internal/domain"
)

// sessionClaims are the GoTrue access token claims we read
type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SignInWithPassword exchanges email and password for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	return c.token(ctx, "password", credentials{Email: email, Password: password})
}

// RefreshSession exchanges a refresh token for a new session
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, domain.ErrNoSession
	}
	return c.token(ctx, "refresh_token", refreshGrant{RefreshToken: refreshToken})
}

// SignOut revokes the session behind the access token
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.WithAccessToken(accessToken).doRequest(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/logout",
	})
	if err != nil && !errors.Is(err, domain.ErrAuthFailed) {
		return err
	}
	// An already expired or revoked token counts as signed out
	return nil
}

func (c *Client) token(ctx context.Context, grant string, body interface{}) (*domain.Session, error) {
	query := url.Values{}
	query.Set("grant_type", grant)

	// Token grants always go out with the anon key
	anon := c.WithAccessToken("")
	resp, err := anon.doRequest(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/token",
		query:  query,
		body:   body,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", domain.ErrAuthFailed, apiErr.Message)
		}
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response carried no access token", domain.ErrAuthFailed)
	}

	return sessionFromToken(tr, time.Now()), nil
}

// sessionFromToken builds a session, filling gaps from the access token claims.
// The token is not verified; the backend verifies it on every request.
func sessionFromToken(tr tokenResponse, now time.Time) *domain.Session {
	s := &domain.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
	}

	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
	}

	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, &claims); err != nil {
		return s
	}
	if s.UserID == "" {
		s.UserID = claims.Subject
	}
	if s.Email == "" {
		s.Email = claims.Email
	}
	if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return s
}
