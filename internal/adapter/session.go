package adapter

import (
	"sync"
	"time"

	"github.com/mmcdole/anikino/internal/domain"
)

// SessionStore persists the admin session in the config file
type SessionStore struct {
	mu  sync.Mutex
	cfg *Config
}

var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a session store backed by cfg
func NewSessionStore(cfg *Config) *SessionStore {
	return &SessionStore{cfg: cfg}
}

// LoadSession returns the saved session, if any
func (s *SessionStore) LoadSession() (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc := s.cfg.Session
	if sc.AccessToken == "" && sc.RefreshToken == "" {
		return nil, false
	}

	sess := &domain.Session{
		AccessToken:  sc.AccessToken,
		RefreshToken: sc.RefreshToken,
		Email:        sc.Email,
		UserID:       sc.UserID,
	}
	if sc.ExpiresAt > 0 {
		sess.ExpiresAt = time.Unix(sc.ExpiresAt, 0).UTC()
	}
	return sess, true
}

// SaveSession stores the session and writes the config file
func (s *SessionStore) SaveSession(sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc := SessionConfig{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		Email:        sess.Email,
		UserID:       sess.UserID,
	}
	if !sess.ExpiresAt.IsZero() {
		sc.ExpiresAt = sess.ExpiresAt.Unix()
	}
	s.cfg.Session = sc
	return SaveConfig(s.cfg)
}

// ClearSession drops the saved session
func (s *SessionStore) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ClearSession(s.cfg)
}
