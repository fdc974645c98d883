package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Refresher exchanges a refresh token for a new session.
type Refresher interface {
	Refresh(ctx context.Context, realm Realm, refreshToken string) (*Session, error)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRefresher enables refreshing expired access tokens.
func WithRefresher(r Refresher) ManagerOption {
	return func(m *Manager) { m.refresher = r }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// Manager is the single source of truth for one realm's tokens. API
// clients ask it for a token on every call; nothing else reads the store.
type Manager struct {
	mu        sync.Mutex
	store     Store
	realm     Realm
	refresher Refresher
	now       func() time.Time
	skew      time.Duration
	logger    zerolog.Logger
}

func NewManager(store Store, realm Realm, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		realm:  realm,
		now:    time.Now,
		skew:   10 * time.Second,
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetRefresher installs the refresher after construction. The refresher is
// usually an API that itself needs this manager, so it cannot always be
// passed to NewManager.
func (m *Manager) SetRefresher(r Refresher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresher = r
}

// Realm returns the managed realm.
func (m *Manager) Realm() Realm {
	return m.realm
}

// Session returns the stored session.
func (m *Manager) Session() (*Session, error) {
	return m.store.Load(m.realm)
}

// Token returns a usable access token, refreshing it first when it has
// expired and a refresher and refresh token are available.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.store.Load(m.realm)
	if err != nil {
		return "", err
	}
	if s.AccessToken == "" {
		return "", ErrNotLoggedIn
	}
	if !s.Expired(m.now(), m.skew) {
		return s.AccessToken, nil
	}
	if m.refresher == nil || s.RefreshToken == "" {
		return "", ErrSessionExpired
	}

	m.logger.Debug().Str("realm", string(m.realm)).Msg("access token expired, refreshing")
	fresh, err := m.refresher.Refresh(ctx, m.realm, s.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: refresh failed: %v", ErrSessionExpired, err)
	}
	if fresh.Username == "" {
		fresh.Username = s.Username
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = s.RefreshToken
	}
	fresh.Realm = m.realm
	fresh.SavedAt = time.Time{}
	if err := m.store.Save(fresh); err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

// Save stores s as this realm's session.
func (m *Manager) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Realm = m.realm
	return m.store.Save(s)
}

// Clear forgets this realm's session.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Clear(m.realm)
}

// IsAuthError reports whether err means the user has to log in again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotLoggedIn) || errors.Is(err, ErrSessionExpired)
}
