// Package auth holds the portal's authentication context: one Session per
// realm, persisted through a Store and handed to API clients by a Manager.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNotLoggedIn is returned when a realm has no stored session.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrSessionExpired is returned when the access token has expired and
	// cannot be refreshed.
	ErrSessionExpired = errors.New("session expired")
)

// Realm identifies which staff backend a session belongs to.
type Realm string

const (
	RealmFinance    Realm = "finance"
	RealmPharmacist Realm = "pharmacist"
)

// Realms lists every supported realm.
var Realms = []Realm{RealmFinance, RealmPharmacist}

// ParseRealm validates a realm name.
func ParseRealm(s string) (Realm, error) {
	switch r := Realm(strings.ToLower(strings.TrimSpace(s))); r {
	case RealmFinance, RealmPharmacist:
		return r, nil
	default:
		return "", fmt.Errorf("unknown realm %q (want finance or pharmacist)", s)
	}
}

// Session is what a successful login returns.
type Session struct {
	Realm        Realm     `json:"realm"`
	Username     string    `json:"username,omitempty"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`
	SavedAt      time.Time `json:"savedAt"`
}

// NewSession builds a session, reading the expiry from the access token's
// exp claim when it is a JWT.
func NewSession(realm Realm, username, access, refresh string) *Session {
	s := &Session{
		Realm:        realm,
		Username:     username,
		AccessToken:  access,
		RefreshToken: refresh,
	}
	if exp, ok := TokenExpiry(access); ok {
		s.ExpiresAt = exp
	}
	return s
}

// Expired reports whether the access token is past its expiry at now, with
// skew subtracted. Sessions without a known expiry never expire here; the
// backend's 401 is then the only signal.
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.ExpiresAt)
}

// TokenExpiry extracts the exp claim of a JWT without verifying its
// signature. The portal never holds the signing key; verification is the
// backend's job.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenSubject extracts the sub claim of a JWT without verification.
func TokenSubject(token string) string {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	return claims.Subject
}
