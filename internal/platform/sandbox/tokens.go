package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hospital/staffportal/internal/domain/account"
	"github.com/hospital/staffportal/internal/platform/auth"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims is the payload of sandbox tokens.
type Claims struct {
	jwt.RegisteredClaims
	Realm auth.Realm `json:"realm"`
	Role  string     `json:"role,omitempty"`
	Use   string     `json:"use"`
}

var errTokenRevoked = errors.New("token revoked")

// revocationList remembers revoked token ids until the token would have
// expired anyway.
type revocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newRevocationList() *revocationList {
	return &revocationList{entries: make(map[string]time.Time)}
}

func (r *revocationList) revoke(jti string, expiresAt time.Time, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, exp := range r.entries {
		if now.After(exp) {
			delete(r.entries, id)
		}
	}
	r.entries[jti] = expiresAt
}

func (r *revocationList) revoked(jti string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[jti]
	return ok
}

func (r *revocationList) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// issuer signs and verifies HS256 token pairs.
type issuer struct {
	key        []byte
	ttl        time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	revoked    *revocationList
}

func newIssuer(key string, ttl, refreshTTL time.Duration) *issuer {
	return &issuer{
		key:        []byte(key),
		ttl:        ttl,
		refreshTTL: refreshTTL,
		now:        time.Now,
		revoked:    newRevocationList(),
	}
}

func (i *issuer) sign(u Staff, use string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.Username,
			Issuer:    "staff-portal-sandbox",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Realm: u.Realm,
		Role:  u.Role,
		Use:   use,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
}

func (i *issuer) issue(u Staff) (*account.Tokens, error) {
	access, err := i.sign(u, tokenAccess, i.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := i.sign(u, tokenRefresh, i.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &account.Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(i.ttl / time.Second),
		User:         &account.User{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role},
	}, nil
}

func (i *issuer) parse(tokenStr, use string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}
	if claims.Use != use {
		return nil, fmt.Errorf("expected %s token, got %q", use, claims.Use)
	}
	if i.revoked.revoked(claims.ID) {
		return nil, errTokenRevoked
	}
	return claims, nil
}

func (i *issuer) revoke(c *Claims) {
	exp := i.now().Add(i.refreshTTL)
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	i.revoked.revoke(c.ID, exp, i.now())
}

// requireRealm checks the bearer token and that it was issued for realm.
func (s *Server) requireRealm(realm auth.Realm) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return fail(http.StatusUnauthorized, "Thiếu token xác thực")
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return fail(http.StatusUnauthorized, "Token invalid")
			}

			claims, err := s.tokens.parse(parts[1], tokenAccess)
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				return fail(http.StatusUnauthorized, "Token expired")
			case err != nil:
				return fail(http.StatusUnauthorized, "Token invalid")
			}
			if claims.Realm != realm {
				return fail(http.StatusForbidden, "Tài khoản không có quyền truy cập phân hệ %s", realm)
			}

			c.Set("username", claims.Subject)
			c.Set("claims", claims)
			return next(c)
		}
	}
}

func (s *Server) login(realm auth.Realm) echo.HandlerFunc {
	return func(c echo.Context) error {
		var cred account.Credentials
		if err := c.Bind(&cred); err != nil {
			return badRequest("Dữ liệu đăng nhập không hợp lệ")
		}
		u, found := s.store.authenticate(realm, cred.Username, cred.Password)
		if !found {
			return fail(http.StatusUnauthorized, "Sai tên đăng nhập hoặc mật khẩu")
		}
		t, err := s.tokens.issue(u)
		if err != nil {
			return err
		}
		s.logger.Info().Str("realm", string(realm)).Str("user", u.Username).Msg("sandbox login")
		return success(c, t)
	}
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

// refresh rotates the token pair; the presented refresh token is revoked.
func (s *Server) refresh(realm auth.Realm) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body refreshBody
		if err := c.Bind(&body); err != nil || body.RefreshToken == "" {
			return badRequest("Thiếu refresh token")
		}
		claims, err := s.tokens.parse(body.RefreshToken, tokenRefresh)
		if err != nil || claims.Realm != realm {
			return fail(http.StatusUnauthorized, "Refresh token invalid")
		}
		u, found := s.store.staffMember(realm, claims.Subject)
		if !found {
			return fail(http.StatusUnauthorized, "Refresh token invalid")
		}
		s.tokens.revoke(claims)
		t, err := s.tokens.issue(u)
		if err != nil {
			return err
		}
		return success(c, t)
	}
}

func (s *Server) logout(c echo.Context) error {
	claims, _ := c.Get("claims").(*Claims)
	if claims != nil {
		s.tokens.revoke(claims)
	}
	return done(c, "Đã đăng xuất")
}
