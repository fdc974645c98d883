package account

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/auth"
	"github.com/hospital/staffportal/internal/portal/action"
)

func token(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newAPI(t *testing.T, register func(e *echo.Echo)) *API {
	t.Helper()
	e := echo.New()
	register(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	c, err := apiclient.New(srv.URL)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	return NewAPI(c)
}

func TestSignIn_StoresSession(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := token(t, "duocsi01", exp)
	var gotAuth string
	api := newAPI(t, func(e *echo.Echo) {
		e.POST("/api/v1/pharmacist/auth/login", func(c echo.Context) error {
			gotAuth = c.Request().Header.Get("Authorization")
			var cred Credentials
			if err := c.Bind(&cred); err != nil || cred.Password != "secret" {
				return c.JSON(http.StatusUnauthorized, map[string]any{"message": "Sai tên đăng nhập hoặc mật khẩu"})
			}
			return c.JSON(http.StatusOK, map[string]any{"status": "OK", "code": 200, "data": Tokens{
				AccessToken: access, RefreshToken: "r-1", User: &User{Username: cred.Username},
			}})
		})
	})

	m := auth.NewManager(auth.NewMemoryStore(), auth.RealmPharmacist)
	s, err := api.SignIn(context.Background(), m, Credentials{Username: "duocsi01", Password: "secret"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("login must be public, sent %q", gotAuth)
	}
	if !s.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt, exp)
	}
	got, err := m.Token(context.Background())
	if err != nil || got != access {
		t.Errorf("Token = %q, %v", got, err)
	}

	_, err = api.SignIn(context.Background(), m, Credentials{Username: "duocsi01", Password: "wrong"})
	if err == nil || err.Error() != "Sai tên đăng nhập hoặc mật khẩu" {
		t.Errorf("bad password error = %v", err)
	}
}

func TestLogin_ValidatesCredentials(t *testing.T) {
	api := newAPI(t, func(e *echo.Echo) {})
	_, err := api.Login(context.Background(), auth.RealmFinance, Credentials{Username: "ketoan"})
	var verr *action.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestLogin_ExpiresInForOpaqueTokens(t *testing.T) {
	api := newAPI(t, func(e *echo.Echo) {
		e.POST("/api/v1/finance/auth/login", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]any{"status": "success", "data": Tokens{AccessToken: "opaque", ExpiresIn: 60}})
		})
	})
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	api.now = func() time.Time { return now }

	s, err := api.Login(context.Background(), auth.RealmFinance, Credentials{Username: "ketoan", Password: "x"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !s.ExpiresAt.Equal(now.Add(time.Minute)) || s.Username != "ketoan" {
		t.Errorf("session = %+v", s)
	}
}

func TestRefresh_UsedByManager(t *testing.T) {
	fresh := token(t, "ketoan", time.Now().Add(time.Hour))
	var gotRefresh string
	api := newAPI(t, func(e *echo.Echo) {
		e.POST("/api/v1/finance/auth/refresh", func(c echo.Context) error {
			var body refreshRequest
			c.Bind(&body)
			gotRefresh = body.RefreshToken
			return c.JSON(http.StatusOK, map[string]any{"status": "OK", "data": Tokens{AccessToken: fresh}})
		})
	})

	store := auth.NewMemoryStore()
	m := auth.NewManager(store, auth.RealmFinance, auth.WithRefresher(api))
	stale := auth.NewSession(auth.RealmFinance, "ketoan", token(t, "ketoan", time.Now().Add(-time.Hour)), "r-9")
	if err := m.Save(stale); err != nil {
		t.Fatal(err)
	}

	got, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got != fresh || gotRefresh != "r-9" {
		t.Errorf("token=%q refresh sent=%q", got, gotRefresh)
	}
}

func TestSignOut_ClearsEvenWhenBackendFails(t *testing.T) {
	var gotAuth string
	api := newAPI(t, func(e *echo.Echo) {
		e.POST("/api/v1/finance/auth/logout", func(c echo.Context) error {
			gotAuth = c.Request().Header.Get("Authorization")
			return c.JSON(http.StatusInternalServerError, map[string]any{"message": "boom"})
		})
	})
	m := auth.NewManager(auth.NewMemoryStore(), auth.RealmFinance)
	m.Save(auth.NewSession(auth.RealmFinance, "ketoan", "tok-1", ""))

	if err := api.SignOut(context.Background(), m); err == nil {
		t.Error("expected backend error to be reported")
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if _, err := m.Session(); !errors.Is(err, auth.ErrNotLoggedIn) {
		t.Errorf("session not cleared: %v", err)
	}
	if err := api.SignOut(context.Background(), m); !errors.Is(err, auth.ErrNotLoggedIn) {
		t.Errorf("second SignOut = %v", err)
	}
}

func TestSignOut_IgnoresUnauthorized(t *testing.T) {
	api := newAPI(t, func(e *echo.Echo) {
		e.POST("/api/v1/pharmacist/auth/logout", func(c echo.Context) error {
			return c.JSON(http.StatusUnauthorized, map[string]any{"message": "Token expired"})
		})
	})
	m := auth.NewManager(auth.NewMemoryStore(), auth.RealmPharmacist)
	m.Save(auth.NewSession(auth.RealmPharmacist, "duocsi01", "tok-2", ""))
	if err := api.SignOut(context.Background(), m); err != nil {
		t.Errorf("SignOut = %v", err)
	}
}
