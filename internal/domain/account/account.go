// Package account signs staff in and out of a realm and refreshes their
// tokens.
package account

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/auth"
	"github.com/hospital/staffportal/internal/platform/validation"
	"github.com/hospital/staffportal/internal/portal/action"
)

// Credentials is the login form.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// User is the profile returned with a token pair.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Tokens is the login and refresh response payload.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
	User         *User  `json:"user,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// API wraps /api/v1/{realm}/auth.
type API struct {
	c   *apiclient.Client
	now func() time.Time
}

func NewAPI(c *apiclient.Client) *API {
	return &API{c: c, now: time.Now}
}

func authPath(realm auth.Realm, op string) string {
	return "/api/v1/" + string(realm) + "/auth/" + op
}

func (a *API) session(realm auth.Realm, username string, t *Tokens) (*auth.Session, error) {
	if t == nil || t.AccessToken == "" {
		return nil, errors.New("login response carries no access token")
	}
	if username == "" && t.User != nil {
		username = t.User.Username
	}
	if username == "" {
		username = auth.TokenSubject(t.AccessToken)
	}
	s := auth.NewSession(realm, username, t.AccessToken, t.RefreshToken)
	if s.ExpiresAt.IsZero() && t.ExpiresIn > 0 {
		s.ExpiresAt = a.now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return s, nil
}

// Login exchanges credentials for a session. It does not store it.
func (a *API) Login(ctx context.Context, realm auth.Realm, cred Credentials) (*auth.Session, error) {
	if err := validation.Struct(cred); err != nil {
		return nil, action.Invalid("%s", err.Error())
	}
	t, err := apiclient.Call[*Tokens](ctx, a.c, apiclient.Request{
		Method:   http.MethodPost,
		Path:     authPath(realm, "login"),
		Body:     cred,
		Public:   true,
		Fallback: "Đăng nhập thất bại",
	})
	if err != nil {
		return nil, err
	}
	return a.session(realm, cred.Username, t)
}

// Refresh implements auth.Refresher.
func (a *API) Refresh(ctx context.Context, realm auth.Realm, refreshToken string) (*auth.Session, error) {
	t, err := apiclient.Call[*Tokens](ctx, a.c, apiclient.Request{
		Method: http.MethodPost,
		Path:   authPath(realm, "refresh"),
		Body:   refreshRequest{RefreshToken: refreshToken},
		Public: true,
	})
	if err != nil {
		return nil, err
	}
	return a.session(realm, "", t)
}

// Logout revokes accessToken on the backend.
func (a *API) Logout(ctx context.Context, realm auth.Realm, accessToken string) error {
	c := a.c.WithTokens(apiclient.TokenSourceFunc(func(context.Context) (string, error) {
		return accessToken, nil
	}))
	return c.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: authPath(realm, "logout")}, nil)
}

// SignIn logs in and stores the session in m.
func (a *API) SignIn(ctx context.Context, m *auth.Manager, cred Credentials) (*auth.Session, error) {
	s, err := a.Login(ctx, m.Realm(), cred)
	if err != nil {
		return nil, err
	}
	if err := m.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// SignOut revokes the stored session and clears it. The local session is
// cleared even when the backend call fails; that error is still returned.
func (a *API) SignOut(ctx context.Context, m *auth.Manager) error {
	s, err := m.Session()
	if err != nil {
		return err
	}
	callErr := a.Logout(ctx, m.Realm(), s.AccessToken)
	if err := m.Clear(); err != nil {
		return err
	}
	if callErr != nil && !errors.Is(callErr, apiclient.ErrUnauthorized) {
		return callErr
	}
	return nil
}
