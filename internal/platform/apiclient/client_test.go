package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newTestServer(t *testing.T, register func(e *echo.Echo)) *Client {
	t.Helper()
	e := echo.New()
	register(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL + "/api/v1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RejectsBadScheme(t *testing.T) {
	if _, err := New("ftp://example.com"); err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestDo_DecodesOKEnvelope(t *testing.T) {
	c := newTestServer(t, func(e *echo.Echo) {
		e.GET("/api/v1/items/:id", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]any{
				"status": "OK", "code": 200, "data": item{ID: 7, Name: c.Param("id")},
			})
		})
	})

	got, err := Call[item](context.Background(), c, Request{Path: "/items/7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 7 || got.Name != "7" {
		t.Errorf("unexpected item %+v", got)
	}
}

func TestDo_SuccessVariants(t *testing.T) {
	bodies := []string{
		`{"status":"OK","data":{"id":1}}`,
		`{"status":"success","data":{"id":1}}`,
		`{"status":"Success","data":{"id":1}}`,
		`{"code":200,"data":{"id":1}}`,
		`{"code":201,"data":{"id":1}}`,
		`{"status":200,"message":"ok","data":{"id":1}}`,
		`{"id":1}`,
	}
	for _, body := range bodies {
		body := body
		c := newTestServer(t, func(e *echo.Echo) {
			e.GET("/api/v1/x", func(c echo.Context) error {
				return c.JSONBlob(http.StatusOK, []byte(body))
			})
		})
		got, err := Get[item](context.Background(), c, "/x", nil)
		if err != nil {
			t.Errorf("body %s: unexpected error %v", body, err)
			continue
		}
		if got.ID != 1 {
			t.Errorf("body %s: expected id 1, got %d", body, got.ID)
		}
	}
}

func TestDo_BusinessFailure(t *testing.T) {
	c := newTestServer(t, func(e *echo.Echo) {
		e.POST("/api/v1/x", func(c echo.Context) error {
			return c.JSONBlob(http.StatusOK, []byte(`{"status":"ERROR","code":400,"message":"Tủ thuốc đang bị khóa"}`))
		})
		e.POST("/api/v1/y", func(c echo.Context) error {
			return c.JSONBlob(http.StatusOK, []byte(`{"status":"FAILED","code":422}`))
		})
	})

	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x"}, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Kind != KindBusiness {
		t.Errorf("expected business kind, got %v", apiErr.Kind)
	}
	if apiErr.Message != "Tủ thuốc đang bị khóa" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}

	err = c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/y", Fallback: "Không thể khóa tủ"}, nil)
	if got := err.Error(); got != "Không thể khóa tủ" {
		t.Errorf("expected fallback message, got %q", got)
	}
}

func TestDo_HTTPErrorMessage(t *testing.T) {
	c := newTestServer(t, func(e *echo.Echo) {
		e.GET("/api/v1/with-message", func(c echo.Context) error {
			return c.JSON(http.StatusBadRequest, map[string]any{"message": "page must not be negative"})
		})
		e.GET("/api/v1/plain", func(c echo.Context) error {
			return c.String(http.StatusInternalServerError, "boom")
		})
	})

	err := c.Do(context.Background(), Request{Path: "/with-message"}, nil)
	if err == nil || err.Error() != "page must not be negative" {
		t.Errorf("expected server message, got %v", err)
	}

	err = c.Do(context.Background(), Request{Path: "/plain"}, nil)
	if err == nil || err.Error() != "HTTP error! status: 500" {
		t.Errorf("expected generic HTTP error, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 || apiErr.Kind != KindHTTP {
		t.Errorf("unexpected error details: %+v", apiErr)
	}
}

func TestDo_UnauthorizedIsClassified(t *testing.T) {
	c := newTestServer(t, func(e *echo.Echo) {
		e.GET("/api/v1/secure", func(c echo.Context) error {
			return c.JSON(http.StatusUnauthorized, map[string]any{"message": "Token expired"})
		})
		e.GET("/api/v1/envelope-401", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]any{"status": "ERROR", "code": 401, "message": "Unauthorized"})
		})
		e.GET("/api/v1/expired-message", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]any{"status": "ERROR", "message": "JWT token is expired"})
		})
		e.GET("/api/v1/other-failure", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]any{"status": "ERROR", "message": "Không đủ tồn kho"})
		})
	})

	if err := c.Do(context.Background(), Request{Path: "/secure"}, nil); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if err := c.Do(context.Background(), Request{Path: "/envelope-401"}, nil); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized from envelope code, got %v", err)
	}
	if err := c.Do(context.Background(), Request{Path: "/expired-message"}, nil); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized from token message, got %v", err)
	}
	if err := c.Do(context.Background(), Request{Path: "/other-failure"}, nil); errors.Is(err, ErrUnauthorized) {
		t.Errorf("business failure misclassified as unauthorized: %v", err)
	}
}

func TestDo_AttachesBearerAndBody(t *testing.T) {
	var gotAuth, gotRID string
	var gotBody map[string]any
	var gotQuery url.Values
	c := newTestServer(t, func(e *echo.Echo) {
		e.POST("/api/v1/things", func(c echo.Context) error {
			gotAuth = c.Request().Header.Get("Authorization")
			gotRID = c.Request().Header.Get(RequestIDHeader)
			gotQuery = c.QueryParams()
			json.NewDecoder(c.Request().Body).Decode(&gotBody)
			return c.JSON(http.StatusCreated, map[string]any{"status": "OK", "code": 201})
		})
	})
	c = c.WithTokens(TokenSourceFunc(func(context.Context) (string, error) { return "tok-123", nil }))

	err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "things",
		Query:  url.Values{"dryRun": {"true"}},
		Body:   map[string]any{"cabinetId": 3},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotRID == "" {
		t.Error("expected request id header")
	}
	if gotQuery.Get("dryRun") != "true" {
		t.Errorf("expected query param, got %v", gotQuery)
	}
	if gotBody["cabinetId"] != float64(3) {
		t.Errorf("expected JSON body, got %v", gotBody)
	}
}

func TestDo_PublicSkipsToken(t *testing.T) {
	var gotAuth string
	c := newTestServer(t, func(e *echo.Echo) {
		e.POST("/api/v1/login", func(c echo.Context) error {
			gotAuth = c.Request().Header.Get("Authorization")
			return c.JSON(http.StatusOK, map[string]any{"status": "OK"})
		})
	})
	c = c.WithTokens(TokenSourceFunc(func(context.Context) (string, error) {
		return "", errors.New("must not be called")
	}))

	if err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/login", Public: true}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("expected no Authorization header, got %q", gotAuth)
	}
}

func TestDo_TokenSourceErrorStopsCall(t *testing.T) {
	called := false
	c := newTestServer(t, func(e *echo.Echo) {
		e.GET("/api/v1/x", func(c echo.Context) error {
			called = true
			return c.NoContent(http.StatusOK)
		})
	})
	want := errors.New("not logged in")
	c = c.WithTokens(TokenSourceFunc(func(context.Context) (string, error) { return "", want }))

	if err := c.Do(context.Background(), Request{Path: "/x"}, nil); !errors.Is(err, want) {
		t.Errorf("expected token error, got %v", err)
	}
	if called {
		t.Error("request must not be sent without a token")
	}
}

func TestDo_NetworkError(t *testing.T) {
	c, _ := New("http://127.0.0.1:1")
	err := c.Do(context.Background(), Request{Path: "/x"}, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
	if got := Message(err, "Không thể tải dữ liệu"); got != "Không thể tải dữ liệu" {
		t.Errorf("expected fallback for network error, got %q", got)
	}
}
