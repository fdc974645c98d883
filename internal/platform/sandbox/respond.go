package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// envelope is the response wrapper every endpoint returns.
type envelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: "OK", Code: http.StatusOK, Data: data})
}

func created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, envelope{Status: "OK", Code: http.StatusCreated, Data: data})
}

func done(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, envelope{Status: "OK", Code: http.StatusOK, Message: message})
}

func fail(code int, format string, args ...any) error {
	return echo.NewHTTPError(code, fmt.Sprintf(format, args...))
}

func conflict(format string, args ...any) error {
	return fail(http.StatusConflict, format, args...)
}

func badRequest(format string, args ...any) error {
	return fail(http.StatusBadRequest, format, args...)
}

func notFound(what string, id int64) error {
	return fail(http.StatusNotFound, "Không tìm thấy %s #%d", what, id)
}

// pathID reads the :id route parameter.
func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("Mã không hợp lệ: %s", c.Param("id"))
	}
	return id, nil
}

// errorHandler renders every error as an envelope carrying the HTTP status.
func errorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "Lỗi hệ thống"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
		} else {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, envelope{Status: "ERROR", Code: code, Message: msg})
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
