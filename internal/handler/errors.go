package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-delivery/internal/middleware"
	"github.com/iliyamo/book-delivery/internal/model"
	"github.com/iliyamo/book-delivery/internal/service"
)

// retryAfterSeconds is advertised to clients that lost a lock race.
const retryAfterSeconds = 1

// statusFor maps a service failure class to an HTTP status code.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindInvalid:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindRetryable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": ..., "kind": ...}.  Internal failures
// are logged and replaced with a generic message.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	kind := service.KindOf(err)
	status := statusFor(kind)
	if kind == service.KindInternal {
		log.Error("request failed",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
		return c.JSON(status, echo.Map{"error": "internal error", "kind": kind.String()})
	}

	body := echo.Map{"error": err.Error(), "kind": kind.String()}
	var stock *service.InsufficientStockError
	if errors.As(err, &stock) {
		body["book_id"] = stock.BookID
		body["requested"] = stock.Requested
		body["available"] = stock.Available
	}
	if kind == service.KindRetryable {
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	return c.JSON(status, body)
}

// principal returns the caller placed on the context by JWTAuth.
func principal(c echo.Context) (model.Principal, bool) {
	return middleware.PrincipalFrom(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// pageFrom reads ?page= and ?size= (zero-based page).  Missing values use
// the defaults; malformed ones are rejected.
func pageFrom(c echo.Context) (model.PageRequest, bool) {
	var req model.PageRequest
	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, false
		}
		req.Page = n
	}
	if v := c.QueryParam("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > model.MaxPageSize {
			return req, false
		}
		req.Size = n
	}
	return req.Normalize(), true
}

// uintParam parses a positive numeric path parameter.
func uintParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
