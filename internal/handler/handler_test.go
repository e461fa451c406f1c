package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-delivery/internal/model"
	"github.com/iliyamo/book-delivery/internal/service"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrInvalidInput, http.StatusBadRequest},
		{&service.NotFoundError{Resource: service.ResourceBook, ID: "B1"}, http.StatusNotFound},
		{service.ErrEmailExists, http.StatusConflict},
		{service.ErrAuthenticationFailed, http.StatusUnauthorized},
		{service.ErrRefreshTokenNotFound, http.StatusNotFound},
		{service.ErrAccessDenied, http.StatusForbidden},
		{fmt.Errorf("operation 'place order' failed after 3 attempts: %w", service.ErrLockTimeout), http.StatusServiceUnavailable},
		{errors.New("db exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		c, rec := newContext("/")
		if err := writeError(c, quietLogger(), tc.err); err != nil {
			t.Fatalf("writeError: %v", err)
		}
		if rec.Code != tc.status {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
	}
}

func TestWriteErrorDetails(t *testing.T) {
	c, rec := newContext("/")
	_ = writeError(c, quietLogger(), &service.InsufficientStockError{BookID: "B1", Requested: 3, Available: 2})
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["book_id"] != "B1" || body["requested"] != float64(3) || body["available"] != float64(2) || body["kind"] != "conflict" {
		t.Fatalf("unexpected body %v", body)
	}

	c, rec = newContext("/")
	_ = writeError(c, quietLogger(), service.ErrLockTimeout)
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After on retryable error")
	}

	c, rec = newContext("/")
	_ = writeError(c, quietLogger(), errors.New("secret dsn leaked"))
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal error" {
		t.Fatalf("internal error message leaked: %v", body["error"])
	}
}

func TestPageFrom(t *testing.T) {
	cases := []struct {
		query string
		want  model.PageRequest
		ok    bool
	}{
		{"", model.PageRequest{Page: 0, Size: model.DefaultPageSize}, true},
		{"?page=2&size=5", model.PageRequest{Page: 2, Size: 5}, true},
		{"?size=100", model.PageRequest{Page: 0, Size: 100}, true},
		{"?size=101", model.PageRequest{}, false},
		{"?size=0", model.PageRequest{}, false},
		{"?page=-1", model.PageRequest{}, false},
		{"?page=abc", model.PageRequest{}, false},
	}
	for _, tc := range cases {
		c, _ := newContext("/books" + tc.query)
		got, ok := pageFrom(c)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("%q: got (%+v,%v), want (%+v,%v)", tc.query, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLogoutRequiresBearer(t *testing.T) {
	h := &AuthHandler{Log: quietLogger()}
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	if err := h.Logout(e.NewContext(req, rec)); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestProtectedHandlersRequirePrincipal(t *testing.T) {
	books := &BookHandler{Log: quietLogger()}
	orders := &OrderHandler{Log: quietLogger()}
	stats := &StatisticsHandler{Log: quietLogger()}
	for name, fn := range map[string]echo.HandlerFunc{
		"books.list":   books.List,
		"orders.place": orders.Place,
		"stats.all":    stats.All,
	} {
		c, rec := newContext("/")
		if err := fn(c); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}
