package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-delivery/internal/middleware"
	"github.com/iliyamo/book-delivery/internal/model"
	"github.com/iliyamo/book-delivery/internal/service"
)

// AuthHandler exposes registration, login, refresh and logout.
type AuthHandler struct {
	Auth *service.AuthService
	Log  *slog.Logger
}

func NewAuthHandler(a *service.AuthService, log *slog.Logger) *AuthHandler {
	if a == nil {
		panic("nil AuthService passed to NewAuthHandler")
	}
	return &AuthHandler{Auth: a, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Role     string `json:"role"` // ADMIN | CUSTOMER, defaults to CUSTOMER
}

func (r registerReq) input() service.RegisterInput {
	return service.RegisterInput{
		Email:    r.Email,
		Username: r.Username,
		FullName: r.FullName,
		Password: r.Password,
		Role:     model.Role(strings.ToUpper(strings.TrimSpace(r.Role))),
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type userResp struct {
	model.UserSummary
	Role model.Role `json:"role"`
}

// Register creates an account.  Tokens are obtained separately via login.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.Auth.Register(c.Request().Context(), req.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, userResp{UserSummary: u.Summary(), Role: u.Role})
}

// Login verifies credentials and returns an access/refresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}
	pair, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, pair)
}

// RefreshToken exchanges a stored refresh token for a new access token.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	pair, err := h.Auth.RefreshToken(c.Request().Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout revokes the caller's refresh token.  The access token in the
// Authorization header identifies the user; it stays valid until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw, ok := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	if err := h.Auth.Logout(c.Request().Context(), raw); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the principal resolved from the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": p.ID, "email": p.Email, "role": p.Role})
}

// CreateCustomer handles POST /api/v1/customers (ADMIN).
func (h *AuthHandler) CreateCustomer(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in := req.input()
	in.Role = model.RoleCustomer
	u, err := h.Auth.CreateCustomer(c.Request().Context(), p, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, userResp{UserSummary: u.Summary(), Role: u.Role})
}
