package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/book-delivery/internal/service"
)

// BookHandler serves the catalog.
type BookHandler struct {
	Books *service.BookService
	Log   *slog.Logger
}

func NewBookHandler(b *service.BookService, log *slog.Logger) *BookHandler {
	if b == nil {
		panic("nil BookService passed to NewBookHandler")
	}
	return &BookHandler{Books: b, Log: log}
}

type bookReq struct {
	ISBN           string          `json:"isbn"`
	Name           string          `json:"name"`
	AuthorFullName string          `json:"author_full_name"`
	Price          decimal.Decimal `json:"price"`
	Stock          int             `json:"stock"`
}

func (r bookReq) input() service.BookInput {
	return service.BookInput{
		ISBN:           r.ISBN,
		Name:           r.Name,
		AuthorFullName: r.AuthorFullName,
		Price:          r.Price,
		Stock:          r.Stock,
	}
}

type stockReq struct {
	Stock *int `json:"stock"`
}

// Create handles POST /api/v1/books.
func (h *BookHandler) Create(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	b, err := h.Books.CreateBook(c.Request().Context(), p, req.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Update handles PUT /api/v1/books/:id.  Stock is not touched here.
func (h *BookHandler) Update(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	b, err := h.Books.UpdateBook(c.Request().Context(), p, c.Param("id"), req.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// UpdateStock handles PUT /api/v1/books/stock-amount/:id.
func (h *BookHandler) UpdateStock(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	var req stockReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Stock == nil {
		return badRequest(c, "stock is required")
	}
	b, err := h.Books.UpdateStock(c.Request().Context(), p, c.Param("id"), *req.Stock)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Get handles GET /api/v1/books/:id.
func (h *BookHandler) Get(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	b, err := h.Books.GetBook(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// List handles GET /api/v1/books?page=&size=.
func (h *BookHandler) List(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	page, ok := pageFrom(c)
	if !ok {
		return badRequest(c, "invalid page or size")
	}
	res, err := h.Books.ListBooks(c.Request().Context(), p, page)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}
