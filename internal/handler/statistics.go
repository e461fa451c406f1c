package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-delivery/internal/service"
)

// StatisticsHandler serves monthly order reports.
type StatisticsHandler struct {
	Stats *service.StatisticsService
	Log   *slog.Logger
}

func NewStatisticsHandler(s *service.StatisticsService, log *slog.Logger) *StatisticsHandler {
	return &StatisticsHandler{Stats: s, Log: log}
}

// Customer handles GET /api/v1/statistics/:customerId.
func (h *StatisticsHandler) Customer(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	customerID, ok := uintParam(c, "customerId")
	if !ok {
		return badRequest(c, "invalid customer id")
	}
	page, ok := pageFrom(c)
	if !ok {
		return badRequest(c, "invalid page or size")
	}
	res, err := h.Stats.CustomerStatistics(c.Request().Context(), p, customerID, page)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// All handles GET /api/v1/statistics (ADMIN).
func (h *StatisticsHandler) All(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	page, ok := pageFrom(c)
	if !ok {
		return badRequest(c, "invalid page or size")
	}
	res, err := h.Stats.AllStatistics(c.Request().Context(), p, page)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}
