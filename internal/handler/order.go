package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-delivery/internal/model"
	"github.com/iliyamo/book-delivery/internal/service"
)

// OrderHandler places and lists orders.
type OrderHandler struct {
	Orders  *service.OrderService
	Log     *slog.Logger
	Timeout time.Duration // upper bound for a placement including retries
}

func NewOrderHandler(o *service.OrderService, log *slog.Logger, timeout time.Duration) *OrderHandler {
	if o == nil {
		panic("nil OrderService passed to NewOrderHandler")
	}
	return &OrderHandler{Orders: o, Log: log, Timeout: timeout}
}

type placeOrderReq struct {
	Items []model.OrderLine `json:"items"`
}

type orderResp struct {
	model.Order
	TotalPrice    string `json:"total_price"`
	TotalQuantity int    `json:"total_quantity"`
}

func toOrderResp(o model.Order) orderResp {
	return orderResp{Order: o, TotalPrice: o.TotalPrice().StringFixed(2), TotalQuantity: o.TotalQuantity()}
}

func toOrderPage(p model.Page[model.Order]) model.Page[orderResp] {
	out := make([]orderResp, 0, len(p.Content))
	for _, o := range p.Content {
		out = append(out, toOrderResp(o))
	}
	return model.Page[orderResp]{
		Content:       out,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
	}
}

// Place handles POST /api/v1/orders with {"items":[{"book_id","amount"}]}.
func (h *OrderHandler) Place(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	var req placeOrderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx := c.Request().Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	o, err := h.Orders.PlaceOrder(ctx, p, req.Items)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toOrderResp(o))
}

// Get handles GET /api/v1/orders/:id.
func (h *OrderHandler) Get(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	o, err := h.Orders.GetOrder(c.Request().Context(), p, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toOrderResp(o))
}

// ListByCustomer handles GET /api/v1/orders/customer/:customerId.
func (h *OrderHandler) ListByCustomer(c echo.Context) error {
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
	res, err := h.Orders.ListOrdersByCustomer(c.Request().Context(), p, customerID, page)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toOrderPage(res))
}

// ListBetween handles GET /api/v1/orders/between-dates?start=&end= with
// RFC 3339 timestamps.
func (h *OrderHandler) ListBetween(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return badRequest(c, "start must be an RFC 3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return badRequest(c, "end must be an RFC 3339 timestamp")
	}
	page, ok := pageFrom(c)
	if !ok {
		return badRequest(c, "invalid page or size")
	}
	res, err := h.Orders.ListOrdersBetween(c.Request().Context(), p, start, end, page)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toOrderPage(res))
}
