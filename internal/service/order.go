package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/book-delivery/internal/model"
	"github.com/iliyamo/book-delivery/internal/observability/metrics"
	"github.com/iliyamo/book-delivery/internal/reliability/retry"
	"github.com/iliyamo/book-delivery/internal/repository"
)

// OrderReader serves the read side of orders.
type OrderReader interface {
	GetByID(ctx context.Context, id uint64) (model.Order, error)
	ListByUser(ctx context.Context, userID uint64, page model.PageRequest) ([]model.Order, int64, error)
	ListBetween(ctx context.Context, start, end time.Time, page model.PageRequest) ([]model.Order, int64, error)
}

// EventPublisher announces committed orders.  Implementations must not
// block for long; failures are logged and never undo the order.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, o model.Order) error
}

// OrderService places orders and answers order queries.
type OrderService struct {
	store  repository.TxRunner
	orders OrderReader
	events EventPublisher
	retry  retry.Config
	log    *slog.Logger
	now    func() time.Time
}

// OrderOption customizes an OrderService.
type OrderOption func(*OrderService)

// WithEventPublisher sets the publisher used after a successful commit.
func WithEventPublisher(p EventPublisher) OrderOption {
	return func(s *OrderService) { s.events = p }
}

// WithRetry bounds the transparent retries on lock contention.
func WithRetry(attempts int, backoff time.Duration) OrderOption {
	return func(s *OrderService) {
		if attempts > 0 {
			s.retry.MaxAttempts = attempts
		}
		if backoff > 0 {
			s.retry.InitialBackoff = backoff
		}
	}
}

// NewOrderService wires the order placement component.
func NewOrderService(store repository.TxRunner, orders OrderReader, log *slog.Logger, opts ...OrderOption) *OrderService {
	if store == nil || orders == nil {
		panic("nil dependency passed to NewOrderService")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &OrderService{
		store:  store,
		orders: orders,
		retry:  *retry.DefaultConfig(),
		log:    log,
		now:    time.Now,
	}
	s.retry.ShouldRetry = func(err error) bool { return errors.Is(err, ErrLockTimeout) }
	for _, o := range opts {
		o(s)
	}
	return s
}

// PlaceOrder converts the lines into a persisted order.  Each book row is
// locked in the order given, its stock checked and decremented, and the
// order with all items committed in the same transaction.  Any failure rolls
// everything back.  Lock timeouts are retried a bounded number of times.
func (s *OrderService) PlaceOrder(ctx context.Context, p model.Principal, lines []model.OrderLine) (model.Order, error) {
	if err := requireCustomer(p); err != nil {
		return model.Order{}, err
	}
	lines, err := normalizeLines(lines)
	if err != nil {
		return model.Order{}, err
	}
	start := time.Now()
	order, err := retry.Do(ctx, &s.retry, s.log, "place order", func(ctx context.Context) (model.Order, error) {
		return s.placeOnce(ctx, p, lines)
	})
	metrics.ObserveOrderPlacement(placementResult(err), time.Since(start))
	if err != nil {
		// contention that outlived the retries or the deadline is reported
		// as plain lock contention
		if errors.Is(err, ErrLockTimeout) {
			s.log.Debug("order placement gave up on lock contention", slog.String("error", err.Error()))
			return model.Order{}, ErrLockTimeout
		}
		return model.Order{}, err
	}
	metrics.AddBooksSold(order.TotalQuantity())

	if s.events != nil {
		if perr := s.events.PublishOrderPlaced(ctx, order); perr != nil {
			s.log.Warn("publish order placed event", slog.Uint64("order_id", order.ID), slog.String("error", perr.Error()))
		}
	}
	return order, nil
}

func (s *OrderService) placeOnce(ctx context.Context, p model.Principal, lines []model.OrderLine) (model.Order, error) {
	var order model.Order
	err := s.store.WithinTx(ctx, func(tx repository.PlacementTx) error {
		u, err := tx.UserByID(ctx, p.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &NotFoundError{Resource: ResourceUser, ID: formatID(p.ID)}
			}
			return err
		}
		order = model.Order{
			User:      u.Summary(),
			CreatedAt: s.now().UTC().Truncate(time.Millisecond),
			Items:     make([]model.OrderItem, 0, len(lines)),
		}
		for _, ln := range lines {
			book, err := tx.LockBook(ctx, ln.BookID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return &NotFoundError{Resource: ResourceBook, ID: ln.BookID}
				}
				return err
			}
			if book.Stock < ln.Amount {
				return &InsufficientStockError{BookID: book.ID, Requested: ln.Amount, Available: book.Stock}
			}
			if err := tx.SetStock(ctx, book.ID, book.Stock-ln.Amount); err != nil {
				return err
			}
			order.Items = append(order.Items, model.OrderItem{Book: book.Snapshot(), Quantity: ln.Amount})
		}
		return tx.InsertOrder(ctx, &order)
	})
	if err != nil {
		if repository.IsLockTimeout(err) {
			return model.Order{}, ErrLockTimeout
		}
		return model.Order{}, err
	}
	return order, nil
}

func normalizeLines(lines []model.OrderLine) ([]model.OrderLine, error) {
	if len(lines) == 0 {
		return nil, invalidf("order must contain at least one line")
	}
	out := make([]model.OrderLine, len(lines))
	for i, ln := range lines {
		ln.BookID = strings.TrimSpace(ln.BookID)
		if ln.BookID == "" {
			return nil, invalidf("line %d: book id is required", i)
		}
		if ln.Amount < 1 {
			return nil, invalidf("line %d: amount must be at least 1", i)
		}
		out[i] = ln
	}
	return out, nil
}

func placementResult(err error) string {
	if err == nil {
		return "success"
	}
	return KindOf(err).String()
}

// GetOrder returns an order visible to p: ADMIN sees all, a CUSTOMER only
// their own.
func (s *OrderService) GetOrder(ctx context.Context, p model.Principal, id uint64) (model.Order, error) {
	if err := requireAuthenticated(p); err != nil {
		return model.Order{}, err
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Order{}, &NotFoundError{Resource: ResourceOrder, ID: formatID(id)}
		}
		return model.Order{}, err
	}
	if err := canAccessCustomer(p, o.User.ID); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// ListOrdersByCustomer pages a customer's orders for ADMIN or that customer.
func (s *OrderService) ListOrdersByCustomer(ctx context.Context, p model.Principal, customerID uint64, page model.PageRequest) (model.Page[model.Order], error) {
	if err := canAccessCustomer(p, customerID); err != nil {
		return model.Page[model.Order]{}, err
	}
	page = page.Normalize()
	orders, total, err := s.orders.ListByUser(ctx, customerID, page)
	if err != nil {
		return model.Page[model.Order]{}, err
	}
	return model.NewPage(orders, page, total), nil
}

// ListOrdersBetween pages orders created in [start, end]; ADMIN only.
func (s *OrderService) ListOrdersBetween(ctx context.Context, p model.Principal, start, end time.Time, page model.PageRequest) (model.Page[model.Order], error) {
	if err := requireAdmin(p); err != nil {
		return model.Page[model.Order]{}, err
	}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return model.Page[model.Order]{}, invalidf("start date must not be after end date")
	}
	page = page.Normalize()
	orders, total, err := s.orders.ListBetween(ctx, start.UTC(), end.UTC(), page)
	if err != nil {
		return model.Page[model.Order]{}, err
	}
	return model.NewPage(orders, page, total), nil
}
