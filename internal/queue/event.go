// Package queue defines the order event payload and the RabbitMQ publisher
// and consumer that carry it.
package queue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/book-delivery/internal/model"
)

// OrderPlacedEvent is published after an order commits.  It carries enough
// information for downstream consumers to log, notify or trigger analytics
// without querying the primary database.
type OrderPlacedEvent struct {
	OrderID    uint64           `json:"order_id"`
	UserID     uint64           `json:"user_id"`
	UserEmail  string           `json:"user_email"`
	Items      []OrderEventItem `json:"items"`
	TotalPrice decimal.Decimal  `json:"total_price"`
	CreatedAt  string           `json:"created_at"`
}

// OrderEventItem is one line of an OrderPlacedEvent.
type OrderEventItem struct {
	BookID    string          `json:"book_id"`
	ISBN      string          `json:"isbn"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// NewOrderPlacedEvent builds the event for a committed order.
func NewOrderPlacedEvent(o model.Order) OrderPlacedEvent {
	items := make([]OrderEventItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderEventItem{
			BookID:    it.Book.ID,
			ISBN:      it.Book.ISBN,
			Quantity:  it.Quantity,
			UnitPrice: it.Book.Price,
		})
	}
	return OrderPlacedEvent{
		OrderID:    o.ID,
		UserID:     o.User.ID,
		UserEmail:  o.User.Email,
		Items:      items,
		TotalPrice: o.TotalPrice(),
		CreatedAt:  o.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
