package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is created atomically with all of its items and never updated.
type Order struct {
	ID        uint64      `json:"id"`
	User      UserSummary `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
	Items     []OrderItem `json:"items"`
}

// TotalPrice sums unit price times quantity over all items.
func (o Order) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// TotalQuantity returns the number of copies in the order.
func (o Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// OrderItem is one requested line of an order.  Book fields are copied at
// placement time so later catalog edits do not rewrite history.
type OrderItem struct {
	ID       uint64       `json:"id"`
	Book     BookSnapshot `json:"book"`
	Quantity int          `json:"quantity"`
}

// LineTotal is the snapshot price multiplied by the quantity.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.Book.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// BookSnapshot holds the book fields as they were when the order was placed.
type BookSnapshot struct {
	ID             string          `json:"id"`
	ISBN           string          `json:"isbn"`
	Name           string          `json:"name"`
	AuthorFullName string          `json:"author_full_name"`
	Price          decimal.Decimal `json:"price"`
}

// Snapshot copies the fields of b that an order item retains.
func (b Book) Snapshot() BookSnapshot {
	return BookSnapshot{ID: b.ID, ISBN: b.ISBN, Name: b.Name, AuthorFullName: b.AuthorFullName, Price: b.Price}
}

// OrderLine is a single {bookId, amount} entry of a placement request.
type OrderLine struct {
	BookID string `json:"book_id"`
	Amount int    `json:"amount"`
}
