package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Book is a catalog entry.  Stock is never negative; the order placement
// transaction is the only writer that decrements it.
type Book struct {
	ID             string          `json:"id"`
	ISBN           string          `json:"isbn"`
	Name           string          `json:"name"`
	AuthorFullName string          `json:"author_full_name"`
	Price          decimal.Decimal `json:"price"`
	Stock          int             `json:"stock"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
