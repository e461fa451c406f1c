package model

import "github.com/shopspring/decimal"

// OrderReport aggregates orders for one calendar month.
type OrderReport struct {
	Month           string          `json:"month"`
	Year            int             `json:"year"`
	TotalOrderCount int64           `json:"total_order_count"`
	TotalBookCount  int64           `json:"total_book_count"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}
