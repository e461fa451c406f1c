package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/book-delivery/internal/model"
)

// PlacementTx is the set of statements an order placement runs inside one
// database transaction.
type PlacementTx interface {
	// UserByID loads the ordering user.
	UserByID(ctx context.Context, id uint64) (model.User, error)
	// LockBook reads a book under an exclusive row lock held until the
	// transaction ends.
	LockBook(ctx context.Context, id string) (model.Book, error)
	// SetStock writes a new stock value for a locked book.
	SetStock(ctx context.Context, id string, stock int) error
	// InsertOrder persists the order and its items, assigning IDs.
	InsertOrder(ctx context.Context, o *model.Order) error
}

// TxRunner runs fn in a transaction that commits when fn returns nil and
// rolls back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx PlacementTx) error) error
}

// PlacementStore is the MySQL TxRunner used by order placement.
type PlacementStore struct {
	db     *sql.DB
	books  *BookRepo
	orders *OrderRepo
}

// NewPlacementStore wires the repositories that share one transaction.
func NewPlacementStore(db *sql.DB, books *BookRepo, orders *OrderRepo) *PlacementStore {
	if db == nil || books == nil || orders == nil {
		panic("nil dependency passed to NewPlacementStore")
	}
	return &PlacementStore{db: db, books: books, orders: orders}
}

// WithinTx begins a READ COMMITTED transaction; the FOR UPDATE reads in
// LockBook provide the serialization on each book row.
func (s *PlacementStore) WithinTx(ctx context.Context, fn func(tx PlacementTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return translate(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&placementTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	committed = true
	return nil
}

type placementTx struct {
	tx *sql.Tx
	s  *PlacementStore
}

func (p *placementTx) UserByID(ctx context.Context, id uint64) (model.User, error) {
	return getUserByID(ctx, p.tx, id)
}

func (p *placementTx) LockBook(ctx context.Context, id string) (model.Book, error) {
	return p.s.books.GetForUpdateTx(ctx, p.tx, id)
}

func (p *placementTx) SetStock(ctx context.Context, id string, stock int) error {
	return p.s.books.SetStockTx(ctx, p.tx, id, stock)
}

func (p *placementTx) InsertOrder(ctx context.Context, o *model.Order) error {
	return p.s.orders.CreateTx(ctx, p.tx, o)
}
