package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/book-delivery/internal/model"
)

// OrderRepo encapsulates database operations for orders and order_items.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo constructs an OrderRepo given a DB handle.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// CreateTx inserts the order header and its items inside tx, assigning IDs
// to o and each item.  The caller commits or rolls back.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (user_id, created_at) VALUES (?, ?)`,
		o.User.ID, o.CreatedAt)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	// one statement per item keeps LastInsertId exact for every row
	for i := range o.Items {
		it := &o.Items[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, book_id, isbn, name, author_full_name, price, quantity)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, i, it.Book.ID, it.Book.ISBN, it.Book.Name, it.Book.AuthorFullName, it.Book.Price, it.Quantity)
		if err != nil {
			return translate(err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		it.ID = uint64(itemID)
	}
	return nil
}

const orderSelect = `SELECT o.id, o.created_at, u.id, u.email, u.username, u.full_name
	FROM orders o JOIN users u ON u.id = o.user_id`

// GetByID loads a single order with its owner and items.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (model.Order, error) {
	var o model.Order
	err := r.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = ?`, id).
		Scan(&o.ID, &o.CreatedAt, &o.User.ID, &o.User.Email, &o.User.Username, &o.User.FullName)
	if err != nil {
		return model.Order{}, translate(err)
	}
	orders := []model.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return model.Order{}, err
	}
	return orders[0], nil
}

// ListByUser returns a page of the user's orders, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64, page model.PageRequest) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	orders, err := r.list(ctx, ` WHERE o.user_id = ?`, []any{userID}, page)
	return orders, total, err
}

// ListBetween returns a page of orders created in [start, end], newest first.
func (r *OrderRepo) ListBetween(ctx context.Context, start, end time.Time, page model.PageRequest) ([]model.Order, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE created_at BETWEEN ? AND ?`, start, end).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	orders, err := r.list(ctx, ` WHERE o.created_at BETWEEN ? AND ?`, []any{start, end}, page)
	return orders, total, err
}

func (r *OrderRepo) list(ctx context.Context, where string, args []any, page model.PageRequest) ([]model.Order, error) {
	args = append(args, page.Size, page.Offset())
	rows, err := r.db.QueryContext(ctx,
		orderSelect+where+` ORDER BY o.created_at DESC, o.id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.CreatedAt, &o.User.ID, &o.User.Email, &o.User.Username, &o.User.FullName); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all given orders in a single query and
// assigns them in position order.
func (r *OrderRepo) attachItems(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	idx := make(map[uint64]int, len(orders))
	args := make([]any, 0, len(orders))
	for i := range orders {
		idx[orders[i].ID] = i
		orders[i].Items = []model.OrderItem{}
		args = append(args, orders[i].ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orders)), ",")
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, book_id, isbn, name, author_full_name, price, quantity
		 FROM order_items WHERE order_id IN (`+placeholders+`) ORDER BY order_id, position`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it      model.OrderItem
			orderID uint64
		)
		if err := rows.Scan(&it.ID, &orderID, &it.Book.ID, &it.Book.ISBN, &it.Book.Name,
			&it.Book.AuthorFullName, &it.Book.Price, &it.Quantity); err != nil {
			return err
		}
		if i, ok := idx[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}
