package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/book-delivery/internal/model"
)

// BookRepo provides data access to the books table.
type BookRepo struct{ db *sql.DB }

// NewBookRepo returns a BookRepo bound to db.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

const bookColumns = "id, isbn, name, author_full_name, price, stock, created_at, updated_at"

// Create inserts a new book.  The caller assigns the ID.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books (id, isbn, name, author_full_name, price, stock, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ISBN, b.Name, b.AuthorFullName, b.Price, b.Stock, b.CreatedAt, b.UpdatedAt)
	return err
}

// Update overwrites the descriptive fields of a book.  Stock is untouched.
func (r *BookRepo) Update(ctx context.Context, b *model.Book) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE books SET isbn = ?, name = ?, author_full_name = ?, price = ?, updated_at = ? WHERE id = ?`,
		b.ISBN, b.Name, b.AuthorFullName, b.Price, b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateStock sets the stock of a book to an absolute value.
func (r *BookRepo) UpdateStock(ctx context.Context, id string, stock int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE books SET stock = ? WHERE id = ?`, stock, id)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

// GetByID returns the book with the given id or ErrNotFound.
func (r *BookRepo) GetByID(ctx context.Context, id string) (model.Book, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	return scanBook(row)
}

// List returns a page of books ordered by name together with the total count.
func (r *BookRepo) List(ctx context.Context, page model.PageRequest) ([]model.Book, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY name, id LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	books := make([]model.Book, 0, page.Size)
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.ISBN, &b.Name, &b.AuthorFullName, &b.Price, &b.Stock, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		books = append(books, b)
	}
	return books, total, rows.Err()
}

// GetForUpdateTx reads a book and takes an exclusive row lock on it that is
// held until tx commits or rolls back.  Concurrent callers for the same id
// block here; if the wait exceeds innodb_lock_wait_timeout (or the context
// deadline) ErrLockTimeout is returned.
func (r *BookRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (model.Book, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ? FOR UPDATE`, id)
	b, err := scanBook(row)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return model.Book{}, errors.Join(ErrLockTimeout, err)
	}
	return b, err
}

// SetStockTx writes the stock of a book that the transaction has locked.
func (r *BookRepo) SetStockTx(ctx context.Context, tx *sql.Tx, id string, stock int) error {
	res, err := tx.ExecContext(ctx, `UPDATE books SET stock = ? WHERE id = ?`, stock, id)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

func scanBook(row *sql.Row) (model.Book, error) {
	var b model.Book
	if err := row.Scan(&b.ID, &b.ISBN, &b.Name, &b.AuthorFullName, &b.Price, &b.Stock, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Book{}, translate(err)
	}
	return b, nil
}

// requireRow turns a zero-row update into ErrNotFound.  The DSN sets
// clientFoundRows so unchanged rows still count as matched.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
