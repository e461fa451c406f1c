package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/book-delivery/internal/model"
	"github.com/iliyamo/book-delivery/internal/repository"
)

// BookStore is the catalog persistence.
type BookStore interface {
	Create(ctx context.Context, b *model.Book) error
	Update(ctx context.Context, b *model.Book) error
	UpdateStock(ctx context.Context, id string, stock int) error
	GetByID(ctx context.Context, id string) (model.Book, error)
	List(ctx context.Context, page model.PageRequest) ([]model.Book, int64, error)
}

// BookInput carries the writable fields of a book.
type BookInput struct {
	ISBN           string
	Name           string
	AuthorFullName string
	Price          decimal.Decimal
	Stock          int
}

// BookService manages the catalog.  Writes are ADMIN-only; reads are open to
// any authenticated principal.
type BookService struct {
	books BookStore
	now   func() time.Time
}

// NewBookService returns a BookService over books.
func NewBookService(books BookStore) *BookService {
	if books == nil {
		panic("nil BookStore passed to NewBookService")
	}
	return &BookService{books: books, now: time.Now}
}

// CreateBook adds a book with a generated id.
func (s *BookService) CreateBook(ctx context.Context, p model.Principal, in BookInput) (model.Book, error) {
	if err := requireAdmin(p); err != nil {
		return model.Book{}, err
	}
	if err := validateBook(&in, true); err != nil {
		return model.Book{}, err
	}
	now := s.now().UTC().Truncate(time.Second)
	b := model.Book{
		ID:             uuid.NewString(),
		ISBN:           in.ISBN,
		Name:           in.Name,
		AuthorFullName: in.AuthorFullName,
		Price:          in.Price,
		Stock:          in.Stock,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.books.Create(ctx, &b); err != nil {
		return model.Book{}, err
	}
	return b, nil
}

// UpdateBook rewrites the descriptive fields and price of a book.
func (s *BookService) UpdateBook(ctx context.Context, p model.Principal, id string, in BookInput) (model.Book, error) {
	if err := requireAdmin(p); err != nil {
		return model.Book{}, err
	}
	if err := validateBook(&in, false); err != nil {
		return model.Book{}, err
	}
	current, err := s.getBook(ctx, id)
	if err != nil {
		return model.Book{}, err
	}
	current.ISBN = in.ISBN
	current.Name = in.Name
	current.AuthorFullName = in.AuthorFullName
	current.Price = in.Price
	current.UpdatedAt = s.now().UTC().Truncate(time.Second)
	if err := s.books.Update(ctx, &current); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Book{}, &NotFoundError{Resource: ResourceBook, ID: id}
		}
		return model.Book{}, err
	}
	return current, nil
}

// UpdateStock sets the absolute stock of a book.
func (s *BookService) UpdateStock(ctx context.Context, p model.Principal, id string, stock int) (model.Book, error) {
	if err := requireAdmin(p); err != nil {
		return model.Book{}, err
	}
	if stock < 0 {
		return model.Book{}, invalidf("stock must not be negative")
	}
	if err := s.books.UpdateStock(ctx, id, stock); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Book{}, &NotFoundError{Resource: ResourceBook, ID: id}
		}
		if repository.IsLockTimeout(err) {
			return model.Book{}, ErrLockTimeout
		}
		return model.Book{}, err
	}
	return s.getBook(ctx, id)
}

// GetBook returns one book.
func (s *BookService) GetBook(ctx context.Context, p model.Principal, id string) (model.Book, error) {
	if err := requireAuthenticated(p); err != nil {
		return model.Book{}, err
	}
	return s.getBook(ctx, id)
}

// ListBooks pages the catalog.
func (s *BookService) ListBooks(ctx context.Context, p model.Principal, page model.PageRequest) (model.Page[model.Book], error) {
	if err := requireAuthenticated(p); err != nil {
		return model.Page[model.Book]{}, err
	}
	page = page.Normalize()
	books, total, err := s.books.List(ctx, page)
	if err != nil {
		return model.Page[model.Book]{}, err
	}
	return model.NewPage(books, page, total), nil
}

func (s *BookService) getBook(ctx context.Context, id string) (model.Book, error) {
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Book{}, &NotFoundError{Resource: ResourceBook, ID: id}
		}
		return model.Book{}, err
	}
	return b, nil
}

func validateBook(in *BookInput, withStock bool) error {
	in.ISBN = strings.ReplaceAll(strings.TrimSpace(in.ISBN), "-", "")
	in.Name = strings.TrimSpace(in.Name)
	in.AuthorFullName = strings.TrimSpace(in.AuthorFullName)
	if n := len(in.ISBN); n != 10 && n != 13 {
		return invalidf("isbn must have 10 or 13 characters")
	}
	if in.Name == "" {
		return invalidf("name is required")
	}
	if in.AuthorFullName == "" {
		return invalidf("author full name is required")
	}
	if !in.Price.IsPositive() {
		return invalidf("price must be positive")
	}
	if withStock && in.Stock < 0 {
		return invalidf("stock must not be negative")
	}
	return nil
}
