package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/book-delivery/internal/model"
	"github.com/iliyamo/book-delivery/internal/repository"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// ----- identity fakes -----

type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return model.User{}, repository.ErrNotFound
}

type memTokens struct {
	mu     sync.Mutex
	byUser map[uint64]model.RefreshToken
}

func newMemTokens() *memTokens { return &memTokens{byUser: map[uint64]model.RefreshToken{}} }

func (m *memTokens) Replace(_ context.Context, userID uint64, hash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[userID] = model.RefreshToken{UserID: userID, TokenHash: hash, ExpiresAt: exp}
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, hash string) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byUser {
		if t.TokenHash == hash {
			return t, nil
		}
	}
	return model.RefreshToken{}, repository.ErrNotFound
}

func (m *memTokens) DeleteByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.byUser {
		if t.TokenHash == hash {
			delete(m.byUser, id)
		}
	}
	return nil
}

func (m *memTokens) DeleteByUserID(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUser, userID)
	return nil
}

func (m *memTokens) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUser)
}

// ----- placement fake -----

// memStore serializes whole transactions behind one mutex, which gives the
// same observable outcome as row locks for the tests below.  Writes go to a
// copy of the books that is only published on commit.
type memStore struct {
	mu          sync.Mutex
	users       map[uint64]model.User
	books       map[string]model.Book
	orders      []model.Order
	nextOrderID uint64
	nextItemID  uint64

	lockFailures int           // transactions that fail LockBook with a lock timeout
	lockWait     time.Duration // how long a failing LockBook blocks first
	txCount      int
}

func newMemStore() *memStore {
	return &memStore{users: map[uint64]model.User{}, books: map[string]model.Book{}}
}

func (m *memStore) addUser(id uint64, role model.Role) model.User {
	u := model.User{ID: id, Email: fmt.Sprintf("user%d@example.com", id), Username: fmt.Sprintf("user%d", id), FullName: "User", Role: role}
	m.users[id] = u
	return u
}

func (m *memStore) addBook(id, price string, stock int) {
	m.books[id] = model.Book{ID: id, ISBN: "9780000000000", Name: "Book " + id, AuthorFullName: "Author", Price: decimal.RequireFromString(price), Stock: stock}
}

func (m *memStore) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books[id].Stock
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) WithinTx(_ context.Context, fn func(tx repository.PlacementTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	tx := &memTx{store: m, books: make(map[string]model.Book, len(m.books))}
	for k, v := range m.books {
		tx.books[k] = v
	}
	if m.lockFailures > 0 {
		m.lockFailures--
		tx.failLock = true
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.books = tx.books
	m.orders = append(m.orders, tx.orders...)
	return nil
}

type memTx struct {
	store    *memStore
	books    map[string]model.Book
	orders   []model.Order
	failLock bool
}

func (t *memTx) UserByID(_ context.Context, id uint64) (model.User, error) {
	if u, ok := t.store.users[id]; ok {
		return u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (t *memTx) LockBook(ctx context.Context, id string) (model.Book, error) {
	if t.failLock {
		if t.store.lockWait > 0 {
			timer := time.NewTimer(t.store.lockWait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				// same shape BookRepo.GetForUpdateTx returns
				return model.Book{}, errors.Join(repository.ErrLockTimeout, ctx.Err())
			case <-timer.C:
			}
		}
		return model.Book{}, fmt.Errorf("%w: Error 1205: Lock wait timeout exceeded", repository.ErrLockTimeout)
	}
	b, ok := t.books[id]
	if !ok {
		return model.Book{}, repository.ErrNotFound
	}
	return b, nil
}

func (t *memTx) SetStock(_ context.Context, id string, stock int) error {
	b := t.books[id]
	b.Stock = stock
	t.books[id] = b
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *model.Order) error {
	t.store.nextOrderID++
	o.ID = t.store.nextOrderID
	for i := range o.Items {
		t.store.nextItemID++
		o.Items[i].ID = t.store.nextItemID
	}
	t.orders = append(t.orders, *o)
	return nil
}

// memStore also serves the read side.

func (m *memStore) GetByID(_ context.Context, id uint64) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return model.Order{}, repository.ErrNotFound
}

func (m *memStore) ListByUser(_ context.Context, userID uint64, page model.PageRequest) ([]model.Order, int64, error) {
	return m.filter(func(o model.Order) bool { return o.User.ID == userID }, page)
}

func (m *memStore) ListBetween(_ context.Context, start, end time.Time, page model.PageRequest) ([]model.Order, int64, error) {
	return m.filter(func(o model.Order) bool { return !o.CreatedAt.Before(start) && !o.CreatedAt.After(end) }, page)
}

func (m *memStore) filter(keep func(model.Order) bool, page model.PageRequest) ([]model.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Order
	for _, o := range m.orders {
		if keep(o) {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	from := page.Offset()
	if from > len(all) {
		from = len(all)
	}
	to := from + page.Size
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], total, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Order
	err    error
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, o model.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, o)
	return nil
}
