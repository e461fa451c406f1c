// Package repository defines the MySQL data access layer and the error
// values shared by all repositories.  Callers compare with errors.Is.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when inserting a user whose email is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrLockTimeout is returned when a row lock could not be acquired in time
// or InnoDB chose the transaction as a deadlock victim.  The whole
// transaction has been rolled back and may be retried.
var ErrLockTimeout = errors.New("lock wait timeout")

// MySQL server error numbers the repositories translate.
const (
	erDupEntry        = 1062
	erLockWaitTimeout = 1205
	erLockDeadlock    = 1213
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mysqlCode returns the server error number wrapped in err, or 0.
func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	switch mysqlCode(err) {
	case erLockWaitTimeout, erLockDeadlock:
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	return err
}

// IsLockTimeout reports whether err is a retryable lock failure.
func IsLockTimeout(err error) bool { return errors.Is(err, ErrLockTimeout) }
