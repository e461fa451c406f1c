package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/book-delivery/internal/config"
)

func TestDSNSetsLockWaitTimeout(t *testing.T) {
	dsn := DSN(config.DBConfig{
		User:            "app",
		Pass:            "pw",
		Host:            "db",
		Port:            "3306",
		Name:            "books",
		LockWaitTimeout: 7 * time.Second,
	})
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("parse %q: %v", dsn, err)
	}
	if parsed.Addr != "db:3306" || parsed.DBName != "books" || parsed.User != "app" {
		t.Fatalf("unexpected target %+v", parsed)
	}
	if !parsed.ParseTime || !parsed.ClientFoundRows {
		t.Fatalf("parseTime/clientFoundRows not set in %q", dsn)
	}
	if got := parsed.Params["innodb_lock_wait_timeout"]; got != "7" {
		t.Fatalf("innodb_lock_wait_timeout = %q, want 7", got)
	}
}
