// Package sqlitestore implements the repository contracts over an embedded
// SQLite database. It backs local development and the test suites.
package sqlitestore

import (
	"database/sql"
	"errors"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}

// Repositories groups the SQLite implementations that share one handle.
type Repositories struct {
	Users         *UserRepository
	Subscriptions *SubscriptionRepository
	Audit         *AuditRepository
}

func New(db *sql.DB) Repositories {
	return Repositories{
		Users:         NewUserRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Audit:         NewAuditRepository(db),
	}
}
