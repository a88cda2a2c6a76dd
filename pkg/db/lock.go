package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds an exclusive row lock to the query on dialects that support it.
// SQLite serializes writers at the database level, so the clause is omitted there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	default:
		return tx
	}
}

// BoundLockWait limits how long statements in tx wait for row locks. Call it
// first in the transaction and defer the returned reset inside the same
// closure: on mysql the limit is a session variable that would otherwise stay
// on the pooled connection after tx ends.
func BoundLockWait(ctx context.Context, tx *gorm.DB, timeout time.Duration) (func(), error) {
	bound, reset := lockWaitSQL(tx.Dialector.Name(), timeout)
	if bound == "" {
		return func() {}, nil
	}
	if err := tx.WithContext(ctx).Exec(bound).Error; err != nil {
		return func() {}, err
	}
	if reset == "" {
		return func() {}, nil
	}
	return func() {
		// Runs even when ctx was cancelled mid-transaction.
		_ = tx.WithContext(context.WithoutCancel(ctx)).Exec(reset).Error
	}, nil
}

// lockWaitSQL returns the statement bounding lock waits on dialect and the
// one lifting it again. Postgres scopes SET LOCAL to the transaction, so it
// needs no reset; dialects without a lock wait knob get neither.
func lockWaitSQL(dialect string, timeout time.Duration) (bound, reset string) {
	if timeout <= 0 {
		return "", ""
	}
	switch dialect {
	case "postgres":
		return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds()), ""
	case "mysql":
		secs := int64(timeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		return fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs),
			"SET SESSION innodb_lock_wait_timeout = DEFAULT"
	default:
		return "", ""
	}
}
