package db

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/docledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLockWaitSQL(t *testing.T) {
	cases := []struct {
		name      string
		dialect   string
		timeout   time.Duration
		wantBound string
		wantReset string
	}{
		{"postgres ends with tx", "postgres", 1500 * time.Millisecond, "SET LOCAL lock_timeout = '1500ms'", ""},
		{"mysql resets session", "mysql", 3 * time.Second, "SET SESSION innodb_lock_wait_timeout = 3", "SET SESSION innodb_lock_wait_timeout = DEFAULT"},
		{"mysql rounds up to a second", "mysql", 200 * time.Millisecond, "SET SESSION innodb_lock_wait_timeout = 1", "SET SESSION innodb_lock_wait_timeout = DEFAULT"},
		{"sqlite has no knob", "sqlite", time.Second, "", ""},
		{"disabled", "mysql", 0, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bound, reset := lockWaitSQL(tc.dialect, tc.timeout)
			assert.Equal(t, tc.wantBound, bound)
			assert.Equal(t, tc.wantReset, reset)
		})
	}
}

func TestBoundLockWaitNoopOnSQLite(t *testing.T) {
	conn := dbtest.Open(t)
	err := conn.Transaction(func(tx *gorm.DB) error {
		restore, err := BoundLockWait(context.Background(), tx, time.Second)
		if err != nil {
			return err
		}
		defer restore()
		return tx.Exec("SELECT 1").Error
	})
	require.NoError(t, err)
}
