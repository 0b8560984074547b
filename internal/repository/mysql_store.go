package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL error numbers that mean "another writer got there first".
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errDuplicateEntry  = 1062
)

// MySQLStore implements Store on top of a MySQL connection pool.  Row
// locks are taken with SELECT ... FOR UPDATE and released when the
// transaction started by WithinTx commits or rolls back.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a Store bound to the given database.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// Ping verifies that the database is reachable.
func (s *MySQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// txOptions runs units of work at READ COMMITTED: plain reads issued
// after a FOR UPDATE lock is granted must see the rows committed by the
// previous holder, which a REPEATABLE READ snapshot would hide.
var txOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// WithinTx runs fn inside a single transaction.  The transaction is
// rolled back when fn returns an error or panics, and committed
// otherwise.  Lock contention reported by MySQL is translated into
// ErrConflict so callers can retry the whole operation.
func (s *MySQLStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, txOptions)
	if err != nil {
		return translate(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return translate(err)
	}
	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	committed = true
	return nil
}

// translate maps driver errors that indicate concurrent modification to
// ErrConflict and leaves every other error untouched.
func translate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errLockWaitTimeout, errDeadlock, errDuplicateEntry:
			return errors.Join(ErrConflict, err)
		}
	}
	return err
}

// mysqlTx implements Tx for a *sql.Tx.
type mysqlTx struct {
	tx *sql.Tx
}

// placeholders returns "?, ?, ?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// notFound converts sql.ErrNoRows into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

var (
	_ Store = (*MySQLStore)(nil)
	_ Tx    = (*mysqlTx)(nil)
)
