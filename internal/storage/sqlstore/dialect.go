package sqlstore

import (
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/ncruces/go-sqlite3"
)

// dialect captures the few places SQLite and MySQL disagree.
type dialect struct {
	name         string
	schema       string
	insertIgnore string // INSERT variant that skips duplicate keys
	lockSuffix   string // appended to feedback reads inside a transaction
	duplicate    func(error) bool
	retryable    func(error) bool // nil disables retry
}

var sqliteDialect = &dialect{
	name:         "sqlite",
	schema:       sqliteSchema,
	insertIgnore: "INSERT OR IGNORE",
	duplicate:    isSQLiteDuplicate,
}

var mysqlDialect = &dialect{
	name:         "mysql",
	schema:       mysqlSchema,
	insertIgnore: "INSERT IGNORE",
	lockSuffix:   " FOR UPDATE",
	duplicate:    isMySQLDuplicate,
	retryable:    isRetryableError,
}

func isSQLiteDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) || errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// MySQL error numbers.
const (
	mysqlErrDBCreateExists = 1007
	mysqlErrDupEntry       = 1062
	mysqlErrLockDeadlock   = 1213
	mysqlErrLockWait       = 1205
)

func isMySQLDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDupEntry
}

// isRetryableError returns true if the error is transient and the operation
// can be retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrLockDeadlock || me.Number == mysqlErrLockWait
	}

	errStr := strings.ToLower(err.Error())

	// Stale pooled connection after a server restart or idle timeout.
	if strings.Contains(errStr, "driver: bad connection") ||
		strings.Contains(errStr, "invalid connection") {
		return true
	}
	// Network transient errors (brief blips, not persistent failures).
	if strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") {
		return true
	}
	// Dolt reports in-flight merges this way; a retry usually succeeds.
	if strings.Contains(errStr, "database is read only") {
		return true
	}
	return false
}
