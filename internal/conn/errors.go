package conn

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

var (
	// ErrUnknownDriver is returned when Config.Type names no registered driver.
	ErrUnknownDriver = errors.New("quarry: unknown database driver")
	// ErrConfig is matched by every *ConfigError.
	ErrConfig = errors.New("quarry: invalid connection config")
	// ErrNoTransaction is returned by Commit and Rollback outside a transaction.
	ErrNoTransaction = errors.New("quarry: no active transaction")
	// ErrClosed is returned by a Manager after Close.
	ErrClosed = errors.New("quarry: connection manager is closed")
	// ErrBrokenConnection matches a *StatementError whose driver error meant
	// a dead link, after any reconnect attempts were used up.
	ErrBrokenConnection = errors.New("quarry: broken connection")
)

// ConfigError reports a missing or invalid connection setting. Config errors
// surface at connect time and are never retried.
type ConfigError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("quarry: %s connection: %s %s", e.Type, e.Field, e.Reason)
}

// Unwrap returns ErrConfig.
func (e *ConfigError) Unwrap() error { return ErrConfig }

// StatementError attaches the failing statement, with its binds inlined, to
// a driver error.
type StatementError struct {
	SQL    string
	Err    error
	Broken bool
}

func (e *StatementError) Error() string {
	return e.Err.Error() + " [SQL: " + e.SQL + "]"
}

// Unwrap returns the driver error.
func (e *StatementError) Unwrap() error { return e.Err }

// Is matches ErrBrokenConnection for statements that failed on a dead link.
func (e *StatementError) Is(target error) bool {
	return target == ErrBrokenConnection && e.Broken
}

// DefaultBreakMatchStr lists error message fragments that indicate a dead link.
var DefaultBreakMatchStr = []string{
	"server has gone away",
	"no connection to the server",
	"Lost connection",
	"is dead or not enabled",
	"Error while sending",
	"decryption failed or bad record mac",
	"server closed the connection unexpectedly",
	"SSL connection has been closed unexpectedly",
	"Error writing data to the connection",
	"Resource deadlock avoided",
	"failed with errno",
	"connection reset by peer",
	"broken pipe",
}

// MySQL client error numbers for a lost server link.
const (
	crServerGoneError    = 2006
	crServerLost         = 2013
	crServerLostExtended = 2055
)

// IsBrokenConnection reports whether err means the connection is unusable
// and the statement may be retried on a fresh one. extra adds message
// fragments to DefaultBreakMatchStr.
func IsBrokenConnection(err error, extra []string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case crServerGoneError, crServerLost, crServerLostExtended:
			return true
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		return true
	}

	msg := err.Error()
	for _, s := range DefaultBreakMatchStr {
		if strings.Contains(msg, s) {
			return true
		}
	}
	for _, s := range extra {
		if s != "" && strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
