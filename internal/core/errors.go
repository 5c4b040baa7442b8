package core

import (
	"errors"
	"fmt"
)

// Predefined errors returned by quarry builders.
var (
	// ErrNoRows is returned when a query that expects a row returns none.
	ErrNoRows = errors.New("quarry: no rows in result set")
	// ErrMissingWhere guards UPDATE and DELETE statements without a condition.
	ErrMissingWhere = errors.New("quarry: update or delete without where condition")
	// ErrMalformedCondition is returned for a condition list entry that is not
	// a column/operator/value triple.
	ErrMalformedCondition = errors.New("quarry: malformed condition")
	// ErrJoinAlias is returned when a builder is joined without aliases on both sides.
	ErrJoinAlias = errors.New("quarry: joining a builder requires an alias on both sides")
	// ErrNoTable is returned when a statement is compiled without a table.
	ErrNoTable = errors.New("quarry: no table")
	// ErrNoData is returned by insert and update statements without columns.
	ErrNoData = errors.New("quarry: no data")
	// ErrUnsupported is returned for features the dialect cannot express.
	ErrUnsupported = errors.New("quarry: not supported by dialect")
	// ErrInvalidArgument is matched by every *ArgumentError.
	ErrInvalidArgument = errors.New("quarry: invalid argument")
)

// ArgumentError reports a builder method called with arguments it cannot
// compile. It is recorded when the method is called and returned by the
// terminal call.
type ArgumentError struct {
	Method string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("quarry: %s: %s", e.Method, e.Reason)
}

// Unwrap returns ErrInvalidArgument.
func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }

func argError(method, format string, args ...any) error {
	return &ArgumentError{Method: method, Reason: fmt.Sprintf(format, args...)}
}

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
