package database

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an operation runs before a successful
// Open or after Close.
var ErrNotConnected = errors.New("database connection not established")

// ConnectionError wraps a failed connect or statement execution with the
// operation that failed.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func connErr(op string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Err: err}
}
