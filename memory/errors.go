package memory

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel a lookup wraps when no record matches the
// given key, the way database/sql.ErrNoRows is typically wrapped by
// callers of database/sql. Check it with errors.Is.
var ErrNotFound = errors.New("not found")

// wrapErr formats a storage error as "memory: <op>: <err>", the
// convention every error returned by the engine follows so callers can
// errors.Is/As against it uniformly.
func wrapErr(op string, err error) error {
	return fmt.Errorf("memory: %s: %w", op, err)
}
