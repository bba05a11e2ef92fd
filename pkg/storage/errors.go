package storage

import "github.com/go-faster/errors"

// Common errors returned by storage implementations.
var (
	// ErrNotInTx is returned when Commit or Rollback is called on a handle
	// that is not a read-write transaction.
	ErrNotInTx = errors.New("not in tx")
	// ErrTxDone is returned when a transactional handle is used after Commit
	// or Rollback.
	ErrTxDone = errors.New("tx already finished")
	// ErrReadOnly is returned when a write is attempted through a read-only
	// handle obtained from View.
	ErrReadOnly = errors.New("read-only tx")
	// ErrClosed is returned when the storage is used after Close.
	ErrClosed = errors.New("storage closed")
	// ErrDuplicateUser is returned by StoreUser when the username is taken.
	ErrDuplicateUser = errors.New("duplicate username")
)
