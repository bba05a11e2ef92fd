// Package storage defines the storage interfaces the messenger relies on. It
// abstracts the user registry, the message log and transaction management so
// the service can make check-then-insert sequences atomic regardless of the
// backend.
//
//go:generate mockgen -package mockstorage -source=interface.go -destination=mock/mockstorage.go *
package storage

import "context"

// AllStorage is a composite interface that includes all domain-specific
// storage capabilities required by the application.
type AllStorage interface {
	UserStorage
	MessageStorage
}

// TxStorage describes a storage handle that operates within a transaction.
// Implementations become unusable after Commit or Rollback is called.
type TxStorage interface {
	AllStorage
	// Commit makes all changes of the transaction visible and releases it.
	Commit() error
	// Rollback discards all changes of the transaction and releases it.
	Rollback() error
}

// Storage describes a non-transactional storage handle with the ability to
// start transactions.
type Storage interface {
	AllStorage
	// Close releases any resources held by the storage. After Close the
	// instance must not be used.
	Close() error
	// Begin starts an exclusive read-write transaction. No other transaction
	// or direct call observes the store until it is committed or rolled back.
	Begin(ctx context.Context) (TxStorage, error)
	// WithTx begins a transaction, invokes cb with it, and commits when cb
	// returns nil or rolls back otherwise.
	WithTx(ctx context.Context, cb func(storage AllStorage) error) error
	// View invokes cb with a read-only handle over a consistent snapshot.
	// Multiple View calls may run concurrently with each other.
	View(ctx context.Context, cb func(storage AllStorage) error) error
}
