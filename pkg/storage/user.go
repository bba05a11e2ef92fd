package storage

import (
	"context"
	"messenger/pkg/domain"
)

// UserStorage defines the operations on the user registry. Usernames are
// compared by exact string equality.
type UserStorage interface {
	// StoreUser inserts a user. It returns ErrDuplicateUser when a user with
	// the same username already exists.
	StoreUser(ctx context.Context, user domain.User) error
	// UserByName returns the user registered under username, or nil when
	// there is none.
	UserByName(ctx context.Context, username string) (*domain.User, error)
	// Users returns a copy of every registered user in no particular order.
	Users(ctx context.Context) ([]domain.User, error)
	// UserCount returns the number of registered users.
	UserCount(ctx context.Context) (int, error)
}
