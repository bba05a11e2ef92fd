package messenger

import (
	"context"
	"messenger/pkg/domain"
)

// Messenger is the user registry and message log. All methods are safe for
// concurrent use and return errors whose kind (see package serrors) tells
// caller mistakes apart from internal failures.
//
//go:generate mockgen -package mockmessenger -source=interface.go -destination=mock/mockmessenger.go *
type Messenger interface {
	// RegisterUser registers a new user under the trimmed username.
	RegisterUser(ctx context.Context, username string) (*domain.User, error)
	// SendMessage appends a message from one registered user to another.
	SendMessage(ctx context.Context, from, to, content string) (*domain.Message, error)
	// Conversation returns every message exchanged between userA and userB,
	// oldest first.
	Conversation(ctx context.Context, userA, userB string) ([]domain.Message, error)
	// Inbox returns every message addressed to username, newest first.
	Inbox(ctx context.Context, username string) ([]domain.Message, error)
	// ListUsers returns every registered user ordered by username.
	ListUsers(ctx context.Context) ([]domain.User, error)
	// SeedDemo fills an empty messenger with demo users and messages. It
	// reports whether anything was seeded.
	SeedDemo(ctx context.Context) (bool, error)
}
