package domain

import (
	"messenger/pkg/serrors"
	"strings"

	"github.com/google/uuid"
)

// UserID uniquely identifies a user within the system.
// It is a thin wrapper around uuid.UUID to provide type safety at the domain layer.
type UserID uuid.UUID

// String returns the canonical textual form of the ID.
func (id UserID) String() string { return uuid.UUID(id).String() }

// User is a registered participant. Users are never mutated or removed once
// created.
type User struct {
	// ID is the opaque identifier generated at registration.
	ID UserID `json:"id"`
	// Username is the unique, trimmed handle other users address messages to.
	Username string `json:"username"`
}

// NormalizeUsername trims surrounding whitespace from a username and rejects
// blank values.
func NormalizeUsername(username string) (string, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return "", serrors.With(serrors.ErrInvalidArgument, "username cannot be blank")
	}

	return trimmed, nil
}

// NewUser builds a User from a raw username. Uniqueness is not checked here;
// that is the registry's job.
func NewUser(id UserID, username string) (User, error) {
	trimmed, err := NormalizeUsername(username)
	if err != nil {
		return User{}, err
	}

	return User{ID: id, Username: trimmed}, nil
}
