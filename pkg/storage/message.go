package storage

import (
	"context"
	"messenger/pkg/domain"
)

// MessageFilter narrows the messages returned by MessageStorage.Messages.
// Zero fields do not filter.
type MessageFilter struct {
	// Recipient keeps only messages addressed to this username.
	Recipient string
	// Between keeps only messages exchanged between the two usernames, in
	// either direction. Both entries must be set for the filter to apply.
	Between [2]string
}

// Match reports whether m passes the filter.
func (f MessageFilter) Match(m domain.Message) bool {
	if f.Recipient != "" && m.Recipient != f.Recipient {
		return false
	}
	if f.Between[0] != "" && f.Between[1] != "" && !m.Involves(f.Between[0], f.Between[1]) {
		return false
	}

	return true
}

// MessageStorage defines the operations on the append-only message log.
type MessageStorage interface {
	// StoreMessage appends a message to the log.
	StoreMessage(ctx context.Context, message domain.Message) error
	// Messages returns copies of the messages passing filter, in the order
	// they were appended.
	Messages(ctx context.Context, filter MessageFilter) ([]domain.Message, error)
	// MessageCount returns the number of messages in the log.
	MessageCount(ctx context.Context) (int, error)
}
