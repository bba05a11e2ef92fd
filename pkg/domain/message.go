package domain

import (
	"fmt"
	"messenger/pkg/serrors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageID uniquely identifies a message.
type MessageID uuid.UUID

// String returns the canonical textual form of the ID.
func (id MessageID) String() string { return uuid.UUID(id).String() }

// Message is an immutable, directed text message between two registered users.
type Message struct {
	// ID is the opaque identifier generated when the message was sent.
	ID MessageID `json:"id"`
	// Sender is the username of the author.
	Sender string `json:"sender"`
	// Recipient is the username of the addressee. It never equals Sender.
	Recipient string `json:"recipient"`
	// Content is the trimmed, non-empty message body.
	Content string `json:"content"`
	// SentAt is the time the message was accepted by the store.
	SentAt time.Time `json:"sentAt"`
}

// NewMessage validates and builds a Message. Sender and recipient are taken
// verbatim; content is trimmed and must not be blank.
func NewMessage(id MessageID, sender, recipient, content string, sentAt time.Time) (Message, error) {
	if sender == recipient {
		return Message{}, serrors.With(serrors.ErrInvalidArgument, "cannot send message to yourself")
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Message{}, serrors.With(serrors.ErrInvalidArgument, "message content cannot be blank")
	}

	return Message{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		Content:   trimmed,
		SentAt:    sentAt,
	}, nil
}

// Involves reports whether the message was exchanged between a and b, in
// either direction.
func (m Message) Involves(a, b string) bool {
	return (m.Sender == a && m.Recipient == b) || (m.Sender == b && m.Recipient == a)
}

// Format renders the message as "[<time>] <sender> -> <recipient>: <content>"
// using the given time layout and location. A nil location keeps the
// timestamp's own zone.
func (m Message) Format(layout string, loc *time.Location) string {
	at := m.SentAt
	if loc != nil {
		at = at.In(loc)
	}

	return fmt.Sprintf("[%s] %s -> %s: %s", at.Format(layout), m.Sender, m.Recipient, m.Content)
}

// String renders the message with an RFC 3339 timestamp.
func (m Message) String() string {
	return m.Format(time.RFC3339Nano, nil)
}
