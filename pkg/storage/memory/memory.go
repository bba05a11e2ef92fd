// Package memory implements storage.Storage on top of process memory. State
// lives only as long as the process; a single sync.RWMutex serializes
// read-write transactions and lets read-only views run in parallel.
package memory

import (
	"context"
	"messenger/pkg/domain"
	"messenger/pkg/storage"
	"sync"

	"github.com/go-faster/errors"
	"github.com/samber/lo"
)

// Memory is the in-process storage.Storage implementation. The zero value is
// not usable; call New.
type Memory struct {
	mu sync.RWMutex
	// users maps username to user; mu guards it.
	users map[string]domain.User
	// messages is the append-only log in insertion order; mu guards it.
	messages []domain.Message
	closed   bool
}

// Ensure Memory implements storage.Storage.
var _ storage.Storage = (*Memory)(nil)

// New returns an empty in-memory store.
func New() *Memory {
	return &Memory{users: make(map[string]domain.User)}
}

// Close drops all state. Further use returns storage.ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.users = nil
	m.messages = nil

	return nil
}

// Begin takes the exclusive lock and returns a transactional handle that
// holds it until Commit or Rollback.
func (m *Memory) Begin(ctx context.Context) (storage.TxStorage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return nil, storage.ErrClosed
	}

	return &tx{
		m:            m,
		writable:     true,
		baseMessages: len(m.messages),
		release:      m.mu.Unlock,
	}, nil
}

// WithTx runs cb inside a read-write transaction, committing on success and
// rolling back when cb returns an error or panics.
func (m *Memory) WithTx(ctx context.Context, cb func(storage storage.AllStorage) error) (err error) {
	t, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = t.Rollback()
			panic(p)
		}
	}()

	if err := cb(t); err != nil {
		_ = t.Rollback()

		return err
	}

	return t.Commit()
}

// View runs cb with a read-only handle while holding the shared lock.
func (m *Memory) View(ctx context.Context, cb func(storage storage.AllStorage) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "begin view")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return storage.ErrClosed
	}

	t := &tx{m: m}
	defer func() { t.done = true }()

	return cb(t)
}

// StoreUser implements storage.UserStorage.
func (m *Memory) StoreUser(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.storeUser(user)
}

// UserByName implements storage.UserStorage.
func (m *Memory) UserByName(_ context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.userByName(username)
}

// Users implements storage.UserStorage.
func (m *Memory) Users(_ context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.allUsers()
}

// UserCount implements storage.UserStorage.
func (m *Memory) UserCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, storage.ErrClosed
	}

	return len(m.users), nil
}

// StoreMessage implements storage.MessageStorage.
func (m *Memory) StoreMessage(_ context.Context, message domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.storeMessage(message)
}

// Messages implements storage.MessageStorage.
func (m *Memory) Messages(_ context.Context, filter storage.MessageFilter) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filterMessages(filter)
}

// MessageCount implements storage.MessageStorage.
func (m *Memory) MessageCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, storage.ErrClosed
	}

	return len(m.messages), nil
}

// The helpers below expect the caller to hold mu.

func (m *Memory) storeUser(user domain.User) error {
	if m.closed {
		return storage.ErrClosed
	}
	if _, ok := m.users[user.Username]; ok {
		return errors.Wrapf(storage.ErrDuplicateUser, "store user %q", user.Username)
	}
	m.users[user.Username] = user

	return nil
}

func (m *Memory) userByName(username string) (*domain.User, error) {
	if m.closed {
		return nil, storage.ErrClosed
	}
	user, ok := m.users[username]
	if !ok {
		return nil, nil
	}

	return &user, nil
}

func (m *Memory) allUsers() ([]domain.User, error) {
	if m.closed {
		return nil, storage.ErrClosed
	}

	return lo.Values(m.users), nil
}

func (m *Memory) storeMessage(message domain.Message) error {
	if m.closed {
		return storage.ErrClosed
	}
	m.messages = append(m.messages, message)

	return nil
}

func (m *Memory) filterMessages(filter storage.MessageFilter) ([]domain.Message, error) {
	if m.closed {
		return nil, storage.ErrClosed
	}

	return lo.Filter(m.messages, func(msg domain.Message, _ int) bool {
		return filter.Match(msg)
	}), nil
}
