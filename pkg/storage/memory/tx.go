package memory

import (
	"context"
	"messenger/pkg/domain"
	"messenger/pkg/storage"
)

// tx is a handle bound to a held lock on Memory. Read-write handles come from
// Begin and journal their inserts so Rollback can undo them; read-only
// handles come from View.
type tx struct {
	m        *Memory
	writable bool
	done     bool

	// addedUsers and baseMessages form the undo journal.
	addedUsers   []string
	baseMessages int

	release func()
}

// Ensure tx implements storage.TxStorage.
var _ storage.TxStorage = (*tx)(nil)

func (t *tx) check(write bool) error {
	if t.done {
		return storage.ErrTxDone
	}
	if write && !t.writable {
		return storage.ErrReadOnly
	}

	return nil
}

func (t *tx) finish() error {
	if !t.writable {
		return storage.ErrNotInTx
	}
	if t.done {
		return storage.ErrTxDone
	}
	t.done = true
	t.release()

	return nil
}

// Commit implements storage.TxStorage.
func (t *tx) Commit() error {
	return t.finish()
}

// Rollback implements storage.TxStorage.
func (t *tx) Rollback() error {
	if t.writable && !t.done && !t.m.closed {
		for _, username := range t.addedUsers {
			delete(t.m.users, username)
		}
		if len(t.m.messages) > t.baseMessages {
			clear(t.m.messages[t.baseMessages:])
			t.m.messages = t.m.messages[:t.baseMessages]
		}
	}

	return t.finish()
}

func (t *tx) StoreUser(_ context.Context, user domain.User) error {
	if err := t.check(true); err != nil {
		return err
	}
	if err := t.m.storeUser(user); err != nil {
		return err
	}
	t.addedUsers = append(t.addedUsers, user.Username)

	return nil
}

func (t *tx) UserByName(_ context.Context, username string) (*domain.User, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	return t.m.userByName(username)
}

func (t *tx) Users(_ context.Context) ([]domain.User, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	return t.m.allUsers()
}

func (t *tx) UserCount(_ context.Context) (int, error) {
	if err := t.check(false); err != nil {
		return 0, err
	}
	if t.m.closed {
		return 0, storage.ErrClosed
	}

	return len(t.m.users), nil
}

func (t *tx) StoreMessage(_ context.Context, message domain.Message) error {
	if err := t.check(true); err != nil {
		return err
	}

	return t.m.storeMessage(message)
}

func (t *tx) Messages(_ context.Context, filter storage.MessageFilter) ([]domain.Message, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	return t.m.filterMessages(filter)
}

func (t *tx) MessageCount(_ context.Context) (int, error) {
	if err := t.check(false); err != nil {
		return 0, err
	}
	if t.m.closed {
		return 0, storage.ErrClosed
	}

	return len(t.m.messages), nil
}
