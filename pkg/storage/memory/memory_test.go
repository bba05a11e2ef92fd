package memory_test

import (
	"context"
	"errors"
	"fmt"
	"messenger/pkg/domain"
	"messenger/pkg/storage"
	"messenger/pkg/storage/memory"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func user(name string) domain.User {
	return domain.User{ID: domain.UserID(uuid.New()), Username: name}
}

func message(from, to, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(uuid.New()),
		Sender:    from,
		Recipient: to,
		Content:   content,
		SentAt:    at,
	}
}

func TestMemory_StoreAndLookupUser(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	alice := user("alice")
	require.NoError(t, m.StoreUser(ctx, alice))

	got, err := m.UserByName(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, alice, *got)

	missing, err := m.UserByName(ctx, "Alice")
	require.NoError(t, err)
	require.Nil(t, missing, "lookups are case-sensitive")

	err = m.StoreUser(ctx, user("alice"))
	require.ErrorIs(t, err, storage.ErrDuplicateUser)

	n, err := m.UserCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMemory_UsersReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	require.NoError(t, m.StoreUser(ctx, user("alice")))

	users, err := m.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	users[0].Username = "mallory"

	got, err := m.UserByName(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)
}

func TestMemory_MessagesFilterKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	m1 := message("alice", "bob", "1", base.Add(2*time.Second))
	m2 := message("bob", "alice", "2", base.Add(time.Second))
	m3 := message("charlie", "bob", "3", base)
	for _, msg := range []domain.Message{m1, m2, m3} {
		require.NoError(t, m.StoreMessage(ctx, msg))
	}

	all, err := m.Messages(ctx, storage.MessageFilter{})
	require.NoError(t, err)
	require.Equal(t, []domain.Message{m1, m2, m3}, all)

	toBob, err := m.Messages(ctx, storage.MessageFilter{Recipient: "bob"})
	require.NoError(t, err)
	require.Equal(t, []domain.Message{m1, m3}, toBob)

	between, err := m.Messages(ctx, storage.MessageFilter{Between: [2]string{"bob", "alice"}})
	require.NoError(t, err)
	require.Equal(t, []domain.Message{m1, m2}, between)

	// mutating the returned slice must not touch the log
	between[0].Content = "changed"
	again, err := m.Messages(ctx, storage.MessageFilter{})
	require.NoError(t, err)
	require.Equal(t, "1", again[0].Content)

	n, err := m.MessageCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestMemory_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	err := m.WithTx(ctx, func(tx storage.AllStorage) error {
		if err := tx.StoreUser(ctx, user("alice")); err != nil {
			return err
		}

		return tx.StoreMessage(ctx, message("alice", "bob", "hi", time.Now()))
	})
	require.NoError(t, err)

	n, err := m.UserCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = m.MessageCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	require.NoError(t, m.StoreUser(ctx, user("alice")))
	require.NoError(t, m.StoreMessage(ctx, message("alice", "bob", "kept", time.Now())))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx storage.AllStorage) error {
		require.NoError(t, tx.StoreUser(ctx, user("bob")))
		require.NoError(t, tx.StoreMessage(ctx, message("bob", "alice", "dropped", time.Now())))

		return boom
	})
	require.ErrorIs(t, err, boom)

	bob, err := m.UserByName(ctx, "bob")
	require.NoError(t, err)
	require.Nil(t, bob)

	msgs, err := m.Messages(ctx, storage.MessageFilter{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "kept", msgs[0].Content)
}

func TestMemory_WithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	require.Panics(t, func() {
		_ = m.WithTx(ctx, func(tx storage.AllStorage) error {
			_ = tx.StoreUser(ctx, user("alice"))
			panic("boom")
		})
	})

	n, err := m.UserCount(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	// the lock must have been released
	require.NoError(t, m.StoreUser(ctx, user("bob")))
}

func TestMemory_TxHandleUnusableAfterCommit(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.ErrorIs(t, tx.StoreUser(ctx, user("alice")), storage.ErrTxDone)
	require.ErrorIs(t, tx.Commit(), storage.ErrTxDone)
	require.ErrorIs(t, tx.Rollback(), storage.ErrTxDone)
}

func TestMemory_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	var leaked storage.AllStorage
	err := m.View(ctx, func(tx storage.AllStorage) error {
		leaked = tx
		require.ErrorIs(t, tx.StoreUser(ctx, user("alice")), storage.ErrReadOnly)
		require.ErrorIs(t, tx.StoreMessage(ctx, message("a", "b", "c", time.Now())), storage.ErrReadOnly)

		n, err := tx.UserCount(ctx)
		require.NoError(t, err)
		require.Zero(t, n)

		return nil
	})
	require.NoError(t, err)

	_, err = leaked.Users(ctx)
	require.ErrorIs(t, err, storage.ErrTxDone)
}

func TestMemory_ViewsRunConcurrently(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- m.View(ctx, func(storage.AllStorage) error {
			close(inside)
			<-release

			return nil
		})
	}()
	<-inside

	// a second view must not wait for the first one
	require.NoError(t, m.View(ctx, func(tx storage.AllStorage) error {
		_, err := tx.Users(ctx)

		return err
	}))

	close(release)
	require.NoError(t, <-done)
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := memory.New()

	_, err := m.Begin(ctx)
	require.ErrorIs(t, err, context.Canceled)

	err = m.View(ctx, func(storage.AllStorage) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemory_Closed(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	require.NoError(t, m.Close())

	require.ErrorIs(t, m.StoreUser(ctx, user("alice")), storage.ErrClosed)
	_, err := m.Users(ctx)
	require.ErrorIs(t, err, storage.ErrClosed)
	_, err = m.Begin(ctx)
	require.ErrorIs(t, err, storage.ErrClosed)
	err = m.View(ctx, func(storage.AllStorage) error { return nil })
	require.ErrorIs(t, err, storage.ErrClosed)
}

func TestMemory_ConcurrentCheckThenInsert(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	const workers = 50
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithTx(ctx, func(tx storage.AllStorage) error {
				existing, err := tx.UserByName(ctx, "alice")
				if err != nil {
					return err
				}
				if existing != nil {
					return fmt.Errorf("worker %d: taken", i)
				}

				return tx.StoreUser(ctx, user("alice"))
			})
			if err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, successes.Load())
	n, err := m.UserCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
