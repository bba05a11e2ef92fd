package messenger_test

import (
	"context"
	"errors"
	"messenger/internal/messenger"
	"messenger/pkg/clock"
	"messenger/pkg/domain"
	"messenger/pkg/idgen"
	"messenger/pkg/serrors"
	"messenger/pkg/storage"
	"testing"
	"time"

	mockstorage "messenger/pkg/storage/mock"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMockedMessenger(t *testing.T) (*gomock.Controller, *mockstorage.MockStorage, messenger.Messenger) {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mockstorage.NewMockStorage(ctrl)
	m := messenger.New(st, messenger.Options{
		IDs:   &idgen.Sequence{},
		Clock: clock.NewManual(epoch),
	})

	return ctrl, st, m
}

// expectWithTx wires Storage.WithTx to run the callback against a MockAllStorage
// and to return whatever the callback returns.
func expectWithTx(
	t *testing.T,
	ctrl *gomock.Controller,
	m *mockstorage.MockStorage,
	fn func(tx *mockstorage.MockAllStorage)) {
	t.Helper()

	m.EXPECT().WithTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, cb func(storage.AllStorage) error) error {
			tx := mockstorage.NewMockAllStorage(ctrl)
			if fn != nil {
				fn(tx)
			}

			return cb(tx)
		},
	)
}

// expectView is the read-only counterpart of expectWithTx.
func expectView(
	t *testing.T,
	ctrl *gomock.Controller,
	m *mockstorage.MockStorage,
	fn func(tx *mockstorage.MockAllStorage)) {
	t.Helper()

	m.EXPECT().View(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, cb func(storage.AllStorage) error) error {
			tx := mockstorage.NewMockAllStorage(ctrl)
			if fn != nil {
				fn(tx)
			}

			return cb(tx)
		},
	)
}

func TestRegisterUser_StoresNewUser(t *testing.T) {
	ctrl, st, m := newMockedMessenger(t)

	expectWithTx(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
		gomock.InOrder(
			tx.EXPECT().UserByName(gomock.Any(), "alice").Return(nil, nil),
			tx.EXPECT().StoreUser(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, u domain.User) error {
					require.Equal(t, "alice", u.Username)

					return nil
				},
			),
		)
	})

	u, err := m.RegisterUser(context.Background(), " alice ")
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
}

func TestRegisterUser_BlankNeverTouchesStorage(t *testing.T) {
	_, st, m := newMockedMessenger(t)
	st.EXPECT().WithTx(gomock.Any(), gomock.Any()).Times(0)

	_, err := m.RegisterUser(context.Background(), "  ")
	require.ErrorIs(t, err, serrors.ErrInvalidArgument)
}

func TestRegisterUser_DuplicateFromStorageIsConflict(t *testing.T) {
	ctrl, st, m := newMockedMessenger(t)

	expectWithTx(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
		tx.EXPECT().UserByName(gomock.Any(), "alice").Return(nil, nil)
		tx.EXPECT().StoreUser(gomock.Any(), gomock.Any()).Return(storage.ErrDuplicateUser)
	})

	_, err := m.RegisterUser(context.Background(), "alice")
	require.ErrorIs(t, err, serrors.ErrConflict)
	require.ErrorIs(t, err, storage.ErrDuplicateUser)
}

func TestSendMessage_ValidationPrecedesStore(t *testing.T) {
	ctrl, st, m := newMockedMessenger(t)

	expectWithTx(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
		tx.EXPECT().UserByName(gomock.Any(), "alice").Return(&domain.User{Username: "alice"}, nil).Times(2)
		tx.EXPECT().StoreMessage(gomock.Any(), gomock.Any()).Times(0)
	})

	_, err := m.SendMessage(context.Background(), "alice", "alice", "hi")
	require.ErrorIs(t, err, serrors.ErrInvalidArgument)
}

func TestSendMessage_StampsWithClock(t *testing.T) {
	ctrl, st, m := newMockedMessenger(t)

	expectWithTx(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
		tx.EXPECT().UserByName(gomock.Any(), "alice").Return(&domain.User{Username: "alice"}, nil)
		tx.EXPECT().UserByName(gomock.Any(), "bob").Return(&domain.User{Username: "bob"}, nil)
		tx.EXPECT().StoreMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, msg domain.Message) error {
				require.Equal(t, epoch, msg.SentAt)
				require.Equal(t, "hi", msg.Content)

				return nil
			},
		)
	})

	msg, err := m.SendMessage(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)
	require.Equal(t, epoch, msg.SentAt)
}

func TestStorageFailuresAreInternal(t *testing.T) {
	boom := errors.New("boom")
	ctx := context.Background()

	t.Run("register lookup", func(t *testing.T) {
		ctrl, st, m := newMockedMessenger(t)
		expectWithTx(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
			tx.EXPECT().UserByName(gomock.Any(), "alice").Return(nil, boom)
		})

		_, err := m.RegisterUser(ctx, "alice")
		require.ErrorIs(t, err, serrors.ErrInternal)
		require.ErrorIs(t, err, boom)
	})

	t.Run("register store", func(t *testing.T) {
		ctrl, st, m := newMockedMessenger(t)
		expectWithTx(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
			tx.EXPECT().UserByName(gomock.Any(), "alice").Return(nil, nil)
			tx.EXPECT().StoreUser(gomock.Any(), gomock.Any()).Return(boom)
		})

		_, err := m.RegisterUser(ctx, "alice")
		require.ErrorIs(t, err, serrors.ErrInternal)
	})

	t.Run("send store", func(t *testing.T) {
		ctrl, st, m := newMockedMessenger(t)
		expectWithTx(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
			tx.EXPECT().UserByName(gomock.Any(), gomock.Any()).Return(&domain.User{}, nil).Times(2)
			tx.EXPECT().StoreMessage(gomock.Any(), gomock.Any()).Return(boom)
		})

		_, err := m.SendMessage(ctx, "alice", "bob", "hi")
		require.ErrorIs(t, err, serrors.ErrInternal)
	})

	t.Run("begin", func(t *testing.T) {
		_, st, m := newMockedMessenger(t)
		st.EXPECT().WithTx(gomock.Any(), gomock.Any()).Return(storage.ErrClosed)

		_, err := m.SendMessage(ctx, "alice", "bob", "hi")
		require.ErrorIs(t, err, serrors.ErrInternal)
		require.ErrorIs(t, err, storage.ErrClosed)
	})

	t.Run("inbox", func(t *testing.T) {
		ctrl, st, m := newMockedMessenger(t)
		expectView(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
			tx.EXPECT().UserByName(gomock.Any(), "bob").Return(&domain.User{}, nil)
			tx.EXPECT().Messages(gomock.Any(), storage.MessageFilter{Recipient: "bob"}).Return(nil, boom)
		})

		_, err := m.Inbox(ctx, "bob")
		require.ErrorIs(t, err, serrors.ErrInternal)
	})

	t.Run("conversation", func(t *testing.T) {
		ctrl, st, m := newMockedMessenger(t)
		expectView(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
			tx.EXPECT().UserByName(gomock.Any(), gomock.Any()).Return(&domain.User{}, nil).Times(2)
			tx.EXPECT().Messages(gomock.Any(),
				storage.MessageFilter{Between: [2]string{"alice", "bob"}}).Return(nil, boom)
		})

		_, err := m.Conversation(ctx, "alice", "bob")
		require.ErrorIs(t, err, serrors.ErrInternal)
	})

	t.Run("list users", func(t *testing.T) {
		ctrl, st, m := newMockedMessenger(t)
		expectView(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
			tx.EXPECT().Users(gomock.Any()).Return(nil, boom)
		})

		_, err := m.ListUsers(ctx)
		require.ErrorIs(t, err, serrors.ErrInternal)
	})

	t.Run("seed count", func(t *testing.T) {
		ctrl, st, m := newMockedMessenger(t)
		expectWithTx(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
			tx.EXPECT().UserCount(gomock.Any()).Return(0, boom)
		})

		seeded, err := m.SeedDemo(ctx)
		require.ErrorIs(t, err, serrors.ErrInternal)
		require.False(t, seeded)
	})
}

func TestSeedDemo_BackdatesRelativeToSeedTime(t *testing.T) {
	ctrl, st, m := newMockedMessenger(t)

	var stored []domain.Message
	expectWithTx(t, ctrl, st, func(tx *mockstorage.MockAllStorage) {
		tx.EXPECT().UserCount(gomock.Any()).Return(0, nil)
		tx.EXPECT().MessageCount(gomock.Any()).Return(0, nil)
		tx.EXPECT().UserByName(gomock.Any(), gomock.Any()).Return(nil, nil).Times(len(messenger.DemoUsers))
		tx.EXPECT().StoreUser(gomock.Any(), gomock.Any()).Return(nil).Times(len(messenger.DemoUsers))
		tx.EXPECT().UserByName(gomock.Any(), gomock.Any()).Return(&domain.User{}, nil).AnyTimes()
		tx.EXPECT().StoreMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, msg domain.Message) error {
				stored = append(stored, msg)

				return nil
			},
		).Times(4)
	})

	seeded, err := m.SeedDemo(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)
	require.Len(t, stored, 4)
	require.Equal(t, epoch, stored[0].SentAt)
	require.Equal(t, epoch.Add(-5*time.Minute), stored[3].SentAt)
}
