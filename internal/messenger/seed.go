package messenger

import (
	"context"
	"messenger/pkg/logger"
	"messenger/pkg/storage"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// DemoUsers are registered by SeedDemo, in this order.
var DemoUsers = []string{"alice", "bob", "charlie"} //nolint: gochecknoglobals

// demoMessage is one exchange created by SeedDemo. A non-zero age backdates
// the message relative to the seeding time.
type demoMessage struct {
	from, to, content string
	age               time.Duration
}

//nolint: gochecknoglobals
var demoMessages = []demoMessage{
	{from: "alice", to: "bob", content: "Hi Bob, this is a test message!"},
	{from: "bob", to: "alice", content: "Got it, Alice!"},
	{from: "charlie", to: "alice", content: "Shall we grab a coffee?"},
	{from: "bob", to: "charlie", content: "Welcome to the group chat!", age: 5 * time.Minute},
}

// SeedDemo registers the demo users and exchanges when both the registry and
// the log are empty. The emptiness check and all inserts share one
// transaction, so repeated or concurrent calls seed at most once.
func (m *messenger) SeedDemo(ctx context.Context) (_ bool, err error) {
	ctx, done := m.observe(ctx, "SeedDemo")
	defer done(&err)

	seeded := false
	if err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		empty, err := isEmpty(ctx, tx)
		if err != nil || !empty {
			return err
		}

		for _, username := range DemoUsers {
			if _, err := m.registerUser(ctx, tx, username); err != nil {
				return err
			}
		}

		now := m.options.Clock.Now()
		for _, dm := range demoMessages {
			var at time.Time
			if dm.age > 0 {
				at = now.Add(-dm.age)
			}
			if _, err := m.sendMessage(ctx, tx, dm.from, dm.to, dm.content, at); err != nil {
				return err
			}
		}
		seeded = true

		return nil
	}); err != nil {
		return false, internal(err, "could not seed demo data")
	}

	if seeded {
		logger.Info(ctx, "demo data seeded",
			zap.Int("users", len(DemoUsers)),
			zap.Int("messages", len(demoMessages)))
	}

	return seeded, nil
}

func isEmpty(ctx context.Context, tx storage.AllStorage) (bool, error) {
	users, err := tx.UserCount(ctx)
	if err != nil {
		return false, errors.Wrap(err, "count users")
	}
	messages, err := tx.MessageCount(ctx)
	if err != nil {
		return false, errors.Wrap(err, "count messages")
	}

	return users == 0 && messages == 0, nil
}
