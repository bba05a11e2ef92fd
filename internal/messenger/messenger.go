// Package messenger implements the user registry and message log that back
// the console front end.
package messenger

import (
	"cmp"
	"context"
	"messenger/internal/config"
	"messenger/pkg/clock"
	"messenger/pkg/domain"
	"messenger/pkg/idgen"
	"messenger/pkg/logger"
	"messenger/pkg/metrics"
	"messenger/pkg/serrors"
	"messenger/pkg/storage"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Options configure the collaborators of the messenger. Zero fields get
// production defaults.
type Options struct {
	// IDs generates user and message identifiers. Defaults to idgen.UUID.
	IDs idgen.Generator
	// Clock stamps messages. Defaults to a monotonic system clock.
	Clock clock.Clock
	// Metrics records operation outcomes. Nil disables metrics.
	Metrics *metrics.Recorder
	// Tracer creates one span per operation. Defaults to the global provider's tracer.
	Tracer trace.Tracer
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config, recorder *metrics.Recorder) Options {
	return Options{
		IDs:     idgen.New(cfg.Messenger.IDStrategy),
		Clock:   clock.NewMonotonic(nil),
		Metrics: recorder,
	}
}

// messenger is the concrete implementation of the Messenger interface.
// Writes go through storage.WithTx and reads through storage.View, so every
// operation is a single atomic step over the registry and the log.
type messenger struct {
	options Options
	storage storage.Storage
}

// Ensure messenger implements Messenger.
var _ Messenger = (*messenger)(nil)

// New creates a Messenger backed by the provided storage.
func New(storage storage.Storage, options Options) Messenger {
	if options.IDs == nil {
		options.IDs = idgen.UUID{}
	}
	if options.Clock == nil {
		options.Clock = clock.NewMonotonic(nil)
	}
	if options.Tracer == nil {
		options.Tracer = otel.Tracer("messenger")
	}

	return &messenger{
		options: options,
		storage: storage,
	}
}

// observe opens a span for op and returns the function that closes it and
// records the outcome.
func (m *messenger) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	started := time.Now()
	ctx, span := m.options.Tracer.Start(ctx, "Messenger."+op, trace.WithAttributes(attrs...))

	return ctx, func(errp *error) {
		err := *errp
		m.options.Metrics.Observe(ctx, op, started, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if serrors.IsCallerError(err) {
				logger.Debug(ctx, "messenger operation rejected",
					zap.String("operation", op),
					zap.String("kind", serrors.KindOf(err).Error()),
					zap.Error(err))
			} else {
				logger.Error(ctx, "messenger operation failed", zap.String("operation", op), zap.Error(err))
			}
		}
		span.End()
	}
}

// internal converts infrastructure failures into ErrInternal while letting
// semantic errors through untouched.
func internal(err error, msg string) error {
	var se *serrors.Error
	if errors.As(err, &se) {
		return err
	}

	return serrors.Wrap(serrors.ErrInternal, err, "%s", msg)
}

// RegisterUser trims username, rejects blank or taken names and stores a new
// user. The existence check and the insert happen in one transaction, so
// concurrent registrations of the same name yield exactly one winner.
func (m *messenger) RegisterUser(ctx context.Context, username string) (_ *domain.User, err error) {
	ctx, done := m.observe(ctx, "RegisterUser", attribute.String("username", username))
	defer done(&err)

	trimmed, err := domain.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}

	var user domain.User
	if err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		var err error
		user, err = m.registerUser(ctx, tx, trimmed)

		return err
	}); err != nil {
		return nil, internal(err, "could not register user")
	}

	logger.Debug(ctx, "user registered", zap.String("username", user.Username), zap.Stringer("id", user.ID))

	return &user, nil
}

// registerUser stores a user named username inside tx. The ID is generated
// only once the name is known to be free.
func (m *messenger) registerUser(ctx context.Context, tx storage.AllStorage, username string) (domain.User, error) {
	existing, err := tx.UserByName(ctx, username)
	if err != nil {
		return domain.User{}, errors.Wrap(err, "lookup user")
	}
	if existing != nil {
		return domain.User{}, serrors.With(serrors.ErrConflict, "user already exists: %s", username)
	}

	user, err := domain.NewUser(domain.UserID(m.options.IDs.NewID()), username)
	if err != nil {
		return domain.User{}, err
	}
	if err := tx.StoreUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateUser) {
			return domain.User{}, serrors.Wrap(serrors.ErrConflict, err, "user already exists: %s", username)
		}

		return domain.User{}, errors.Wrap(err, "store user")
	}

	return user, nil
}

// SendMessage validates both participants and the content, then appends the
// message to the log with the current time.
func (m *messenger) SendMessage(ctx context.Context, from, to, content string) (_ *domain.Message, err error) {
	ctx, done := m.observe(ctx, "SendMessage", attribute.String("from", from), attribute.String("to", to))
	defer done(&err)

	var msg domain.Message
	if err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		var err error
		msg, err = m.sendMessage(ctx, tx, from, to, content, time.Time{})

		return err
	}); err != nil {
		return nil, internal(err, "could not send message")
	}

	logger.Debug(ctx, "message sent",
		zap.Stringer("id", msg.ID),
		zap.String("from", msg.Sender),
		zap.String("to", msg.Recipient))

	return &msg, nil
}

// sendMessage stores a message inside tx. A zero at means "now"; the stamp is
// taken under the transaction lock so log order follows time order for
// clock-stamped messages.
func (m *messenger) sendMessage(ctx context.Context,
	tx storage.AllStorage,
	from, to, content string,
	at time.Time) (domain.Message, error) {
	if err := requireUsers(ctx, tx, from, to); err != nil {
		return domain.Message{}, err
	}

	if at.IsZero() {
		at = m.options.Clock.Now()
	}
	msg, err := domain.NewMessage(domain.MessageID{}, from, to, content, at)
	if err != nil {
		return domain.Message{}, err
	}
	msg.ID = domain.MessageID(m.options.IDs.NewID())

	if err := tx.StoreMessage(ctx, msg); err != nil {
		return domain.Message{}, errors.Wrap(err, "store message")
	}

	return msg, nil
}

// Conversation returns the messages exchanged between userA and userB in
// either direction, ascending by time. Messages with equal timestamps keep
// their log order.
func (m *messenger) Conversation(ctx context.Context, userA, userB string) (_ []domain.Message, err error) {
	ctx, done := m.observe(ctx, "Conversation", attribute.String("userA", userA), attribute.String("userB", userB))
	defer done(&err)

	var msgs []domain.Message
	if err := m.storage.View(ctx, func(tx storage.AllStorage) error {
		if err := requireUsers(ctx, tx, userA, userB); err != nil {
			return err
		}

		var err error
		if msgs, err = tx.Messages(ctx, storage.MessageFilter{Between: [2]string{userA, userB}}); err != nil {
			return errors.Wrap(err, "list conversation")
		}

		return nil
	}); err != nil {
		return nil, internal(err, "could not get conversation")
	}

	slices.SortStableFunc(msgs, func(a, b domain.Message) int {
		return a.SentAt.Compare(b.SentAt)
	})

	return msgs, nil
}

// Inbox returns the messages addressed to username, newest first. Messages
// with equal timestamps come in reverse log order.
func (m *messenger) Inbox(ctx context.Context, username string) (_ []domain.Message, err error) {
	ctx, done := m.observe(ctx, "Inbox", attribute.String("username", username))
	defer done(&err)

	var msgs []domain.Message
	if err := m.storage.View(ctx, func(tx storage.AllStorage) error {
		if err := requireUsers(ctx, tx, username); err != nil {
			return err
		}

		var err error
		if msgs, err = tx.Messages(ctx, storage.MessageFilter{Recipient: username}); err != nil {
			return errors.Wrap(err, "list inbox")
		}

		return nil
	}); err != nil {
		return nil, internal(err, "could not get inbox")
	}

	slices.Reverse(msgs)
	slices.SortStableFunc(msgs, func(a, b domain.Message) int {
		return b.SentAt.Compare(a.SentAt)
	})

	return msgs, nil
}

// ListUsers returns every registered user ordered by username.
func (m *messenger) ListUsers(ctx context.Context) (_ []domain.User, err error) {
	ctx, done := m.observe(ctx, "ListUsers")
	defer done(&err)

	var users []domain.User
	if err := m.storage.View(ctx, func(tx storage.AllStorage) error {
		var err error
		if users, err = tx.Users(ctx); err != nil {
			return errors.Wrap(err, "list users")
		}

		return nil
	}); err != nil {
		return nil, internal(err, "could not list users")
	}

	slices.SortFunc(users, func(a, b domain.User) int {
		return cmp.Compare(a.Username, b.Username)
	})

	return users, nil
}

// requireUsers returns ErrNotFound for the first username that is not
// registered.
func requireUsers(ctx context.Context, tx storage.AllStorage, usernames ...string) error {
	for _, username := range usernames {
		user, err := tx.UserByName(ctx, username)
		if err != nil {
			return errors.Wrap(err, "lookup user")
		}
		if user == nil {
			return serrors.With(serrors.ErrNotFound, "unknown user: %s", username)
		}
	}

	return nil
}
