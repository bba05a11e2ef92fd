package console

import (
	"context"
	"fmt"
	"messenger/pkg/domain"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// usage lines, also used by help.
const (
	usageRegister = "register <username>"
	usageSend     = "send <from> <to> <content>"
	usageChat     = "chat <userA> <userB>"
	usageInbox    = "inbox <username>"
)

//nolint: gochecknoglobals
var helpLines = [][2]string{
	{usageRegister, "register a new user"},
	{usageSend, "send a message"},
	{usageChat, "show the conversation between two users"},
	{usageInbox, "show the messages a user received, newest first"},
	{"users", "list all users"},
	{"stats", "show operation metrics"},
	{"help", "show this help"},
	{"exit / quit", "leave the console"},
}

func (c *Console) register(ctx context.Context, p *printer, args []string) error {
	if len(args) < 2 {
		p.println("Usage: " + usageRegister)

		return nil
	}

	user, err := c.messenger.RegisterUser(ctx, args[1])
	if err != nil {
		return err
	}
	p.println("Registered: " + user.Username)

	return nil
}

func (c *Console) send(ctx context.Context, p *printer, args []string) error {
	if len(args) < 4 {
		p.println("Usage: " + usageSend)

		return nil
	}

	msg, err := c.messenger.SendMessage(ctx, args[1], args[2], args[3])
	if err != nil {
		return err
	}
	p.println("Sent: " + c.render(*msg))

	return nil
}

func (c *Console) chat(ctx context.Context, p *printer, args []string) error {
	if len(args) < 3 {
		p.println("Usage: " + usageChat)

		return nil
	}

	msgs, err := c.messenger.Conversation(ctx, args[1], args[2])
	if err != nil {
		return err
	}
	c.printMessages(p, msgs, "No messages yet.")

	return nil
}

func (c *Console) inbox(ctx context.Context, p *printer, args []string) error {
	if len(args) < 2 {
		p.println("Usage: " + usageInbox)

		return nil
	}

	msgs, err := c.messenger.Inbox(ctx, args[1])
	if err != nil {
		return err
	}
	c.printMessages(p, msgs, "Inbox is empty.")

	return nil
}

func (c *Console) users(ctx context.Context, p *printer, _ []string) error {
	users, err := c.messenger.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		p.println("No users yet. Create one with " + usageRegister + ".")

		return nil
	}

	for _, line := range lo.Map(users, func(u domain.User, _ int) string {
		return fmt.Sprintf("- %s (id: %s)", u.Username, u.ID)
	}) {
		p.println(line)
	}

	return nil
}

func (c *Console) stats(_ context.Context, p *printer, _ []string) error {
	if c.options.Metrics == nil {
		p.println("Metrics are disabled.")

		return nil
	}

	samples, err := c.options.Metrics.Snapshot()
	if err != nil {
		return errors.Wrap(err, "snapshot metrics")
	}
	if len(samples) == 0 {
		p.println("No operations recorded yet.")

		return nil
	}

	table := newTable(p, []string{"Metric", "Labels", "Value"})
	for _, s := range samples {
		table.Append([]string{s.Name, s.LabelString(), strconv.FormatFloat(s.Value, 'f', -1, 64)})
	}
	table.Render()

	return nil
}

func (c *Console) help(_ context.Context, p *printer, _ []string) error {
	p.println("Available commands:")
	table := newTable(p, nil)
	for _, line := range helpLines {
		table.Append([]string{"  " + line[0], line[1]})
	}
	table.Render()

	return nil
}

func (c *Console) printMessages(p *printer, msgs []domain.Message, empty string) {
	if len(msgs) == 0 {
		p.println(empty)

		return
	}

	for _, msg := range msgs {
		p.println(c.render(msg))
	}
}

// render formats msg as "[<time>] <sender> -> <recipient>: <content>".
func (c *Console) render(msg domain.Message) string {
	return msg.Format(c.options.TimeFormat, c.options.Location)
}

// newTable returns a borderless, left aligned table writing to p. A nil
// header renders rows only.
func newTable(p *printer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(p)
	if header != nil {
		table.SetHeader(header)
	}
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	return table
}
