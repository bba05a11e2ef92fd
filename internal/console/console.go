// Package console implements the interactive line-oriented front end of the
// messenger.
package console

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"messenger/internal/messenger"
	"messenger/pkg/logger"
	"messenger/pkg/metrics"
	"messenger/pkg/serrors"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

const (
	// DefaultPrompt is printed before each command when Options.Prompt is empty.
	DefaultPrompt = "messenger> "
	// DefaultTimeFormat renders message timestamps when Options.TimeFormat is empty.
	DefaultTimeFormat = time.DateTime
	// MaxLineLength is the longest command line, in bytes, the console accepts.
	// Longer lines are reported and skipped.
	MaxLineLength = 64 * 1024
)

// Options configure a Console.
type Options struct {
	// Prompt is printed before reading each command.
	Prompt string
	// TimeFormat is the layout message timestamps are rendered with.
	TimeFormat string
	// Location is the zone message timestamps are rendered in. Defaults to time.Local.
	Location *time.Location
	// Metrics backs the stats command. Nil means metrics are disabled.
	Metrics *metrics.Recorder
	// HidePrompt suppresses the prompt and the greeting, e.g. when replaying a script.
	HidePrompt bool
}

// Console reads commands line by line and executes them against a Messenger.
type Console struct {
	messenger messenger.Messenger
	options   Options
}

// New creates a Console over m.
func New(m messenger.Messenger, options Options) *Console {
	if options.TimeFormat == "" {
		options.TimeFormat = DefaultTimeFormat
	}
	if options.Location == nil {
		options.Location = time.Local
	}

	return &Console{
		messenger: m,
		options:   options,
	}
}

// handler executes one command. args[0] is the command name.
type handler func(ctx context.Context, p *printer, args []string) error

// errExit stops the loop after the exit command.
var errExit = errors.New("exit")

// Run reads commands from in and writes their results to out until the exit
// command, the end of in, or the cancellation of ctx. Command failures are
// printed and do not stop the loop; only read/write failures and
// cancellation are returned.
func (c *Console) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := &printer{w: out}
	lines, readErr := readLines(ctx, in)

	if !c.options.HidePrompt {
		p.println("Welcome to messenger. Type help to list commands.")
	}

	for {
		if !c.options.HidePrompt {
			p.print(c.options.Prompt)
		}
		if p.err != nil {
			return errors.Wrap(p.err, "write output")
		}

		var (
			line inputLine
			ok   bool
		)
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "console interrupted")
		case line, ok = <-lines:
		}
		if !ok {
			if err := <-readErr; err != nil {
				return errors.Wrap(err, "read input")
			}
			if !c.options.HidePrompt {
				p.println("")
			}

			return p.err
		}

		if line.tooLong {
			p.printf("Error: line too long (limit is %d bytes)\n", MaxLineLength)

			continue
		}

		if err := c.execute(ctx, p, line.text); err != nil {
			if errors.Is(err, errExit) {
				p.println("Bye!")

				return p.err
			}

			return err
		}
	}
}

// Execute runs a single command line and writes its output to out.
func (c *Console) Execute(ctx context.Context, line string, out io.Writer) error {
	p := &printer{w: out}
	if err := c.execute(ctx, p, line); err != nil && !errors.Is(err, errExit) {
		return err
	}

	return p.err
}

func (c *Console) execute(ctx context.Context, p *printer, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	args := strings.Fields(line)
	name := strings.ToLower(args[0])
	var h handler
	switch name {
	case "register":
		h = c.register
	case "send":
		// the content is everything after the recipient, inner spacing included
		args = splitArgs(line, 4)
		h = c.send
	case "chat":
		h = c.chat
	case "inbox":
		h = c.inbox
	case "users":
		h = c.users
	case "stats":
		h = c.stats
	case "help":
		h = c.help
	case "exit", "quit":
		return errExit
	default:
		p.printf("Unknown command %q. Type help to list commands.\n", args[0])

		return nil
	}

	ctx = logger.WithFields(ctx, zap.String("command", name))
	if err := h(ctx, p, args); err != nil {
		if !serrors.IsCallerError(err) {
			logger.Warn(ctx, "command failed", zap.Error(err))
		}
		p.printf("Error: %s\n", err)
	}

	return nil
}

// inputLine is one line read from the console input. Lines longer than
// MaxLineLength carry no text and have tooLong set.
type inputLine struct {
	text    string
	tooLong bool
}

// readLines feeds the lines of in to the returned channel until in is
// exhausted or ctx is done. The error channel yields the read error, if any,
// once lines is closed.
func readLines(ctx context.Context, in io.Reader) (<-chan inputLine, <-chan error) {
	lines := make(chan inputLine)
	readErr := make(chan error, 1)

	go func() {
		defer close(readErr)
		defer close(lines)

		reader := bufio.NewReader(in)
		for {
			line, err := readLine(reader, MaxLineLength)
			if err == nil || line.text != "" || line.tooLong {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}

				return
			}
		}
	}()

	return lines, readErr
}

// readLine reads up to and including the next newline. Bytes past limit are
// consumed and dropped so the following line starts clean.
func readLine(r *bufio.Reader, limit int) (inputLine, error) {
	var (
		buf  []byte
		line inputLine
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if !line.tooLong {
			if len(buf)+len(bytes.TrimRight(chunk, "\r\n")) > limit {
				line.tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if !line.tooLong {
			line.text = strings.TrimRight(string(buf), "\r\n")
		}

		return line, err
	}
}

// splitArgs splits line on runs of whitespace into at most n parts; the last
// part keeps the rest of the line as is.
func splitArgs(line string, n int) []string {
	var parts []string
	rest := strings.TrimSpace(line)
	for len(parts) < n-1 && rest != "" {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			break
		}
		parts = append(parts, rest[:i])
		rest = strings.TrimLeft(rest[i:], " \t")
	}
	if rest != "" {
		parts = append(parts, rest)
	}

	return parts
}

// printer remembers the first write error so handlers can print freely.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) print(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) println(s string) { p.print(s + "\n") }

func (p *printer) printf(format string, args ...any) { p.print(fmt.Sprintf(format, args...)) }

// Write lets tables render through the printer.
func (p *printer) Write(b []byte) (int, error) {
	p.print(string(b))
	if p.err != nil {
		return 0, p.err
	}

	return len(b), nil
}
