// Package console is the terminal front end: it reads operator lines,
// turns them into command records and prints the scheduler's replies.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"jobsched/internal/command"
	logx "jobsched/pkg/logx"
)

const DefaultPrompt = "jobsched> "

type Options struct {
	Prompt  string
	In      io.Reader
	Out     io.Writer
	MaxLine int
}

type Console struct {
	opts Options
	cmds chan<- command.Command
	log  logx.Logger
}

func New(opts Options, cmds chan<- command.Command, log logx.Logger) *Console {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.MaxLine <= 0 {
		opts.MaxLine = command.MaxLineLen
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Console{opts: opts, cmds: cmds, log: log}
}

// Run serves lines until exit, EOF or ctx cancellation. EOF is treated as
// an exit command so closing stdin shuts the scheduler down cleanly.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.opts.In)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		c.prompt()
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				c.log.Warn("console read failed", logx.Err(err))
			}
			c.println("")
			_, _ = c.submit(ctx, command.Command{Verb: command.Exit})
			return nil
		case line := <-lines:
			cmd, err := c.parse(line)
			if err != nil {
				if !errors.Is(err, errBlank) {
					c.printErr(err)
				}
				continue
			}
			res, err := c.submit(ctx, cmd)
			if err != nil {
				return nil
			}
			if res.Err != nil {
				c.printErr(res.Err)
			} else if res.Text != "" {
				c.println(res.Text)
			}
			if cmd.Verb == command.Exit {
				return nil
			}
		}
	}
}

var errBlank = errors.New("blank line")

func (c *Console) parse(line string) (command.Command, error) {
	if len(line) > c.opts.MaxLine {
		return command.Command{}, fmt.Errorf("%w: %w: %d bytes (max %d)", command.ErrParse, command.ErrTooLong, len(line), c.opts.MaxLine)
	}
	if strings.TrimSpace(line) == "" {
		return command.Command{}, errBlank
	}
	return command.Parse(line)
}

// submit sends cmd and waits for its reply.
func (c *Console) submit(ctx context.Context, cmd command.Command) (command.Result, error) {
	reply := make(chan command.Result, 1)
	cmd.Reply = reply
	cmd.Source = "console"
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return command.Result{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return command.Result{}, ctx.Err()
	}
}

func (c *Console) prompt() {
	_, _ = io.WriteString(c.opts.Out, c.opts.Prompt)
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.opts.Out, s)
}

func (c *Console) printErr(err error) {
	_, _ = fmt.Fprintf(c.opts.Out, "error: %v\n", err)
}
