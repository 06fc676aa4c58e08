package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/BASPI/LNHRDACII-tools/bench"
	"github.com/BASPI/LNHRDACII-tools/config"
	"github.com/BASPI/LNHRDACII-tools/lnhrdac"
	"github.com/BASPI/LNHRDACII-tools/logger"
)

const consoleHelp = `Lines containing '?' are sent as queries, everything else as commands.
  expect <query> = <answer>  compare a query reply
  use <device>               switch the active device
  devices                    list devices
  hold on|off                keep the session open between transactions
  close                      close a held session
  help                       show this help
  exit                       leave the console`

type console struct {
	bench *bench.Bench
	dev   *lnhrdac.Device
	hold  bool
	out   io.Writer
}

func runConsole(ctx context.Context, opts *cliOptions, cfg *config.Config, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "dac> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// log lines must not interfere with the prompt
	current := logger.GetLogger()
	logger.SetDefault(logger.NewSlogWriter(rl.Stdout(), current.Level(), false))
	defer logger.SetDefault(current)

	b, err := bench.FromConfig(cfg, lnhrdac.WithLogger(logger.GetLogger()))
	if err != nil {
		return err
	}
	defer func() { _ = b.CloseAll() }()

	c := &console{bench: b, hold: opts.hold, out: rl.Stdout()}
	if err := c.use(b.Names()[0]); err != nil {
		return err
	}

	fmt.Fprintln(c.out, consoleHelp)

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		if err := c.execute(ctx, input); err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
	}
}

func (c *console) use(name string) error {
	dev, err := c.bench.Device(name)
	if err != nil {
		return err
	}
	c.dev = dev

	return nil
}

func (c *console) execute(ctx context.Context, input string) error {
	word, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch word {
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
		return nil

	case "devices":
		for _, name := range c.bench.Names() {
			marker := " "
			if name == c.dev.Name() {
				marker = "*"
			}
			dev, _ := c.bench.Device(name)
			fmt.Fprintf(c.out, "%s %-16s %s\n", marker, name, dev.Addr())
		}
		return nil

	case "use":
		if err := c.dev.Close(); err != nil {
			return err
		}
		return c.use(arg)

	case "hold":
		switch arg {
		case "on":
			c.hold = true
		case "off":
			c.hold = false
			return c.dev.Close()
		default:
			return errors.New("usage: hold on|off")
		}
		return nil

	case "close":
		return c.dev.Close()

	case "expect":
		query, answer, ok := strings.Cut(arg, "=")
		if !ok {
			return errors.New("usage: expect <query> = <answer>")
		}
		match, err := c.dev.SendQueryExpectAnswer(ctx, strings.TrimSpace(query), strings.TrimSpace(answer), c.hold)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, match)
		return nil
	}

	if strings.Contains(input, "?") {
		reply, err := c.dev.SendQuery(ctx, input, c.hold)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, reply)

		return nil
	}

	if err := c.dev.SendCommand(ctx, input, c.hold); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "OK")

	return nil
}
