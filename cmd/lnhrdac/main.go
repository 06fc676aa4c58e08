// Command lnhrdac sends commands and queries to LNHR DAC II instruments.
//
// Usage:
//
//	lnhrdac [flags] <subcommand> [args]
//
// Subcommands:
//
//	status                 query the channel status of the selected devices
//	cmd <command>          send a command, e.g. "1 on"
//	query <query>          send a query and print the reply, e.g. "1 v?"
//	expect <query> <want>  send a query and compare the reply
//	all-off                switch off all channels of the selected devices
//	smoke                  exercise the driver against a connected device
//	console                interactive prompt
//
// Flags:
//
//	-config string     bench file (default "$HOME/.lnhrdac/config.yaml")
//	-device string     device name from the bench file
//	-host string       device address, bypasses the bench file
//	-port int          telnet port used with -host (default 23)
//	-hold              keep the session open between transactions
//	-log-level string  log level: debug, info, warn, error
//
// Examples:
//
//	# Switch off every instrument listed in the bench file
//	lnhrdac all-off
//
//	# Query a single device by address
//	lnhrdac -host 192.168.0.5 query "all s?"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/BASPI/LNHRDACII-tools/bench"
	"github.com/BASPI/LNHRDACII-tools/config"
	"github.com/BASPI/LNHRDACII-tools/lnhrdac"
	"github.com/BASPI/LNHRDACII-tools/logger"
)

var errUsage = errors.New("usage: lnhrdac [flags] status|cmd|query|expect|all-off|smoke|console [args]")

// cliOptions holds the parsed command line flags.
type cliOptions struct {
	configPath string
	device     string
	host       string
	port       int
	hold       bool
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "lnhrdac:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, out io.Writer) (*cliOptions, []string, error) {
	opts := &cliOptions{}

	fs := flag.NewFlagSet("lnhrdac", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", config.DefaultPath(), "bench file")
	fs.StringVar(&opts.device, "device", "", "device name from the bench file")
	fs.StringVar(&opts.host, "host", "", "device address, bypasses the bench file")
	fs.IntVar(&opts.port, "port", lnhrdac.DefaultPort, "telnet port used with -host")
	fs.BoolVar(&opts.hold, "hold", false, "keep the session open between transactions")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return opts, fs.Args(), nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, rest, err := parseFlags(args, out)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errUsage
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if err := applyLogLevel(opts.logLevel, cfg.LogLevel); err != nil {
		return err
	}

	subcmd, subargs := rest[0], rest[1:]

	// the console owns the terminal, its logger must exist before the devices are created
	if subcmd == "console" {
		return runConsole(ctx, opts, cfg, out)
	}

	b, err := bench.FromConfig(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = b.CloseAll() }()

	switch subcmd {
	case "status":
		return runStatus(ctx, b, out)
	case "all-off":
		return runAllOff(ctx, b, out)
	}

	dev, err := selectDevice(b)
	if err != nil {
		return err
	}

	switch subcmd {
	case "cmd":
		if len(subargs) != 1 {
			return errors.New(`usage: lnhrdac cmd "<command>"`)
		}
		if err := dev.SendCommand(ctx, subargs[0], opts.hold); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")

	case "query":
		if len(subargs) != 1 {
			return errors.New(`usage: lnhrdac query "<query>"`)
		}
		reply, err := dev.SendQuery(ctx, subargs[0], opts.hold)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)

	case "expect":
		if len(subargs) != 2 {
			return errors.New(`usage: lnhrdac expect "<query>" "<answer>"`)
		}
		ok, err := dev.SendQueryExpectAnswer(ctx, subargs[0], subargs[1], opts.hold)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ok)
		if !ok {
			return fmt.Errorf("%q did not answer %q", subargs[0], subargs[1])
		}

	case "smoke":
		return runSmoke(ctx, dev, out)

	default:
		return fmt.Errorf("unknown subcommand %q: %w", subcmd, errUsage)
	}

	return nil
}

// loadConfig returns the bench configuration for the selected devices.
// With -host a single ad-hoc device is configured and the bench file is ignored.
func loadConfig(opts *cliOptions) (*config.Config, error) {
	if opts.host != "" {
		name := opts.device
		if name == "" {
			name = opts.host
		}
		cfg := &config.Config{
			Devices: []config.DeviceConfig{{Name: name, Host: opts.host, Port: opts.port}},
		}

		return cfg, cfg.Validate()
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.device != "" {
		dev := cfg.Find(opts.device)
		if dev == nil {
			return nil, fmt.Errorf("device %q not found in %s (have: %s)",
				opts.device, opts.configPath, strings.Join(cfg.Names(), ", "))
		}
		cfg.Devices = []config.DeviceConfig{*dev}
	}

	if len(cfg.Devices) == 0 {
		return nil, fmt.Errorf("no devices configured, use -host or add devices to %s", opts.configPath)
	}

	return cfg, nil
}

func applyLogLevel(flagLevel string, fileLevel string) error {
	name := flagLevel
	if name == "" {
		name = fileLevel
	}
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}

	level, err := logger.ParseLevel(name)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	return nil
}

func selectDevice(b *bench.Bench) (*lnhrdac.Device, error) {
	names := b.Names()
	if len(names) != 1 {
		return nil, fmt.Errorf("%d devices configured (%s), select one with -device",
			len(names), strings.Join(names, ", "))
	}

	return b.Device(names[0])
}

// greeting formats the channel status reported after connecting to a device.
func greeting(dev *lnhrdac.Device, status string) string {
	name := ""
	if dev.Config().Name() != "" && dev.Config().Name() != dev.Config().Host() {
		name = strconv.Quote(dev.Config().Name()) + ", "
	}

	return fmt.Sprintf("Connected to device (%s%s) successfully. "+
		"The current status of all channels is shown below (channel 1; channel 2; ... ):\n%s",
		name, dev.Config().Host(), status)
}

func runStatus(ctx context.Context, b *bench.Bench, out io.Writer) error {
	results, err := b.ProbeAll(ctx)
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(out, "%s: %v\n", res.Device, res.Err)
			continue
		}

		dev, devErr := b.Device(res.Device)
		if devErr != nil {
			return devErr
		}
		fmt.Fprintln(out, greeting(dev, res.Reply))
	}

	return err
}

func runAllOff(ctx context.Context, b *bench.Bench, out io.Writer) error {
	results, err := b.SendCommandAll(ctx, "all off")
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(out, "%s: %v\n", res.Device, res.Err)
			continue
		}
		fmt.Fprintf(out, "%s: all channels off\n", res.Device)
	}

	return err
}
