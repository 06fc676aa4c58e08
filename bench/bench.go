// Package bench drives several LNHR DAC II instruments side by side.
//
// Every instrument keeps its own driver and session; broadcast operations run
// one goroutine per instrument so a slow device does not delay the others.
package bench

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/BASPI/LNHRDACII-tools/config"
	"github.com/BASPI/LNHRDACII-tools/lnhrdac"
)

// DefaultConcurrency bounds the number of instruments addressed at once.
const DefaultConcurrency = 8

// ErrUnknownDevice is returned when no device is registered under a name.
var ErrUnknownDevice = errors.New("bench: unknown device")

// Result is the outcome of a broadcast operation on one device.
type Result struct {
	Device string
	Reply  string // query reply, empty for commands
	Err    error
}

// Bench is a registry of named devices. It is safe for concurrent use.
type Bench struct {
	devices     *xsync.MapOf[string, *lnhrdac.Device]
	concurrency int
}

// New creates an empty bench.
func New() *Bench {
	return &Bench{
		devices:     xsync.NewMapOf[string, *lnhrdac.Device](),
		concurrency: DefaultConcurrency,
	}
}

// FromConfig creates a bench with one device per entry of cfg.
// opts are applied to every device after its own settings.
func FromConfig(cfg *config.Config, opts ...lnhrdac.Option) (*Bench, error) {
	b := New()
	for i := range cfg.Devices {
		devCfg, err := cfg.Devices[i].LnhrdacConfig(opts...)
		if err != nil {
			return nil, fmt.Errorf("bench: device %q: %w", cfg.Devices[i].Name, err)
		}

		dev, err := lnhrdac.New(devCfg)
		if err != nil {
			return nil, err
		}

		if err := b.Add(dev); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// SetConcurrency sets the number of devices addressed at once. n < 1 means unlimited.
func (b *Bench) SetConcurrency(n int) {
	b.concurrency = n
}

// Add registers dev under its name.
func (b *Bench) Add(dev *lnhrdac.Device) error {
	if _, loaded := b.devices.LoadOrStore(dev.Name(), dev); loaded {
		return fmt.Errorf("bench: device %q already registered", dev.Name())
	}

	return nil
}

// Device returns the device registered under name.
func (b *Bench) Device(name string) (*lnhrdac.Device, error) {
	dev, ok := b.devices.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}

	return dev, nil
}

// Names returns the registered device names in sorted order.
func (b *Bench) Names() []string {
	names := make([]string, 0, b.devices.Size())
	b.devices.Range(func(name string, _ *lnhrdac.Device) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)

	return names
}

// Len returns the number of registered devices.
func (b *Bench) Len() int {
	return b.devices.Size()
}

// Remove unregisters the device and closes any held session.
func (b *Bench) Remove(name string) error {
	dev, ok := b.devices.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}

	return dev.Close()
}

// CloseAll closes the held sessions of all devices. The devices stay registered.
func (b *Bench) CloseAll() error {
	var errs []error
	b.devices.Range(func(name string, dev *lnhrdac.Device) bool {
		if err := dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return true
	})

	return errors.Join(errs...)
}

// SendCommandAll sends command to every device. Each device is attempted even
// when others fail; the returned error joins all failures.
func (b *Bench) SendCommandAll(ctx context.Context, command string) ([]Result, error) {
	return b.broadcast(ctx, func(ctx context.Context, dev *lnhrdac.Device) (string, error) {
		return "", dev.SendCommand(ctx, command, false)
	})
}

// SendQueryAll sends query to every device and collects the replies.
func (b *Bench) SendQueryAll(ctx context.Context, query string) ([]Result, error) {
	return b.broadcast(ctx, func(ctx context.Context, dev *lnhrdac.Device) (string, error) {
		return dev.SendQuery(ctx, query, false)
	})
}

// ProbeAll queries the channel status of every device.
func (b *Bench) ProbeAll(ctx context.Context) ([]Result, error) {
	return b.broadcast(ctx, func(ctx context.Context, dev *lnhrdac.Device) (string, error) {
		return dev.Probe(ctx)
	})
}

func (b *Bench) broadcast(ctx context.Context, fn func(context.Context, *lnhrdac.Device) (string, error)) ([]Result, error) {
	names := b.Names()
	results := make([]Result, len(names))

	var g errgroup.Group
	if b.concurrency > 0 {
		g.SetLimit(b.concurrency)
	}

	for i, name := range names {
		results[i].Device = name

		dev, ok := b.devices.Load(name)
		if !ok {
			results[i].Err = fmt.Errorf("%w: %q", ErrUnknownDevice, name)
			continue
		}

		i := i // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			// failures are collected per device so one failure does not stop the others
			results[i].Reply, results[i].Err = fn(ctx, dev)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Device, res.Err))
		}
	}

	return results, errors.Join(errs...)
}
