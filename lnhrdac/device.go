package lnhrdac

import (
	"context"
	"errors"
	"sync"

	"github.com/BASPI/LNHRDACII-tools/logger"
)

// StatusQuery asks for the status of all channels. Probe sends it.
const StatusQuery = "all s?"

// Device is the driver of one LNHR DAC II.
//
// All methods are safe for concurrent use; transactions are serialized because
// the device handles a single telnet session at a time.
type Device struct {
	mu      sync.Mutex
	cfg     *Config
	logger  logger.Logger
	metrics *Metrics
	gov     *governor
	sess    *session
}

// New creates a device driver. No connection is made until the first transaction.
func New(cfg *Config) (*Device, error) {
	if cfg == nil {
		return nil, errors.New("lnhrdac: config must not be nil")
	}

	d := &Device{
		cfg:     cfg,
		metrics: &Metrics{},
		gov:     newGovernor(cfg),
	}

	d.logger = cfg.GetLogger().With("device", d.label(), "addr", cfg.Addr())
	d.sess = newSession(cfg, d.logger, d.metrics, d.gov)

	return d, nil
}

func (d *Device) label() string {
	if d.cfg.Name() != "" {
		return d.cfg.Name()
	}

	return d.cfg.Host()
}

// SendCommand sends a command that changes device state, e.g. "1 on" or "all 8.5".
//
// The device must acknowledge the command with "0". A query (text containing '?')
// is rejected with ErrInvalidUsage before any I/O. When hold is true the session
// is kept open for the next transaction.
func (d *Device) SendCommand(ctx context.Context, command string, hold bool) error {
	_, err := d.transact(ctx, NewCommand(command), hold)
	return err
}

// SendQuery sends a query and returns the trimmed reply.
//
// The informational queries listed by MultiLineQueries return several lines.
// A text without '?' is rejected with ErrInvalidUsage before any I/O.
func (d *Device) SendQuery(ctx context.Context, query string, hold bool) (string, error) {
	out, err := d.transact(ctx, NewQuery(query), hold)
	if err != nil {
		return "", err
	}

	return out.Payload, nil
}

// SendQueryExpectAnswer sends a query and reports whether the reply equals expected.
//
// A mismatch is not an error. Handshake and connection failures are.
func (d *Device) SendQueryExpectAnswer(ctx context.Context, query string, expected string, hold bool) (bool, error) {
	out, err := d.transact(ctx, NewQueryExpectAnswer(query, expected), hold)
	if err != nil {
		return false, err
	}

	return out.Payload == expected, nil
}

// Probe checks that the device answers by querying the status of all channels.
func (d *Device) Probe(ctx context.Context) (string, error) {
	return d.SendQuery(ctx, StatusQuery, false)
}

// Close releases a held session. It is a no-op when the device is disconnected.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.sess.release(context.Background(), false)
}

// IsConnected reports whether a session is currently held open.
func (d *Device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.sess.isConnected()
}

// Name returns the configured device name, or the host when no name is set.
func (d *Device) Name() string {
	return d.label()
}

// Addr returns the "host:port" address of the device.
func (d *Device) Addr() string {
	return d.cfg.Addr()
}

// Config returns the device configuration.
func (d *Device) Config() *Config {
	return d.cfg
}

// GetMetrics returns the metrics of the device.
func (d *Device) GetMetrics() *Metrics {
	return d.metrics
}

// GetLogger returns the device logger.
func (d *Device) GetLogger() logger.Logger {
	return d.logger
}
