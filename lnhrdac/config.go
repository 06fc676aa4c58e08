package lnhrdac

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BASPI/LNHRDACII-tools/logger"
)

// Defaults taken from the LNHR DAC II programmer's manual.
const (
	DefaultPort = 23 // telnet service port of the device

	DefaultConnectTimeout = 3 * time.Second
	DefaultReadTimeout    = 3 * time.Second
	DefaultWriteTimeout   = 3 * time.Second

	// DefaultControlDelay is the settling time after a control command or query.
	DefaultControlDelay = 200 * time.Millisecond
	// DefaultMemoryWriteDelay is the additional settling time after a control memory write.
	DefaultMemoryWriteDelay = 300 * time.Millisecond
	// DefaultReleaseDelay is the minimum spacing after the session has been closed.
	DefaultReleaseDelay = 3 * time.Millisecond
)

// Upper bounds for the configurable timeouts and delays.
const (
	MaxConnectTimeout = 60 * time.Second
	MaxReadTimeout    = 60 * time.Second
	MaxDelay          = 10 * time.Second
)

// Config holds the configuration of one device driver instance.
type Config struct {
	host string
	port int
	name string

	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration

	// Timing governor. These are device minimums: options may raise but never lower them.
	controlDelay     time.Duration
	memoryWriteDelay time.Duration
	releaseDelay     time.Duration

	logger logger.Logger
}

// NewConfig creates a new device configuration.
//
// host is the IP address or host name of the device, port its telnet port.
// opts are functional options applied in order; see the With* functions.
func NewConfig(host string, port int, opts ...Option) (*Config, error) {
	cfg := &Config{
		connectTimeout:   DefaultConnectTimeout,
		readTimeout:      DefaultReadTimeout,
		writeTimeout:     DefaultWriteTimeout,
		controlDelay:     DefaultControlDelay,
		memoryWriteDelay: DefaultMemoryWriteDelay,
		releaseDelay:     DefaultReleaseDelay,
		logger:           logger.GetLogger(),
	}

	if err := cfg.setHost(host); err != nil {
		return nil, err
	}
	if err := cfg.setPort(port); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *Config) setHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return errors.New("lnhrdac: host must not be empty")
	}

	if ip := net.ParseIP(host); ip != nil {
		cfg.host = host
		return nil
	}

	host = strings.TrimSuffix(host, ".")
	if !isValidHostname(host) {
		return fmt.Errorf("lnhrdac: invalid host %q", host)
	}
	cfg.host = host

	return nil
}

func (cfg *Config) setPort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("lnhrdac: port %d out of range [1, 65535]", port)
	}
	cfg.port = port

	return nil
}

// isValidHostname checks RFC 1123 label syntax. No lookup is done here, the
// device may only be resolvable once it is powered up.
func isValidHostname(host string) bool {
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			if !isAlnum && r != '-' {
				return false
			}
		}
	}

	return true
}

// --- Getters ---

// Host returns the configured host address.
func (cfg *Config) Host() string { return cfg.host }

// Port returns the configured telnet port.
func (cfg *Config) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *Config) Addr() string { return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port)) }

// Name returns the optional human readable device name. It is only used in diagnostics.
func (cfg *Config) Name() string { return cfg.name }

// ConnectTimeout returns the dial timeout.
func (cfg *Config) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// ReadTimeout returns the timeout for reading one response frame.
func (cfg *Config) ReadTimeout() time.Duration { return cfg.readTimeout }

// WriteTimeout returns the timeout for writing one request line.
func (cfg *Config) WriteTimeout() time.Duration { return cfg.writeTimeout }

// ControlDelay returns the settling delay after control commands and queries.
func (cfg *Config) ControlDelay() time.Duration { return cfg.controlDelay }

// MemoryWriteDelay returns the additional settling delay after control memory writes.
func (cfg *Config) MemoryWriteDelay() time.Duration { return cfg.memoryWriteDelay }

// ReleaseDelay returns the spacing applied after the session is closed.
func (cfg *Config) ReleaseDelay() time.Duration { return cfg.releaseDelay }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithName sets the human readable device name used in diagnostics.
func WithName(name string) Option {
	return optFunc(func(cfg *Config) error {
		cfg.name = strings.TrimSpace(name)
		return nil
	})
}

// WithConnectTimeout sets the dial timeout. Must be in (0, MaxConnectTimeout].
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 || d > MaxConnectTimeout {
			return fmt.Errorf("lnhrdac: connect timeout %v out of range (0, %v]", d, MaxConnectTimeout)
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithReadTimeout sets the response read timeout. Must be in (0, MaxReadTimeout].
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 || d > MaxReadTimeout {
			return fmt.Errorf("lnhrdac: read timeout %v out of range (0, %v]", d, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the request write timeout. Must be in (0, MaxReadTimeout].
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 || d > MaxReadTimeout {
			return fmt.Errorf("lnhrdac: write timeout %v out of range (0, %v]", d, MaxReadTimeout)
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithControlDelay raises the settling delay after control commands and queries.
// Values below DefaultControlDelay are rejected.
func WithControlDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		return setDelay(&cfg.controlDelay, "control delay", d, DefaultControlDelay)
	})
}

// WithMemoryWriteDelay raises the additional delay after control memory writes.
// Values below DefaultMemoryWriteDelay are rejected.
func WithMemoryWriteDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		return setDelay(&cfg.memoryWriteDelay, "memory write delay", d, DefaultMemoryWriteDelay)
	})
}

// WithReleaseDelay raises the spacing applied after closing the session.
// Values below DefaultReleaseDelay are rejected.
func WithReleaseDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		return setDelay(&cfg.releaseDelay, "release delay", d, DefaultReleaseDelay)
	})
}

func setDelay(dst *time.Duration, what string, d time.Duration, minimum time.Duration) error {
	if d < minimum || d > MaxDelay {
		return fmt.Errorf("lnhrdac: %s %v out of range [%v, %v]", what, d, minimum, MaxDelay)
	}
	*dst = d

	return nil
}

// WithLogger sets the logger for the device.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("lnhrdac: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
