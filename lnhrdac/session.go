package lnhrdac

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ziutek/telnet"

	"github.com/BASPI/LNHRDACII-tools/logger"
)

// maxFrameSize bounds a single reply. The longest informational reply (help?) is a few KB.
const maxFrameSize = 64 * 1024

var (
	errNotConnected  = errors.New("lnhrdac: session is not connected")
	errFrameTooLarge = fmt.Errorf("lnhrdac: reply exceeds %d bytes without terminator", maxFrameSize)
)

// sessionState represents the two states of the device session.
type sessionState uint32

const (
	// disconnectedState indicates that no telnet connection exists.
	disconnectedState sessionState = iota
	// connectedState indicates a live telnet connection ready for an exchange.
	connectedState
)

// String returns string representation of the state.
func (st sessionState) String() string {
	switch st {
	case disconnectedState:
		return "disconnected"
	case connectedState:
		return "connected"
	default:
		return "unknown"
	}
}

// dialFunc opens the raw TCP connection to the device.
type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error)

func dialTCP(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return dialer.DialContext(dialCtx, "tcp", addr)
}

// session is the connection manager of a Device. It owns the telnet connection;
// all state transitions go through ensureConnected and release.
//
// This type is NOT goroutine-safe. Device serializes access to it.
type session struct {
	cfg     *Config
	logger  logger.Logger
	metrics *Metrics
	gov     *governor
	dial    dialFunc

	state  sessionState
	conn   *telnet.Conn
	broken bool // transport failed mid-exchange; never reused even when held
}

func newSession(cfg *Config, l logger.Logger, metrics *Metrics, gov *governor) *session {
	return &session{
		cfg:     cfg,
		logger:  l,
		metrics: metrics,
		gov:     gov,
		dial:    dialTCP,
		state:   disconnectedState,
	}
}

func (s *session) isConnected() bool {
	return s.state == connectedState
}

// ensureConnected opens the telnet connection unless one is already live.
func (s *session) ensureConnected(ctx context.Context) error {
	if s.isConnected() {
		return nil
	}

	addr := s.cfg.Addr()

	conn, err := s.dial(ctx, addr, s.cfg.connectTimeout)
	if err != nil {
		s.metrics.incConnErrCount()
		s.logger.Debug("lnhrdac: dial failed", "addr", addr, "error", err)

		return &ConnectionError{Addr: addr, Err: err}
	}

	tc, err := telnet.NewConn(conn)
	if err != nil {
		_ = conn.Close()
		s.metrics.incConnErrCount()

		return &ConnectionError{Addr: addr, Err: err}
	}

	s.conn = tc
	s.broken = false
	s.state = connectedState
	s.metrics.incConnOpenCount()

	s.logger.Debug("lnhrdac: connected", "localAddr", conn.LocalAddr(), "remoteAddr", conn.RemoteAddr())

	return nil
}

// release closes the connection unless hold is set and the transport is still healthy.
// After closing it waits the release spacing required between two transactions.
func (s *session) release(ctx context.Context, hold bool) error {
	if !s.isConnected() {
		return nil
	}

	if hold && !s.broken {
		s.logger.Debug("lnhrdac: holding connection")
		return nil
	}

	err := s.close()

	// The spacing must elapse even when the caller's context is already done.
	if sleepErr := s.gov.afterRelease(context.WithoutCancel(ctx)); sleepErr != nil && err == nil {
		err = sleepErr
	}

	return err
}

// close tears down the transport and transitions to disconnectedState.
func (s *session) close() error {
	conn := s.conn
	s.conn = nil
	s.broken = false
	s.state = disconnectedState

	if conn == nil {
		return nil
	}

	s.metrics.incConnCloseCount()
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("lnhrdac: failed to close connection", "error", err)
		return &ConnectionError{Addr: s.cfg.Addr(), Err: err}
	}

	s.logger.Debug("lnhrdac: disconnected", "addr", s.cfg.Addr())

	return nil
}

// markBroken flags the transport as unusable so the next release tears it down.
func (s *session) markBroken() {
	s.broken = true
}

// writeLine sends text followed by the line terminator.
func (s *session) writeLine(text string) error {
	if !s.isConnected() {
		return errNotConnected
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.writeTimeout)); err != nil {
		s.markBroken()
		return &ConnectionError{Addr: s.cfg.Addr(), Err: err}
	}

	if _, err := s.conn.Write([]byte(text + lineTerminator)); err != nil {
		s.markBroken()
		return &ConnectionError{Addr: s.cfg.Addr(), Err: err}
	}

	return nil
}

// readFrame reads until terminator or the read timeout.
//
// The bytes received so far are returned together with the error when the read
// does not complete. Telnet option negotiation is handled by the telnet connection.
func (s *session) readFrame(terminator string) ([]byte, error) {
	if !s.isConnected() {
		return nil, errNotConnected
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.readTimeout)); err != nil {
		s.markBroken()
		return nil, err
	}

	term := []byte(terminator)
	buf := make([]byte, 0, 64)

	for {
		b, err := s.conn.ReadByte()
		if err != nil {
			s.markBroken()
			return buf, err
		}

		// a multi-line reply ends with CR CR LF, the LF may still be pending on a held session
		if len(buf) == 0 && b == '\n' {
			continue
		}

		buf = append(buf, b)
		if bytes.HasSuffix(buf, term) {
			return buf, nil
		}

		if len(buf) >= maxFrameSize {
			s.markBroken()
			return buf, errFrameTooLarge
		}
	}
}
