// Package devicetest provides an in-process stand-in for an LNHR DAC II telnet
// server, used by the driver and tool tests.
package devicetest

import (
	"bufio"
	"errors"
	"net"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// Handler returns the raw reply for one request line, terminator included.
// An empty reply sends nothing, which the driver sees as a read timeout.
type Handler func(line string) string

// Stub is a loopback TCP server that answers request lines with a Handler.
type Stub struct {
	ln      net.Listener
	handler Handler

	mu    sync.Mutex
	lines []string
	conns map[net.Conn]struct{}

	accepted atomic.Int64
	active   atomic.Int64

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewStub starts a stub on a random loopback port. It is closed by t.Cleanup.
func NewStub(t testing.TB, handler Handler) *Stub {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("devicetest: listen: %v", err)
	}

	s := &Stub{
		ln:      ln,
		handler: handler,
		conns:   make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)

	return s
}

// Host returns the listen host.
func (s *Stub) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listen port.
func (s *Stub) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns the "host:port" listen address.
func (s *Stub) Addr() string {
	return s.ln.Addr().String()
}

// Lines returns a copy of the request lines received so far, without terminator.
func (s *Stub) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.lines)
}

// Accepted returns the number of accepted connections.
func (s *Stub) Accepted() int {
	return int(s.accepted.Load())
}

// Active returns the number of connections not yet closed by the client.
func (s *Stub) Active() int {
	return int(s.active.Load())
}

// Close stops the listener and drops all open connections.
func (s *Stub) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	_ = s.ln.Close()

	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Stub) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			_ = conn.Close()

			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.accepted.Add(1)
		s.active.Add(1)

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Stub) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()

		_ = conn.Close()
		s.active.Add(-1)
	}()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		s.lines = append(s.lines, line)
		s.mu.Unlock()

		reply := s.handler(line)
		if reply == "" {
			continue
		}

		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

// Fixed returns a handler that answers every request with reply.
func Fixed(reply string) Handler {
	return func(string) string { return reply }
}

// Silent returns a handler that never answers.
func Silent() Handler {
	return func(string) string { return "" }
}
