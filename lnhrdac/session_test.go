package lnhrdac

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BASPI/LNHRDACII-tools/logger"
)

type pipeSession struct {
	*session
	server net.Conn
	rec    *sleepRecorder
	dials  int
}

func newPipeSession(t *testing.T) *pipeSession {
	t.Helper()

	cfg, err := NewConfig("127.0.0.1", DefaultPort,
		WithReadTimeout(200*time.Millisecond),
		WithWriteTimeout(200*time.Millisecond),
	)
	require.NoError(t, err)

	rec := &sleepRecorder{}
	gov := newGovernor(cfg)
	gov.sleep = rec.sleep

	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	ps := &pipeSession{
		session: newSession(cfg, logger.GetLogger(), &Metrics{}, gov),
		server:  server,
		rec:     rec,
	}
	ps.dial = func(context.Context, string, time.Duration) (net.Conn, error) {
		ps.dials++
		return client, nil
	}

	return ps
}

// serveOnce reads one request line from the pipe and answers with reply.
func (ps *pipeSession) serveOnce(t *testing.T, reply string) <-chan string {
	t.Helper()

	lines := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(ps.server).ReadString('\n')
		if err != nil {
			close(lines)
			return
		}
		lines <- line
		if reply != "" {
			_, _ = ps.server.Write([]byte(reply))
		}
	}()

	return lines
}

func TestSessionState_String(t *testing.T) {
	require.Equal(t, "disconnected", disconnectedState.String())
	require.Equal(t, "connected", connectedState.String())
	require.Equal(t, "unknown", sessionState(9).String())
}

func TestSession_EnsureConnected(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	ps := newPipeSession(t)
	require.False(ps.isConnected())

	require.NoError(ps.ensureConnected(ctx))
	require.NoError(ps.ensureConnected(ctx))
	require.True(ps.isConnected())
	require.Equal(1, ps.dials)
	require.EqualValues(1, ps.metrics.ConnOpenCount.Load())
}

func TestSession_DialError(t *testing.T) {
	require := require.New(t)

	ps := newPipeSession(t)
	ps.dial = func(context.Context, string, time.Duration) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	err := ps.ensureConnected(context.Background())
	require.ErrorIs(err, ErrConnection)
	require.ErrorContains(err, "connection refused")
	require.False(ps.isConnected())
	require.EqualValues(1, ps.metrics.ConnErrCount.Load())
}

func TestSession_Release(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	ps := newPipeSession(t)

	// disconnected: nothing to release, no spacing
	require.NoError(ps.release(ctx, false))
	require.Empty(ps.rec.recorded())

	require.NoError(ps.ensureConnected(ctx))

	require.NoError(ps.release(ctx, true))
	require.True(ps.isConnected())
	require.Empty(ps.rec.recorded())

	require.NoError(ps.release(ctx, false))
	require.False(ps.isConnected())
	require.Equal([]time.Duration{DefaultReleaseDelay}, ps.rec.recorded())
	require.EqualValues(1, ps.metrics.ConnCloseCount.Load())

	require.NoError(ps.release(ctx, false))
	require.Len(ps.rec.recorded(), 1)
}

func TestSession_ReleaseBrokenIgnoresHold(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	ps := newPipeSession(t)
	require.NoError(ps.ensureConnected(ctx))

	ps.markBroken()
	require.NoError(ps.release(ctx, true))
	require.False(ps.isConnected())
}

func TestSession_ReleaseWithCancelledContext(t *testing.T) {
	require := require.New(t)

	ps := newPipeSession(t)
	require.NoError(ps.ensureConnected(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(ps.release(ctx, false))
	require.Equal([]time.Duration{DefaultReleaseDelay}, ps.rec.recorded())
}

func TestSession_WriteReadFrame(t *testing.T) {
	require := require.New(t)

	ps := newPipeSession(t)
	require.NoError(ps.ensureConnected(context.Background()))

	// leading LF left over from a previous multi-line frame is skipped
	lines := ps.serveOnce(t, "\nON\r\n")

	require.NoError(ps.writeLine("1 s?"))
	require.Equal("1 s?\r\n", <-lines)

	raw, err := ps.readFrame(lineTerminator)
	require.NoError(err)
	require.Equal("ON\r\n", string(raw))
}

func TestSession_ReadMultiLineFrame(t *testing.T) {
	require := require.New(t)

	ps := newPipeSession(t)
	require.NoError(ps.ensureConnected(context.Background()))

	lines := ps.serveOnce(t, "line 1\r\nline 2?\r\n\r\r\n")
	require.NoError(ps.writeLine("idn?"))
	<-lines

	raw, err := ps.readFrame(multiLineTerminator)
	require.NoError(err)
	require.Equal("line 1\r\nline 2?\r\n\r\r", string(raw))
}

func TestSession_ReadFrameTimeout(t *testing.T) {
	require := require.New(t)

	ps := newPipeSession(t)
	require.NoError(ps.ensureConnected(context.Background()))

	lines := ps.serveOnce(t, "0")
	require.NoError(ps.writeLine("1 on"))
	<-lines

	raw, err := ps.readFrame(lineTerminator)
	require.ErrorIs(err, os.ErrDeadlineExceeded)
	require.Equal("0", string(raw))
	require.True(ps.broken)
}

func TestSession_NotConnected(t *testing.T) {
	ps := newPipeSession(t)

	require.ErrorIs(t, ps.writeLine("1 on"), errNotConnected)

	_, err := ps.readFrame(lineTerminator)
	require.ErrorIs(t, err, errNotConnected)
}
