package lnhrdac

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// sleepRecorder replaces the governor sleep and records the requested delays.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()

	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)

	return out
}

func (r *sleepRecorder) total() time.Duration {
	var sum time.Duration
	for _, d := range r.recorded() {
		sum += d
	}

	return sum
}

func newTestGovernor(t *testing.T) (*governor, *sleepRecorder) {
	cfg, err := NewConfig("127.0.0.1", 23)
	require.NoError(t, err)

	rec := &sleepRecorder{}
	g := newGovernor(cfg)
	g.sleep = rec.sleep

	return g, rec
}

func TestGovernor_Settle(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		kind  Kind
		class Class
		want  []time.Duration
	}{
		{"Plain Command", KindCommand, ClassPlain, nil},
		{"Control Command", KindCommand, ClassControl, []time.Duration{DefaultControlDelay}},
		{"Control Write", KindCommand, ClassControlWrite, []time.Duration{DefaultControlDelay, DefaultMemoryWriteDelay}},
		{"Plain Query", KindQuery, ClassPlain, nil},
		{"Control Query", KindQuery, ClassControl, []time.Duration{DefaultControlDelay}},
		{"Memory Query", KindQuery, ClassMemory, []time.Duration{DefaultControlDelay}},
		{"Transform Query", KindQueryExpectAnswer, ClassTransform, []time.Duration{DefaultControlDelay}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, rec := newTestGovernor(t)
			require.NoError(t, g.settle(ctx, tt.kind, tt.class))
			require.Equal(t, tt.want, rec.delays)
		})
	}
}

func TestGovernor_AfterRelease(t *testing.T) {
	g, rec := newTestGovernor(t)

	require.NoError(t, g.afterRelease(context.Background()))
	require.Equal(t, []time.Duration{DefaultReleaseDelay}, rec.recorded())
}

func TestGovernor_CancelledContext(t *testing.T) {
	g, rec := newTestGovernor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.settle(ctx, KindCommand, ClassControlWrite)
	require.ErrorIs(t, err, context.Canceled)
	// the memory write delay is not attempted once the first sleep failed
	require.Equal(t, []time.Duration{DefaultControlDelay}, rec.recorded())
}
