package lnhrdac

import (
	"context"
	"time"

	"github.com/BASPI/LNHRDACII-tools/internal/pool"
)

type sleepFunc func(ctx context.Context, d time.Duration) error

// governor enforces the fixed delays the device needs for its internal
// synchronisation. The delays are minimums, there is no backoff.
type governor struct {
	cfg   *Config
	sleep sleepFunc
}

func newGovernor(cfg *Config) *governor {
	return &governor{cfg: cfg, sleep: pool.Sleep}
}

// settle applies the delay required after an exchange of the given kind and class.
//
//   - control command or control/memory/transform query: ControlDelay
//   - control memory write command: ControlDelay + MemoryWriteDelay
func (g *governor) settle(ctx context.Context, kind Kind, class Class) error {
	if !class.NeedsSettling() {
		return nil
	}

	if err := g.sleep(ctx, g.cfg.controlDelay); err != nil {
		return err
	}

	if kind == KindCommand && class == ClassControlWrite {
		return g.sleep(ctx, g.cfg.memoryWriteDelay)
	}

	return nil
}

// afterRelease applies the minimum spacing between two transactions.
func (g *governor) afterRelease(ctx context.Context) error {
	return g.sleep(ctx, g.cfg.releaseDelay)
}
