// Package runner drives a fixed-rate tick loop: the non-CLI scheduling
// primitive a process uses to call tick_inbound/tick_outbound (and any
// signal pacing) at a configured frame rate without accumulating drift.
package runner

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TickFunc is the user callback driven once per frame. A non-nil error
// stops the loop and is returned from Run.
type TickFunc func() error

// Loop paces calls to a TickFunc at a fixed frame rate: a coarse
// time.Sleep covers most of the remaining period, followed by a short
// busy-wait to close the gap precisely, since sleep/timer resolution on
// most OSes isn't tight enough to hit frame boundaries on its own.
type Loop struct {
	fps     int
	tick    TickFunc
	log     *zap.SugaredLogger
	stopped atomic.Bool
}

// New builds a Loop that calls tick fps times per second.
func New(fps int, tick TickFunc, log *zap.SugaredLogger) *Loop {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loop{fps: fps, tick: tick, log: log}
}

// Stop is safe to call from any goroutine; it flips an atomic flag the loop
// observes at the top of its next iteration, matching the spec's "stop()
// safe from any thread" requirement.
func (l *Loop) Stop() {
	l.stopped.Store(true)
}

// Run blocks, calling tick once per frame period, until ctx is canceled,
// Stop is called, or tick returns an error.
func (l *Loop) Run(ctx context.Context) error {
	period := time.Second / time.Duration(l.fps)
	const busyWaitWindow = 2 * time.Millisecond

	for {
		if l.stopped.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frameStart := time.Now()
		if err := l.tick(); err != nil {
			return err
		}

		deadline := frameStart.Add(period)
		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.log.Warnw("tick overran frame period", "fps", l.fps, "overrun", -remaining)
			continue
		}

		if sleepFor := remaining - busyWaitWindow; sleepFor > 0 {
			time.Sleep(sleepFor)
		}
		for time.Until(deadline) > 0 {
			// fine-grained busy-wait to close the gap sleep's resolution
			// can't guarantee.
		}
	}
}

// RunPaired runs two independently-paced loops (typically one driving
// tick_inbound on a reader-only reconciler, the other tick_outbound on a
// writer-only reconciler) concurrently, canceling both as soon as either
// one returns an error or ctx is done.
func RunPaired(ctx context.Context, a, b *Loop) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(ctx) })
	g.Go(func() error { return b.Run(ctx) })
	return g.Wait()
}
