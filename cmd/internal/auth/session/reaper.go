package session

import (
	"context"
	"time"
	"weak"
)

// sweepFunc removes every session of target that expired at or before now
// and reports how many were removed.
type sweepFunc[T any] func(ctx context.Context, target *T, now time.Time) (int, error)

// reaper is the handle to a background sweep goroutine.
//
// The goroutine only holds a weak pointer to its target, so it never keeps a
// registry alive: once the target is collected the next tick finds nothing
// to sweep and the goroutine exits.
type reaper struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startReaper[T any](target *T, interval time.Duration, o options, sweep sweepFunc[T]) *reaper {
	ctx, cancel := context.WithCancel(context.Background())
	r := &reaper{cancel: cancel, done: make(chan struct{})}
	go runReaper(ctx, weak.Make(target), interval, o, sweep, r.done)
	return r
}

func runReaper[T any](ctx context.Context, wp weak.Pointer[T], interval time.Duration, o options, sweep sweepFunc[T], done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Debug("session.reaper.stop", "reason", "closed")
			return
		case <-ticker.C:
		}

		if !reapOnce(ctx, wp, o, sweep) {
			return
		}
	}
}

// reapOnce runs a single sweep. It returns false when the reaper should exit.
// The strong pointer obtained from wp must not outlive this call.
func reapOnce[T any](ctx context.Context, wp weak.Pointer[T], o options, sweep sweepFunc[T]) bool {
	target := wp.Value()
	if target == nil {
		o.logger.Debug("session.reaper.stop", "reason", "registry_released")
		return false
	}

	now := o.clock.Now()
	start := time.Now()
	removed, err := sweep(ctx, target, now)
	took := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		o.logger.Warn("session.reaper.sweep.fail", "err", err)
		return true
	}

	if o.observer != nil {
		o.observer.ObserveSweep(removed, took)
	}
	if removed > 0 {
		o.logger.Debug("session.reaper.sweep", "removed", removed, "duration_ms", took.Milliseconds())
	}
	return true
}

// stop cancels the goroutine and waits for it to exit. Safe on a nil reaper.
func (r *reaper) stop() {
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}
