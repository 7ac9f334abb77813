package engine

import (
	"context"
	log "log/slog"
	"time"

	"github.com/sharedcode/strata"
)

// mirrorBufferSize bounds pending async mirror writes; overflow runs inline.
const mirrorBufferSize = 512

// Start launches the repeating cycle timer and the mirror worker. Calling
// Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.cancel != nil {
		return
	}
	cctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mirror, e.mirrorEG = strata.JobProcessor(cctx, mirrorBufferSize)
	go e.loop(cctx)
}

// Stop cancels the timer and waits for any in-flight cycle and pending mirror
// work to finish. Idempotent.
func (e *Engine) Stop() {
	e.mux.Lock()
	if e.cancel == nil {
		e.mux.Unlock()
		return
	}
	cancel := e.cancel
	done := e.done
	mirror := e.mirror
	eg := e.mirrorEG
	e.cancel = nil
	e.mirror = nil
	e.mirrorEG = nil
	e.mux.Unlock()

	cancel()
	<-done
	// Phases are idempotent across cycles, so waiting for the in-flight one
	// beats aborting it mid-phase.
	e.runMux.Lock()
	e.runMux.Unlock()

	close(mirror)
	if err := eg.Wait(); err != nil {
		log.Warn("mirror worker finished with error", "details", err)
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)
	interval := e.retention().MigrationInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.restart:
			next := e.retention().MigrationInterval
			if next != interval {
				interval = next
				ticker.Reset(interval)
			}
		case <-ticker.C:
			e.runCycle(ctx)
		}
	}
}

// runCycle runs one full migration + cleanup + drain pass. Phases are
// strictly sequential; the TryLock is the re-entrancy guard against a cycle
// outliving its interval.
func (e *Engine) runCycle(ctx context.Context) {
	if !e.runMux.TryLock() {
		log.Debug("previous cycle still running, skipping this tick")
		return
	}
	defer e.runMux.Unlock()

	var m MigrationMetrics
	var c CleanupMetrics
	var errs []PhaseError

	m.HotToWarmCount, errs = e.hotToWarm(ctx)
	m.Errors = append(m.Errors, errs...)
	m.WarmToColdCount, errs = e.warmToCold(ctx)
	m.Errors = append(m.Errors, errs...)
	m.QueueDrainedCount, errs = e.queue.drain(ctx)
	m.Errors = append(m.Errors, errs...)
	c.CleanedHotCount, errs = e.cleanupHot(ctx)
	c.Errors = append(c.Errors, errs...)
	c.CleanedWarmCount, errs = e.cleanupWarm(ctx)
	c.Errors = append(c.Errors, errs...)

	e.tel.accumulate(m, c)
	e.tel.publish(Snapshot{Migration: m, Cleanup: c, Timestamp: strata.NowMilli()})
}

// mirrorAsync hands fn to the mirror worker. When the engine is not started
// or the buffer is full, fn runs inline; the write happens either way.
func (e *Engine) mirrorAsync(fn func() error) {
	// Send under the lock so Stop can't close the channel mid-send.
	e.mux.Lock()
	if e.mirror != nil {
		select {
		case e.mirror <- fn:
			e.mux.Unlock()
			return
		default:
		}
	}
	e.mux.Unlock()
	fn()
}
