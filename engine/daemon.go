// ABOUTME: Background daemon loop with independent push and pull timers
// ABOUTME: Each timer is single-flighted against itself, never against the other
package engine

import (
	"context"
	"errors"
	"log"
	"time"
)

// Run drives the two sync timers until the context is cancelled. The
// push drain and the pull reconciliation run on independent tickers and
// may overlap each other; each guards only against overlapping itself.
// The first drain runs immediately rather than waiting a full interval.
func (e *Engine) Run(ctx context.Context) {
	pushTicker := time.NewTicker(e.pushInterval)
	defer pushTicker.Stop()
	pullTicker := time.NewTicker(e.pullInterval)
	defer pullTicker.Stop()

	log.Printf("sync: daemon started (push %s, pull %s)", e.pushInterval, e.pullInterval)

	e.drainTick(ctx)
	e.reconcileTick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("sync: daemon stopping")
			return
		case <-pushTicker.C:
			e.drainTick(ctx)
		case <-pullTicker.C:
			e.reconcileTick(ctx)
		}
	}
}

func (e *Engine) drainTick(ctx context.Context) {
	if !e.Online() {
		return
	}
	result, err := e.Drain(ctx)
	if errors.Is(err, ErrDrainInProgress) {
		return
	}
	if err != nil {
		log.Printf("sync: drain failed: %v", err)
		return
	}
	if result.Processed > 0 || result.Failed > 0 {
		log.Printf("sync: drained queue: %d processed, %d failed", result.Processed, result.Failed)
	}
}

func (e *Engine) reconcileTick(ctx context.Context) {
	if !e.Online() {
		return
	}
	if _, err := e.Reconcile(ctx); err != nil && !errors.Is(err, ErrReconcileInProgress) {
		log.Printf("sync: reconciliation failed: %v", err)
	}
}
