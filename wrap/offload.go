/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wrap

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// offloadPool bounds how many large-segment seal operations may run
// concurrently, independent of how many segments are merely pending
// write — the seal/hash CPU work and the in-order write/chain-fold are
// two different bottlenecks and each gets its own bound.
type offloadPool struct {
	sem *semaphore.Weighted
}

func newOffloadPool(capacity int64) *offloadPool {
	return &offloadPool{sem: semaphore.NewWeighted(capacity)}
}

// run acquires a slot, invokes fn in a new goroutine, and releases the
// slot when fn returns. It blocks the caller only long enough to
// acquire the slot; fn itself runs concurrently with the caller.
func (p *offloadPool) run(ctx context.Context, fn func() sealOutcome, out chan<- sealOutcome) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer p.sem.Release(1)
		out <- fn()
	}()
	return nil
}
