// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxTransfers is used when a pool is created with a non-positive limit.
const DefaultMaxTransfers = 4

// Pool bounds the number of concurrent transfers across every Group created
// from it.
type Pool struct {
	sem   *semaphore.Weighted
	limit int64
}

// NewPool creates a pool allowing at most limit concurrent tasks.
func NewPool(limit int) *Pool {
	if limit <= 0 {
		limit = DefaultMaxTransfers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit)), limit: int64(limit)}
}

// Limit returns the concurrency limit.
func (p *Pool) Limit() int {
	return int(p.limit)
}

// Group is a set of tasks started on a pool that can be waited for together.
type Group struct {
	pool *Pool
	eg   errgroup.Group
}

// Group starts a new task group on the pool.
func (p *Pool) Group() *Group {
	return &Group{pool: p}
}

// Go runs fn once a pool slot is free. If ctx is cancelled while waiting
// for a slot, fn is not run and the wait error is reported by Wait.
// One failing task does not cancel its siblings.
func (g *Group) Go(ctx context.Context, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if err := g.pool.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer g.pool.sem.Release(1)

		return fn(ctx)
	})
}

// Wait blocks until every task of the group returned and reports the first
// error.
func (g *Group) Wait() error {
	return g.eg.Wait()
}
