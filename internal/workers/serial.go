// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSerialClosed is returned by Serial.Do after Close.
var ErrSerialClosed = errors.New("serial executor closed")

type serialJob struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Serial runs submitted functions one at a time on a single goroutine.
// Functions submitted through Do must not call Do on the same executor.
type Serial struct {
	jobs chan serialJob
	quit chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSerial starts the executor goroutine.
func NewSerial() *Serial {
	s := &Serial{
		jobs: make(chan serialJob),
		quit: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.loop()

	return s
}

func (s *Serial) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.quit:
			return
		case job := <-s.jobs:
			job.done <- s.run(job)
		}
	}
}

func (s *Serial) run(job serialJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serial job panicked: %v", r)
		}
	}()

	if err = job.ctx.Err(); err != nil {
		return err
	}
	return job.fn(job.ctx)
}

// Do runs fn on the executor and waits for its result. It returns ctx.Err()
// when ctx is cancelled before fn was scheduled.
func (s *Serial) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	job := serialJob{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrSerialClosed
	case s.jobs <- job:
	}

	return <-job.done
}

// Close stops the executor after the running job, if any, returns.
func (s *Serial) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	s.wg.Wait()
}
