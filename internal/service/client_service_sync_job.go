// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/workers"
)

// DefaultSyncInterval is used by [ClientSyncJob.Start] for non-positive
// intervals.
const DefaultSyncInterval = 5 * time.Minute

type clientSyncJob struct {
	syncService ClientSyncService

	mu      sync.Mutex
	cancel  context.CancelFunc
	running *workers.Workers
}

// NewClientSyncJob creates a clientSyncJob that calls syncService.FullSync on a
// ticker. The job is idle until Start is called.
func NewClientSyncJob(syncService ClientSyncService) ClientSyncJob {
	return &clientSyncJob{syncService: syncService}
}

// Start implements ClientSyncJob. It stops any previously running job, then
// launches a background worker that calls FullSync every interval. The worker
// exits when ctx is cancelled or Stop is called.
func (j *clientSyncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	j.Stop()

	j.mu.Lock()
	defer j.mu.Unlock()

	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.running = workers.NewWorkers(&syncTicker{syncService: j.syncService, interval: interval})
	j.running.Run(jobCtx)
}

// Stop implements ClientSyncJob. It cancels the worker's context and blocks
// until it has fully exited. Safe to call when the job is not running.
func (j *clientSyncJob) Stop() {
	j.mu.Lock()
	cancel, running := j.cancel, j.running
	j.cancel, j.running = nil, nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if running != nil {
		running.Wait()
	}
}

// syncTicker is the [workers.Worker] behind clientSyncJob.
type syncTicker struct {
	syncService ClientSyncService
	interval    time.Duration
}

func (t *syncTicker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sync(ctx)
		}
	}
}

func (t *syncTicker) sync(ctx context.Context) {
	log := logger.FromContext(ctx)

	result, err := t.syncService.FullSync(ctx, nil)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		log.Debug().Str("func", "syncTicker.sync").Msg("skipping tick, sync in progress")
	case err != nil && ctx.Err() == nil:
		log.Warn().Err(err).Str("func", "syncTicker.sync").Msg("periodic sync failed")
	case !result.OK():
		log.Warn().Str("func", "syncTicker.sync").Int("failures", len(result.Failures)).Msg("periodic sync finished with failures")
	}
}
