// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-cache-sync/internal/config"
	"github.com/MKhiriev/go-cache-sync/internal/ledger"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/push"
	"github.com/MKhiriev/go-cache-sync/internal/refresh"
	"github.com/MKhiriev/go-cache-sync/models"
)

// SyncOptions are the run settings shared by every sync call.
type SyncOptions struct {
	MaxBatchSize      int
	MaxBatchInstances int
	FailureStrategy   models.FailureStrategy
	ProgressThrottle  time.Duration
}

// SyncOptionsFromConfig converts the validated client sync settings.
func SyncOptionsFromConfig(cfg config.ClientSync) SyncOptions {
	strategy := models.FailureContinue
	if strings.EqualFold(cfg.FailureStrategy, "stop") {
		strategy = models.FailureStop
	}

	return SyncOptions{
		MaxBatchSize:      cfg.MaxBatchSize,
		MaxBatchInstances: cfg.MaxBatchInstances,
		FailureStrategy:   strategy,
		ProgressThrottle:  cfg.ProgressThrottle,
	}
}

type clientSyncService struct {
	ledger    *ledger.Ledger
	pusher    Pusher
	refresher Refresher
	opts      SyncOptions

	running sync.Mutex
}

// NewClientSyncService creates a ClientSyncService running pushes through
// pusher and refreshes through refresher. Persistent roots are read from l.
func NewClientSyncService(l *ledger.Ledger, pusher Pusher, refresher Refresher, opts SyncOptions) ClientSyncService {
	return &clientSyncService{
		ledger:    l,
		pusher:    pusher,
		refresher: refresher,
		opts:      opts,
	}
}

func (s *clientSyncService) Push(ctx context.Context, sink models.ProgressSink) (models.SyncResult, error) {
	if !s.running.TryLock() {
		return models.SyncResult{}, ErrSyncInProgress
	}
	defer s.running.Unlock()

	return s.push(ctx, sink)
}

func (s *clientSyncService) Refresh(ctx context.Context, req refresh.Request, sink models.ProgressSink) (models.SyncResult, error) {
	if !s.running.TryLock() {
		return models.SyncResult{}, ErrSyncInProgress
	}
	defer s.running.Unlock()

	return s.refresher.Refresh(ctx, req, s.refreshOptions(sink))
}

func (s *clientSyncService) CacheFiles(ctx context.Context, keys []models.EntityKey, tokens map[int64]*models.FileToken, sink models.ProgressSink) (models.SyncResult, error) {
	if !s.running.TryLock() {
		return models.SyncResult{}, ErrSyncInProgress
	}
	defer s.running.Unlock()

	return s.refresher.CacheFiles(ctx, keys, tokens, s.refreshOptions(sink))
}

func (s *clientSyncService) FullSync(ctx context.Context, sink models.ProgressSink) (models.SyncResult, error) {
	if !s.running.TryLock() {
		return models.SyncResult{}, ErrSyncInProgress
	}
	defer s.running.Unlock()

	log := logger.FromContext(ctx)

	result, err := s.push(ctx, sink)
	if err != nil {
		log.Err(err).Str("func", "clientSyncService.FullSync").Msg("push stopped")
		return result, fmt.Errorf("push: %w", err)
	}

	roots, err := s.persistentRoots(ctx)
	if err != nil {
		log.Err(err).Str("func", "clientSyncService.FullSync").Msg("failed to read persistent roots")
		return result, fmt.Errorf("read persistent roots: %w", err)
	}
	if len(roots) == 0 {
		return result, nil
	}

	refreshed, err := s.refresher.Refresh(ctx, refresh.Request{Seeds: roots}, s.refreshOptions(sink))
	result.Merge(refreshed)
	if err != nil {
		log.Err(err).Str("func", "clientSyncService.FullSync").Msg("refresh stopped")
		return result, fmt.Errorf("refresh: %w", err)
	}

	log.Info().
		Str("func", "clientSyncService.FullSync").
		Int("roots", len(roots)).
		Int("failures", len(result.Failures)).
		Msg("full sync finished")
	return result, nil
}

func (s *clientSyncService) push(ctx context.Context, sink models.ProgressSink) (models.SyncResult, error) {
	return s.pusher.Push(ctx, push.Options{
		MaxBatchSize:      s.opts.MaxBatchSize,
		MaxBatchInstances: s.opts.MaxBatchInstances,
		FailureStrategy:   s.opts.FailureStrategy,
		Progress:          sink,
		ProgressThrottle:  s.opts.ProgressThrottle,
	})
}

func (s *clientSyncService) refreshOptions(sink models.ProgressSink) refresh.Options {
	return refresh.Options{Progress: sink, ProgressThrottle: s.opts.ProgressThrottle}
}

func (s *clientSyncService) persistentRoots(ctx context.Context) ([]models.EntityKey, error) {
	var roots []models.EntityKey
	err := s.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		insts, err := tx.PersistentInstances(ctx)
		if err != nil {
			return err
		}
		for _, inst := range insts {
			roots = append(roots, inst.Key)
		}
		return nil
	})
	return roots, err
}
