// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"time"

	"github.com/MKhiriev/go-cache-sync/internal/push"
	"github.com/MKhiriev/go-cache-sync/internal/refresh"
	"github.com/MKhiriev/go-cache-sync/models"
)

// Pusher uploads pending local changes. Implemented by [push.Engine].
type Pusher interface {
	Push(ctx context.Context, opts push.Options) (models.SyncResult, error)
}

// Refresher re-validates cached instances and downloads their files.
// Implemented by [refresh.Frontier].
type Refresher interface {
	Refresh(ctx context.Context, req refresh.Request, opts refresh.Options) (models.SyncResult, error)
	CacheFiles(ctx context.Context, keys []models.EntityKey, tokens map[int64]*models.FileToken, opts refresh.Options) (models.SyncResult, error)
}

// ClientSyncService defines the client-side contract for synchronising the
// local cache with the remote object store.
//
// Only one run is active at a time; a call made while another run is in
// progress returns [ErrSyncInProgress] without doing anything. Every method
// accepts a progress sink, which may be nil.
type ClientSyncService interface {
	// Push uploads every ready pending change.
	Push(ctx context.Context, sink models.ProgressSink) (models.SyncResult, error)

	// Refresh re-validates the given seeds and queries and expands them
	// through the registered query providers.
	Refresh(ctx context.Context, req refresh.Request, sink models.ProgressSink) (models.SyncResult, error)

	// CacheFiles downloads the files of the given instances. tokens maps a
	// local id to the token that may cancel that file.
	CacheFiles(ctx context.Context, keys []models.EntityKey, tokens map[int64]*models.FileToken, sink models.ProgressSink) (models.SyncResult, error)

	// FullSync pushes pending changes and then refreshes every persistent
	// root. The refresh is skipped when the push stopped with an error.
	FullSync(ctx context.Context, sink models.ProgressSink) (models.SyncResult, error)
}

// ClientSyncJob defines the contract for a background worker that
// periodically calls FullSync.
type ClientSyncJob interface {
	// Start launches the background sync goroutine. It syncs every interval,
	// defaulting to 5 minutes if interval is zero or negative. Any previously
	// running job is stopped before the new one begins.
	Start(ctx context.Context, interval time.Duration)

	// Stop signals the background goroutine to exit and blocks until it has
	// fully terminated.
	Stop()
}
