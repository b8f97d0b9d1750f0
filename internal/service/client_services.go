// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"github.com/MKhiriev/go-cache-sync/internal/adapter"
	"github.com/MKhiriev/go-cache-sync/internal/config"
	"github.com/MKhiriev/go-cache-sync/internal/ledger"
	"github.com/MKhiriev/go-cache-sync/internal/push"
	"github.com/MKhiriev/go-cache-sync/internal/refresh"
	"github.com/MKhiriev/go-cache-sync/internal/store"
	"github.com/MKhiriev/go-cache-sync/internal/telemetry"
	"github.com/MKhiriev/go-cache-sync/internal/workers"
)

// ClientServices bundles the client-side sync components built on one
// local cache.
type ClientServices struct {
	Ledger      *ledger.Ledger
	SyncService ClientSyncService
	SyncJob     ClientSyncJob
}

// NewClientServices wires the ledger, the push engine and the refresh
// frontier over storages and serverAdapter. metrics may be nil.
func NewClientServices(storages *store.ClientStorages, serverAdapter adapter.ServerAdapter, cfg *config.ClientConfig, metrics *telemetry.SyncMetrics, providers ...refresh.QueryProvider) *ClientServices {
	l := ledger.New(storages.DB)
	pool := workers.NewPool(cfg.Workers.MaxConcurrentTransfers)

	pusher := push.NewEngine(l, serverAdapter, push.DefaultFilePolicy, metrics)
	frontier := refresh.NewFrontier(l, serverAdapter, pool, storages.FilesDir, metrics, providers...)
	syncSvc := NewClientSyncService(l, pusher, frontier, SyncOptionsFromConfig(cfg.Sync))

	return &ClientServices{
		Ledger:      l,
		SyncService: syncSvc,
		SyncJob:     NewClientSyncJob(syncSvc),
	}
}
