// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"time"
)

// Defaults applied by [GetClientConfig] to unset values.
const (
	DefaultRequestTimeout    = 30 * time.Second
	DefaultSyncInterval      = 5 * time.Minute
	DefaultMaxTransfers      = 4
	DefaultMaxBatchSize      = 2 * 1024 * 1024
	DefaultMaxBatchInstances = 1000
	DefaultFailureStrategy   = "continue"
	DefaultSchema            = "Contents"
)

// ClientApp holds client-side application settings.
type ClientApp struct {
	// HashKey is the HMAC key used for payload integrity headers.
	HashKey string
	// Version is reported in the user agent.
	Version string
}

// ClientAdapter holds network settings used by the client transport layer.
type ClientAdapter struct {
	HTTPAddress    string
	RequestTimeout time.Duration
	Token          string
	Schema         string
}

// ClientDB contains local database connection settings.
type ClientDB struct {
	// DSN is the SQLite connection string.
	DSN string
}

// ClientFiles contains the downloaded file cache settings.
type ClientFiles struct {
	Dir string
}

// ClientStorage groups client storage backend settings.
type ClientStorage struct {
	DB    ClientDB
	Files ClientFiles
}

// ClientWorkers contains background worker settings.
type ClientWorkers struct {
	// SyncInterval defines how often the periodic sync runs.
	SyncInterval time.Duration
	// MaxConcurrentTransfers bounds parallel file transfers.
	MaxConcurrentTransfers int
}

// ClientSync contains push engine settings.
type ClientSync struct {
	MaxBatchSize      int
	MaxBatchInstances int
	FailureStrategy   string
	ProgressThrottle  time.Duration
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	App     ClientApp
	Adapter ClientAdapter
	Storage ClientStorage
	Workers ClientWorkers
	Sync    ClientSync
}

// GetClientConfig builds and validates a client-specific config view from the
// merged structured configuration.
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := newClientConfig(cfg)
	return clientCfg, clientCfg.validate()
}

func newClientConfig(cfg *StructuredConfig) *ClientConfig {
	clientCfg := &ClientConfig{
		App: ClientApp{
			HashKey: cfg.App.HashKey,
			Version: cfg.App.Version,
		},
		Adapter: ClientAdapter{
			HTTPAddress:    cfg.Adapter.HTTPAddress,
			RequestTimeout: cfg.Adapter.RequestTimeout,
			Token:          cfg.Adapter.Token,
			Schema:         cfg.Adapter.Schema,
		},
		Storage: ClientStorage{
			DB:    ClientDB{DSN: cfg.Storage.DB.DSN},
			Files: ClientFiles{Dir: cfg.Storage.Files.Dir},
		},
		Workers: ClientWorkers{
			SyncInterval:           cfg.Workers.SyncInterval,
			MaxConcurrentTransfers: cfg.Workers.MaxConcurrentTransfers,
		},
		Sync: ClientSync{
			MaxBatchSize:      cfg.Sync.MaxBatchSize,
			MaxBatchInstances: cfg.Sync.MaxBatchInstances,
			FailureStrategy:   cfg.Sync.FailureStrategy,
			ProgressThrottle:  cfg.Sync.ProgressThrottle,
		},
	}
	clientCfg.applyDefaults()

	return clientCfg
}

func (cfg *ClientConfig) applyDefaults() {
	if cfg.Adapter.RequestTimeout == 0 {
		cfg.Adapter.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Adapter.Schema == "" {
		cfg.Adapter.Schema = DefaultSchema
	}
	if cfg.Workers.SyncInterval == 0 {
		cfg.Workers.SyncInterval = DefaultSyncInterval
	}
	if cfg.Workers.MaxConcurrentTransfers == 0 {
		cfg.Workers.MaxConcurrentTransfers = DefaultMaxTransfers
	}
	if cfg.Sync.MaxBatchSize == 0 {
		cfg.Sync.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Sync.MaxBatchInstances == 0 {
		cfg.Sync.MaxBatchInstances = DefaultMaxBatchInstances
	}
	if cfg.Sync.FailureStrategy == "" {
		cfg.Sync.FailureStrategy = DefaultFailureStrategy
	}
}
