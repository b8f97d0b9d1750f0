// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "strings"

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
//
// Currently a no-op placeholder; the client view carries the real rules.
func (cfg *StructuredConfig) validate() error {
	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.Storage.DB.DSN == "" || cfg.Storage.Files.Dir == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Workers.SyncInterval <= 0 || cfg.Workers.MaxConcurrentTransfers < 0 {
		return ErrInvalidWorkerConfigs
	}

	if cfg.Sync.MaxBatchSize <= 0 || cfg.Sync.MaxBatchInstances <= 0 || cfg.Sync.ProgressThrottle < 0 {
		return ErrInvalidSyncConfigs
	}

	switch strings.ToLower(cfg.Sync.FailureStrategy) {
	case "stop", "continue":
	default:
		return ErrInvalidSyncConfigs
	}

	return nil
}
