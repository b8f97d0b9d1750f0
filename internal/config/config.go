// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// go-cache-sync client. It aggregates all sub-configurations and is populated
// by merging values from environment variables, command-line flags, and an
// optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings.
	App App `envPrefix:"APP_"`

	// Storage holds the local cache database and file cache settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Adapter holds the remote object store connection settings.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Workers holds background job and transfer pool settings.
	Workers Workers `envPrefix:"WORKERS_"`

	// Sync holds push engine batching settings.
	Sync Sync `envPrefix:"SYNC_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// HashKey is the HMAC key used for the HashSHA256 request integrity
	// header. Empty disables the header.
	// Env: APP_HASH_KEY
	HashKey string `env:"HASH_KEY"`

	// Version is the semantic version string of the running client.
	// Env: APP_VERSION
	Version string `env:"VERSION"`
}

// Storage groups the configuration for the local cache.
type Storage struct {
	// DB holds the SQLite cache database settings.
	DB DB `envPrefix:"DB_"`

	// Files holds the downloaded file cache settings.
	Files Files `envPrefix:"FILES_"`
}

// DB holds connection settings for the local cache database.
type DB struct {
	// DSN is the SQLite database file path (":memory:" in tests).
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Files holds file-system settings for downloaded files.
type Files struct {
	// Dir is the directory where downloaded files are kept.
	// Env: STORAGE_FILES_DIR
	Dir string `env:"DIR"`
}

// Adapter holds the remote object store connection settings.
type Adapter struct {
	// HTTPAddress is the server base address, with or without scheme.
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the maximum duration of one outbound request.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// Token is the bearer token sent with every request.
	// Env: ADAPTER_TOKEN
	Token string `env:"TOKEN"`

	// Schema is the default remote schema name.
	// Env: ADAPTER_SCHEMA
	Schema string `env:"SCHEMA"`
}

// Workers holds configuration for background processing.
type Workers struct {
	// SyncInterval defines how often the periodic sync job runs.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`

	// MaxConcurrentTransfers bounds parallel file transfers.
	// Env: WORKERS_MAX_CONCURRENT_TRANSFERS
	MaxConcurrentTransfers int `env:"MAX_CONCURRENT_TRANSFERS"`
}

// Sync holds push engine settings.
type Sync struct {
	// MaxBatchSize is the serialized size budget of one changeset in bytes.
	// Env: SYNC_MAX_BATCH_SIZE
	MaxBatchSize int `env:"MAX_BATCH_SIZE"`

	// MaxBatchInstances is the instance count budget of one changeset.
	// Env: SYNC_MAX_BATCH_INSTANCES
	MaxBatchInstances int `env:"MAX_BATCH_INSTANCES"`

	// FailureStrategy is "stop" or "continue".
	// Env: SYNC_FAILURE_STRATEGY
	FailureStrategy string `env:"FAILURE_STRATEGY"`

	// ProgressThrottle is the minimum interval between raw byte progress
	// callbacks. Zero reports every event.
	// Env: SYNC_PROGRESS_THROTTLE
	ProgressThrottle time.Duration `env:"PROGRESS_THROTTLE"`
}

// GetStructuredConfig loads, merges, and validates the configuration. A
// field keeps the first non-zero value found in this order:
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
