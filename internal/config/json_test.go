// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_AllGroups(t *testing.T) {
	path := writeConfigFile(t, `{
		"app": {"hash_key": "security_hash", "version": "1.0.0"},
		"adapter": {
			"http_address": "https://store.example.com/api",
			"request_timeout": "30s",
			"token": "bearer",
			"schema": "Plants"
		},
		"workers": {"sync_interval": "10m", "max_concurrent_transfers": 3},
		"sync": {
			"max_batch_size": 700,
			"max_batch_instances": 3,
			"failure_strategy": "continue",
			"progress_throttle": "250ms"
		},
		"storage": {"db": {"dsn": "/var/cache.db"}, "files": {"dir": "/var/files"}}
	}`)

	cfg, err := parseJSON(path)
	require.NoError(t, err)

	assert.Equal(t, App{HashKey: "security_hash", Version: "1.0.0"}, cfg.App)
	assert.Equal(t, Adapter{
		HTTPAddress:    "https://store.example.com/api",
		RequestTimeout: 30 * time.Second,
		Token:          "bearer",
		Schema:         "Plants",
	}, cfg.Adapter)
	assert.Equal(t, Workers{SyncInterval: 10 * time.Minute, MaxConcurrentTransfers: 3}, cfg.Workers)
	assert.Equal(t, Sync{
		MaxBatchSize:      700,
		MaxBatchInstances: 3,
		FailureStrategy:   "continue",
		ProgressThrottle:  250 * time.Millisecond,
	}, cfg.Sync)
	assert.Equal(t, Storage{DB: DB{DSN: "/var/cache.db"}, Files: Files{Dir: "/var/files"}}, cfg.Storage)
}

func TestParseJSON_PartialObject(t *testing.T) {
	path := writeConfigFile(t, `{"sync": {"failure_strategy": "stop"}}`)

	cfg, err := parseJSON(path)
	require.NoError(t, err)

	assert.Equal(t, StructuredConfig{Sync: Sync{FailureStrategy: "stop"}}, *cfg)
}

func TestParseJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.json") },
			wantErr: "error reading a json file",
		},
		{
			name:    "not json",
			path:    func(t *testing.T) string { return writeConfigFile(t, `{ this is not json }`) },
			wantErr: "error decoding json configs",
		},
		{
			name:    "bad duration",
			path:    func(t *testing.T) string { return writeConfigFile(t, `{"sync": {"progress_throttle": "soon"}}`) },
			wantErr: "error decoding json configs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseJSON(tt.path(t))

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{name: "string", raw: `"1m30s"`, want: 90 * time.Second},
		{name: "nanoseconds", raw: `1000000000`, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			require.NoError(t, d.UnmarshalJSON([]byte(tt.raw)))
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}
