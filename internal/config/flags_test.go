// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerAddress_Set(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "host and port", input: "localhost:8080", want: "localhost:8080"},
		{name: "ip and port", input: "127.0.0.1:9090", want: "127.0.0.1:9090"},
		{name: "dns name", input: "store.example.com:443", want: "store.example.com:443"},
		{name: "https url with prefix", input: "https://store.example.com/sync", want: "https://store.example.com/sync"},
		{name: "surrounding spaces", input: "  localhost:8080 ", want: "localhost:8080"},
		{name: "empty", input: "", wantErr: "empty server address"},
		{name: "unsupported scheme", input: "ftp://store.example.com", wantErr: "unsupported scheme"},
		{name: "no host", input: ":8080", wantErr: "no host"},
		{name: "zero port", input: "localhost:0", wantErr: "out of range"},
		{name: "port too large", input: "localhost:70000", wantErr: "out of range"},
		{name: "non-numeric port", input: "localhost:abc", wantErr: "invalid server address"},
		{name: "path without scheme", input: "localhost:8080/api", wantErr: "host:port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var addr ServerAddress
			err := addr.Set(tt.input)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Empty(t, addr.String())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestServerAddress_ZeroValue(t *testing.T) {
	var addr ServerAddress
	assert.Equal(t, "", addr.String())
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		validate func(t *testing.T, cfg *StructuredConfig)
	}{
		{
			name: "all flags set",
			args: []string{
				"-a", "localhost:8080",
				"-d", "/var/cache.db",
				"-f", "/var/files",
				"-c", "/path/to/config.json",
				"-hash-key", "security_hash",
				"-token", "bearer",
				"-schema", "Plant",
				"-request-timeout", "30s",
				"-sync-interval", "10m",
				"-max-transfers", "6",
				"-max-batch-size", "700",
				"-max-batch-instances", "3",
				"-failure-strategy", "stop",
				"-progress-throttle", "50ms",
			},
			validate: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, "localhost:8080", cfg.Adapter.HTTPAddress)
				assert.Equal(t, "/var/cache.db", cfg.Storage.DB.DSN)
				assert.Equal(t, "/var/files", cfg.Storage.Files.Dir)
				assert.Equal(t, "/path/to/config.json", cfg.JSONFilePath)
				assert.Equal(t, "security_hash", cfg.App.HashKey)
				assert.Equal(t, "bearer", cfg.Adapter.Token)
				assert.Equal(t, "Plant", cfg.Adapter.Schema)
				assert.Equal(t, 30*time.Second, cfg.Adapter.RequestTimeout)
				assert.Equal(t, 10*time.Minute, cfg.Workers.SyncInterval)
				assert.Equal(t, 6, cfg.Workers.MaxConcurrentTransfers)
				assert.Equal(t, 700, cfg.Sync.MaxBatchSize)
				assert.Equal(t, 3, cfg.Sync.MaxBatchInstances)
				assert.Equal(t, "stop", cfg.Sync.FailureStrategy)
				assert.Equal(t, 50*time.Millisecond, cfg.Sync.ProgressThrottle)
			},
		},
		{
			name: "url address",
			args: []string{"-a", "https://store.example.com/api"},
			validate: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, "https://store.example.com/api", cfg.Adapter.HTTPAddress)
			},
		},
		{
			name: "config alias flag",
			args: []string{
				"-config", "/path/to/config.json",
			},
			validate: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, "/path/to/config.json", cfg.JSONFilePath)
			},
		},
		{
			name: "partial flags",
			args: []string{
				"-a", "127.0.0.1:3000",
				"-hash-key", "secret",
			},
			validate: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, "127.0.0.1:3000", cfg.Adapter.HTTPAddress)
				assert.Equal(t, "secret", cfg.App.HashKey)
				assert.Empty(t, cfg.Storage.DB.DSN)
				assert.Zero(t, cfg.Sync.MaxBatchSize)
			},
		},
		{
			name: "no flags",
			args: []string{},
			validate: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, StructuredConfig{}, *cfg)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)

			cfg := ParseFlags()
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}
