// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ServerAddress is the -a flag value: the remote store base address.
type ServerAddress struct {
	URL  *url.URL
	bare bool
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a server address, host:port or http(s)://host[:port][/prefix]
//	-d cache database DSN
//	-f downloaded file cache directory
//	-c/-config json file path with configs
//	-hash-key request integrity hash key
//	-token bearer token
//	-schema default remote schema
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-sync-interval periodic sync interval (e.g., "5m")
//	-max-transfers max concurrent file transfers
//	-max-batch-size changeset size budget in bytes
//	-max-batch-instances changeset instance budget
//	-failure-strategy "stop" or "continue"
//	-progress-throttle min interval between byte progress callbacks
func ParseFlags() *StructuredConfig {
	var serverAddress ServerAddress
	var databaseDSN string
	var filesDir string
	var jsonConfigPath string
	var hashKey string
	var token string
	var schema string
	var requestTimeout time.Duration
	var syncInterval time.Duration
	var maxTransfers int
	var maxBatchSize int
	var maxBatchInstances int
	var failureStrategy string
	var progressThrottle time.Duration

	flag.Var(&serverAddress, "a", "Remote store address, host:port or URL")
	flag.StringVar(&databaseDSN, "d", "", "Cache database DSN")
	flag.StringVar(&filesDir, "f", "", "Downloaded file cache directory")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&hashKey, "hash-key", "", "Request integrity hash key")
	flag.StringVar(&token, "token", "", "Bearer token")
	flag.StringVar(&schema, "schema", "", "Default remote schema")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Periodic sync interval (e.g., 5m)")
	flag.IntVar(&maxTransfers, "max-transfers", 0, "Max concurrent file transfers")
	flag.IntVar(&maxBatchSize, "max-batch-size", 0, "Changeset size budget in bytes")
	flag.IntVar(&maxBatchInstances, "max-batch-instances", 0, "Changeset instance budget")
	flag.StringVar(&failureStrategy, "failure-strategy", "", "Changeset failure strategy: stop or continue")
	flag.DurationVar(&progressThrottle, "progress-throttle", 0, "Min interval between byte progress callbacks")

	flag.Parse()

	return &StructuredConfig{
		App: App{
			HashKey: hashKey,
		},
		Storage: Storage{
			DB:    DB{DSN: databaseDSN},
			Files: Files{Dir: filesDir},
		},
		Adapter: Adapter{
			HTTPAddress:    serverAddress.String(),
			RequestTimeout: requestTimeout,
			Token:          token,
			Schema:         schema,
		},
		Workers: Workers{
			SyncInterval:           syncInterval,
			MaxConcurrentTransfers: maxTransfers,
		},
		Sync: Sync{
			MaxBatchSize:      maxBatchSize,
			MaxBatchInstances: maxBatchInstances,
			FailureStrategy:   failureStrategy,
			ProgressThrottle:  progressThrottle,
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns the address as given to Set.
func (a *ServerAddress) String() string {
	if a.URL == nil {
		return ""
	}
	if a.bare {
		return a.URL.Host
	}

	return a.URL.String()
}

// Set accepts either host:port or an http(s) URL with an optional path
// prefix. Any host name is allowed; an explicit port must be in 1..65535.
func (a *ServerAddress) Set(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("empty server address")
	}

	bare := !strings.Contains(s, "://")
	raw := s
	if bare {
		raw = "http://" + s
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server address %q: %w", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return errors.New("server address has no host")
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("port %q is out of range", p)
		}
	}
	if bare && (u.Path != "" || u.RawQuery != "") {
		return errors.New("need address in a form `host:port` or a URL")
	}

	a.URL = u
	a.bare = bare
	return nil
}
