// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig is the on-disk layout of the JSON config file.
type StructuredJSONConfig struct {
	App struct {
		HashKey string `json:"hash_key"`
		Version string `json:"version"`
	} `json:"app,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`

		Files struct {
			Dir string `json:"dir"`
		} `json:"files,omitempty"`
	} `json:"storage,omitempty"`

	Adapter struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
		Token          string   `json:"token"`
		Schema         string   `json:"schema"`
	} `json:"adapter,omitempty"`

	Workers struct {
		SyncInterval           Duration `json:"sync_interval"`
		MaxConcurrentTransfers int      `json:"max_concurrent_transfers"`
	} `json:"workers,omitempty"`

	Sync struct {
		MaxBatchSize      int      `json:"max_batch_size"`
		MaxBatchInstances int      `json:"max_batch_instances"`
		FailureStrategy   string   `json:"failure_strategy"`
		ProgressThrottle  Duration `json:"progress_throttle"`
	} `json:"sync,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			HashKey: jsonCfg.App.HashKey,
			Version: jsonCfg.App.Version,
		},
		Storage: Storage{
			DB:    DB{DSN: jsonCfg.Storage.DB.DSN},
			Files: Files{Dir: jsonCfg.Storage.Files.Dir},
		},
		Adapter: Adapter{
			HTTPAddress:    jsonCfg.Adapter.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
			Token:          jsonCfg.Adapter.Token,
			Schema:         jsonCfg.Adapter.Schema,
		},
		Workers: Workers{
			SyncInterval:           time.Duration(jsonCfg.Workers.SyncInterval),
			MaxConcurrentTransfers: jsonCfg.Workers.MaxConcurrentTransfers,
		},
		Sync: Sync{
			MaxBatchSize:      jsonCfg.Sync.MaxBatchSize,
			MaxBatchInstances: jsonCfg.Sync.MaxBatchInstances,
			FailureStrategy:   jsonCfg.Sync.FailureStrategy,
			ProgressThrottle:  time.Duration(jsonCfg.Sync.ProgressThrottle),
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
