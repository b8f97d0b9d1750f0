// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"fmt"
	"os"

	"github.com/MKhiriev/go-cache-sync/internal/config"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
)

// ClientStorages groups the client-side storage backends into a single
// value that can be passed around the service layer.
type ClientStorages struct {
	// DB is the SQLite cache of instances, relationships and cached query
	// responses.
	DB *DB

	// FilesDir is the directory downloaded files are stored in.
	FilesDir string
}

// NewClientStorages initialises the client storage layer using the supplied
// configuration and logger. It performs the following steps:
//  1. Opens an SQLite connection to cfg.DB.DSN, creating the database file
//     if it does not yet exist.
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Creates the downloaded file directory.
//
// Returns an error if the database connection cannot be established or if
// migration fails.
func NewClientStorages(ctx context.Context, cfg config.ClientStorage, logger *logger.Logger) (*ClientStorages, error) {
	logger.Info().Msg("creating new storages...")

	db, err := NewConnectSQLite(ctx, cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	if err := os.MkdirAll(cfg.Files.Dir, 0o755); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating files dir: %w", err)
	}

	return &ClientStorages{
		DB:       db,
		FilesDir: cfg.Files.Dir,
	}, nil
}

// Close releases the database.
func (s *ClientStorages) Close() error {
	return s.DB.Close()
}
