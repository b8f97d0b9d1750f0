// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/workers"
	"github.com/MKhiriev/go-cache-sync/migrations"
)

// DB is the local cache database. Every transaction runs on a single serial
// executor, so no two transactions ever overlap.
type DB struct {
	*sql.DB
	serial *workers.Serial
	logger *logger.Logger
}

// NewDB wraps an open connection. The caller keeps ownership of conn until
// Close is called on the returned DB.
func NewDB(conn *sql.DB, log *logger.Logger) *DB {
	return &DB{
		DB:     conn,
		serial: workers.NewSerial(),
		logger: log,
	}
}

func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB)
}

// Close stops the serial executor and closes the connection.
func (db *DB) Close() error {
	db.serial.Close()
	return db.DB.Close()
}

// Transact runs fn inside one database transaction on the serial executor.
// The transaction is committed when fn returns nil and rolled back when fn
// returns an error, panics, or ctx is cancelled.
//
// fn must not call Transact on the same DB.
func (db *DB) Transact(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return db.serial.Do(ctx, func(ctx context.Context) (err error) {
		log := logger.FromContext(ctx)

		sqlTx, err := db.BeginTx(ctx, nil)
		if err != nil {
			log.Err(err).Str("func", "DB.Transact").Msg("failed to begin transaction")
			return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
		}

		committed := false
		defer func() {
			if !committed {
				_ = sqlTx.Rollback()
			}
		}()

		if err = fn(ctx, &Tx{tx: sqlTx}); err != nil {
			return err
		}

		if err = sqlTx.Commit(); err != nil {
			log.Err(err).Str("func", "DB.Transact").Msg("failed to commit transaction")
			return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
		}
		committed = true

		return nil
	})
}

// Tx is an open cache transaction. It is only valid inside the function
// passed to Transact.
type Tx struct {
	tx *sql.Tx
}
