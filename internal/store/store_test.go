// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"testing"

	"github.com/MKhiriev/go-cache-sync/internal/config"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	l := zerolog.Nop()
	return l.WithContext(context.Background())
}

// newTestStore opens a migrated in-memory cache.
func newTestStore(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnectSQLite(testContext(), config.ClientDB{DSN: ":memory:"}, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func insert(t *testing.T, db *DB, inst models.Instance) models.EntityKey {
	t.Helper()

	var key models.EntityKey
	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		var err error
		key, err = tx.InsertInstance(ctx, inst)
		return err
	})
	require.NoError(t, err)

	return key
}

func object(class string, props models.Properties) models.Instance {
	return models.Instance{
		Key:        models.EntityKey{Class: class},
		Remote:     models.RemoteRef{Schema: "Plant", Class: class},
		Properties: props,
	}
}
