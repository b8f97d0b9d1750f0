// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package ledger tracks pending local changes of cached instances.
//
// Objects, relationships and file payloads each carry their own change
// status. The ledger owns every status transition: local mutations move a
// record away from NoChange, and only the commit operations used after a
// confirmed server response move it back.
package ledger

import (
	"context"
	"sync"

	"github.com/MKhiriev/go-cache-sync/internal/store"
	"github.com/MKhiriev/go-cache-sync/models"
)

// Ledger is the change ledger of one local cache.
type Ledger struct {
	db *store.DB

	// active holds local ids with an outstanding upload request
	active sync.Map
}

// New creates a ledger over db.
func New(db *store.DB) *Ledger {
	return &Ledger{db: db}
}

// Transact runs fn in one cache transaction. See [store.DB.Transact].
func (l *Ledger) Transact(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return l.db.Transact(ctx, func(ctx context.Context, stx *store.Tx) error {
		return fn(ctx, &Tx{Tx: stx, ledger: l})
	})
}

// Changes returns the pending changes that are ready for upload.
func (l *Ledger) Changes(ctx context.Context) (models.ChangeSet, error) {
	var cs models.ChangeSet
	err := l.Transact(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		cs, err = tx.Changes(ctx)
		return err
	})
	return cs, err
}

// IsUploadActive reports whether a request carrying the record is
// outstanding. It never blocks on the cache.
func (l *Ledger) IsUploadActive(key models.EntityKey) bool {
	_, ok := l.active.Load(key.ID)
	return ok
}

// SetUploadActive marks or clears the upload-active flag of keys.
func (l *Ledger) SetUploadActive(keys []models.EntityKey, active bool) {
	for _, key := range keys {
		if active {
			l.active.Store(key.ID, struct{}{})
		} else {
			l.active.Delete(key.ID)
		}
	}
}
