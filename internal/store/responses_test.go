// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"testing"

	"github.com/MKhiriev/go-cache-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTx_ResponseGenerations(t *testing.T) {
	db := newTestStore(t)

	parent := insert(t, db, object("Folder", nil))
	a := insert(t, db, object("Document", nil))
	b := insert(t, db, object("Document", nil))
	c := insert(t, db, object("Document", nil))

	key := models.CachedResponseKey{Parent: parent, Name: "children"}

	// first refresh: a, b, c over two pages
	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		resp, err := tx.StartResponse(ctx, key)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), resp.Generation)

		if err = tx.AddResponseInstances(ctx, resp, []int64{a.ID, b.ID}); err != nil {
			return err
		}
		if err = tx.SetResponseCursor(ctx, resp, "page-2"); err != nil {
			return err
		}

		stored, err := tx.GetResponse(ctx, key)
		if err != nil {
			return err
		}
		assert.Equal(t, "page-2", stored.Cursor)
		assert.False(t, stored.Complete)

		if err = tx.AddResponseInstances(ctx, resp, []int64{c.ID}); err != nil {
			return err
		}
		dropped, err := tx.FinishResponse(ctx, resp, "etag-1")
		assert.Empty(t, dropped)
		return err
	})
	require.NoError(t, err)

	// second refresh: only a and c remain
	var dropped []int64
	err = db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		resp, err := tx.StartResponse(ctx, key)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(2), resp.Generation)
		assert.Equal(t, "etag-1", resp.Tag)

		if err = tx.AddResponseInstances(ctx, resp, []int64{a.ID, c.ID}); err != nil {
			return err
		}
		dropped, err = tx.FinishResponse(ctx, resp, "etag-2")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, dropped)

	err = db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		resp, err := tx.GetResponse(ctx, key)
		if err != nil {
			return err
		}
		assert.True(t, resp.Complete)
		assert.Equal(t, "etag-2", resp.Tag)
		assert.Empty(t, resp.Cursor)

		members, err := tx.ResponseInstances(ctx, resp)
		if err != nil {
			return err
		}
		assert.Equal(t, []int64{a.ID, c.ID}, members)

		referenced, err := tx.IsReferenced(ctx, b.ID)
		assert.False(t, referenced)
		return err
	})
	require.NoError(t, err)
}

func TestTx_DeleteResponse(t *testing.T) {
	db := newTestStore(t)

	a := insert(t, db, object("Document", nil))
	key := models.CachedResponseKey{Name: "all-documents"}

	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		resp, err := tx.StartResponse(ctx, key)
		if err != nil {
			return err
		}
		if err = tx.AddResponseInstances(ctx, resp, []int64{a.ID}); err != nil {
			return err
		}

		referenced, err := tx.IsReferenced(ctx, a.ID)
		if err != nil {
			return err
		}
		assert.True(t, referenced)

		dropped, err := tx.DeleteResponse(ctx, key)
		if err != nil {
			return err
		}
		assert.Equal(t, []int64{a.ID}, dropped)

		_, err = tx.GetResponse(ctx, key)
		assert.ErrorIs(t, err, ErrResponseNotFound)

		// deleting twice is fine
		dropped, err = tx.DeleteResponse(ctx, key)
		assert.Empty(t, dropped)
		return err
	})
	require.NoError(t, err)
}

func TestTx_DeleteOwnedResponses(t *testing.T) {
	db := newTestStore(t)

	parent := insert(t, db, object("Folder", nil))
	a := insert(t, db, object("Document", nil))
	b := insert(t, db, object("Document", nil))

	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		for i, id := range []int64{a.ID, b.ID} {
			resp, err := tx.StartResponse(ctx, models.CachedResponseKey{Parent: parent, Name: []string{"x", "y"}[i]})
			if err != nil {
				return err
			}
			if err = tx.AddResponseInstances(ctx, resp, []int64{id}); err != nil {
				return err
			}
		}

		dropped, err := tx.DeleteOwnedResponses(ctx, parent.ID)
		assert.ElementsMatch(t, []int64{a.ID, b.ID}, dropped)
		return err
	})
	require.NoError(t, err)
}
