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

// ── Insert / Get ──

func TestTx_InsertAndGetInstance(t *testing.T) {
	db := newTestStore(t)

	inst := object("Pump", models.Properties{"Name": "P-101", "Rating": float64(42)})
	inst.Remote.ID = "r-1"
	inst.Change = models.Change{
		Status:            models.Modified,
		Number:            7,
		Revision:          3,
		ChangedProperties: []string{"Name"},
	}
	inst.File = models.FileState{Status: models.Created, Number: 8, Path: "/tmp/a.bin", Size: 42}
	inst.Persistent = true

	key := insert(t, db, inst)
	assert.Equal(t, "Pump", key.Class)
	assert.True(t, key.IsValid())

	var got models.Instance
	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		var err error
		got, err = tx.GetInstance(ctx, key.ID)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, key, got.Key)
	assert.Equal(t, models.RemoteRef{Schema: "Plant", Class: "Pump", ID: "r-1"}, got.Remote)
	assert.Equal(t, "P-101", got.Properties["Name"])
	assert.Equal(t, float64(42), got.Properties["Rating"])
	assert.Equal(t, inst.Change, got.Change)
	assert.Equal(t, inst.File, got.File)
	assert.True(t, got.Persistent)
	assert.False(t, got.IsRelationship())
}

func TestTx_GetInstance_NotFound(t *testing.T) {
	db := newTestStore(t)

	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		_, err := tx.GetInstance(ctx, 999)
		return err
	})

	require.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestTx_UpdateInstance_Unknown(t *testing.T) {
	db := newTestStore(t)

	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		inst := object("Pump", nil)
		inst.Key.ID = 77
		return tx.UpdateInstance(ctx, inst)
	})

	require.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestTx_FindByRemote(t *testing.T) {
	db := newTestStore(t)

	synced := object("Pump", nil)
	synced.Remote.ID = "abc"
	key := insert(t, db, synced)
	insert(t, db, object("Pump", nil))

	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		got, err := tx.FindByRemote(ctx, "Plant", "abc")
		if err != nil {
			return err
		}
		assert.Equal(t, key, got.Key)

		_, err = tx.FindByRemote(ctx, "Plant", "missing")
		assert.ErrorIs(t, err, ErrInstanceNotFound)

		_, err = tx.FindByRemote(ctx, "Other", "abc")
		assert.ErrorIs(t, err, ErrInstanceNotFound)
		return nil
	})
	require.NoError(t, err)
}

// ── Pending ──

func TestTx_PendingInstances(t *testing.T) {
	db := newTestStore(t)

	clean := insert(t, db, object("Pump", nil))

	created := object("Pump", nil)
	created.Change = models.Change{Status: models.Created, Number: 1}
	createdKey := insert(t, db, created)

	notReady := object("Pump", nil)
	notReady.Change = models.Change{Status: models.Modified, SyncStatus: models.SyncNotReady, Number: 2}
	notReadyKey := insert(t, db, notReady)

	fileOnly := object("Document", nil)
	fileOnly.File = models.FileState{Status: models.Modified, Number: 3}
	fileKey := insert(t, db, fileOnly)

	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		ready, err := tx.PendingInstances(ctx, true)
		if err != nil {
			return err
		}
		assert.Equal(t, []int64{createdKey.ID, fileKey.ID}, ids(ready))

		all, err := tx.PendingInstances(ctx, false)
		if err != nil {
			return err
		}
		assert.Equal(t, []int64{createdKey.ID, notReadyKey.ID, fileKey.ID}, ids(all))
		assert.NotContains(t, ids(all), clean.ID)
		return nil
	})
	require.NoError(t, err)
}

// ── Relationships ──

func TestTx_RelationshipsOfAndRenameClass(t *testing.T) {
	db := newTestStore(t)

	a := insert(t, db, object("Folder", nil))
	b := insert(t, db, object("Document", nil))
	c := insert(t, db, object("Document", nil))

	rel := object("FolderContainsDocument", nil)
	rel.Source = a
	rel.Target = b
	rel.Change = models.Change{Status: models.Created, Number: 2}
	relKey := insert(t, db, rel)

	other := object("FolderContainsDocument", nil)
	other.Source = c
	other.Target = a
	other.Change = models.Change{Status: models.Created, Number: 1}
	otherKey := insert(t, db, other)

	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		rels, err := tx.RelationshipsOf(ctx, a.ID)
		if err != nil {
			return err
		}
		// ordered by change number
		assert.Equal(t, []int64{otherKey.ID, relKey.ID}, ids(rels))
		assert.True(t, rels[0].IsRelationship())

		rels, err = tx.RelationshipsOf(ctx, b.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, []int64{relKey.ID}, ids(rels))

		if err := tx.RenameClass(ctx, a.ID, "ProjectFolder"); err != nil {
			return err
		}

		got, err := tx.GetInstance(ctx, a.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "ProjectFolder", got.Key.Class)

		gotRel, err := tx.GetInstance(ctx, relKey.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, models.EntityKey{Class: "ProjectFolder", ID: a.ID}, gotRel.Source)

		gotOther, err := tx.GetInstance(ctx, otherKey.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, models.EntityKey{Class: "ProjectFolder", ID: a.ID}, gotOther.Target)
		return nil
	})
	require.NoError(t, err)
}

func TestTx_NextChangeNumber_Monotonic(t *testing.T) {
	db := newTestStore(t)

	var got []int64
	for i := 0; i < 3; i++ {
		err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
			n, err := tx.NextChangeNumber(ctx)
			got = append(got, n)
			return err
		})
		require.NoError(t, err)
	}

	assert.Equal(t, []int64{1, 2, 3}, got)
}

// ── UpsertRemote ──

func TestTx_UpsertRemote(t *testing.T) {
	db := newTestStore(t)

	ri := models.RemoteInstance{
		Ref:        models.RemoteRef{Schema: "Plant", Class: "Pump", ID: "r-1"},
		Properties: models.Properties{"Name": "P-1"},
		Tag:        "t1",
	}

	var first, second models.EntityKey
	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		var err error
		first, err = tx.UpsertRemote(ctx, ri)
		if err != nil {
			return err
		}

		ri.Ref.Class = "CentrifugalPump"
		ri.Properties = models.Properties{"Name": "P-2"}
		ri.Tag = "t2"
		second, err = tx.UpsertRemote(ctx, ri)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "CentrifugalPump", second.Class)

	err = db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		got, err := tx.GetInstance(ctx, first.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "P-2", got.Properties["Name"])
		assert.Equal(t, "t2", got.CacheTag)
		assert.Equal(t, models.NoChange, got.Change.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestTx_UpsertRemote_KeepsLocalChange(t *testing.T) {
	db := newTestStore(t)

	local := object("Pump", models.Properties{"Name": "local"})
	local.Remote.ID = "r-1"
	local.Change = models.Change{Status: models.Modified, Number: 1, ChangedProperties: []string{"Name"}}
	key := insert(t, db, local)

	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		_, err := tx.UpsertRemote(ctx, models.RemoteInstance{
			Ref:        models.RemoteRef{Schema: "Plant", Class: "Pump", ID: "r-1"},
			Properties: models.Properties{"Name": "server"},
		})
		if err != nil {
			return err
		}

		got, err := tx.GetInstance(ctx, key.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "local", got.Properties["Name"])
		assert.Equal(t, models.Modified, got.Change.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestTx_DeleteInstance(t *testing.T) {
	db := newTestStore(t)
	key := insert(t, db, object("Pump", nil))

	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		if err := tx.DeleteInstance(ctx, key.ID); err != nil {
			return err
		}
		_, err := tx.GetInstance(ctx, key.ID)
		assert.ErrorIs(t, err, ErrInstanceNotFound)
		return nil
	})
	require.NoError(t, err)
}

func ids(instances []models.Instance) []int64 {
	out := make([]int64, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Key.ID)
	}
	return out
}

func TestTx_PersistentInstances(t *testing.T) {
	db := newTestStore(t)

	root := object("Folder", nil)
	root.Persistent = true
	rootKey := insert(t, db, root)
	insert(t, db, object("Folder", nil))

	var got []models.Instance
	err := db.Transact(testContext(), func(ctx context.Context, tx *Tx) error {
		var err error
		got, err = tx.PersistentInstances(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{rootKey.ID}, ids(got))
}
