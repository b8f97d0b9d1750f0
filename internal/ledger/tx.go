// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package ledger

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/store"
	"github.com/MKhiriev/go-cache-sync/models"
)

// Tx is a ledger transaction. The embedded store transaction gives access
// to cached responses and raw instance rows.
type Tx struct {
	*store.Tx
	ledger *Ledger
}

// Instance returns the stored instance for key. Only the local id of key is
// used, so keys with an outdated class still resolve.
func (t *Tx) Instance(ctx context.Context, key models.EntityKey) (models.Instance, error) {
	return t.GetInstance(ctx, key.ID)
}

// ── Local mutations ──

// CreateObject stores a new object pending creation.
func (t *Tx) CreateObject(ctx context.Context, schema, class string, props models.Properties) (models.EntityKey, error) {
	number, err := t.NextChangeNumber(ctx)
	if err != nil {
		return models.EntityKey{}, err
	}

	return t.InsertInstance(ctx, models.Instance{
		Key:        models.EntityKey{Class: class},
		Remote:     models.RemoteRef{Schema: schema, Class: class},
		Properties: props.Clone(),
		Change: models.Change{
			Status:   models.Created,
			Number:   number,
			Revision: 1,
		},
	})
}

// ModifyObject merges props into an object. A Created object stays Created;
// otherwise the object becomes Modified and remembers which properties
// changed.
func (t *Tx) ModifyObject(ctx context.Context, key models.EntityKey, props models.Properties) error {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}
	if inst.IsRelationship() {
		return fmt.Errorf("%w: %s", ErrIsRelationship, key)
	}

	return t.modify(ctx, inst, props)
}

// ModifyRelationship merges props into a relationship.
func (t *Tx) ModifyRelationship(ctx context.Context, key models.EntityKey, props models.Properties) error {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}
	if !inst.IsRelationship() {
		return fmt.Errorf("%w: %s", ErrNotRelationship, key)
	}

	return t.modify(ctx, inst, props)
}

func (t *Tx) modify(ctx context.Context, inst models.Instance, props models.Properties) error {
	switch inst.Change.Status {
	case models.Deleted:
		return fmt.Errorf("%w: %s", ErrDeleted, inst.Key)
	case models.NoChange:
		number, err := t.NextChangeNumber(ctx)
		if err != nil {
			return err
		}
		inst.Change.Status = models.Modified
		inst.Change.Number = number
	}

	if inst.Properties == nil {
		inst.Properties = make(models.Properties, len(props))
	}
	for name, value := range props {
		inst.Properties[name] = value
		if inst.Change.Status == models.Modified && !slices.Contains(inst.Change.ChangedProperties, name) {
			inst.Change.ChangedProperties = append(inst.Change.ChangedProperties, name)
		}
	}
	sort.Strings(inst.Change.ChangedProperties)
	inst.Change.Revision++

	return t.UpdateInstance(ctx, inst)
}

// DeleteObject marks an object for deletion. An object that never reached
// the server is removed right away together with its relationships.
func (t *Tx) DeleteObject(ctx context.Context, key models.EntityKey) error {
	log := logger.FromContext(ctx)

	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}
	if inst.IsRelationship() {
		return fmt.Errorf("%w: %s", ErrIsRelationship, key)
	}
	if t.ledger.IsUploadActive(key) {
		return fmt.Errorf("%w: %s", ErrUploadActive, key)
	}

	switch {
	case inst.Change.Status == models.Deleted:
		return fmt.Errorf("%w: %s", ErrAlreadyDeleted, key)
	case inst.Change.Status == models.Created && !inst.Remote.IsSynced():
		log.Debug().
			Str("func", "ledger.Tx.DeleteObject").
			Stringer("key", key).
			Msg("dropping never synced object")
		return t.removeWithRelationships(ctx, inst, true)
	}

	// created relationships to a deleted object can never be sent
	rels, err := t.RelationshipsOf(ctx, inst.Key.ID)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if rel.Change.Status == models.Created && !rel.Remote.IsSynced() {
			if err = t.DeleteInstance(ctx, rel.Key.ID); err != nil {
				return err
			}
		}
	}

	number, err := t.NextChangeNumber(ctx)
	if err != nil {
		return err
	}
	inst.Change = models.Change{
		Status:     models.Deleted,
		SyncStatus: inst.Change.SyncStatus,
		Number:     number,
		Revision:   inst.Change.Revision + 1,
	}
	inst.File.Status = models.NoChange

	return t.UpdateInstance(ctx, inst)
}

// CreateRelationship stores a new relationship between two objects pending
// creation.
func (t *Tx) CreateRelationship(ctx context.Context, schema, class string, source, target models.EntityKey, props models.Properties) (models.EntityKey, error) {
	for _, endpoint := range []models.EntityKey{source, target} {
		inst, err := t.Instance(ctx, endpoint)
		if err != nil {
			return models.EntityKey{}, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
		}
		if inst.IsRelationship() || inst.Change.Status == models.Deleted {
			return models.EntityKey{}, fmt.Errorf("%w: %s", ErrInvalidEndpoint, endpoint)
		}
	}

	number, err := t.NextChangeNumber(ctx)
	if err != nil {
		return models.EntityKey{}, err
	}

	return t.InsertInstance(ctx, models.Instance{
		Key:        models.EntityKey{Class: class},
		Remote:     models.RemoteRef{Schema: schema, Class: class},
		Source:     source,
		Target:     target,
		Properties: props.Clone(),
		Change: models.Change{
			Status:   models.Created,
			Number:   number,
			Revision: 1,
		},
	})
}

// DeleteRelationship marks a relationship for deletion. A relationship that
// never reached the server is removed right away.
func (t *Tx) DeleteRelationship(ctx context.Context, key models.EntityKey) error {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}
	if !inst.IsRelationship() {
		return fmt.Errorf("%w: %s", ErrNotRelationship, key)
	}
	if t.ledger.IsUploadActive(key) {
		return fmt.Errorf("%w: %s", ErrUploadActive, key)
	}

	switch {
	case inst.Change.Status == models.Deleted:
		return fmt.Errorf("%w: %s", ErrAlreadyDeleted, key)
	case inst.Change.Status == models.Created && !inst.Remote.IsSynced():
		return t.DeleteInstance(ctx, inst.Key.ID)
	}

	number, err := t.NextChangeNumber(ctx)
	if err != nil {
		return err
	}
	inst.Change = models.Change{
		Status:     models.Deleted,
		SyncStatus: inst.Change.SyncStatus,
		Number:     number,
		Revision:   inst.Change.Revision + 1,
	}

	return t.UpdateInstance(ctx, inst)
}

// ModifyFile attaches a new local file to an object.
func (t *Tx) ModifyFile(ctx context.Context, key models.EntityKey, path string, size int64) error {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}
	if inst.IsRelationship() {
		return fmt.Errorf("%w: %s", ErrIsRelationship, key)
	}
	if inst.Change.Status == models.Deleted {
		return fmt.Errorf("%w: %s", ErrDeleted, key)
	}
	if t.ledger.IsUploadActive(key) {
		return fmt.Errorf("%w: %s", ErrUploadActive, key)
	}

	if inst.File.Status == models.NoChange {
		number, err := t.NextChangeNumber(ctx)
		if err != nil {
			return err
		}
		inst.File.Number = number
		inst.File.Status = models.Modified
		if inst.File.Tag == "" {
			inst.File.Status = models.Created
		}
	}
	inst.File.Path = path
	inst.File.Size = size
	inst.Change.Revision++

	return t.UpdateInstance(ctx, inst)
}

// SetSyncStatus marks whether the pending change of key may be uploaded.
func (t *Tx) SetSyncStatus(ctx context.Context, key models.EntityKey, status models.SyncStatus) error {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}

	inst.Change.SyncStatus = status
	return t.UpdateInstance(ctx, inst)
}

// SetPersistent marks an object as a root the cache keeps across refreshes.
func (t *Tx) SetPersistent(ctx context.Context, key models.EntityKey, persistent bool) error {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}
	if inst.IsRelationship() {
		return fmt.Errorf("%w: %s", ErrIsRelationship, key)
	}

	inst.Persistent = persistent
	return t.UpdateInstance(ctx, inst)
}

// ── Pending change set ──

// Changes returns every ready pending change, ordered by change number,
// together with the unchanged endpoints of pending relationships.
func (t *Tx) Changes(ctx context.Context) (models.ChangeSet, error) {
	pending, err := t.PendingInstances(ctx, true)
	if err != nil {
		return models.ChangeSet{}, err
	}

	cs := models.ChangeSet{Related: make(map[int64]models.Instance)}
	inSet := make(map[int64]struct{}, len(pending))
	for _, inst := range pending {
		inSet[inst.Key.ID] = struct{}{}
		if inst.IsRelationship() {
			cs.Relationships = append(cs.Relationships, inst)
		} else {
			cs.Objects = append(cs.Objects, inst)
		}
	}

	var related []int64
	for _, rel := range cs.Relationships {
		for _, endpoint := range []models.EntityKey{rel.Source, rel.Target} {
			if _, ok := inSet[endpoint.ID]; !ok {
				inSet[endpoint.ID] = struct{}{}
				related = append(related, endpoint.ID)
			}
		}
	}

	endpoints, err := t.InstancesByIDs(ctx, related)
	if err != nil {
		return models.ChangeSet{}, err
	}
	for _, inst := range endpoints {
		cs.Related[inst.Key.ID] = inst
	}

	cs.SortByChangeNumber()
	return cs, nil
}

// ── Commits ──

// CommitCreated records that the server accepted the creation of key under
// ref. The server may have registered a more specific class; the instance
// and every relationship endpoint referencing it are renamed accordingly.
// If the instance was edited after revision was read, it stays pending as
// Modified. It returns the key under its final class.
func (t *Tx) CommitCreated(ctx context.Context, key models.EntityKey, ref models.RemoteRef, revision int64) (models.EntityKey, error) {
	log := logger.FromContext(ctx)

	inst, err := t.Instance(ctx, key)
	if err != nil {
		return models.EntityKey{}, err
	}

	if ref.Class != "" && ref.Class != inst.Key.Class {
		log.Debug().
			Str("func", "ledger.Tx.CommitCreated").
			Stringer("key", key).
			Str("class", ref.Class).
			Msg("server registered a more specific class")
		if err = t.RenameClass(ctx, inst.Key.ID, ref.Class); err != nil {
			return models.EntityKey{}, err
		}
		inst.Key.Class = ref.Class
	}

	inst.Remote.ID = ref.ID
	inst.Remote.Class = inst.Key.Class
	if ref.Schema != "" {
		inst.Remote.Schema = ref.Schema
	}

	if inst.Change.Revision == revision {
		inst.Change.Status = models.NoChange
		inst.Change.ChangedProperties = nil
	} else {
		// edited while the creation was in flight: resend everything
		inst.Change.Status = models.Modified
		inst.Change.ChangedProperties = propertyNames(inst.Properties)
	}

	if err = t.UpdateInstance(ctx, inst); err != nil {
		return models.EntityKey{}, err
	}
	return inst.Key, nil
}

// CommitModified records that the server applied the property change of key
// read at revision.
func (t *Tx) CommitModified(ctx context.Context, key models.EntityKey, revision int64) error {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}

	if inst.Change.Revision != revision || inst.Change.Status != models.Modified {
		return nil
	}

	inst.Change.Status = models.NoChange
	inst.Change.ChangedProperties = nil
	return t.UpdateInstance(ctx, inst)
}

// CommitDeleted removes a record whose deletion the server confirmed.
func (t *Tx) CommitDeleted(ctx context.Context, key models.EntityKey) error {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}

	if inst.IsRelationship() {
		return t.DeleteInstance(ctx, inst.Key.ID)
	}
	return t.removeWithRelationships(ctx, inst, false)
}

// CommitFile records that the server stored the file of key. A file that
// was replaced after fileNumber was read stays pending.
func (t *Tx) CommitFile(ctx context.Context, key models.EntityKey, fileNumber int64, tag string) error {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}

	if inst.File.Number != fileNumber || inst.File.Status == models.NoChange {
		return nil
	}

	inst.File.Status = models.NoChange
	inst.File.Tag = tag
	return t.UpdateInstance(ctx, inst)
}

// ── Cache maintenance ──

// SetCachedFile stores a downloaded file for key without marking it
// pending.
func (t *Tx) SetCachedFile(ctx context.Context, key models.EntityKey, path string, size int64, tag string) error {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return err
	}
	if inst.File.Status != models.NoChange {
		return nil
	}

	inst.File.Path = path
	inst.File.Size = size
	inst.File.Tag = tag
	return t.UpdateInstance(ctx, inst)
}

// Removable reports whether a cached instance may be dropped: it must not
// be persistent, have no pending change and belong to no cached response.
func (t *Tx) Removable(ctx context.Context, key models.EntityKey) (bool, error) {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return false, err
	}
	if inst.Persistent || inst.HasPendingChange() || t.ledger.IsUploadActive(key) {
		return false, nil
	}

	referenced, err := t.IsReferenced(ctx, key.ID)
	if err != nil {
		return false, err
	}
	return !referenced, nil
}

// RemoveCached drops a cached instance, its relationships and the responses
// attached to it. It returns the members of the dropped responses.
func (t *Tx) RemoveCached(ctx context.Context, key models.EntityKey) ([]int64, error) {
	inst, err := t.Instance(ctx, key)
	if err != nil {
		return nil, err
	}

	dropped, err := t.DeleteOwnedResponses(ctx, inst.Key.ID)
	if err != nil {
		return nil, err
	}

	return dropped, t.removeWithRelationships(ctx, inst, false)
}

// removeWithRelationships deletes an object and its relationships. With
// createdOnly, only relationships that never reached the server go with it
// and any other relationship is left to the server's cascade.
func (t *Tx) removeWithRelationships(ctx context.Context, inst models.Instance, createdOnly bool) error {
	rels, err := t.RelationshipsOf(ctx, inst.Key.ID)
	if err != nil {
		return err
	}

	for _, rel := range rels {
		if createdOnly && rel.Remote.IsSynced() {
			continue
		}
		if err = t.DeleteInstance(ctx, rel.Key.ID); err != nil {
			return err
		}
	}

	return t.DeleteInstance(ctx, inst.Key.ID)
}

func propertyNames(props models.Properties) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
