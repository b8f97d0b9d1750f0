// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (models.Instance, error) {
	var (
		inst       models.Instance
		remoteID   sql.NullString
		properties string
		changed    string
	)

	err := row.Scan(
		&inst.Key.ID,
		&inst.Remote.Schema,
		&inst.Key.Class,
		&remoteID,
		&inst.Source.Class,
		&inst.Source.ID,
		&inst.Target.Class,
		&inst.Target.ID,
		&properties,
		&inst.Change.Status,
		&inst.Change.SyncStatus,
		&inst.Change.Number,
		&inst.Change.Revision,
		&changed,
		&inst.File.Status,
		&inst.File.Number,
		&inst.File.Path,
		&inst.File.Size,
		&inst.File.Tag,
		&inst.Persistent,
		&inst.CacheTag,
	)
	if err != nil {
		return models.Instance{}, err
	}

	inst.Remote.Class = inst.Key.Class
	inst.Remote.ID = remoteID.String

	if err = json.Unmarshal([]byte(properties), &inst.Properties); err != nil {
		return models.Instance{}, fmt.Errorf("%w: properties: %w", ErrEncodingColumn, err)
	}
	if err = json.Unmarshal([]byte(changed), &inst.Change.ChangedProperties); err != nil {
		return models.Instance{}, fmt.Errorf("%w: changed properties: %w", ErrEncodingColumn, err)
	}

	return inst, nil
}

// instanceArgs returns the column values of inst in insertInstance order.
func instanceArgs(inst models.Instance) ([]any, error) {
	properties := inst.Properties
	if properties == nil {
		properties = models.Properties{}
	}
	props, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("%w: properties: %w", ErrEncodingColumn, err)
	}

	changedNames := inst.Change.ChangedProperties
	if changedNames == nil {
		changedNames = []string{}
	}
	changed, err := json.Marshal(changedNames)
	if err != nil {
		return nil, fmt.Errorf("%w: changed properties: %w", ErrEncodingColumn, err)
	}

	var remoteID sql.NullString
	if inst.Remote.ID != "" {
		remoteID = sql.NullString{String: inst.Remote.ID, Valid: true}
	}

	return []any{
		inst.Remote.Schema,
		inst.Key.Class,
		remoteID,
		inst.Source.Class,
		inst.Source.ID,
		inst.Target.Class,
		inst.Target.ID,
		string(props),
		inst.Change.Status,
		inst.Change.SyncStatus,
		inst.Change.Number,
		inst.Change.Revision,
		string(changed),
		inst.File.Status,
		inst.File.Number,
		inst.File.Path,
		inst.File.Size,
		inst.File.Tag,
		inst.Persistent,
		inst.CacheTag,
	}, nil
}

// InsertInstance stores a new instance and returns its local key.
func (t *Tx) InsertInstance(ctx context.Context, inst models.Instance) (models.EntityKey, error) {
	log := logger.FromContext(ctx)

	args, err := instanceArgs(inst)
	if err != nil {
		return models.EntityKey{}, err
	}

	res, err := t.tx.ExecContext(ctx, insertInstance, args...)
	if err != nil {
		log.Err(err).
			Str("func", "Tx.InsertInstance").
			Str("class", inst.Key.Class).
			Msg("failed to insert instance")
		return models.EntityKey{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.EntityKey{}, fmt.Errorf("%w: %w", ErrInstanceNotSaved, err)
	}

	return models.EntityKey{Class: inst.Key.Class, ID: id}, nil
}

// UpdateInstance overwrites every stored column of inst.
func (t *Tx) UpdateInstance(ctx context.Context, inst models.Instance) error {
	log := logger.FromContext(ctx)

	args, err := instanceArgs(inst)
	if err != nil {
		return err
	}
	args = append(args, inst.Key.ID)

	res, err := t.tx.ExecContext(ctx, updateInstance, args...)
	if err != nil {
		log.Err(err).
			Str("func", "Tx.UpdateInstance").
			Stringer("key", inst.Key).
			Msg("failed to update instance")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, inst.Key)
	}

	return nil
}

// GetInstance returns the instance stored under a local id.
func (t *Tx) GetInstance(ctx context.Context, id int64) (models.Instance, error) {
	instances, err := t.InstancesByIDs(ctx, []int64{id})
	if err != nil {
		return models.Instance{}, err
	}
	if len(instances) == 0 {
		return models.Instance{}, fmt.Errorf("%w: local id %d", ErrInstanceNotFound, id)
	}
	return instances[0], nil
}

// InstancesByIDs returns the stored instances among ids, ordered by local id.
// Unknown ids are skipped.
func (t *Tx) InstancesByIDs(ctx context.Context, ids []int64) ([]models.Instance, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := buildSelectInstancesByIDsQuery(ids)
	if err != nil {
		return nil, err
	}

	return t.queryInstances(ctx, "Tx.InstancesByIDs", query, args)
}

// FindByRemote returns the instance a remote id is mapped to.
func (t *Tx) FindByRemote(ctx context.Context, schema, remoteID string) (models.Instance, error) {
	query, args, err := buildSelectInstanceByRemoteQuery(schema, remoteID)
	if err != nil {
		return models.Instance{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	instances, err := t.queryInstances(ctx, "Tx.FindByRemote", query, args)
	if err != nil {
		return models.Instance{}, err
	}
	if len(instances) == 0 {
		return models.Instance{}, fmt.Errorf("%w: remote id %s", ErrInstanceNotFound, remoteID)
	}
	return instances[0], nil
}

// PendingInstances returns every instance with a pending property,
// relationship or file change, ordered by local id.
func (t *Tx) PendingInstances(ctx context.Context, readyOnly bool) ([]models.Instance, error) {
	query, args, err := buildSelectPendingQuery(readyOnly)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return t.queryInstances(ctx, "Tx.PendingInstances", query, args)
}

// PersistentInstances returns every object marked persistent, ordered by
// local id. These are the roots a full refresh starts from.
func (t *Tx) PersistentInstances(ctx context.Context) ([]models.Instance, error) {
	query, args, err := buildSelectPersistentQuery()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return t.queryInstances(ctx, "Tx.PersistentInstances", query, args)
}

// RelationshipsOf returns every relationship with one of ids as an endpoint,
// ordered by change number.
func (t *Tx) RelationshipsOf(ctx context.Context, ids ...int64) ([]models.Instance, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := buildSelectRelationshipsQuery(ids)
	if err != nil {
		return nil, err
	}

	return t.queryInstances(ctx, "Tx.RelationshipsOf", query, args)
}

// DeleteInstance removes an instance row and its cached response
// memberships.
func (t *Tx) DeleteInstance(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx)

	if _, err := t.tx.ExecContext(ctx, deleteLocalIDReferences, id); err != nil {
		log.Err(err).Str("func", "Tx.DeleteInstance").Int64("local_id", id).Msg("failed to delete response references")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	if _, err := t.tx.ExecContext(ctx, deleteInstance, id); err != nil {
		log.Err(err).Str("func", "Tx.DeleteInstance").Int64("local_id", id).Msg("failed to delete instance")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// RenameClass changes the class of an instance and of every relationship
// endpoint referencing it.
func (t *Tx) RenameClass(ctx context.Context, id int64, class string) error {
	log := logger.FromContext(ctx)

	for _, stmt := range []string{renameInstanceClass, renameSourceClass, renameTargetClass} {
		if _, err := t.tx.ExecContext(ctx, stmt, class, id); err != nil {
			log.Err(err).
				Str("func", "Tx.RenameClass").
				Int64("local_id", id).
				Str("class", class).
				Msg("failed to rename class")
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
	}

	return nil
}

// NextChangeNumber returns the next value of the store-wide change counter.
func (t *Tx) NextChangeNumber(ctx context.Context) (int64, error) {
	if _, err := t.tx.ExecContext(ctx, nextChangeNumber); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	var n int64
	if err := t.tx.QueryRowContext(ctx, currentChangeNumber).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return n, nil
}

// UpsertRemote stores an instance received from the server and returns its
// local key. An instance with a pending local change keeps its properties;
// only its class and cache tag follow the server.
func (t *Tx) UpsertRemote(ctx context.Context, ri models.RemoteInstance) (models.EntityKey, error) {
	existing, err := t.FindByRemote(ctx, ri.Ref.Schema, ri.Ref.ID)
	if err != nil && !errors.Is(err, ErrInstanceNotFound) {
		return models.EntityKey{}, err
	}

	if err == nil {
		if existing.Key.Class != ri.Ref.Class && ri.Ref.Class != "" {
			if err = t.RenameClass(ctx, existing.Key.ID, ri.Ref.Class); err != nil {
				return models.EntityKey{}, err
			}
			existing.Key.Class = ri.Ref.Class
			existing.Remote.Class = ri.Ref.Class
		}

		existing.CacheTag = ri.Tag
		if existing.Change.Status == models.NoChange {
			existing.Properties = ri.Properties.Clone()
		}
		if existing.File.Status == models.NoChange && ri.FileSize > 0 {
			existing.File.Size = ri.FileSize
		}

		if err = t.UpdateInstance(ctx, existing); err != nil {
			return models.EntityKey{}, err
		}
		return existing.Key, nil
	}

	return t.InsertInstance(ctx, models.Instance{
		Key:        models.EntityKey{Class: ri.Ref.Class},
		Remote:     ri.Ref,
		Properties: ri.Properties.Clone(),
		File:       models.FileState{Size: ri.FileSize},
		CacheTag:   ri.Tag,
	})
}

func (t *Tx) queryInstances(ctx context.Context, funcName, query string, args []any) ([]models.Instance, error) {
	log := logger.FromContext(ctx)

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", funcName).Msg("failed to query instances")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var instances []models.Instance
	for rows.Next() {
		inst, scanErr := scanInstance(rows)
		if scanErr != nil {
			log.Err(scanErr).Str("func", funcName).Msg("failed to scan instance row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}
		instances = append(instances, inst)
	}

	if err = rows.Err(); err != nil {
		log.Err(err).Str("func", funcName).Msg("error iterating instance rows")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return instances, nil
}
