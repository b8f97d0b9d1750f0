// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var instanceColumns = []string{
	"local_id",
	"schema_name",
	"class_name",
	"remote_id",
	"source_class",
	"source_id",
	"target_class",
	"target_id",
	"properties",
	"change_status",
	"sync_status",
	"change_number",
	"revision",
	"changed_properties",
	"file_status",
	"file_change_number",
	"file_path",
	"file_size",
	"file_tag",
	"persistent",
	"cache_tag",
}

const (
	insertInstance = `
		INSERT INTO instances (
			schema_name,
			class_name,
			remote_id,
			source_class,
			source_id,
			target_class,
			target_id,
			properties,
			change_status,
			sync_status,
			change_number,
			revision,
			changed_properties,
			file_status,
			file_change_number,
			file_path,
			file_size,
			file_tag,
			persistent,
			cache_tag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	updateInstance = `
		UPDATE instances SET
			schema_name = ?,
			class_name = ?,
			remote_id = ?,
			source_class = ?,
			source_id = ?,
			target_class = ?,
			target_id = ?,
			properties = ?,
			change_status = ?,
			sync_status = ?,
			change_number = ?,
			revision = ?,
			changed_properties = ?,
			file_status = ?,
			file_change_number = ?,
			file_path = ?,
			file_size = ?,
			file_tag = ?,
			persistent = ?,
			cache_tag = ?
		WHERE local_id = ?;`

	deleteInstance = `DELETE FROM instances WHERE local_id = ?;`

	renameInstanceClass = `UPDATE instances SET class_name = ? WHERE local_id = ?;`
	renameSourceClass   = `UPDATE instances SET source_class = ? WHERE source_id = ?;`
	renameTargetClass   = `UPDATE instances SET target_class = ? WHERE target_id = ?;`

	nextChangeNumber = `
		INSERT INTO meta (name, value) VALUES ('change_number', 1)
		ON CONFLICT (name) DO UPDATE SET value = value + 1;`
	currentChangeNumber = `SELECT value FROM meta WHERE name = 'change_number';`

	selectResponse = `
		SELECT id, parent_id, name, tag, cursor, complete, generation
		FROM responses
		WHERE parent_id = ? AND name = ?;`

	startResponse = `
		INSERT INTO responses (parent_id, name, tag, cursor, complete, generation)
		VALUES (?, ?, '', '', 0, 1)
		ON CONFLICT (parent_id, name) DO UPDATE SET
			cursor = '',
			complete = 0,
			generation = generation + 1;`

	addResponseInstance = `
		INSERT INTO response_instances (response_id, local_id, generation)
		VALUES (?, ?, ?)
		ON CONFLICT (response_id, local_id) DO UPDATE SET generation = excluded.generation;`

	setResponseCursor = `UPDATE responses SET cursor = ? WHERE id = ?;`

	selectStaleResponseInstances = `
		SELECT local_id FROM response_instances
		WHERE response_id = ? AND generation < ?
		ORDER BY local_id;`
	deleteStaleResponseInstances = `DELETE FROM response_instances WHERE response_id = ? AND generation < ?;`

	finishResponse = `UPDATE responses SET tag = ?, cursor = '', complete = 1 WHERE id = ?;`

	selectResponseInstances = `SELECT local_id FROM response_instances WHERE response_id = ? ORDER BY local_id;`

	deleteResponseInstances = `DELETE FROM response_instances WHERE response_id = ?;`
	deleteResponse          = `DELETE FROM responses WHERE id = ?;`

	countResponseReferences = `SELECT COUNT(*) FROM response_instances WHERE local_id = ?;`

	selectOwnedResponses = `SELECT id FROM responses WHERE parent_id = ?;`
	deleteLocalIDReferences = `DELETE FROM response_instances WHERE local_id = ?;`
)

// buildSelectInstancesByIDsQuery selects instances by local ids.
func buildSelectInstancesByIDsQuery(ids []int64) (string, []any, error) {
	if len(ids) == 0 {
		return "", nil, fmt.Errorf("%w: no ids", ErrBuildingSQLQuery)
	}

	return sq.Select(instanceColumns...).
		From("instances").
		Where(sq.Eq{"local_id": ids}).
		OrderBy("local_id").
		ToSql()
}

// buildSelectInstanceByRemoteQuery selects the instance a remote id maps to.
func buildSelectInstanceByRemoteQuery(schema, remoteID string) (string, []any, error) {
	return sq.Select(instanceColumns...).
		From("instances").
		Where(sq.Eq{"schema_name": schema, "remote_id": remoteID}).
		ToSql()
}

// buildSelectPendingQuery selects every instance with a property,
// relationship or file change. With readyOnly, changes marked not ready are
// skipped.
func buildSelectPendingQuery(readyOnly bool) (string, []any, error) {
	builder := sq.Select(instanceColumns...).
		From("instances").
		Where(sq.Or{
			sq.NotEq{"change_status": 0},
			sq.NotEq{"file_status": 0},
		})

	if readyOnly {
		builder = builder.Where(sq.Eq{"sync_status": 0})
	}

	return builder.OrderBy("local_id").ToSql()
}

// buildSelectRelationshipsQuery selects relationships having any of the
// given instances as an endpoint.
func buildSelectRelationshipsQuery(ids []int64) (string, []any, error) {
	if len(ids) == 0 {
		return "", nil, fmt.Errorf("%w: no ids", ErrBuildingSQLQuery)
	}

	return sq.Select(instanceColumns...).
		From("instances").
		Where(sq.Or{
			sq.Eq{"source_id": ids},
			sq.Eq{"target_id": ids},
		}).
		OrderBy("change_number", "local_id").
		ToSql()
}

// buildSelectPersistentQuery selects every object marked persistent.
func buildSelectPersistentQuery() (string, []any, error) {
	return sq.Select(instanceColumns...).
		From("instances").
		Where(sq.Eq{"persistent": 1, "source_id": 0}).
		OrderBy("local_id").
		ToSql()
}
