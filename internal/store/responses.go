// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/models"
)

// CachedResponse is the stored state of one cached query result.
//
// Every full refresh of a response bumps Generation; instance memberships
// written during the refresh carry the new generation, so memberships left
// on an older generation after the last page are the instances the server no
// longer returns.
type CachedResponse struct {
	ID         int64
	Key        models.CachedResponseKey
	Tag        string
	Cursor     string
	Complete   bool
	Generation int64
}

// GetResponse returns the cached response stored under key.
func (t *Tx) GetResponse(ctx context.Context, key models.CachedResponseKey) (CachedResponse, error) {
	log := logger.FromContext(ctx)

	resp := CachedResponse{Key: key}
	var parentID int64
	err := t.tx.QueryRowContext(ctx, selectResponse, key.Parent.ID, key.Name).Scan(
		&resp.ID,
		&parentID,
		&resp.Key.Name,
		&resp.Tag,
		&resp.Cursor,
		&resp.Complete,
		&resp.Generation,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedResponse{}, fmt.Errorf("%w: %s", ErrResponseNotFound, key)
	}
	if err != nil {
		log.Err(err).Str("func", "Tx.GetResponse").Stringer("response", key).Msg("failed to read cached response")
		return CachedResponse{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return resp, nil
}

// StartResponse begins a new generation of a cached response, creating it
// when needed. The stored tag is kept until FinishResponse replaces it.
func (t *Tx) StartResponse(ctx context.Context, key models.CachedResponseKey) (CachedResponse, error) {
	log := logger.FromContext(ctx)

	if _, err := t.tx.ExecContext(ctx, startResponse, key.Parent.ID, key.Name); err != nil {
		log.Err(err).Str("func", "Tx.StartResponse").Stringer("response", key).Msg("failed to start cached response")
		return CachedResponse{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return t.GetResponse(ctx, key)
}

// AddResponseInstances records ids as members of the current generation of
// resp.
func (t *Tx) AddResponseInstances(ctx context.Context, resp CachedResponse, ids []int64) error {
	log := logger.FromContext(ctx)

	for _, id := range ids {
		if _, err := t.tx.ExecContext(ctx, addResponseInstance, resp.ID, id, resp.Generation); err != nil {
			log.Err(err).
				Str("func", "Tx.AddResponseInstances").
				Stringer("response", resp.Key).
				Int64("local_id", id).
				Msg("failed to add response instance")
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
	}

	return nil
}

// SetResponseCursor stores the cursor of the next page to fetch.
func (t *Tx) SetResponseCursor(ctx context.Context, resp CachedResponse, cursor string) error {
	if _, err := t.tx.ExecContext(ctx, setResponseCursor, cursor, resp.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

// FinishResponse marks resp complete under tag and drops memberships left
// from older generations. It returns the local ids of the dropped members.
func (t *Tx) FinishResponse(ctx context.Context, resp CachedResponse, tag string) ([]int64, error) {
	log := logger.FromContext(ctx)

	dropped, err := t.queryIDs(ctx, selectStaleResponseInstances, resp.ID, resp.Generation)
	if err != nil {
		log.Err(err).Str("func", "Tx.FinishResponse").Stringer("response", resp.Key).Msg("failed to read stale members")
		return nil, err
	}

	if _, err = t.tx.ExecContext(ctx, deleteStaleResponseInstances, resp.ID, resp.Generation); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	if _, err = t.tx.ExecContext(ctx, finishResponse, tag, resp.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return dropped, nil
}

// ResponseInstances returns the local ids of every member of resp.
func (t *Tx) ResponseInstances(ctx context.Context, resp CachedResponse) ([]int64, error) {
	return t.queryIDs(ctx, selectResponseInstances, resp.ID)
}

// DeleteResponse removes the response stored under key and returns the
// local ids of its former members. A missing response is not an error.
func (t *Tx) DeleteResponse(ctx context.Context, key models.CachedResponseKey) ([]int64, error) {
	resp, err := t.GetResponse(ctx, key)
	if errors.Is(err, ErrResponseNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return t.deleteResponseByID(ctx, resp.ID)
}

// DeleteOwnedResponses removes every response attached to the instance
// with local id parentID and returns the local ids of their members.
func (t *Tx) DeleteOwnedResponses(ctx context.Context, parentID int64) ([]int64, error) {
	owned, err := t.queryIDs(ctx, selectOwnedResponses, parentID)
	if err != nil {
		return nil, err
	}

	var dropped []int64
	for _, id := range owned {
		members, err := t.deleteResponseByID(ctx, id)
		if err != nil {
			return nil, err
		}
		dropped = append(dropped, members...)
	}

	return dropped, nil
}

// IsReferenced reports whether any cached response lists the instance.
func (t *Tx) IsReferenced(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := t.tx.QueryRowContext(ctx, countResponseReferences, id).Scan(&n); err != nil {
		return false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return n > 0, nil
}

func (t *Tx) deleteResponseByID(ctx context.Context, id int64) ([]int64, error) {
	members, err := t.queryIDs(ctx, selectResponseInstances, id)
	if err != nil {
		return nil, err
	}

	if _, err = t.tx.ExecContext(ctx, deleteResponseInstances, id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if _, err = t.tx.ExecContext(ctx, deleteResponse, id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return members, nil
}

func (t *Tx) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return ids, nil
}
