// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package refresh

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-cache-sync/internal/failure"
	"github.com/MKhiriev/go-cache-sync/internal/ledger"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/store"
	"github.com/MKhiriev/go-cache-sync/models"
)

// execute runs every page of q and returns the local ids of the
// instances the response now holds.
//
// Each page is stored in its own transaction. Pagination always restarts
// at the first page; the cached tag is only offered for the first page of a
// complete response.
func (r *run) execute(ctx context.Context, q models.QueryRequest) ([]int64, error) {
	log := logger.FromContext(ctx)

	cached, err := r.cachedResponse(ctx, q.Key)
	if err != nil {
		return nil, err
	}

	tag := ""
	if cached.Complete {
		tag = cached.Tag
	}

	var (
		resp    store.CachedResponse
		members []int64
		cursor  string
	)
	for first := true; ; first = false {
		r.requests.Add(1)
		page, err := r.f.adapter.Query(ctx, q.Query, tag, cursor)
		if err != nil {
			return members, r.queryFailed(ctx, q, err)
		}

		if first && page.NotModified {
			log.Debug().Str("func", "refresh.run.execute").Stringer("response", q.Key).Msg("response not modified")
			return r.cachedMembers(ctx, cached)
		}
		tag = ""

		var dropped []int64
		err = r.f.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
			if first {
				var err error
				if resp, err = tx.StartResponse(ctx, q.Key); err != nil {
					return err
				}
			}

			ids := make([]int64, 0, len(page.Instances))
			for _, ri := range page.Instances {
				key, err := tx.UpsertRemote(ctx, ri)
				if err != nil {
					return err
				}
				ids = append(ids, key.ID)
			}
			if err := tx.AddResponseInstances(ctx, resp, ids); err != nil {
				return err
			}
			members = append(members, ids...)

			if page.NextCursor != "" {
				return tx.SetResponseCursor(ctx, resp, page.NextCursor)
			}

			var err error
			dropped, err = tx.FinishResponse(ctx, resp, page.Tag)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("store response %s: %w", q.Key, err)
		}

		if page.NextCursor == "" {
			r.addCandidates(dropped)
			log.Debug().
				Str("func", "refresh.run.execute").
				Stringer("response", q.Key).
				Int("instances", len(members)).
				Int("dropped", len(dropped)).
				Msg("response refreshed")
			return members, nil
		}
		cursor = page.NextCursor
	}
}

// queryFailed handles a failed page. It returns an error only when the run
// has to stop.
func (r *run) queryFailed(ctx context.Context, q models.QueryRequest, err error) error {
	if stop := r.stopping(ctx, err); stop != nil {
		return stop
	}

	if !failure.NoLongerAccessible(err) {
		r.fail(models.Instance{Key: q.Key.Parent}, err)
		return nil
	}

	var dropped []int64
	txErr := r.f.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		dropped, err = tx.DeleteResponse(ctx, q.Key)
		return err
	})
	if txErr != nil {
		return fmt.Errorf("delete response %s: %w", q.Key, txErr)
	}

	logger.FromContext(ctx).Debug().
		Err(err).
		Str("func", "refresh.run.queryFailed").
		Stringer("response", q.Key).
		Msg("query no longer accessible, response dropped")

	r.addCandidates(dropped)
	return nil
}

func (r *run) cachedResponse(ctx context.Context, key models.CachedResponseKey) (store.CachedResponse, error) {
	var resp store.CachedResponse
	err := r.f.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		resp, err = tx.GetResponse(ctx, key)
		if errors.Is(err, store.ErrResponseNotFound) {
			resp, err = store.CachedResponse{Key: key}, nil
		}
		return err
	})
	if err != nil {
		return store.CachedResponse{}, fmt.Errorf("read response %s: %w", key, err)
	}
	return resp, nil
}

func (r *run) cachedMembers(ctx context.Context, resp store.CachedResponse) ([]int64, error) {
	var ids []int64
	err := r.f.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		ids, err = tx.ResponseInstances(ctx, resp)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", resp.Key, err)
	}
	return ids, nil
}
