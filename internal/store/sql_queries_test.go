// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_buildSelectInstancesByIDsQuery(t *testing.T) {
	query, args, err := buildSelectInstancesByIDsQuery([]int64{3, 5, 8})
	require.NoError(t, err)

	q := strings.ToLower(query)
	require.Contains(t, q, "from instances")
	require.Contains(t, q, "local_id in (?,?,?)")
	require.Contains(t, q, "order by local_id")
	require.Equal(t, []any{int64(3), int64(5), int64(8)}, args)

	// every column is selected
	for _, col := range instanceColumns {
		require.Contains(t, q, col)
	}
}

func Test_buildSelectInstancesByIDsQuery_Empty(t *testing.T) {
	_, _, err := buildSelectInstancesByIDsQuery(nil)
	require.ErrorIs(t, err, ErrBuildingSQLQuery)
}

func Test_buildSelectPendingQuery(t *testing.T) {
	tests := []struct {
		name      string
		readyOnly bool
		wantArgs  []any
	}{
		{name: "ready only", readyOnly: true, wantArgs: []any{0, 0, 0}},
		{name: "all", readyOnly: false, wantArgs: []any{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := buildSelectPendingQuery(tt.readyOnly)
			require.NoError(t, err)

			q := strings.ToLower(query)
			require.Contains(t, q, "change_status <> ?")
			require.Contains(t, q, "file_status <> ?")
			if tt.readyOnly {
				require.Contains(t, q, "sync_status = ?")
			} else {
				require.NotContains(t, q, "sync_status =")
			}
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func Test_buildSelectRelationshipsQuery(t *testing.T) {
	query, args, err := buildSelectRelationshipsQuery([]int64{1, 2})
	require.NoError(t, err)

	q := strings.ToLower(query)
	require.Contains(t, q, "source_id in (?,?)")
	require.Contains(t, q, "target_id in (?,?)")
	require.Contains(t, q, "order by change_number, local_id")
	require.Len(t, args, 4)
}

func Test_buildSelectInstanceByRemoteQuery(t *testing.T) {
	query, args, err := buildSelectInstanceByRemoteQuery("Plant", "r-1")
	require.NoError(t, err)

	q := strings.ToLower(query)
	require.Contains(t, q, "remote_id = ?")
	require.Contains(t, q, "schema_name = ?")
	// squirrel sorts map keys
	require.Equal(t, []any{"r-1", "Plant"}, args)
}

func Test_buildSelectPersistentQuery(t *testing.T) {
	query, args, err := buildSelectPersistentQuery()
	require.NoError(t, err)

	q := strings.ToLower(query)
	require.Contains(t, q, "persistent = ?")
	require.Contains(t, q, "source_id = ?")
	require.Equal(t, []any{1, 0}, args)
}
