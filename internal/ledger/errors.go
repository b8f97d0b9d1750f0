// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package ledger

import "errors"

// Sentinel errors returned by ledger mutations. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrAlreadyDeleted is returned when deleting an instance whose deletion
	// is already pending.
	ErrAlreadyDeleted = errors.New("instance is already deleted")

	// ErrDeleted is returned when modifying an instance whose deletion is
	// pending.
	ErrDeleted = errors.New("instance is deleted")

	// ErrUploadActive is returned when a mutation would change a record while
	// a request for it is outstanding.
	ErrUploadActive = errors.New("upload is active for instance")

	// ErrNotRelationship is returned when a relationship operation is applied
	// to an object, or the other way around.
	ErrNotRelationship = errors.New("instance is not a relationship")

	// ErrIsRelationship is returned when an object operation is applied to a
	// relationship.
	ErrIsRelationship = errors.New("instance is a relationship")

	// ErrInvalidEndpoint is returned when a relationship endpoint does not
	// exist or is being deleted.
	ErrInvalidEndpoint = errors.New("invalid relationship endpoint")
)
