// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import "errors"

// Sentinel errors returned by cache transactions to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrInstanceNotFound is returned when a lookup by local or remote id
	// matches no cached instance.
	ErrInstanceNotFound = errors.New("instance was not found")

	// ErrResponseNotFound is returned when no cached response exists under
	// the requested key.
	ErrResponseNotFound = errors.New("cached response was not found")

	// ErrInstanceNotSaved is returned when an INSERT or UPDATE of an instance
	// completes without error but affects no rows.
	ErrInstanceNotSaved = errors.New("instance was not saved")
)

// Low-level database operation errors. These are returned (or wrapped) by
// transaction methods when a SQL-level operation fails before any domain
// logic can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails (e.g. invalid argument count or unsupported type).
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRow is returned when scanning column values from a result
	// row into a destination struct fails.
	ErrScanningRow = errors.New("failed to scan instance row")

	// ErrEncodingColumn is returned when a JSON column cannot be encoded or
	// decoded.
	ErrEncodingColumn = errors.New("failed to encode json column")
)
