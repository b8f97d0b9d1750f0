// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// ErrorKind classifies a failure.
type ErrorKind int

const (
	// KindConnection is a transport level failure.
	KindConnection ErrorKind = iota + 1
	// KindReceived is an error reported by the server, carrying its id.
	KindReceived
	// KindDependencyNotSynced is assigned locally to records that were held
	// back because something they depend on failed.
	KindDependencyNotSynced
	// KindFileCancelled means a per-file token fired before the transfer
	// completed.
	KindFileCancelled
	// KindInternalCache is a violated local invariant.
	KindInternalCache
	// KindCanceled means the whole run was cancelled.
	KindCanceled
	// KindUnauthorized means the request was refused before it was sent,
	// for example because the bearer token has expired.
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection_error"
	case KindReceived:
		return "received_error"
	case KindDependencyNotSynced:
		return "dependency_not_synced"
	case KindFileCancelled:
		return "file_cancelled"
	case KindInternalCache:
		return "internal_cache_error"
	case KindCanceled:
		return "canceled"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// FailureRecord describes one failed or blocked record.
type FailureRecord struct {
	Key         EntityKey
	Remote      RemoteRef
	Kind        ErrorKind
	ServerID    string
	Message     string
	Description string
}

// SyncResult is what push and refresh runs return next to their error.
// An empty failure list next to a nil error means every requested change
// reached the server.
type SyncResult struct {
	Failures []FailureRecord
}

// Add appends failure records.
func (r *SyncResult) Add(records ...FailureRecord) {
	r.Failures = append(r.Failures, records...)
}

// Merge appends the failures of another result.
func (r *SyncResult) Merge(other SyncResult) {
	r.Failures = append(r.Failures, other.Failures...)
}

// OK reports whether the run finished without failures.
func (r SyncResult) OK() bool {
	return len(r.Failures) == 0
}
