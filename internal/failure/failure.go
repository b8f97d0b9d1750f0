// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package failure turns errors met during a sync run into failure records.
package failure

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-cache-sync/internal/adapter"
	"github.com/MKhiriev/go-cache-sync/models"
)

// Errors assigned locally. They are never sent to or received from the
// server.
var (
	// ErrDependencyNotSynced marks a record held back because a record it
	// depends on did not reach the server.
	ErrDependencyNotSynced = errors.New("dependency not synced")

	// ErrFileCancelled marks a file transfer stopped by its own token.
	ErrFileCancelled = errors.New("file transfer cancelled")

	// ErrInternalCache marks a violated local invariant, such as a batch
	// budget too small for a single record.
	ErrInternalCache = errors.New("internal cache error")
)

// Classification is the failure kind of an error plus the server payload,
// when there is one.
type Classification struct {
	Kind        models.ErrorKind
	ServerID    string
	Message     string
	Description string
}

// Classify maps err into the failure taxonomy. Errors that match nothing
// known are internal cache errors.
func Classify(err error) Classification {
	var received *adapter.ReceivedError

	switch {
	case err == nil:
		return Classification{}
	case errors.Is(err, ErrDependencyNotSynced):
		return Classification{Kind: models.KindDependencyNotSynced, Message: err.Error()}
	case errors.Is(err, ErrFileCancelled):
		return Classification{Kind: models.KindFileCancelled, Message: err.Error()}
	case errors.Is(err, ErrInternalCache):
		return Classification{Kind: models.KindInternalCache, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return Classification{Kind: models.KindCanceled, Message: err.Error()}
	case errors.As(err, &received):
		return Classification{
			Kind:        models.KindReceived,
			ServerID:    received.ServerID,
			Message:     received.Message,
			Description: received.Description,
		}
	case errors.Is(err, adapter.ErrUnauthorized):
		return Classification{Kind: models.KindUnauthorized, Message: err.Error()}
	case errors.Is(err, adapter.ErrConnection), errors.Is(err, context.DeadlineExceeded):
		return Classification{Kind: models.KindConnection, Message: err.Error()}
	default:
		return Classification{Kind: models.KindInternalCache, Message: err.Error()}
	}
}

// New builds the failure record of one instance.
func New(inst models.Instance, err error) models.FailureRecord {
	c := Classify(err)
	return models.FailureRecord{
		Key:         inst.Key,
		Remote:      inst.Remote,
		Kind:        c.Kind,
		ServerID:    c.ServerID,
		Message:     c.Message,
		Description: c.Description,
	}
}

// NoLongerAccessible reports whether err means the instance or query is
// gone for this client: removed on the server or no longer readable.
func NoLongerAccessible(err error) bool {
	return errors.Is(err, adapter.ErrNotFound) || errors.Is(err, adapter.ErrForbidden)
}
