// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides transport-layer abstractions for communicating with
// the remote object store.
//
// The primary abstraction is [ServerAdapter], which decouples the sync engines
// from the underlying protocol. The package ships an HTTP/REST implementation
// ([NewHTTPServerAdapter]).
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic error
// handling (e.g. [ErrNotFound] for 404, [ErrUnauthorized] for 401). Transport
// failures wrap [ErrConnection]; errors reported by the server are
// [ReceivedError] values carrying the server error id.
package adapter

import (
	"context"

	"github.com/MKhiriev/go-cache-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/server_adapter_mock.go -package=mock

// ServerAdapter defines transport-agnostic communication with the remote
// object store. Implementations are responsible for serialisation,
// authentication header management, and mapping transport-level errors to the
// sentinel values defined in this package.
type ServerAdapter interface {
	// SetToken stores the bearer token that will be attached to all subsequent
	// requests.
	SetToken(token string)

	// Token returns the bearer token currently stored in the adapter, or an
	// empty string if no token has been set yet.
	Token() string

	// Capabilities queries the server policy resource describing how files
	// may be uploaded.
	Capabilities(ctx context.Context) (models.ServerCapabilities, error)

	// SendChangeset uploads a multi-record changeset. Per-record errors are
	// reported inside the response; the returned error is only set when the
	// request as a whole failed.
	SendChangeset(ctx context.Context, req models.ChangesetRequest) (models.ChangesetResponse, error)

	// CreateObject creates a single instance, optionally with one nested
	// relationship and an attached file. onProgress receives raw upload
	// progress of the file and may be nil.
	CreateObject(ctx context.Context, req models.CreateObjectRequest, onProgress models.TransferProgress) (models.CreateObjectResponse, error)

	// UpdateFile replaces the file of an existing instance.
	UpdateFile(ctx context.Context, ref models.RemoteRef, path string, onProgress models.TransferProgress) (models.FileResponse, error)

	// Query executes one page of a query. A non-empty tag lets the server
	// answer "not modified"; a non-empty cursor resumes at the page it names.
	Query(ctx context.Context, q models.Query, tag, cursor string) (models.QueryResponse, error)

	// GetObject reads a single instance.
	GetObject(ctx context.Context, ref models.RemoteRef) (models.RemoteInstance, error)

	// DownloadFile stores the file of an instance at dest. A non-empty tag
	// lets the server answer "not modified", in which case dest is not
	// touched.
	DownloadFile(ctx context.Context, ref models.RemoteRef, dest, tag string, onProgress models.TransferProgress) (models.FileResponse, error)
}
