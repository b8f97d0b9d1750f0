// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-cache-sync/models"
)

// Status errors mapped from HTTP status codes by mapHTTPError. A
// [ReceivedError] unwraps to one of these, so callers can use [errors.Is]
// regardless of the server error id.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("client unauthorized")
	ErrForbidden           = errors.New("not enough rights")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrBadGateway          = errors.New("bad gateway")
	ErrInternalServerError = errors.New("internal server error")
	ErrUnexpectedStatus    = errors.New("unexpected status")
)

// ErrConnection wraps every transport level failure: refused connections,
// timeouts, broken streams and undecodable responses.
var ErrConnection = errors.New("connection error")

// ErrExpiredToken is returned before sending a request with a bearer token
// that has already expired. It unwraps to ErrUnauthorized.
var ErrExpiredToken = fmt.Errorf("%w: token expired", ErrUnauthorized)

// ReceivedError is an error reported by the server, either for a whole
// request or for one record of a changeset.
type ReceivedError struct {
	// Status is the sentinel matching the HTTP status, nil for per-record
	// errors of a successful response.
	Status      error
	ServerID    string
	Message     string
	Description string
}

// NewReceivedError wraps the error payload the server attached to a record.
func NewReceivedError(serverErr models.ServerError) *ReceivedError {
	return &ReceivedError{
		ServerID:    serverErr.ID,
		Message:     serverErr.Message,
		Description: serverErr.Description,
	}
}

func (e *ReceivedError) Error() string {
	msg := e.ServerID
	if e.Message != "" {
		if msg != "" {
			msg += ": "
		}
		msg += e.Message
	}
	if msg == "" && e.Status != nil {
		msg = e.Status.Error()
	}
	return "server error: " + msg
}

func (e *ReceivedError) Unwrap() error {
	if e.Status != nil {
		return e.Status
	}
	return statusForServerID(e.ServerID)
}

// statusForServerID maps well-known server error ids of per-record errors to
// status sentinels.
func statusForServerID(id string) error {
	switch id {
	case "InstanceNotFound", "ClassNotFound", "SchemaNotFound", "FileNotFound":
		return ErrNotFound
	case "NotEnoughRights", "LoginFailed":
		return ErrForbidden
	case "Conflict", "InstanceAlreadyExists":
		return ErrConflict
	case "InvalidArgument", "BadRequest":
		return ErrBadRequest
	default:
		return nil
	}
}
