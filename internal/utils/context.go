// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package utils provides general-purpose helper utilities
// used across different parts of the application.
// Includes tools for working with context, type-safe keys, hashing,
// HTTP response writing, HTTP client initialization, bearer token
// inspection and unique name generation.
package utils

import (
	"context"
)

// contextKey is a private type for context keys.
// Using a dedicated type instead of a plain string prevents key collisions
// with other packages that may use string-based keys in the context.
type contextKey string

// String returns the string representation of the context key.
// Implements the fmt.Stringer interface.
func (c contextKey) String() string {
	return string(c)
}

// RequestIDCtxKey is the key used to store the correlation id of an
// outbound request chain in the context.
//
// Example of writing a value to the context:
//
//	ctx := utils.WithRequestID(ctx, "0191d3f2-...")
var RequestIDCtxKey = contextKey("requestID")

// WithRequestID returns a copy of ctx carrying id as the request
// correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDCtxKey, id)
}

// GetRequestIDFromContext retrieves the request correlation id from the
// context.
//
// Returns the id and an ok flag:
//   - ok == true when a non-empty string is stored
//   - ok == false otherwise
func GetRequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDCtxKey).(string)
	return id, ok && id != ""
}
