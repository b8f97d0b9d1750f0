// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by TokenExpiry for bearer tokens that are not JWTs.
var ErrNotJWT = errors.New("token is not a JWT")

// TokenExpiry reads the exp claim of a bearer token without verifying its
// signature. The client never holds the signing key; the check only avoids
// sending requests the server is bound to reject.
//
// Returns:
//   - the expiry time and true when the token carries an exp claim
//   - zero time and false when it does not
//   - ErrNotJWT (wrapped) when the token cannot be parsed as a JWT
func TokenExpiry(token string) (time.Time, bool, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", ErrNotJWT, err)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", ErrNotJWT, err)
	}
	if exp == nil {
		return time.Time{}, false, nil
	}

	return exp.Time, true, nil
}

// IsTokenExpired reports whether token is a JWT whose exp claim lies
// before now. Opaque tokens and tokens without exp never expire here.
func IsTokenExpired(token string, now time.Time) bool {
	exp, ok, err := TokenExpiry(token)
	if err != nil || !ok {
		return false
	}
	return !now.Before(exp)
}
