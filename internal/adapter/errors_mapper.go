// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/MKhiriev/go-cache-sync/models"
	"github.com/go-resty/resty/v2"
)

// mapHTTPError turns a non-2xx, non-304 response into a [ReceivedError].
func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}
	if resp.StatusCode() == http.StatusNotModified {
		return nil
	}

	return statusFailure(resp.StatusCode(), resp.Body())
}

// statusFailure builds the error of a failed response. A body carrying the
// server error payload fills the server error id.
func statusFailure(code int, body []byte) error {
	var serverErr models.ServerError
	text := strings.TrimSpace(string(body))
	if text != "" && json.Unmarshal(body, &serverErr) == nil && serverErr.ID != "" {
		received := NewReceivedError(serverErr)
		received.Status = statusError(code)
		return received
	}

	received := &ReceivedError{Status: statusError(code)}

	if text == "" {
		text = http.StatusText(code)
	}
	received.Message = text
	return received
}

func statusError(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadGateway:
		return ErrBadGateway
	case http.StatusInternalServerError:
		return ErrInternalServerError
	default:
		return fmt.Errorf("%w: http %d", ErrUnexpectedStatus, code)
	}
}

func connectionError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
}
