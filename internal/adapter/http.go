// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-cache-sync/internal/config"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/utils"
	"github.com/go-resty/resty/v2"
)

// Protocol headers.
const (
	headerRequestID   = "X-Request-Id"
	headerHash        = "HashSHA256"
	headerIfNoneMatch = "If-None-Match"
	headerETag        = "ETag"
)

type httpServerAdapter struct {
	client *utils.HTTPClient
	ids    *utils.UUIDGenerator

	hashKey string

	mu    sync.RWMutex
	token string

	now    func() time.Time
	logger *logger.Logger
}

// NewHTTPServerAdapter constructs an HTTP/REST implementation of [ServerAdapter].
// It normalises and validates the base URL from adapterCfg.HTTPAddress,
// configures the underlying HTTP client with the resolved base URL and request
// timeout, and initialises the shared HMAC hasher pool used for transport
// integrity hashes when appCfg.HashKey is set.
//
// Returns an error if adapterCfg.HTTPAddress is empty or cannot be parsed as a
// valid URL.
func NewHTTPServerAdapter(adapterCfg config.ClientAdapter, appCfg config.ClientApp, logger *logger.Logger) (ServerAdapter, error) {
	baseURL, err := normalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	client := utils.NewHTTPClient().Configure(baseURL, adapterCfg.RequestTimeout)
	if appCfg.Version != "" {
		client.SetHeader("User-Agent", "go-cache-sync/"+appCfg.Version)
	}

	if appCfg.HashKey != "" {
		utils.InitHasherPool(appCfg.HashKey)
	}

	h := &httpServerAdapter{
		client:  client,
		ids:     utils.NewUUIDGenerator(),
		hashKey: appCfg.HashKey,
		now:     time.Now,
		logger:  logger,
	}
	h.SetToken(adapterCfg.Token)

	return h, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [ServerAdapter]. It stores token (whitespace-trimmed) for
// use in the Authorization header of all subsequent requests.
func (h *httpServerAdapter) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

// Token implements [ServerAdapter]. It returns the bearer token currently held
// by the adapter, or an empty string if none has been set.
func (h *httpServerAdapter) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// request prepares an authenticated request carrying a correlation id.
// A JWT bearer token past its exp claim is refused with [ErrExpiredToken]
// before anything is sent.
func (h *httpServerAdapter) request(ctx context.Context) (*resty.Request, error) {
	token := h.Token()
	if token != "" && utils.IsTokenExpired(token, h.now()) {
		return nil, ErrExpiredToken
	}

	requestID, ok := utils.GetRequestIDFromContext(ctx)
	if !ok {
		requestID = h.ids.Generate()
	}

	req := h.client.R().
		SetContext(ctx).
		SetHeader(headerRequestID, requestID)
	if token != "" {
		req.SetAuthToken(token)
	}
	return req, nil
}

// jsonRequest prepares a request with body v encoded as JSON. The
// integrity hash header is computed over the exact bytes sent.
func (h *httpServerAdapter) jsonRequest(ctx context.Context, v any) (*resty.Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := h.request(ctx)
	if err != nil {
		return nil, err
	}

	req.SetHeader("Content-Type", "application/json").SetBody(body)
	if hash := h.transportHash(body); hash != "" {
		req.SetHeader(headerHash, hash)
	}
	return req, nil
}

func (h *httpServerAdapter) transportHash(body []byte) string {
	if h.hashKey == "" {
		return ""
	}
	return hex.EncodeToString(utils.Hash(body))
}

// decode unmarshals a response body. A body that does not decode is a
// transport failure.
func decode(op string, resp *resty.Response, v any) error {
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return connectionError(op+": decode response", err)
	}
	return nil
}

// failed logs err and returns it unchanged.
func (h *httpServerAdapter) failed(funcName string, err error) error {
	h.logger.Debug().Err(err).Str("func", funcName).Msg("server request failed")
	return err
}

func objectPath(schema, class, id string) string {
	return "/api/" + url.PathEscape(schema) + "/" + url.PathEscape(class) + "/" + url.PathEscape(id)
}
