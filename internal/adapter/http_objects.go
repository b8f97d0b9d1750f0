// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MKhiriev/go-cache-sync/models"
	"github.com/go-resty/resty/v2"
)

// wireObject is an instance as the server returns it from queries and
// single reads.
type wireObject struct {
	SchemaName string            `json:"schemaName"`
	ClassName  string            `json:"className"`
	InstanceID string            `json:"instanceId"`
	Properties models.Properties `json:"properties,omitempty"`
	FileSize   int64             `json:"fileSize,omitempty"`
	ETag       string            `json:"eTag,omitempty"`
}

func (w wireObject) remote() models.RemoteInstance {
	return models.RemoteInstance{
		Ref:        models.RemoteRef{Schema: w.SchemaName, Class: w.ClassName, ID: w.InstanceID},
		Properties: w.Properties,
		FileSize:   w.FileSize,
		Tag:        w.ETag,
	}
}

// wirePage is one page of a query answer.
type wirePage struct {
	Instances []wireObject `json:"instances"`
	SkipToken string       `json:"skipToken,omitempty"`
}

// Capabilities implements [ServerAdapter]. It GETs GET /api/policies/files.
func (h *httpServerAdapter) Capabilities(ctx context.Context) (models.ServerCapabilities, error) {
	req, err := h.request(ctx)
	if err != nil {
		return models.ServerCapabilities{}, err
	}

	resp, err := req.Get("/api/policies/files")
	if err != nil {
		return models.ServerCapabilities{}, h.failed("httpServerAdapter.Capabilities", connectionError("capabilities request", err))
	}
	if err = mapHTTPError(resp); err != nil {
		return models.ServerCapabilities{}, h.failed("httpServerAdapter.Capabilities", err)
	}

	var caps models.ServerCapabilities
	if err = decode("capabilities", resp, &caps); err != nil {
		return models.ServerCapabilities{}, err
	}
	return caps, nil
}

// SendChangeset implements [ServerAdapter]. It POSTs the changeset to
// POST /api/{schema}/$changeset, where schema is taken from the first
// instance. An HTTP error status fails the whole request; per-record
// errors come back inside a successful response.
func (h *httpServerAdapter) SendChangeset(ctx context.Context, cs models.ChangesetRequest) (models.ChangesetResponse, error) {
	if len(cs.Instances) == 0 {
		return models.ChangesetResponse{}, nil
	}

	req, err := h.jsonRequest(ctx, cs)
	if err != nil {
		return models.ChangesetResponse{}, err
	}

	resp, err := req.Post("/api/" + url.PathEscape(cs.Instances[0].SchemaName) + "/$changeset")
	if err != nil {
		return models.ChangesetResponse{}, h.failed("httpServerAdapter.SendChangeset", connectionError("changeset request", err))
	}
	if err = mapHTTPError(resp); err != nil {
		return models.ChangesetResponse{}, h.failed("httpServerAdapter.SendChangeset", err)
	}

	var out models.ChangesetResponse
	if err = decode("changeset", resp, &out); err != nil {
		return models.ChangesetResponse{}, err
	}
	return out, nil
}

// CreateObject implements [ServerAdapter]. It POSTs to
// POST /api/{schema}/{class}: a JSON body without a file, or a multipart
// body with an "instance" JSON part and a "file" part otherwise.
func (h *httpServerAdapter) CreateObject(ctx context.Context, cr models.CreateObjectRequest, onProgress models.TransferProgress) (models.CreateObjectResponse, error) {
	inst := cr.Instance
	path := "/api/" + url.PathEscape(inst.SchemaName) + "/" + url.PathEscape(inst.ClassName)

	var (
		req *resty.Request
		err error
	)
	if cr.FilePath == "" {
		req, err = h.jsonRequest(ctx, inst)
	} else {
		var file *upload
		req, file, err = h.multipartRequest(ctx, cr, onProgress)
		if file != nil {
			defer file.Close()
		}
	}
	if err != nil {
		return models.CreateObjectResponse{}, err
	}

	resp, err := req.Post(path)
	if err != nil {
		return models.CreateObjectResponse{}, h.failed("httpServerAdapter.CreateObject", connectionError("create request", err))
	}
	if err = mapHTTPError(resp); err != nil {
		return models.CreateObjectResponse{}, h.failed("httpServerAdapter.CreateObject", err)
	}

	var out models.CreateObjectResponse
	if err = decode("create", resp, &out); err != nil {
		return models.CreateObjectResponse{}, err
	}
	out.FileTag = resp.Header().Get(headerETag)
	return out, nil
}

func (h *httpServerAdapter) multipartRequest(ctx context.Context, cr models.CreateObjectRequest, onProgress models.TransferProgress) (*resty.Request, *upload, error) {
	body, err := json.Marshal(cr.Instance)
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := h.request(ctx)
	if err != nil {
		return nil, nil, err
	}

	file, err := openUpload(cr.FilePath, onProgress)
	if err != nil {
		return nil, nil, err
	}

	if hash := h.transportHash(body); hash != "" {
		req.SetHeader(headerHash, hash)
	}
	req.
		SetMultipartField("instance", "", "application/json", bytes.NewReader(body)).
		SetMultipartField("file", file.name, file.contentType, file)

	return req, file, nil
}

// Query implements [ServerAdapter]. It GETs one page of
// GET /api/{schema}/{class,...} with $filter, $select, polymorphic and
// $skiptoken parameters. tag is sent as If-None-Match; a 304 answer is
// reported as NotModified.
func (h *httpServerAdapter) Query(ctx context.Context, q models.Query, tag, cursor string) (models.QueryResponse, error) {
	req, err := h.request(ctx)
	if err != nil {
		return models.QueryResponse{}, err
	}

	if q.Filter != "" {
		req.SetQueryParam("$filter", q.Filter)
	}
	if q.Select != "" {
		req.SetQueryParam("$select", q.Select)
	}
	if q.Polymorphic {
		req.SetQueryParam("polymorphic", "true")
	}
	if cursor != "" {
		req.SetQueryParam("$skiptoken", cursor)
	}
	if tag != "" {
		req.SetHeader(headerIfNoneMatch, tag)
	}

	classes := make([]string, 0, len(q.Classes))
	for _, c := range q.Classes {
		classes = append(classes, url.PathEscape(c))
	}

	resp, err := req.Get("/api/" + url.PathEscape(q.Schema) + "/" + strings.Join(classes, ","))
	if err != nil {
		return models.QueryResponse{}, h.failed("httpServerAdapter.Query", connectionError("query request", err))
	}
	if resp.StatusCode() == http.StatusNotModified {
		return models.QueryResponse{NotModified: true, Tag: tag}, nil
	}
	if err = mapHTTPError(resp); err != nil {
		return models.QueryResponse{}, h.failed("httpServerAdapter.Query", err)
	}

	var page wirePage
	if err = decode("query", resp, &page); err != nil {
		return models.QueryResponse{}, err
	}

	out := models.QueryResponse{
		Instances:  make([]models.RemoteInstance, 0, len(page.Instances)),
		Tag:        resp.Header().Get(headerETag),
		NextCursor: page.SkipToken,
	}
	for _, obj := range page.Instances {
		out.Instances = append(out.Instances, obj.remote())
	}
	return out, nil
}

// GetObject implements [ServerAdapter]. It GETs
// GET /api/{schema}/{class}/{id}.
func (h *httpServerAdapter) GetObject(ctx context.Context, ref models.RemoteRef) (models.RemoteInstance, error) {
	req, err := h.request(ctx)
	if err != nil {
		return models.RemoteInstance{}, err
	}

	resp, err := req.Get(objectPath(ref.Schema, ref.Class, ref.ID))
	if err != nil {
		return models.RemoteInstance{}, h.failed("httpServerAdapter.GetObject", connectionError("get object request", err))
	}
	if err = mapHTTPError(resp); err != nil {
		return models.RemoteInstance{}, h.failed("httpServerAdapter.GetObject", err)
	}

	var obj wireObject
	if err = decode("get object", resp, &obj); err != nil {
		return models.RemoteInstance{}, err
	}

	ri := obj.remote()
	if ri.Tag == "" {
		ri.Tag = resp.Header().Get(headerETag)
	}
	return ri, nil
}
