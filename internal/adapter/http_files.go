// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/MKhiriev/go-cache-sync/models"
	"github.com/gabriel-vasile/mimetype"
)

// upload is a local file opened for sending. Reads report raw progress.
// The file is not embedded so io.Copy cannot bypass Read through
// (*os.File).WriteTo.
type upload struct {
	file        *os.File
	name        string
	contentType string
	size        int64
	sent        int64
	onProgress  models.TransferProgress
}

func openUpload(path string, onProgress models.TransferProgress) (*upload, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect content type of %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat upload %s: %w", path, err)
	}

	return &upload{
		file:        f,
		name:        filepath.Base(path),
		contentType: mime.String(),
		size:        info.Size(),
		onProgress:  onProgress,
	}, nil
}

func (u *upload) Read(p []byte) (int, error) {
	n, err := u.file.Read(p)
	if n > 0 && u.onProgress != nil {
		u.sent += int64(n)
		u.onProgress(u.sent, u.size)
	}
	return n, err
}

func (u *upload) Close() error {
	return u.file.Close()
}

// UpdateFile implements [ServerAdapter]. It PUTs the file content to
// PUT /api/{schema}/{class}/{id}/$file. The new file tag is read from the
// ETag header.
func (h *httpServerAdapter) UpdateFile(ctx context.Context, ref models.RemoteRef, path string, onProgress models.TransferProgress) (models.FileResponse, error) {
	req, err := h.request(ctx)
	if err != nil {
		return models.FileResponse{}, err
	}

	file, err := openUpload(path, onProgress)
	if err != nil {
		return models.FileResponse{}, err
	}
	defer file.Close()

	resp, err := req.
		SetHeader("Content-Type", file.contentType).
		SetBody(io.Reader(file)).
		Put(objectPath(ref.Schema, ref.Class, ref.ID) + "/$file")
	if err != nil {
		return models.FileResponse{}, h.failed("httpServerAdapter.UpdateFile", connectionError("update file request", err))
	}
	if err = mapHTTPError(resp); err != nil {
		return models.FileResponse{}, h.failed("httpServerAdapter.UpdateFile", err)
	}

	return models.FileResponse{
		Path: path,
		Tag:  resp.Header().Get(headerETag),
		Size: file.size,
	}, nil
}

// DownloadFile implements [ServerAdapter]. It GETs
// GET /api/{schema}/{class}/{id}/$file and streams the body into a
// temporary file next to dest, renamed over dest once complete. tag is sent
// as If-None-Match; on a 304 answer dest is not touched.
func (h *httpServerAdapter) DownloadFile(ctx context.Context, ref models.RemoteRef, dest, tag string, onProgress models.TransferProgress) (models.FileResponse, error) {
	req, err := h.request(ctx)
	if err != nil {
		return models.FileResponse{}, err
	}
	if tag != "" {
		req.SetHeader(headerIfNoneMatch, tag)
	}

	resp, err := req.
		SetDoNotParseResponse(true).
		Get(objectPath(ref.Schema, ref.Class, ref.ID) + "/$file")
	if err != nil {
		return models.FileResponse{}, h.failed("httpServerAdapter.DownloadFile", connectionError("download request", err))
	}
	body := resp.RawBody()
	defer body.Close()

	switch {
	case resp.StatusCode() == http.StatusNotModified:
		return models.FileResponse{Path: dest, Tag: tag, NotModified: true}, nil
	case resp.StatusCode() >= http.StatusMultipleChoices:
		payload, _ := io.ReadAll(io.LimitReader(body, 64*1024))
		return models.FileResponse{}, h.failed("httpServerAdapter.DownloadFile", statusFailure(resp.StatusCode(), payload))
	}

	size, err := h.save(dest, body, resp.RawResponse.ContentLength, onProgress)
	if err != nil {
		return models.FileResponse{}, h.failed("httpServerAdapter.DownloadFile", err)
	}

	return models.FileResponse{
		Path: dest,
		Tag:  resp.Header().Get(headerETag),
		Size: size,
	}, nil
}

func (h *httpServerAdapter) save(dest string, body io.Reader, total int64, onProgress models.TransferProgress) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create file cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err = tmp.Write(buf[:n]); err != nil {
				_ = tmp.Close()
				return 0, fmt.Errorf("write download file: %w", err)
			}
			written += int64(n)
			if onProgress != nil {
				onProgress(written, max(total, written))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = tmp.Close()
			return 0, connectionError("download body", readErr)
		}
	}

	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("close download file: %w", err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("move download file: %w", err)
	}
	return written, nil
}
