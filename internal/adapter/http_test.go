// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MKhiriev/go-cache-sync/internal/config"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/utils"
	"github.com/MKhiriev/go-cache-sync/models"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHashKey = "testhashkey"

// newTestServer starts a fake object store with the routes set up by routes.
func newTestServer(t *testing.T, routes func(r chi.Router)) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// newTestAdapter creates an httpServerAdapter pointed at serverURL.
func newTestAdapter(t *testing.T, serverURL string) *httpServerAdapter {
	t.Helper()

	adapterCfg := config.ClientAdapter{HTTPAddress: serverURL, RequestTimeout: 5 * time.Second, Token: "opaque-token"}
	appCfg := config.ClientApp{HashKey: testHashKey, Version: "1.0.0"}

	a, err := NewHTTPServerAdapter(adapterCfg, appCfg, logger.Nop())
	require.NoError(t, err)
	return a.(*httpServerAdapter)
}

func writeServerError(w http.ResponseWriter, status int, id, message string) {
	_, _ = utils.WriteJSON(w, models.ServerError{ID: id, Message: message, Description: message + "."}, status)
}

func plant(name string) models.WireInstance {
	return models.WireInstance{
		ChangeState: models.StateNew,
		SchemaName:  "Garden",
		ClassName:   "Plant",
		Properties:  models.Properties{"Name": name},
	}
}

// ── Construction ──

func TestNewHTTPServerAdapter_InvalidAddress(t *testing.T) {
	_, err := NewHTTPServerAdapter(config.ClientAdapter{HTTPAddress: "  "}, config.ClientApp{}, logger.Nop())
	require.Error(t, err)
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "no scheme", raw: "localhost:8080", want: "http://localhost:8080"},
		{name: "trailing slash", raw: "https://cache.example.com/", want: "https://cache.example.com"},
		{name: "spaces", raw: "  http://127.0.0.1:9000  ", want: "http://127.0.0.1:9000"},
		{name: "empty", raw: "", wantErr: true},
		{name: "no host", raw: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeBaseURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetToken_Trims(t *testing.T) {
	a := newTestAdapter(t, "http://localhost:1")
	assert.Equal(t, "opaque-token", a.Token())

	a.SetToken("  next  ")
	assert.Equal(t, "next", a.Token())
}

// ── Headers ──

func TestRequest_Headers(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Post("/api/{schema}/$changeset", func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.NotEmpty(t, body)

			assert.Equal(t, "Bearer opaque-token", r.Header.Get("Authorization"))
			assert.Equal(t, "req-1", r.Header.Get(headerRequestID))
			assert.Equal(t, utils.HashString(string(body), testHashKey), r.Header.Get(headerHash))
			assert.Equal(t, "go-cache-sync/1.0.0", r.Header.Get("User-Agent"))

			_, _ = utils.WriteJSON(w, models.ChangesetResponse{}, http.StatusOK)
		})
	})

	ctx := utils.WithRequestID(context.Background(), "req-1")
	_, err := newTestAdapter(t, srv.URL).SendChangeset(ctx, models.ChangesetRequest{Instances: []models.WireInstance{plant("fern")}})
	require.NoError(t, err)
}

func TestRequest_GeneratesRequestID(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []string
	)
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/api/policies/files", func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			ids = append(ids, r.Header.Get(headerRequestID))
			mu.Unlock()
			_, _ = utils.WriteJSON(w, models.ServerCapabilities{}, http.StatusOK)
		})
	})

	a := newTestAdapter(t, srv.URL)
	for i := 0; i < 2; i++ {
		_, err := a.Capabilities(context.Background())
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.NotEqual(t, ids[0], ids[1])
}

func TestRequest_ExpiredToken(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/api/policies/files", func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		})
	})

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("server-key"))
	require.NoError(t, err)

	a := newTestAdapter(t, srv.URL)
	a.SetToken(expired)

	_, err = a.Capabilities(context.Background())
	require.ErrorIs(t, err, ErrExpiredToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, calls.Load())
}

func TestRequest_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestAdapter(t, url).Capabilities(context.Background())
	require.ErrorIs(t, err, ErrConnection)
}

// ── Capabilities ──

func TestCapabilities_Success(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/api/policies/files", func(w http.ResponseWriter, r *http.Request) {
			_, _ = utils.WriteJSON(w, models.ServerCapabilities{Version: "2.5", FileWithCreate: true}, http.StatusOK)
		})
	})

	caps, err := newTestAdapter(t, srv.URL).Capabilities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.5", caps.Version)
	assert.True(t, caps.FileWithCreate)
}

func TestCapabilities_UndecodableBody(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/api/policies/files", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		})
	})

	_, err := newTestAdapter(t, srv.URL).Capabilities(context.Background())
	require.ErrorIs(t, err, ErrConnection)
}

// ── Changeset ──

func TestSendChangeset_Success(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Post("/api/{schema}/$changeset", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Garden", chi.URLParam(r, "schema"))

			var req models.ChangesetRequest
			if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && assert.NotNil(t, req.Options) {
				assert.Len(t, req.Instances, 1)
				assert.Equal(t, models.FailureContinue, req.Options.FailureStrategy)
			}

			_, _ = utils.WriteJSON(w, models.ChangesetResponse{Instances: []models.ResultInstance{
				{SchemaName: "Garden", ClassName: "Plant", InstanceID: "p-1"},
			}}, http.StatusOK)
		})
	})

	resp, err := newTestAdapter(t, srv.URL).SendChangeset(context.Background(), models.ChangesetRequest{
		Instances: []models.WireInstance{plant("fern")},
		Options:   &models.ChangesetOptions{FailureStrategy: models.FailureContinue},
	})
	require.NoError(t, err)
	require.Len(t, resp.Instances, 1)
	assert.Equal(t, "p-1", resp.Instances[0].InstanceID)
}

func TestSendChangeset_PerRecordError(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Post("/api/{schema}/$changeset", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"changedInstances":[{"schemaName":"Garden","className":"Plant",` +
				`"error":{"errorId":"InstanceAlreadyExists","errorMessage":"exists","errorDescription":"Plant exists."}}]}`))
		})
	})

	resp, err := newTestAdapter(t, srv.URL).SendChangeset(context.Background(), models.ChangesetRequest{Instances: []models.WireInstance{plant("fern")}})
	require.NoError(t, err)
	require.Len(t, resp.Instances, 1)
	require.NotNil(t, resp.Instances[0].Error)
	assert.Equal(t, "InstanceAlreadyExists", resp.Instances[0].Error.ID)
}

func TestSendChangeset_RequestError(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Post("/api/{schema}/$changeset", func(w http.ResponseWriter, r *http.Request) {
			writeServerError(w, http.StatusForbidden, "NotEnoughRights", "no rights")
		})
	})

	_, err := newTestAdapter(t, srv.URL).SendChangeset(context.Background(), models.ChangesetRequest{Instances: []models.WireInstance{plant("fern")}})
	require.ErrorIs(t, err, ErrForbidden)

	var received *ReceivedError
	require.True(t, errors.As(err, &received))
	assert.Equal(t, "NotEnoughRights", received.ServerID)
	assert.Equal(t, "no rights", received.Message)
}

func TestSendChangeset_Empty(t *testing.T) {
	resp, err := newTestAdapter(t, "http://localhost:1").SendChangeset(context.Background(), models.ChangesetRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Instances)
}

// ── Single objects ──

func TestCreateObject_JSON(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Post("/api/{schema}/{class}", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Plant", chi.URLParam(r, "class"))

			var inst models.WireInstance
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&inst))
			assert.Equal(t, "fern", inst.Properties["Name"])

			_, _ = utils.WriteJSON(w, map[string]string{"instanceId": "p-1"}, http.StatusCreated)
		})
	})

	resp, err := newTestAdapter(t, srv.URL).CreateObject(context.Background(), models.CreateObjectRequest{Instance: plant("fern")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "p-1", resp.RemoteID)
	assert.Nil(t, resp.Instance)
}

func TestCreateObject_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fern.txt")
	require.NoError(t, os.WriteFile(path, []byte("leaf data"), 0o600))

	srv := newTestServer(t, func(r chi.Router) {
		r.Post("/api/{schema}/{class}", func(w http.ResponseWriter, r *http.Request) {
			if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
				return
			}

			var inst models.WireInstance
			assert.NoError(t, json.Unmarshal([]byte(r.FormValue("instance")), &inst))
			assert.Equal(t, "fern", inst.Properties["Name"])

			file, header, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				return
			}
			defer file.Close()
			content, _ := io.ReadAll(file)
			assert.Equal(t, "leaf data", string(content))
			assert.Equal(t, "fern.txt", header.Filename)

			w.Header().Set(headerETag, "file-tag-1")
			_, _ = utils.WriteJSON(w, models.CreateObjectResponse{
				Instance: &models.ResultInstance{SchemaName: "Garden", ClassName: "Fern", InstanceID: "p-2"},
			}, http.StatusCreated)
		})
	})

	var last [2]int64
	resp, err := newTestAdapter(t, srv.URL).CreateObject(context.Background(),
		models.CreateObjectRequest{Instance: plant("fern"), FilePath: path},
		func(current, total int64) { last = [2]int64{current, total} })
	require.NoError(t, err)

	require.NotNil(t, resp.Instance)
	assert.Equal(t, "Fern", resp.Instance.ClassName)
	assert.Equal(t, "file-tag-1", resp.FileTag)
	assert.Equal(t, [2]int64{9, 9}, last)
}

func TestCreateObject_MissingFile(t *testing.T) {
	_, err := newTestAdapter(t, "http://localhost:1").CreateObject(context.Background(),
		models.CreateObjectRequest{Instance: plant("fern"), FilePath: filepath.Join(t.TempDir(), "missing")}, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConnection))
}

func TestGetObject(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/api/{schema}/{class}/{id}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") != "p-1" {
				writeServerError(w, http.StatusNotFound, "InstanceNotFound", "not found")
				return
			}
			w.Header().Set(headerETag, "v3")
			_, _ = utils.WriteJSON(w, wireObject{
				SchemaName: "Garden", ClassName: "Plant", InstanceID: "p-1",
				Properties: models.Properties{"Name": "fern"}, FileSize: 12,
			}, http.StatusOK)
		})
	})
	a := newTestAdapter(t, srv.URL)

	ri, err := a.GetObject(context.Background(), models.RemoteRef{Schema: "Garden", Class: "Plant", ID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, "p-1", ri.Ref.ID)
	assert.Equal(t, "fern", ri.Properties["Name"])
	assert.Equal(t, int64(12), ri.FileSize)
	assert.Equal(t, "v3", ri.Tag)

	_, err = a.GetObject(context.Background(), models.RemoteRef{Schema: "Garden", Class: "Plant", ID: "gone"})
	require.ErrorIs(t, err, ErrNotFound)
}

// ── Query ──

func TestQuery_Pages(t *testing.T) {
	q := models.Query{
		Schema:      "Garden",
		Classes:     []string{"Plant", "Tree"},
		Polymorphic: true,
		Filter:      models.IDsFilter([]string{"a", "b"}),
		Select:      "Name",
	}

	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/api/{schema}/{classes}", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Plant,Tree", chi.URLParam(r, "classes"))
			assert.Equal(t, q.Filter, r.URL.Query().Get("$filter"))
			assert.Equal(t, "Name", r.URL.Query().Get("$select"))
			assert.Equal(t, "true", r.URL.Query().Get("polymorphic"))

			if r.URL.Query().Get("$skiptoken") == "" {
				_, _ = utils.WriteJSON(w, wirePage{
					Instances: []wireObject{{SchemaName: "Garden", ClassName: "Plant", InstanceID: "a"}},
					SkipToken: "c1",
				}, http.StatusOK)
				return
			}

			assert.Equal(t, "c1", r.URL.Query().Get("$skiptoken"))
			w.Header().Set(headerETag, "t-final")
			_, _ = utils.WriteJSON(w, wirePage{
				Instances: []wireObject{{SchemaName: "Garden", ClassName: "Tree", InstanceID: "b"}},
			}, http.StatusOK)
		})
	})
	a := newTestAdapter(t, srv.URL)

	first, err := a.Query(context.Background(), q, "", "")
	require.NoError(t, err)
	require.Len(t, first.Instances, 1)
	assert.Equal(t, "c1", first.NextCursor)

	last, err := a.Query(context.Background(), q, "", first.NextCursor)
	require.NoError(t, err)
	require.Len(t, last.Instances, 1)
	assert.Equal(t, "Tree", last.Instances[0].Ref.Class)
	assert.Empty(t, last.NextCursor)
	assert.Equal(t, "t-final", last.Tag)
}

func TestQuery_NotModified(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/api/{schema}/{classes}", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(headerIfNoneMatch) == "t1" {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			_, _ = utils.WriteJSON(w, wirePage{}, http.StatusOK)
		})
	})

	resp, err := newTestAdapter(t, srv.URL).Query(context.Background(), models.Query{Schema: "Garden", Classes: []string{"Plant"}}, "t1", "")
	require.NoError(t, err)
	assert.True(t, resp.NotModified)
	assert.Equal(t, "t1", resp.Tag)
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		serverID string
		want     error
	}{
		{name: "not found", status: http.StatusNotFound, serverID: "ClassNotFound", want: ErrNotFound},
		{name: "forbidden", status: http.StatusForbidden, serverID: "NotEnoughRights", want: ErrForbidden},
		{name: "bad request", status: http.StatusBadRequest, serverID: "InvalidArgument", want: ErrBadRequest},
		{name: "internal", status: http.StatusInternalServerError, serverID: "InternalServerError", want: ErrInternalServerError},
		{name: "bad gateway", status: http.StatusBadGateway, serverID: "Gateway", want: ErrBadGateway},
		{name: "teapot", status: http.StatusTeapot, serverID: "Teapot", want: ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(r chi.Router) {
				r.Get("/api/{schema}/{classes}", func(w http.ResponseWriter, r *http.Request) {
					writeServerError(w, tt.status, tt.serverID, tt.name)
				})
			})

			_, err := newTestAdapter(t, srv.URL).Query(context.Background(), models.Query{Schema: "Garden", Classes: []string{"Plant"}}, "", "")
			require.ErrorIs(t, err, tt.want)

			var received *ReceivedError
			require.True(t, errors.As(err, &received))
			assert.Equal(t, tt.serverID, received.ServerID)
		})
	}
}

// ── Files ──

func TestUpdateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.txt")
	require.NoError(t, os.WriteFile(path, []byte("new pixels"), 0o600))

	srv := newTestServer(t, func(r chi.Router) {
		r.Put("/api/{schema}/{class}/{id}/$file", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "p-1", chi.URLParam(r, "id"))
			assert.Contains(t, r.Header.Get("Content-Type"), "text/plain")

			content, _ := io.ReadAll(r.Body)
			assert.Equal(t, "new pixels", string(content))

			w.Header().Set(headerETag, "ft2")
			w.WriteHeader(http.StatusOK)
		})
	})

	var last [2]int64
	resp, err := newTestAdapter(t, srv.URL).UpdateFile(context.Background(),
		models.RemoteRef{Schema: "Garden", Class: "Photo", ID: "p-1"}, path,
		func(current, total int64) { last = [2]int64{current, total} })
	require.NoError(t, err)
	assert.Equal(t, "ft2", resp.Tag)
	assert.Equal(t, int64(10), resp.Size)
	assert.Equal(t, [2]int64{10, 10}, last)
}

func TestDownloadFile(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/api/{schema}/{class}/{id}/$file", func(w http.ResponseWriter, r *http.Request) {
			switch {
			case chi.URLParam(r, "id") == "gone":
				writeServerError(w, http.StatusNotFound, "FileNotFound", "no file")
			case r.Header.Get(headerIfNoneMatch) == "ft1":
				w.WriteHeader(http.StatusNotModified)
			default:
				w.Header().Set(headerETag, "ft1")
				_, _ = w.Write([]byte("pixels"))
			}
		})
	})
	a := newTestAdapter(t, srv.URL)
	ref := models.RemoteRef{Schema: "Garden", Class: "Photo", ID: "p-1"}
	dest := filepath.Join(t.TempDir(), "files", "p-1")

	t.Run("fresh", func(t *testing.T) {
		var last [2]int64
		resp, err := a.DownloadFile(context.Background(), ref, dest, "", func(current, total int64) { last = [2]int64{current, total} })
		require.NoError(t, err)
		assert.Equal(t, "ft1", resp.Tag)
		assert.Equal(t, int64(6), resp.Size)
		assert.Equal(t, [2]int64{6, 6}, last)

		content, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "pixels", string(content))
	})

	t.Run("not modified", func(t *testing.T) {
		require.NoError(t, os.WriteFile(dest, []byte("cached"), 0o600))

		resp, err := a.DownloadFile(context.Background(), ref, dest, "ft1", nil)
		require.NoError(t, err)
		assert.True(t, resp.NotModified)

		content, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "cached", string(content))
	})

	t.Run("not found", func(t *testing.T) {
		other := filepath.Join(t.TempDir(), "gone")
		_, err := a.DownloadFile(context.Background(), models.RemoteRef{Schema: "Garden", Class: "Photo", ID: "gone"}, other, "", nil)
		require.ErrorIs(t, err, ErrNotFound)

		_, statErr := os.Stat(other)
		assert.True(t, os.IsNotExist(statErr))
	})
}
