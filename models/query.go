// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"fmt"
	"strings"
)

// Query describes one server query.
type Query struct {
	Schema      string
	Classes     []string
	Polymorphic bool
	Filter      string
	Select      string
}

// String renders the query for logs and cache discriminators.
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.Schema)
	b.WriteString("/")
	b.WriteString(strings.Join(q.Classes, ","))
	if q.Polymorphic {
		b.WriteString("!poly")
	}
	if q.Filter != "" {
		b.WriteString("?$filter=")
		b.WriteString(q.Filter)
	}
	if q.Select != "" {
		b.WriteString("&$select=")
		b.WriteString(q.Select)
	}
	return b.String()
}

// IDFilter builds a filter matching a single remote id.
func IDFilter(id string) string {
	return fmt.Sprintf("$id+eq+'%s'", id)
}

// IDsFilter builds a filter matching any of the remote ids.
func IDsFilter(ids []string) string {
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, "'"+id+"'")
	}
	return "$id+in+[" + strings.Join(quoted, ",") + "]"
}

// CachedResponseKey identifies one cached query result. A zero Parent means
// the response is not attached to any instance.
type CachedResponseKey struct {
	Parent EntityKey
	Name   string
}

func (k CachedResponseKey) String() string {
	if !k.Parent.IsValid() {
		return k.Name
	}
	return k.Parent.String() + "/" + k.Name
}

// QueryRequest pairs a query with the key its result is cached under.
// When Recursive is false, instances returned by the query are only checked
// for file needs and never expanded into further queries.
type QueryRequest struct {
	Key       CachedResponseKey
	Query     Query
	Recursive bool
}

// QueryResponse is one page of a query result.
type QueryResponse struct {
	Instances   []RemoteInstance
	Tag         string
	NextCursor  string
	NotModified bool
}

// FileResponse is the result of a file upload or download.
type FileResponse struct {
	Path        string
	Tag         string
	Size        int64
	NotModified bool
}
