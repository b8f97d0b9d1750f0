// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"fmt"
	"strconv"
)

// EntityKey is the local identity of a cached instance. ID is assigned by the
// local store and never changes, even after the server assigns a remote id or
// registers a more specific class for the instance.
type EntityKey struct {
	Class string `json:"class"`
	ID    int64  `json:"id"`
}

// IsValid reports whether the key points at a stored instance.
func (k EntityKey) IsValid() bool {
	return k.ID > 0
}

func (k EntityKey) String() string {
	return k.Class + ":" + strconv.FormatInt(k.ID, 10)
}

// RemoteRef identifies an instance on the server. ID stays empty until the
// server has accepted the creation.
type RemoteRef struct {
	Schema string `json:"schemaName"`
	Class  string `json:"className"`
	ID     string `json:"instanceId,omitempty"`
}

// IsSynced reports whether the server has assigned an id.
func (r RemoteRef) IsSynced() bool {
	return r.ID != ""
}

func (r RemoteRef) String() string {
	return fmt.Sprintf("%s.%s:%s", r.Schema, r.Class, r.ID)
}

// Properties is a flat property bag as sent and received on the wire.
type Properties map[string]any

// Clone returns a shallow copy, or nil for an empty bag.
func (p Properties) Clone() Properties {
	if len(p) == 0 {
		return nil
	}

	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Only returns a copy holding only the named properties.
func (p Properties) Only(names []string) Properties {
	if len(names) == 0 {
		return nil
	}

	out := make(Properties, len(names))
	for _, name := range names {
		if v, ok := p[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Instance is one row of the local cache: either an object or, when Source
// and Target are set, a relationship between two objects.
type Instance struct {
	Key        EntityKey
	Remote     RemoteRef
	Source     EntityKey
	Target     EntityKey
	Properties Properties
	Change     Change
	File       FileState
	Persistent bool
	CacheTag   string
}

// IsRelationship reports whether the instance links two other instances.
func (i Instance) IsRelationship() bool {
	return i.Source.IsValid() && i.Target.IsValid()
}

// HasPendingChange reports whether the instance has anything to upload.
func (i Instance) HasPendingChange() bool {
	return i.Change.Status != NoChange || i.File.Status != NoChange
}

// FileState describes the file payload attached to an object.
type FileState struct {
	Status ChangeStatus
	Number int64
	Path   string
	Size   int64
	Tag    string
}

// RemoteInstance is an instance as returned by the server.
type RemoteInstance struct {
	Ref        RemoteRef
	Properties Properties
	FileSize   int64
	Tag        string
}
