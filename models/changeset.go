// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// ChangeState is the per-node state of a changeset payload.
type ChangeState string

const (
	StateExisting ChangeState = "existing"
	StateNew      ChangeState = "new"
	StateModified ChangeState = "modified"
	StateDeleted  ChangeState = "deleted"
)

// StateFor maps a local change status onto the wire state.
func StateFor(status ChangeStatus) ChangeState {
	switch status {
	case Created:
		return StateNew
	case Modified:
		return StateModified
	case Deleted:
		return StateDeleted
	default:
		return StateExisting
	}
}

// Direction tells which end of a relationship the enclosing instance is.
// Forward means the enclosing instance is the relationship source.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// Reverse returns the direction seen from the other endpoint.
func (d Direction) Reverse() Direction {
	if d == Forward {
		return Backward
	}
	return Forward
}

// FailureStrategy tells the server what to do after the first failing
// record of a changeset.
type FailureStrategy string

const (
	FailureStop     FailureStrategy = "Stop"
	FailureContinue FailureStrategy = "Continue"
)

// WireInstance is one instance node of a changeset. Properties are only
// populated for new and modified nodes.
type WireInstance struct {
	ChangeState   ChangeState        `json:"changeState"`
	SchemaName    string             `json:"schemaName"`
	ClassName     string             `json:"className"`
	InstanceID    string             `json:"instanceId,omitempty"`
	Properties    Properties         `json:"properties,omitempty"`
	Relationships []WireRelationship `json:"relationshipInstances,omitempty"`
}

// WireRelationship is a relationship nested under an instance node.
type WireRelationship struct {
	ChangeState ChangeState  `json:"changeState"`
	SchemaName  string       `json:"schemaName"`
	ClassName   string       `json:"className"`
	InstanceID  string       `json:"instanceId,omitempty"`
	Properties  Properties   `json:"properties,omitempty"`
	Direction   Direction    `json:"direction"`
	Related     WireInstance `json:"relatedInstance"`
}

// ChangesetOptions are batch-level request options.
type ChangesetOptions struct {
	FailureStrategy FailureStrategy `json:"FailureStrategy,omitempty"`
}

// ChangesetRequest is a multi-record upload.
type ChangesetRequest struct {
	Instances []WireInstance    `json:"instances"`
	Options   *ChangesetOptions `json:"requestOptions,omitempty"`
}

// ServerError is the error payload the server attaches to a failed record.
type ServerError struct {
	ID          string `json:"errorId"`
	Message     string `json:"errorMessage"`
	Description string `json:"errorDescription"`
}

// ResultInstance mirrors a WireInstance in the changeset response.
type ResultInstance struct {
	SchemaName    string               `json:"schemaName"`
	ClassName     string               `json:"className"`
	InstanceID    string               `json:"instanceId,omitempty"`
	Error         *ServerError         `json:"error,omitempty"`
	Relationships []ResultRelationship `json:"relationshipInstances,omitempty"`
}

// Ref returns the remote reference reported for the record.
func (r ResultInstance) Ref() RemoteRef {
	return RemoteRef{Schema: r.SchemaName, Class: r.ClassName, ID: r.InstanceID}
}

// ResultRelationship mirrors a WireRelationship in the changeset response.
type ResultRelationship struct {
	SchemaName string         `json:"schemaName"`
	ClassName  string         `json:"className"`
	InstanceID string         `json:"instanceId,omitempty"`
	Error      *ServerError   `json:"error,omitempty"`
	Related    ResultInstance `json:"relatedInstance"`
}

// Ref returns the remote reference reported for the relationship.
func (r ResultRelationship) Ref() RemoteRef {
	return RemoteRef{Schema: r.SchemaName, Class: r.ClassName, ID: r.InstanceID}
}

// ChangesetResponse lists results in the same order and shape as the request.
type ChangesetResponse struct {
	Instances []ResultInstance `json:"changedInstances"`
}

// CreateObjectRequest creates one instance, optionally with one nested
// relationship and a file payload.
type CreateObjectRequest struct {
	Instance WireInstance
	FilePath string
}

// CreateObjectResponse is the answer to a single-record creation. Older
// servers return only the remote id; newer ones return the typed instance.
type CreateObjectResponse struct {
	Instance *ResultInstance `json:"changedInstance,omitempty"`
	RemoteID string          `json:"instanceId,omitempty"`
	FileTag  string          `json:"-"`
}

// ServerCapabilities is what the server reports about its optional features.
type ServerCapabilities struct {
	Version string `json:"serverVersion"`
	// FileWithCreate is set when a file may be sent in the same request
	// that creates its instance.
	FileWithCreate bool `json:"fileWithCreate"`
	// TypedCreate is set when a creation response carries the typed
	// instance together with the result of every nested relationship.
	TypedCreate bool `json:"typedCreate,omitempty"`
}
