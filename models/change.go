// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "sort"

// ChangeStatus is the upload state of an object, a relationship, or a file.
type ChangeStatus int

const (
	NoChange ChangeStatus = iota
	Created
	Modified
	Deleted
)

func (s ChangeStatus) String() string {
	switch s {
	case NoChange:
		return "no_change"
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// SyncStatus marks whether a pending change may be pushed yet.
type SyncStatus int

const (
	// SyncReady changes are returned for upload.
	SyncReady SyncStatus = iota
	// SyncNotReady changes stay local until marked ready.
	SyncNotReady
)

// Change is the pending change bookkeeping stored next to an instance.
//
// Number orders changes in the order they were made. Revision is bumped on
// every local edit so a commit can tell whether the record was edited while
// its upload was outstanding.
type Change struct {
	Status            ChangeStatus
	SyncStatus        SyncStatus
	Number            int64
	Revision          int64
	ChangedProperties []string
}

// ChangeSet is the set of pending changes read from the ledger in one
// transaction.
type ChangeSet struct {
	// Objects holds objects with a property or file change, ordered by
	// change number.
	Objects []Instance
	// Relationships holds relationships with a pending change, ordered by
	// change number.
	Relationships []Instance
	// Related holds unchanged endpoints of pending relationships, keyed by
	// local id.
	Related map[int64]Instance
}

// IsEmpty reports whether there is nothing to upload.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Objects) == 0 && len(c.Relationships) == 0
}

// Len returns the number of records that produce a result when pushed.
func (c ChangeSet) Len() int {
	return len(c.Objects) + len(c.Relationships)
}

// FileBytes returns the total size of pending file uploads.
func (c ChangeSet) FileBytes() int64 {
	var total int64
	for _, o := range c.Objects {
		if o.File.Status != NoChange {
			total += o.File.Size
		}
	}
	return total
}

// SortByChangeNumber orders objects and relationships by creation order.
func (c *ChangeSet) SortByChangeNumber() {
	sort.SliceStable(c.Objects, func(i, j int) bool {
		return changeOrder(c.Objects[i]) < changeOrder(c.Objects[j])
	})
	sort.SliceStable(c.Relationships, func(i, j int) bool {
		return changeOrder(c.Relationships[i]) < changeOrder(c.Relationships[j])
	})
}

func changeOrder(i Instance) int64 {
	if i.Change.Status != NoChange {
		return i.Change.Number
	}
	return i.File.Number
}
