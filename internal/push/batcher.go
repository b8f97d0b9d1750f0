// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package push

import (
	"encoding/json"

	"github.com/MKhiriev/go-cache-sync/models"
)

// nestingOverhead is added to the serialized size of every fragment to
// cover separators and the enclosing array of the nested position.
const nestingOverhead = 32

type recordKind int

const (
	noRecord recordKind = iota
	nodeRecord
	edgeRecord
	looseRecord
)

// record points at the graph element a payload entry reports a result for.
type record struct {
	kind recordKind
	idx  int
}

// wireNode is an instance of a batch under construction. Relationship
// arrays are assembled when the batch is sealed.
type wireNode struct {
	inst   models.WireInstance
	node   int
	record record
	links  []*wireLink
}

type wireLink struct {
	rel    models.WireRelationship
	record record
	target *wireNode
}

// fragment is a node ready to be placed into a batch: the node itself plus
// the anchor leaves travelling with it.
type fragment struct {
	root  *wireNode
	nodes []*wireNode
	size  int
	count int
}

func (f *fragment) addNode(w *wireNode) {
	f.nodes = append(f.nodes, w)
	f.size += sizeOf(w.inst)
	f.count++
}

func (f *fragment) addLink(from *wireNode, l *wireLink) {
	from.links = append(from.links, l)
	f.size += sizeOf(l.rel)
	f.addNode(l.target)
}

// batch is one changeset request under construction.
type batch struct {
	roots   []*wireNode
	byNode  map[int]*wireNode
	records []record
	size    int
	count   int
}

func newBatch(envelope int) *batch {
	return &batch{byNode: make(map[int]*wireNode), size: envelope}
}

func (b *batch) empty() bool {
	return len(b.roots) == 0
}

// holdsRecord reports whether graph node n is carried as a change record.
func (b *batch) holdsRecord(n int) bool {
	w, ok := b.byNode[n]
	return ok && w.record.kind != noRecord
}

// insert places f below parent through l, or as a new root when parent is
// nil.
func (b *batch) insert(f fragment, parent *wireNode, l *wireLink) {
	if parent == nil {
		b.roots = append(b.roots, f.root)
	} else {
		l.target = f.root
		parent.links = append(parent.links, l)
		b.size += sizeOf(l.rel)
		b.track(l.record)
	}

	for _, w := range f.nodes {
		if w.node >= 0 {
			b.byNode[w.node] = w
		}
		b.track(w.record)
		for _, fl := range w.links {
			b.track(fl.record)
		}
	}
	b.size += f.size
	b.count += f.count
}

func (b *batch) track(r record) {
	if r.kind != noRecord {
		b.records = append(b.records, r)
	}
}

// request seals the batch into its wire form.
func (b *batch) request(options *models.ChangesetOptions) models.ChangesetRequest {
	req := models.ChangesetRequest{
		Instances: make([]models.WireInstance, 0, len(b.roots)),
		Options:   options,
	}
	for _, root := range b.roots {
		req.Instances = append(req.Instances, root.wire())
	}
	return req
}

func (w *wireNode) wire() models.WireInstance {
	out := w.inst
	out.Relationships = nil
	for _, l := range w.links {
		rel := l.rel
		rel.Related = l.target.wire()
		out.Relationships = append(out.Relationships, rel)
	}
	return out
}

// sizeOf estimates the serialized size of one payload fragment. Nested
// values are empty at this point, so every fragment is measured once.
func sizeOf(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return nestingOverhead
	}
	return len(data) + nestingOverhead
}

func envelopeSize(options *models.ChangesetOptions) int {
	return sizeOf(models.ChangesetRequest{Instances: []models.WireInstance{}, Options: options})
}

// ── Wire forms ──

func classOf(inst models.Instance) string {
	if inst.Key.Class != "" {
		return inst.Key.Class
	}
	return inst.Remote.Class
}

// wireChange renders a pending record. Created records carry every
// property, modified ones only the changed properties.
func wireChange(inst models.Instance) models.WireInstance {
	w := models.WireInstance{
		ChangeState: models.StateFor(inst.Change.Status),
		SchemaName:  inst.Remote.Schema,
		ClassName:   classOf(inst),
	}

	switch inst.Change.Status {
	case models.Created:
		w.Properties = inst.Properties.Clone()
	case models.Modified:
		w.InstanceID = inst.Remote.ID
		w.Properties = inst.Properties.Only(inst.Change.ChangedProperties)
	default:
		w.InstanceID = inst.Remote.ID
	}
	return w
}

// wireExisting references a synced instance by remote id.
func wireExisting(inst models.Instance) models.WireInstance {
	return models.WireInstance{
		ChangeState: models.StateExisting,
		SchemaName:  inst.Remote.Schema,
		ClassName:   classOf(inst),
		InstanceID:  inst.Remote.ID,
	}
}

func wireRelationship(rel models.Instance, dir models.Direction) models.WireRelationship {
	w := wireChange(rel)
	return models.WireRelationship{
		ChangeState: w.ChangeState,
		SchemaName:  w.SchemaName,
		ClassName:   w.ClassName,
		InstanceID:  w.InstanceID,
		Properties:  w.Properties,
		Direction:   dir,
	}
}

func wireExistingRelationship(rel models.Instance, dir models.Direction) models.WireRelationship {
	return models.WireRelationship{
		ChangeState: models.StateExisting,
		SchemaName:  rel.Remote.Schema,
		ClassName:   classOf(rel),
		InstanceID:  rel.Remote.ID,
		Direction:   dir,
	}
}
