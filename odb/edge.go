// Copyright (C) 2026  Nexedi SA and Contributors.
//
// This program is free software: you can Use, Study, Modify and Redistribute
// it under the terms of the GNU General Public License version 3, or (at your
// option) any later version, as published by the Free Software Foundation.
//
// You can also Link and Combine this program with other software covered by
// the terms of any of the Free Software licenses or any of the Open Source
// Initiative approved licenses and Convey the resulting work. Corresponding
// source of such a combination shall include the source code for all other
// software used.
//
// This program is distributed WITHOUT ANY WARRANTY; without even the implied
// warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//
// See COPYING file for full licensing terms.
// See https://www.nexedi.com/licensing for rationale and options.

package odb

import (
	"encoding/json"

	"lab.nexedi.com/kirr/odb/go/internal/metrics"
	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// Edge is the graph view of an edge.
//
// An edge is either stateful, backed by an edge record, or lightweight,
// represented only by direct links between its vertices. Lightweight edges
// have no identity and no properties of their own; Promote turns a
// lightweight edge into a stateful one.
type Edge interface {
	Identifiable

	// Record returns the edge record, or nil for lightweight edges.
	Record() *Record
	IsLightweight() bool

	// From returns the source vertex; nil if it cannot be loaded.
	From() Vertex
	// To returns the destination vertex; nil if it cannot be loaded.
	To() Vertex
	// Vertex returns From for Out and To for In.
	Vertex(dir Direction) (Vertex, error)

	// Label returns the edge class name.
	Label() string
	// IsLabeled returns whether edge class is one of labels or their
	// subclass. Any edge matches empty labels.
	IsLabeled(labels ...string) bool

	GetProperty(name string) any
	SetProperty(name string, v any) error
	ToMap() map[string]any
	ToJSON() ([]byte, error)

	// Promote returns stateful version of the edge, creating the edge
	// record for lightweight edges. Stateful edges return themselves.
	Promote() (Edge, error)

	// Delete removes the edge from both its vertices. Edge record, if
	// any, is deleted.
	Delete() error
}

// AsEdge returns edge view of r, if r is an edge record.
func (r *Record) AsEdge() (Edge, bool) {
	if r == nil || r.Kind() != KindEdge {
		return nil, false
	}
	return &statefulEdge{r}, true
}

func isLabeled(sch *schema.Schema, class string, labels []string) bool {
	if len(labels) == 0 {
		return true
	}
	c := sch.Class(class)
	for _, label := range labels {
		if label == class || c.IsSubClassOf(label) {
			return true
		}
	}
	return false
}

// ---- stateful edges ----

type statefulEdge struct {
	rec *Record
}

var _ Edge = (*statefulEdge)(nil)

func (e *statefulEdge) Identity() RID       { return e.rec.rid }
func (e *statefulEdge) Record() *Record     { return e.rec }
func (e *statefulEdge) IsLightweight() bool { return false }
func (e *statefulEdge) String() string      { return e.rec.String() }
func (e *statefulEdge) Label() string       { return e.rec.ClassName() }

func (e *statefulEdge) endpoint(name string) Vertex {
	rec, ok := e.rec.GetProperty(name).(*Record)
	if !ok {
		return nil
	}
	v, _ := rec.AsVertex()
	return v
}

func (e *statefulEdge) From() Vertex { return e.endpoint(edgeOut) }
func (e *statefulEdge) To() Vertex   { return e.endpoint(edgeIn) }

func (e *statefulEdge) Vertex(dir Direction) (Vertex, error) {
	return edgeVertex(e, dir)
}

func edgeVertex(e Edge, dir Direction) (Vertex, error) {
	switch dir {
	case Out:
		return e.From(), nil
	case In:
		return e.To(), nil
	}
	return nil, &ArgumentError{Op: "edge vertex", Arg: dir.String(), Msg: "direction must be out or in"}
}

func (e *statefulEdge) IsLabeled(labels ...string) bool {
	return isLabeled(e.rec.sch, e.rec.ClassName(), labels)
}

func (e *statefulEdge) GetProperty(name string) any { return e.rec.GetProperty(name) }

func (e *statefulEdge) SetProperty(name string, v any) error {
	return e.rec.SetProperty(name, v)
}

func (e *statefulEdge) ToMap() map[string]any   { return e.rec.ToMap(true) }
func (e *statefulEdge) ToJSON() ([]byte, error) { return e.rec.ToJSON() }
func (e *statefulEdge) Promote() (Edge, error)  { return e, nil }
func (e *statefulEdge) Delete() error           { return e.rec.deleteRecord() }

// detach removes the edge record from adjacency properties of both its vertices.
func (e *statefulEdge) detach() {
	class := e.rec.ClassName()
	if from, ok := e.rec.GetProperty(edgeOut).(*Record); ok {
		removeAdjacency(from, Out, class, e.rec)
	}
	if to, ok := e.rec.GetProperty(edgeIn).(*Record); ok {
		removeAdjacency(to, In, class, e.rec)
	}
}

// ---- lightweight edges ----

type lightweightEdge struct {
	from, to Vertex
	class    string
}

var _ Edge = (*lightweightEdge)(nil)

func (e *lightweightEdge) Identity() RID       { return NilRID }
func (e *lightweightEdge) Record() *Record     { return nil }
func (e *lightweightEdge) IsLightweight() bool { return true }
func (e *lightweightEdge) From() Vertex        { return e.from }
func (e *lightweightEdge) To() Vertex          { return e.to }
func (e *lightweightEdge) Label() string       { return e.class }

func (e *lightweightEdge) String() string {
	return e.from.Identity().String() + "-" + e.class + "->" + e.to.Identity().String()
}

func (e *lightweightEdge) Vertex(dir Direction) (Vertex, error) {
	return edgeVertex(e, dir)
}

func (e *lightweightEdge) IsLabeled(labels ...string) bool {
	return isLabeled(e.from.Record().sch, e.class, labels)
}

func (e *lightweightEdge) GetProperty(name string) any {
	switch name {
	case edgeOut:
		return e.from.Record()
	case edgeIn:
		return e.to.Record()
	}
	return nil
}

func (e *lightweightEdge) SetProperty(name string, v any) error {
	return stateErr(Unsupported, "set property "+name+" of "+e.String(),
		"lightweight edge has no properties; promote it first")
}

func (e *lightweightEdge) ToMap() map[string]any {
	return map[string]any{
		metaClass: e.class,
		edgeOut:   e.from.Identity(),
		edgeIn:    e.to.Identity(),
	}
}

func (e *lightweightEdge) ToJSON() ([]byte, error) {
	return json.Marshal(e.ToMap())
}

func (e *lightweightEdge) Promote() (Edge, error) {
	from, to := e.from.Record(), e.to.Record()

	rec := from.newSibling(e.class)
	if err := rec.setPropertyInternal(edgeOut, from, schema.Link); err != nil {
		return nil, err
	}
	if err := rec.setPropertyInternal(edgeIn, to, schema.Link); err != nil {
		return nil, err
	}
	if err := replaceAdjacency(from, Out, e.class, to, rec); err != nil {
		return nil, err
	}
	if err := replaceAdjacency(to, In, e.class, from, rec); err != nil {
		return nil, err
	}
	metrics.EdgePromotions.Inc()
	return &statefulEdge{rec}, nil
}

func (e *lightweightEdge) Delete() error {
	from, to := e.from.Record(), e.to.Record()
	removeAdjacency(from, Out, e.class, to)
	removeAdjacency(to, In, e.class, from)
	return nil
}
