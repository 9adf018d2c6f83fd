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
	"iter"

	"lab.nexedi.com/kirr/odb/go/internal/log"
	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// Vertex is the graph view of a vertex record.
type Vertex interface {
	Identifiable

	// Record returns the underlying record.
	Record() *Record

	// Edges iterates over edges of the vertex in direction dir.
	//
	// With labels only edges of those classes, or their subclasses, are
	// returned. Adjacency values that are neither vertices nor edges are
	// skipped.
	Edges(dir Direction, labels ...string) iter.Seq[Edge]

	// Vertices iterates over vertices adjacent in direction dir.
	Vertices(dir Direction, labels ...string) iter.Seq[Vertex]

	// AddEdge is the same as AddRegularEdge.
	AddEdge(to Vertex, class string) (Edge, error)

	// AddRegularEdge creates edge record of class from this vertex to vertex to.
	AddRegularEdge(to Vertex, class string) (Edge, error)

	// AddLightweightEdge links this vertex and to directly, without an edge record.
	AddLightweightEdge(to Vertex, class string) (Edge, error)

	// EdgeFieldNames returns names of existing adjacency properties for
	// edges in direction dir with labels.
	EdgeFieldNames(dir Direction, labels ...string) []string

	// Delete deletes the vertex together with all its edges.
	Delete() error
}

// vertexView implements Vertex over a record.
type vertexView struct {
	rec *Record
}

var _ Vertex = (*vertexView)(nil)

// AsVertex returns vertex view of r, if r is a vertex.
func (r *Record) AsVertex() (Vertex, bool) {
	if r == nil || r.Kind() != KindVertex {
		return nil, false
	}
	return &vertexView{r}, true
}

// NewVertex creates new detached vertex of class; "" means V.
func NewVertex(sch *schema.Schema, class string) (Vertex, error) {
	class, err := vertexClass(sch, class)
	if err != nil {
		return nil, err
	}
	return &vertexView{NewRecord(sch, class)}, nil
}

func vertexClass(sch *schema.Schema, class string) (string, error) {
	if class == "" {
		class = schema.VertexClass
	}
	c := sch.Class(class)
	switch {
	case c == nil:
		return "", &ArgumentError{Op: "new vertex", Arg: class, Msg: "no such class"}
	case !c.IsVertexType():
		return "", &ArgumentError{Op: "new vertex", Arg: class, Msg: "not a vertex class"}
	case c.Abstract:
		return "", &ArgumentError{Op: "new vertex", Arg: class, Msg: "class is abstract"}
	}
	return class, nil
}

func (v *vertexView) Identity() RID   { return v.rec.rid }
func (v *vertexView) Record() *Record { return v.rec }
func (v *vertexView) String() string  { return v.rec.String() }

func (v *vertexView) EdgeFieldNames(dir Direction, labels ...string) []string {
	r := v.rec
	prefixes := dir.prefixes()

	if len(labels) == 0 {
		var names []string
		for _, name := range r.PropertyNames() {
			for _, prefix := range prefixes {
				if len(name) > len(prefix) && name[:len(prefix)] == prefix {
					names = append(names, name)
					break
				}
			}
		}
		return names
	}

	var names []string
	seen := map[string]bool{}
	for _, label := range labels {
		classes := []string{label}
		if c := r.sch.Class(label); c != nil {
			classes[0] = c.Name
			for _, sub := range c.AllSubClasses() {
				classes = append(classes, sub.Name)
			}
		}
		for _, prefix := range prefixes {
			for _, class := range classes {
				name := prefix + class
				if !seen[name] && r.HasProperty(name) {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
	}
	return names
}

func (v *vertexView) Edges(dir Direction, labels ...string) iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for _, name := range v.EdgeFieldNames(dir, labels...) {
			fdir, class, _ := parseAdjacencyField(name)
			for _, link := range adjacentLinks(v.rec, name) {
				e := v.edgeFor(fdir, class, link)
				if e == nil {
					continue
				}
				if !yield(e) {
					return
				}
			}
		}
	}
}

// edgeFor classifies link found in adjacency property for edges of class in direction dir.
func (v *vertexView) edgeFor(dir Direction, class string, link Identifiable) Edge {
	r := v.rec
	other, ok := link.(*Record)
	if !ok {
		log.V(1).Infof(r.ctx(), "%s: %s_%s: skip unresolved link %s", r, dir, class, link.Identity())
		return nil
	}
	switch other.Kind() {
	case KindVertex:
		ov := &vertexView{other}
		if dir == Out {
			return &lightweightEdge{from: v, to: ov, class: class}
		}
		return &lightweightEdge{from: ov, to: v, class: class}
	case KindEdge:
		return &statefulEdge{other}
	}
	log.Warningf(r.ctx(), "%s: %s_%s: skip %s: neither vertex nor edge", r, dir, class, other)
	return nil
}

func (v *vertexView) Vertices(dir Direction, labels ...string) iter.Seq[Vertex] {
	return func(yield func(Vertex) bool) {
		for e := range v.Edges(dir, labels...) {
			from, to := e.From(), e.To()
			var other Vertex
			switch {
			case dir == Out:
				other = to
			case dir == In:
				other = from
			case from != nil && from.Record() == v.rec:
				other = to
			default:
				other = from
			}
			if other == nil {
				continue
			}
			if !yield(other) {
				return
			}
		}
	}
}

func (v *vertexView) AddEdge(to Vertex, class string) (Edge, error) {
	return v.AddRegularEdge(to, class)
}

func (v *vertexView) checkPeer(to Vertex) error {
	if to == nil {
		return &ArgumentError{Op: "add edge", Arg: "to", Msg: "nil vertex"}
	}
	s1, s2 := v.rec.session, to.Record().session
	if s1 != nil && s2 != nil && s1 != s2 {
		return stateErr(NotBound, "add edge "+v.rec.String()+" -> "+to.Record().String(),
			"vertices belong to different sessions")
	}
	return nil
}

func (v *vertexView) AddRegularEdge(to Vertex, class string) (_ Edge, err error) {
	if err := v.checkPeer(to); err != nil {
		return nil, err
	}
	from := v.rec
	toRec := to.Record()
	class, err = edgeClass(from, class)
	if err != nil {
		return nil, err
	}

	e := from.newSibling(class)
	if err := e.setPropertyInternal(edgeOut, from, schema.Link); err != nil {
		return nil, err
	}
	if err := e.setPropertyInternal(edgeIn, toRec, schema.Link); err != nil {
		return nil, err
	}
	if err := addAdjacency(from, Out, class, e); err != nil {
		return nil, err
	}
	if err := addAdjacency(toRec, In, class, e); err != nil {
		removeAdjacency(from, Out, class, e)
		return nil, err
	}
	return &statefulEdge{e}, nil
}

func (v *vertexView) AddLightweightEdge(to Vertex, class string) (_ Edge, err error) {
	if err := v.checkPeer(to); err != nil {
		return nil, err
	}
	from := v.rec
	toRec := to.Record()
	class, err = edgeClass(from, class)
	if err != nil {
		return nil, err
	}
	if err := addAdjacency(from, Out, class, toRec); err != nil {
		return nil, err
	}
	if err := addAdjacency(toRec, In, class, from); err != nil {
		removeAdjacency(from, Out, class, toRec)
		return nil, err
	}
	return &lightweightEdge{from: v, to: &vertexView{toRec}, class: class}, nil
}

func (v *vertexView) Delete() error {
	return v.rec.deleteRecord()
}

// newSibling creates new record of class in the same session as r.
func (r *Record) newSibling(class string) *Record {
	if r.session != nil {
		return r.session.NewRecord(class)
	}
	return NewRecord(r.sch, class)
}

// deleteRecord deletes r through its session, or marks detached r deleted.
func (r *Record) deleteRecord() error {
	if r.session != nil {
		return r.session.Delete(r)
	}
	if err := r.unlinkGraph(); err != nil {
		return err
	}
	r.status = statusDeleted
	return nil
}
