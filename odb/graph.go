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
// graph view of records
//
// A record whose class derives from V is a vertex, and a record whose class
// derives from E is an edge. Edges of class C leaving a vertex are kept in
// the vertex property out_C, and edges of class C entering it in property
// in_C. An adjacency property holds either links to edge records (regular
// edges) or direct links to the other vertex (lightweight edges, which have
// no record of their own). A stateful edge record links to its endpoints
// via properties out (the source vertex) and in (the destination vertex).

import (
	"fmt"
	"iter"
	"strings"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

const (
	outPrefix = "out_"
	inPrefix  = "in_"
	edgeOut   = "out"
	edgeIn    = "in"
)

// Kind tells which role a record plays in the graph.
type Kind int8

const (
	KindDocument Kind = iota
	KindVertex
	KindEdge
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	}
	return fmt.Sprintf("Kind(%d)", int8(k))
}

// Kind returns graph role of r according to its class.
func (r *Record) Kind() Kind {
	c := r.Class()
	switch {
	case c.IsVertexType():
		return KindVertex
	case c.IsEdgeType():
		return KindEdge
	}
	return KindDocument
}

// Direction is the direction of edges relative to a vertex.
type Direction int8

const (
	Out Direction = iota
	In
	Both
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	case Both:
		return "both"
	}
	return fmt.Sprintf("Direction(%d)", int8(d))
}

// ParseDirection parses "out", "in" or "both".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "out":
		return Out, nil
	case "in":
		return In, nil
	case "both":
		return Both, nil
	}
	return 0, &ArgumentError{Op: "parse direction", Arg: s, Msg: "must be one of out, in, both"}
}

func (d Direction) prefixes() []string {
	switch d {
	case Out:
		return []string{outPrefix}
	case In:
		return []string{inPrefix}
	}
	return []string{outPrefix, inPrefix}
}

// adjacencyField returns name of the vertex property holding edges of class in direction dir.
func adjacencyField(dir Direction, class string) string {
	if dir == In {
		return inPrefix + class
	}
	return outPrefix + class
}

// parseAdjacencyField is the reverse of adjacencyField.
func parseAdjacencyField(name string) (dir Direction, class string, ok bool) {
	switch {
	case strings.HasPrefix(name, outPrefix):
		return Out, name[len(outPrefix):], true
	case strings.HasPrefix(name, inPrefix):
		return In, name[len(inPrefix):], true
	}
	return 0, "", false
}

// VerticesOf returns vertices edges lead to in direction dir: for Out the
// destination of every edge, for In the source.
func VerticesOf(edges iter.Seq[Edge], dir Direction) ([]Vertex, error) {
	if dir == Both {
		return nil, &ArgumentError{Op: "vertices of edges", Arg: dir.String(), Msg: "direction must be out or in"}
	}
	var vv []Vertex
	for e := range edges {
		var v Vertex
		if dir == Out {
			v = e.To()
		} else {
			v = e.From()
		}
		if v != nil {
			vv = append(vv, v)
		}
	}
	return vv, nil
}

// ---- adjacency maintenance ----

// edgeClass checks that class is an edge class of r's schema.
func edgeClass(r *Record, class string) (string, error) {
	if class == "" {
		class = schema.EdgeClass
	}
	c := r.sch.Class(class)
	if c == nil {
		return "", &ArgumentError{Op: "add edge", Arg: class, Msg: "no such class"}
	}
	if !c.IsEdgeType() {
		return "", &ArgumentError{Op: "add edge", Arg: class, Msg: "not an edge class"}
	}
	if c.Abstract {
		return "", &ArgumentError{Op: "add edge", Arg: class, Msg: "class is abstract"}
	}
	return class, nil
}

// addAdjacency adds link to adjacency property of vertex rec.
//
// New properties are created as LinkBag unless rec's class declares them as
// Link or LinkList. A second link into an undeclared single link property
// turns it into LinkBag.
func addAdjacency(rec *Record, dir Direction, class string, link Identifiable) error {
	name := adjacencyField(dir, class)
	declared := rec.declaredType(name)
	cur := rec.GetPropertyRaw(name)

	if cur == nil {
		switch declared {
		case schema.Link:
			return rec.setPropertyInternal(name, link, schema.Link)
		case schema.LinkList:
			return rec.setPropertyInternal(name, NewLinkList(link), schema.LinkList)
		case schema.LinkSet:
			return rec.setPropertyInternal(name, NewLinkSet(link), schema.LinkSet)
		}
		return rec.setPropertyInternal(name, NewLinkBag(link), schema.LinkBag)
	}

	switch x := cur.(type) {
	case *LinkBag:
		x.Add(link)
	case *LinkList:
		x.Add(link)
	case *LinkSet:
		x.Add(link)
	case Identifiable:
		if declared == schema.Link {
			return &ArgumentError{Op: "add edge", Arg: name,
				Msg: fmt.Sprintf("%s: property is declared as single link and already holds %s", rec, x.Identity())}
		}
		return rec.setPropertyInternal(name, NewLinkBag(x, link), schema.LinkBag)
	default:
		return &ArgumentError{Op: "add edge", Arg: name,
			Msg: fmt.Sprintf("%s: property holds %T, not links", rec, cur)}
	}
	return nil
}

// removeAdjacency removes one occurrence of link from adjacency property of vertex rec.
func removeAdjacency(rec *Record, dir Direction, class string, link Identifiable) {
	if rec == nil {
		return
	}
	name := adjacencyField(dir, class)
	switch x := rec.GetPropertyRaw(name).(type) {
	case *LinkBag:
		x.Remove(link)
	case *LinkList:
		x.Remove(link)
	case *LinkSet:
		x.Remove(link)
	case Identifiable:
		if sameLink(x, link) {
			rec.removeProperty(name)
		}
	}
}

// replaceAdjacency replaces one occurrence of old with link in adjacency property of vertex rec.
func replaceAdjacency(rec *Record, dir Direction, class string, old, link Identifiable) error {
	name := adjacencyField(dir, class)
	switch x := rec.GetPropertyRaw(name).(type) {
	case *LinkList:
		for i, l := range x.items {
			if sameLink(l, old) {
				x.Set(i, link)
				return nil
			}
		}
	case Identifiable:
		if sameLink(x, old) {
			return rec.setPropertyInternal(name, link, rec.PropertyType(name))
		}
	default:
		removeAdjacency(rec, dir, class, old)
	}
	return addAdjacency(rec, dir, class, link)
}

// adjacentLinks returns links held by adjacency property name, resolved if possible.
func adjacentLinks(rec *Record, name string) []Identifiable {
	var links []Identifiable
	switch x := rec.GetPropertyRaw(name).(type) {
	case *LinkBag:
		for link := range x.All() {
			links = append(links, link)
		}
	case *LinkList:
		for _, link := range x.All() {
			links = append(links, link)
		}
	case *LinkSet:
		for link := range x.All() {
			links = append(links, link)
		}
	case Identifiable:
		if link, ok := rec.GetProperty(name).(Identifiable); ok {
			links = append(links, link)
		}
	}
	return links
}

// unlinkGraph detaches r from the graph before r is deleted.
//
// Edges of a vertex are deleted. An edge is removed from both its endpoints.
func (r *Record) unlinkGraph() error {
	switch r.Kind() {
	case KindVertex:
		v := &vertexView{r}
		var edges []Edge
		for e := range v.Edges(Both) {
			edges = append(edges, e)
		}
		for _, e := range edges {
			if err := e.Delete(); err != nil {
				return err
			}
		}
	case KindEdge:
		e := &statefulEdge{r}
		e.detach()
	}
	return nil
}
