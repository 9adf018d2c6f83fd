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
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

func collect[T any](seq iter.Seq[T]) []T {
	var xv []T
	for x := range seq {
		xv = append(xv, x)
	}
	return xv
}

func records(vv []Vertex) []*Record {
	var rv []*Record
	for _, v := range vv {
		rv = append(rv, v.Record())
	}
	return rv
}

func mustVertex(t *testing.T, sch *schema.Schema, class, name string) Vertex {
	t.Helper()
	v, err := NewVertex(sch, class)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Record().SetProperty("name", name); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestEdges(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	sch := personSchema()

	alice := mustVertex(t, sch, "Person", "alice")
	bob := mustVertex(t, sch, "Person", "bob")
	a, b := alice.Record(), bob.Record()
	assert.Equal(KindVertex, a.Kind())

	e, err := alice.AddEdge(bob, "Knows")
	X(err)
	X(e.SetProperty("since", 2020))
	assert.False(e.IsLightweight())
	assert.Equal(KindEdge, e.Record().Kind())
	assert.Equal("Knows", e.Label())
	assert.True(e.IsLabeled(schema.EdgeClass))
	assert.False(e.IsLabeled("Person"))
	assert.Same(a, e.From().Record())
	assert.Same(b, e.To().Record())
	v, err := e.Vertex(In)
	X(err)
	assert.Same(b, v.Record())
	_, err = e.Vertex(Both)
	var aerr *ArgumentError
	assert.True(errors.As(err, &aerr), "%v", err)

	// both ends see the edge
	assert.Equal([]string{"out_Knows"}, alice.EdgeFieldNames(Out))
	assert.Equal([]string{"out_Knows"}, alice.EdgeFieldNames(Out, schema.EdgeClass))
	assert.Empty(alice.EdgeFieldNames(In))
	assert.Equal([]string{"in_Knows"}, bob.EdgeFieldNames(Both, "Knows"))
	assert.Equal([]*Record{b}, records(collect(alice.Vertices(Out))))
	assert.Equal([]*Record{a}, records(collect(bob.Vertices(In))))
	assert.Equal([]*Record{a}, records(collect(bob.Vertices(Both))))
	assert.Empty(collect(alice.Vertices(In)))
	assert.Empty(collect(alice.Edges(Out, "Person")))

	vv, err := VerticesOf(bob.Edges(In), In)
	X(err)
	assert.Equal([]*Record{a}, records(vv))
	_, err = VerticesOf(bob.Edges(In), Both)
	assert.True(errors.As(err, &aerr), "%v", err)

	// graph properties cannot be changed directly
	err = a.SetProperty("out_Knows", nil)
	assert.True(errors.As(err, &aerr), "%v", err)
	err = e.Record().SetProperty("in", a)
	assert.True(errors.As(err, &aerr), "%v", err)

	// deleting the edge removes it from both vertices
	X(e.Delete())
	assert.True(e.Record().IsDeleted())
	assert.Empty(collect(alice.Edges(Both)))
	assert.Empty(collect(bob.Edges(Both)))
}

func TestLightweightEdge(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	sch := personSchema()

	alice := mustVertex(t, sch, "Person", "alice")
	bob := mustVertex(t, sch, "Person", "bob")
	a, b := alice.Record(), bob.Record()

	l, err := alice.AddLightweightEdge(bob, "Knows")
	X(err)
	assert.True(l.IsLightweight())
	assert.Nil(l.Record())
	assert.Equal(NilRID, l.Identity())
	assert.Same(a, l.From().Record())
	assert.Same(b, l.To().Record())
	assert.Same(b, l.GetProperty("in"))

	var serr *StateError
	err = l.SetProperty("since", 2020)
	assert.True(errors.As(err, &serr), "%v", err)
	assert.Equal(Unsupported, serr.Kind)

	// adjacency holds the other vertex directly
	bag := a.GetPropertyRaw("out_Knows").(*LinkBag)
	assert.Equal(1, bag.Count(b))

	// edges read back from adjacency are lightweight too
	ev := collect(bob.Edges(In))
	assert.Len(ev, 1)
	assert.True(ev[0].IsLightweight())
	assert.Same(a, ev[0].From().Record())

	// promotion creates edge record in place of direct links
	p, err := l.Promote()
	X(err)
	assert.False(p.IsLightweight())
	assert.NotNil(p.Record())
	assert.Same(a, p.From().Record())
	assert.Same(b, p.To().Record())
	X(p.SetProperty("since", 2021))
	assert.Equal(0, bag.Count(b))
	assert.Equal(1, bag.Count(p.Record()))
	ev = collect(bob.Edges(In))
	assert.Len(ev, 1)
	assert.Same(p.Record(), ev[0].Record())

	// stateful edge promotes to itself
	p2, err := p.Promote()
	X(err)
	assert.Equal(p, p2)

	l2, err := alice.AddLightweightEdge(bob, "Knows")
	X(err)
	X(l2.Delete())
	assert.Equal(1, bag.Len())
	assert.Empty(collect(bob.Vertices(Out)))
}

func TestAdjacencyTypes(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	sch := personSchema()
	fan := mustClass(sch.CreateClass("Fan", schema.VertexClass))
	fan.AddProperty("out_Likes", schema.Link)
	mustClass(sch.CreateClass("Likes", schema.EdgeClass))

	f := mustVertex(t, sch, "Fan", "f")
	x := mustVertex(t, sch, "Person", "x")
	y := mustVertex(t, sch, "Person", "y")

	// declared single link holds one edge only
	_, err := f.AddLightweightEdge(x, "Likes")
	X(err)
	assert.Equal(schema.Link, f.Record().PropertyType("out_Likes"))
	_, err = f.AddLightweightEdge(y, "Likes")
	var aerr *ArgumentError
	assert.True(errors.As(err, &aerr), "%v", err)
	assert.Empty(collect(y.Vertices(In)))

	// undeclared single link is upgraded to a bag
	X(x.Record().setPropertyInternal("out_Knows", y.Record(), schema.Link))
	_, err = x.AddLightweightEdge(f, "Knows")
	X(err)
	assert.Equal(schema.LinkBag, x.Record().PropertyType("out_Knows"))
	assert.Equal([]*Record{y.Record(), f.Record()}, records(collect(x.Vertices(Out))))

	// vertex and edge classes are checked
	_, err = NewVertex(sch, "Knows")
	assert.True(errors.As(err, &aerr), "%v", err)
	_, err = x.AddEdge(y, "Person")
	assert.True(errors.As(err, &aerr), "%v", err)
	v, err := NewVertex(sch, "")
	X(err)
	assert.Equal(schema.VertexClass, v.Record().ClassName())
	e, err := v.AddEdge(x, "")
	X(err)
	assert.Equal(schema.EdgeClass, e.Label())
}

func TestParseDirection(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Direction
	}{
		{"out", Out},
		{"IN", In},
		{"Both", Both},
	} {
		dir, err := ParseDirection(tt.in)
		if err != nil || dir != tt.want {
			t.Errorf("parse %q: %v, %v;  want %v", tt.in, dir, err, tt.want)
		}
	}
	if _, err := ParseDirection("up"); err == nil {
		t.Errorf("parse \"up\": no error")
	}
}

func TestDeleteVertex(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	db := newTestDB(t, personSchema())

	ctx, s := db.session()
	alice, err := s.NewVertex("Person")
	X(err)
	X(alice.Record().SetProperty("name", "alice"))
	bob, err := s.NewVertex("Person")
	X(err)
	X(bob.Record().SetProperty("name", "bob"))
	e, err := alice.AddEdge(bob, "Knows")
	X(err)
	X(e.SetProperty("since", 2020))
	X(s.Save(alice.Record())) // bob and the edge come along
	db.commit(ctx)
	arid, brid, erid := alice.Identity(), bob.Identity(), e.Identity()
	assert.True(erid.IsPersistent())
	assert.Equal(int32(4), erid.Cluster) // Knows

	// edges are followed through storage
	ctx, s, a := db.load(arid)
	av, ok := a.AsVertex()
	assert.True(ok)
	ev := collect(av.Edges(Out))
	assert.Len(ev, 1)
	assert.Equal(erid, ev[0].Identity())
	assert.Equal(int32(2020), ev[0].GetProperty("since"))
	assert.Equal("bob", ev[0].To().Record().GetProperty("name"))

	X(av.Delete())
	assert.True(a.IsDeleted())
	_, err = s.Load(ctx, arid)
	assert.True(isNotFound(err), "%v", err)
	db.commit(ctx)

	ctx, s = db.session()
	for _, rid := range []RID{arid, erid} {
		_, err = s.Load(ctx, rid)
		assert.True(isNotFound(err), "load %s: %v", rid, err)
	}
	b, err := s.Load(ctx, brid)
	X(err)
	assert.Equal(int32(2), b.Version())
	bv, _ := b.AsVertex()
	assert.Empty(collect(bv.Edges(Both)))
}
