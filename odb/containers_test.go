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
	"testing"

	"github.com/stretchr/testify/require"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// attached returns container set as property of new record with tracking reset.
func attached[T TrackedMultiValue](t *testing.T, v any) (*Record, T) {
	t.Helper()
	r := NewRecord(nil, "")
	if err := r.SetProperty("x", v); err != nil {
		t.Fatal(err)
	}
	r.clearTrackData()
	return r, r.GetProperty("x").(T)
}

func TestListTracking(t *testing.T) {
	assert := require.New(t)
	r, l := attached[*List](t, []any{1, 2, 3})
	assert.False(r.IsDirty())

	l.Add(4)
	l.Set(0, 10)
	l.RemoveAt(1)
	l.Insert(0, "z")
	assert.Equal([]any{"z", int64(10), int64(3), int64(4)}, l.Values())
	assert.True(r.IsDirty())
	assert.Equal([]string{"x"}, r.DirtyFields())
	assert.Equal([]any{int64(1), int64(2), int64(3)}, r.OriginalValue("x").(*List).Values())

	r.Undo()
	assert.Equal([]any{int64(1), int64(2), int64(3)}, l.Values())
	assert.Empty(r.DirtyFields())
}

func TestMapTracking(t *testing.T) {
	assert := require.New(t)
	r, m := attached[*Map](t, map[string]any{"a": 1})

	m.Put("b", 2)
	m.Put("a", 3)
	assert.True(m.Delete("a"))
	assert.False(m.Delete("nope"))
	assert.Equal([]string{"b"}, m.Keys())
	assert.True(r.IsDirty())

	r.Undo()
	assert.Equal([]string{"a"}, m.Keys())
	v, ok := m.Get("a")
	assert.True(ok)
	assert.Equal(int64(1), v)
}

func TestSet(t *testing.T) {
	assert := require.New(t)
	s := NewSet(1, 1, 2)
	assert.Equal(2, s.Len())
	assert.False(s.Add(2))
	assert.True(s.Add(3))
	assert.True(s.Contains(3))
	assert.True(s.Remove(1))
	assert.Equal([]any{int64(2), int64(3)}, s.Values())
}

func TestLinkBag(t *testing.T) {
	assert := require.New(t)
	b := NewLinkBag(RID{1, 5}, RID{1, 2}, RID{1, 5}, nil)
	assert.Equal(3, b.Len())
	assert.Equal(2, b.Count(RID{1, 5}))
	assert.Equal([]any{RID{1, 2}, RID{1, 5}, RID{1, 5}}, b.Values())

	// record without identity waits aside until it gets one
	rec := NewRecord(nil, "")
	b.Add(rec)
	assert.Equal(4, b.Len())
	assert.Equal(1, b.Count(rec))
	assert.Equal([]any{RID{1, 2}, RID{1, 5}, RID{1, 5}, rec}, b.Values())
	rec.rid = RID{1, 3}
	assert.Equal([]any{RID{1, 2}, rec, RID{1, 5}, RID{1, 5}}, b.Values())
	assert.Equal(1, b.Count(RID{1, 3}))

	assert.True(b.Remove(RID{1, 5}))
	assert.False(b.Remove(RID{9, 9}))
	assert.Equal(1, b.Count(RID{1, 5}))
	assert.Equal(3, b.Len())
}

func TestLinkBagTracking(t *testing.T) {
	assert := require.New(t)
	r, b := attached[*LinkBag](t, NewLinkBag(RID{1, 1}, RID{1, 2}))

	b.Add(RID{1, 7})
	b.Remove(RID{1, 2})
	assert.True(r.IsDirty())
	orig := r.OriginalValue("x").(*LinkBag)
	assert.Equal([]any{RID{1, 1}, RID{1, 2}}, orig.Values())

	r.Undo()
	assert.Equal([]any{RID{1, 1}, RID{1, 2}}, b.Values())
}

func TestLinkCollections(t *testing.T) {
	assert := require.New(t)

	l := NewLinkList(RID{1, 1}, nil, RID{1, 1})
	assert.Equal(2, l.Len())
	l.Insert(1, RID{2, 2})
	assert.Equal(RID{2, 2}, l.Get(1))
	assert.True(l.Remove(RID{1, 1}))
	assert.Equal([]any{RID{2, 2}, RID{1, 1}}, l.Values())

	s := NewLinkSet(RID{1, 1}, RID{1, 1})
	assert.Equal(1, s.Len())
	assert.False(s.Add(RID{1, 1}))
	assert.True(s.Add(RID{1, 2}))

	m := NewLinkMap(map[string]Identifiable{"a": RID{1, 1}})
	m.Put("b", RID{1, 2})
	assert.Equal([]string{"a", "b"}, m.Keys())
	assert.Equal(RID{1, 2}, m.Get("b"))
	assert.True(m.Delete("a"))
	assert.Nil(m.Get("a"))
}

func TestDirtyManager(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)

	r1, r2, r3, r4 := NewRecord(nil, ""), NewRecord(nil, ""), NewRecord(nil, ""), NewRecord(nil, "")
	X(r1.SetProperty("x", r2))
	X(r3.SetProperty("y", r4))
	assert.Same(r1.DirtyManager(), r2.DirtyManager())
	assert.NotSame(r1.DirtyManager(), r3.DirtyManager())
	assert.Equal([]*Record{r3, r4}, r4.DirtyManager().NewRecords())

	// linking units merges them; merging again is a no-op
	X(r2.SetProperty("z", r3))
	r4.DirtyManager().Merge(r1.DirtyManager())
	for _, r := range []*Record{r2, r3, r4} {
		assert.Same(r1.DirtyManager(), r.DirtyManager())
	}
	assert.Equal([]*Record{r1, r2, r3, r4}, r1.DirtyManager().NewRecords())
	assert.Empty(r1.DirtyManager().UpdatedRecords())

	r1.DirtyManager().Clear()
	assert.Empty(r4.DirtyManager().NewRecords())
}

func TestUndoKeepsOrder(t *testing.T) {
	assert := require.New(t)

	r, m := attached[*Map](t, map[string]any{"a": 1, "b": 2, "c": 3})
	assert.True(m.Delete("a"))
	assert.True(m.Delete("c"))
	m.Put("a", 4)
	assert.Equal([]string{"b", "a"}, m.Keys())
	assert.Equal([]string{"a", "b", "c"}, r.OriginalValue("x").(*Map).Keys())
	r.Undo()
	assert.Equal([]string{"a", "b", "c"}, m.Keys())

	r, s := attached[*Set](t, NewSet("x", "y", "z"))
	assert.True(s.Remove("x"))
	assert.True(s.Remove("y"))
	r.Undo()
	assert.Equal([]any{"x", "y", "z"}, s.Values())

	r, lm := attached[*LinkMap](t, NewLinkMap(map[string]Identifiable{"a": RID{1, 1}, "b": RID{1, 2}}))
	assert.True(lm.Delete("a"))
	r.Undo()
	assert.Equal([]string{"a", "b"}, lm.Keys())

	r, ls := attached[*LinkSet](t, NewLinkSet(RID{1, 1}, RID{1, 2}, RID{1, 3}))
	assert.True(ls.Remove(RID{1, 2}))
	r.Undo()
	assert.Equal([]any{RID{1, 1}, RID{1, 2}, RID{1, 3}}, ls.Values())
}

func TestConvertContainer(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	sch := schema.New()
	doc := mustClass(sch.CreateClass("Doc"))
	doc.AddProperty("items", schema.EmbeddedSet)
	doc.AddProperty("links", schema.LinkList)

	e := NewEmbedded(nil, "")
	X(e.SetProperty("n", 1))
	src, l := attached[*List](t, []any{"a", e})
	e = l.Get(1).(*Record)
	l.Add("b")

	// list becomes set: history goes along, embedded records are copied
	d := NewRecord(sch, "Doc")
	X(d.SetProperty("items", l))
	s := d.GetProperty("items").(*Set)
	assert.Equal(3, s.Len())
	tl := s.Tracker().Timeline()
	assert.Len(tl, 1)
	assert.Equal(Add, tl[0].Kind)
	c := s.Values()[1].(*Record)
	assert.NotSame(e, c)
	assert.Same(d, c.Owner())
	assert.Same(src, e.Owner())
	assert.Equal(int64(1), c.GetProperty("n"))
	assert.Equal(2, returnOriginalState(s, tl).Len())

	// undo of the source leaves the converted set alone
	src.Undo()
	assert.Equal([]any{"a", e}, l.Values())
	assert.Equal(3, s.Len())
	d.Undo()
	assert.Nil(d.GetProperty("items"))

	// same for links
	_, ls := attached[*LinkSet](t, NewLinkSet(RID{1, 1}))
	ls.Add(RID{1, 2})
	X(d.SetProperty("links", ls))
	ll := d.GetProperty("links").(*LinkList)
	assert.Equal([]any{RID{1, 1}, RID{1, 2}}, ll.Values())
	assert.Len(ll.Tracker().Timeline(), 1)
}

func TestTrackingOffContainers(t *testing.T) {
	assert := require.New(t)
	r, l := attached[*List](t, []any{1})

	r.SetTrackingChanges(false)
	assert.False(l.Tracker().Enabled())
	l.Add(2)
	assert.True(r.IsDirty())
	assert.Empty(l.Tracker().Timeline())
	r.Undo()
	assert.Equal([]any{int64(1), int64(2)}, l.Values())

	r.SetTrackingChanges(true)
	assert.True(l.Tracker().Enabled())
	l.Add(3)
	r.Undo()
	assert.Equal([]any{int64(1), int64(2)}, l.Values())
}

func TestUnsignedElements(t *testing.T) {
	assert := require.New(t)
	big := uint64(1) << 63

	l := NewList(uint(7), uint64(8), big)
	assert.Equal([]any{int64(7), int64(8), float64(big)}, l.Values())
	assert.True(NewSet(big).Contains(big))

	r := NewRecord(nil, "")
	assert.Error(r.SetProperty("u", big))
	assert.NoError(r.SetProperty("u", []any{big}))
	assert.Equal(float64(big), r.GetProperty("u").(*List).Get(0))
}

func TestDirtyManagerMerge(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)

	r := make([]*Record, 5)
	for i := range r {
		r[i] = NewRecord(nil, "")
	}
	X(r[0].SetProperty("x", r[1]))
	root := r[0].DirtyManager().real()
	assert.Equal(2, root.size)

	// single manager with more records than the larger tree
	m := newDirtyManager()
	for _, rec := range r[2:] {
		m.SetDirty(rec)
	}
	root.Merge(m)
	assert.Same(root, m.real())
	assert.Equal(3, root.size)
	assert.Equal(r, root.NewRecords())
	assert.Nil(m.newRecs)

	// merging with itself or once more changes nothing
	root.Merge(root)
	m.Merge(root)
	root.Merge(m)
	assert.Equal(3, root.size)
	assert.Equal(r, m.NewRecords())
	assert.Empty(root.UpdatedRecords())
}
