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
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/require"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

func TestSetProperty(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	r := NewRecord(nil, "")

	var aerr *ArgumentError
	for _, name := range []string{"", "@rid", "a.b", "a b", "x[0]"} {
		err := r.SetProperty(name, 1)
		assert.True(errors.As(err, &aerr), "set %q: %v", name, err)
	}
	err := r.SetProperty("x", struct{}{})
	assert.True(errors.As(err, &aerr), "%v", err)
	err = r.SetPropertyTyped("x", 300, schema.Byte)
	assert.True(errors.As(err, &aerr), "%v", err)
	assert.False(r.HasProperty("x"))

	X(r.SetProperty("n", 5))
	X(r.SetPropertyTyped("s", 5, schema.String))
	X(r.SetPropertyTyped("d", "2024-05-06T07:08:09Z", schema.Date))
	X(r.SetProperty("b", true))
	X(r.SetPropertyTyped("e", map[string]any{"@class": "Address", "city": "Lille"}, schema.Embedded))
	assert.Equal([]string{"n", "s", "d", "b", "e"}, r.PropertyNames())
	assert.Equal(schema.Long, r.PropertyType("n"))
	assert.Equal(int64(5), r.GetProperty("n"))
	assert.Equal("5", r.GetProperty("s"))
	assert.Equal(schema.Date, r.PropertyType("d"))
	assert.Equal(schema.Embedded, r.PropertyType("e"))

	n, ok := r.GetInt64("n")
	assert.True(ok)
	assert.Equal(int64(5), n)
	_, ok = r.GetString("n")
	assert.False(ok)
	s, ok := r.GetString("s")
	assert.True(ok)
	assert.Equal("5", s)
	b, ok := r.GetBool("b")
	assert.True(ok && b)
	e, ok := r.GetEmbedded("e")
	assert.True(ok)
	assert.Equal("Address", e.ClassName())
	assert.Same(r, e.Owner())
	_, ok = r.GetLink("e")
	assert.False(ok)

	old, err := r.RemoveProperty("n")
	X(err)
	assert.Equal(int64(5), old)
	assert.False(r.HasProperty("n"))
	assert.Nil(r.GetProperty("n"))
	assert.Equal([]string{"s", "d", "b", "e"}, r.PropertyNames())
}

func TestGetPath(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	r := NewRecord(nil, "")
	X(r.SetProperty("tags", []any{"a", "b"}))
	X(r.SetProperty("attrs", map[string]any{"color": map[string]any{"name": "red"}}))
	X(r.SetProperty("addr", map[string]any{"city": "Lille"}))
	X(r.SetProperty("friends", []Identifiable{RID{3, 1}}))

	for _, tt := range []struct {
		path string
		want any
	}{
		{"tags[1]", "b"},
		{"tags[5]", nil},
		{"tags[x]", nil},
		{"attrs[color].name", "red"},
		{"attrs.color.name", "red"},
		{"addr.city", "Lille"},
		{"addr.zip", nil},
		{"nope.x", nil},
		{"friends[0]", RID{3, 1}}, // no session: links stay unresolved
	} {
		v, err := r.GetPath(tt.path)
		X(err)
		assert.Equal(tt.want, v, "path %q", tt.path)
	}

	var aerr *ArgumentError
	for _, path := range []string{"", "[0]", ".a", "a..b", "a[", "a[]", "a[0]b", "a]b"} {
		_, err := r.GetPath(path)
		assert.True(errors.As(err, &aerr), "path %q: %v", path, err)
	}
}

func TestToJSON(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	r := NewRecord(personSchema(), "Person")
	X(r.SetProperty("name", "alice"))
	X(r.SetProperty("age", 30))
	X(r.SetProperty("friend", RID{3, 7}))
	X(r.SetProperty("tags", []any{"x"}))

	data, err := r.ToJSON()
	X(err)
	assert.JSONEq(`{"@rid": "#-1:-1", "@version": 0, "@class": "Person",
		"name": "alice", "age": 30, "friend": "#3:7", "tags": ["x"]}`, string(data))
}

func TestCopy(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	r := NewRecord(nil, "")
	X(r.SetProperty("tags", []any{"a"}))
	X(r.SetPropertyTyped("addr", map[string]any{"city": "Lille"}, schema.Embedded))

	c := r.Copy()
	if d := pretty.Compare(r.ToMap(true), c.ToMap(true)); d != "" {
		t.Fatalf("copy: (-want +have)\n%s", d)
	}

	// copy is independent
	c.GetProperty("tags").(*List).Add("b")
	X(c.GetProperty("addr").(*Record).SetProperty("city", "Paris"))
	assert.Equal(1, r.GetProperty("tags").(*List).Len())
	assert.Equal("Lille", r.GetProperty("addr").(*Record).GetProperty("city"))
	assert.Same(c, c.GetProperty("addr").(*Record).Owner())

	// dirty destination is refused
	var serr *StateError
	err := r.CopyTo(c)
	assert.True(errors.As(err, &serr), "%v", err)
	assert.Equal(DirtyState, serr.Kind)
}

func TestMerge(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)

	newRec := func(props map[string]any) *Record {
		r := NewRecord(nil, "")
		for _, k := range sortedKeys(props) {
			X(r.SetProperty(k, props[k]))
		}
		return r
	}
	a := newRec(map[string]any{
		"l": []any{1, 2},
		"m": map[string]any{"x": 1},
		"s": "a",
	})
	X(a.SetProperty("bag", NewLinkBag(RID{1, 1}, RID{1, 2})))
	b := newRec(map[string]any{
		"l": []any{2, 3},
		"m": map[string]any{"y": 2},
		"t": true,
	})
	X(b.SetProperty("bag", NewLinkBag(RID{1, 2}, RID{1, 3})))

	X(a.Merge(b, true, true))
	want := map[string]any{
		"l":   []any{int64(1), int64(2), int64(3)},
		"m":   map[string]any{"x": int64(1), "y": int64(2)},
		"s":   "a",
		"t":   true,
		"bag": []any{RID{1, 1}, RID{1, 2}, RID{1, 3}},
	}
	if d := pretty.Compare(want, a.ToMap(false)); d != "" {
		t.Fatalf("merge: (-want +have)\n%s", d)
	}
	assert.Equal(3, a.GetProperty("bag").(*LinkBag).Len())

	// merging again changes nothing
	X(a.Merge(b, true, true))
	if d := pretty.Compare(want, a.ToMap(false)); d != "" {
		t.Fatalf("merge twice: (-want +have)\n%s", d)
	}

	// plain merge makes a copy of other
	X(a.Merge(b, false, false))
	if d := pretty.Compare(b.ToMap(false), a.ToMap(false)); d != "" {
		t.Fatalf("replace: (-want +have)\n%s", d)
	}

	// merged values are not shared
	a.GetProperty("l").(*List).Add(4)
	assert.Equal(2, b.GetProperty("l").(*List).Len())
}

func TestReset(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	r := NewRecord(nil, "")
	X(r.SetProperty("a", 1))
	X(r.Reset())
	assert.Empty(r.PropertyNames())
	assert.False(r.IsDirty())

	e := NewEmbedded(nil, "")
	var serr *StateError
	assert.True(errors.As(e.Reset(), &serr))
}

func TestTrackingOff(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	r := NewRecord(nil, "")
	X(r.SetProperty("a", 1))
	r.clearTrackData()

	r.SetTrackingChanges(false)
	X(r.SetProperty("a", 2))
	assert.Nil(r.OriginalValue("b"))
	r.Undo()
	assert.Equal(int64(2), r.GetProperty("a"))

	r.SetTrackingChanges(true)
	X(r.SetProperty("a", 3))
	assert.Equal(int64(2), r.OriginalValue("a"))
	r.Undo()
	assert.Equal(int64(2), r.GetProperty("a"))
}

func TestStrictClass(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	sch := schema.New()
	doc := mustClass(sch.CreateClass("Doc"))
	doc.Strict = true
	doc.AddProperty("title", schema.String)

	r := NewRecord(sch, "Doc")
	X(r.SetProperty("title", "x"))
	X(r.Validate())

	X(r.SetProperty("extra", 1))
	err := r.Validate()
	var verr *ValidationError
	assert.True(errors.As(err, &verr), "%v", err)
	assert.Equal("strict", verr.Constraint)
	assert.Equal("extra", verr.Property)

	_, err = r.RemoveProperty("extra")
	X(err)
	X(r.Validate())
}
