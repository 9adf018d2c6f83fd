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

package xtesting
// codec conformance

import (
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"

	"lab.nexedi.com/kirr/odb/go/odb"
	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// CodecTestRoundTrip verifies that codec preserves records with values of all types.
func CodecTestRoundTrip(t *testing.T, codec odb.Codec) {
	X := FatalIf(t)

	sch := schema.New()
	addr, err := sch.CreateClass("Address")
	X(err)
	addr.AddProperty("city", schema.String)

	rec := odb.NewRecord(sch, schema.VertexClass)
	set := func(name string, v any, typ schema.Type) {
		t.Helper()
		X(rec.SetPropertyTyped(name, v, typ))
	}
	set("bool", true, schema.Any)
	set("byte", 7, schema.Byte)
	set("short", -300, schema.Short)
	set("int", 1<<20, schema.Integer)
	set("long", int64(1)<<40, schema.Any)
	set("float", 1.5, schema.Float)
	set("double", 2.25, schema.Any)
	set("str", "héllo", schema.Any)
	set("empty", "", schema.Any)
	set("bin", []byte{0, 1, 0xff}, schema.Any)
	set("time", time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC), schema.Any)
	set("date", "2024-05-06", schema.Date)
	set("null", nil, schema.Any)
	set("link", odb.RID{Cluster: 3, Position: 4}, schema.Any)
	set("list", []any{1, "x", []any{true}}, schema.Any)
	set("set", []any{1, 2}, schema.EmbeddedSet)
	set("map", map[string]any{"b": 1, "a": map[string]any{"c": 1.5}}, schema.Any)
	set("links", []odb.Identifiable{odb.RID{Cluster: 1, Position: 1}, odb.RID{Cluster: 1, Position: 2}}, schema.Any)
	set("linkset", []odb.Identifiable{odb.RID{Cluster: 1, Position: 1}}, schema.LinkSet)
	set("bag", odb.NewLinkBag(odb.RID{Cluster: 2, Position: 1}, odb.RID{Cluster: 2, Position: 1}), schema.Any)
	set("linkmap", map[string]odb.Identifiable{"k": odb.RID{Cluster: 1, Position: 9}}, schema.Any)
	set("addr", map[string]any{"@class": "Address", "city": "Lille"}, schema.Embedded)
	set("addrs", []any{map[string]any{"city": "Paris"}}, schema.EmbeddedList)

	data, err := codec.Encode(rec)
	X(err)

	back := odb.NewRecord(sch, "")
	X(codec.Decode(back, data, nil))
	if back.ClassName() != schema.VertexClass {
		t.Fatalf("%s: class: %q;  want %q", codec.Name(), back.ClassName(), schema.VertexClass)
	}
	if d := pretty.Compare(rec.PropertyNames(), back.PropertyNames()); d != "" {
		t.Fatalf("%s: property names: (-want +have)\n%s", codec.Name(), d)
	}
	for _, name := range rec.PropertyNames() {
		if have, want := back.PropertyType(name), rec.PropertyType(name); have != want {
			t.Errorf("%s: %s: type %s;  want %s", codec.Name(), name, have, want)
		}
	}
	if d := pretty.Compare(rec.ToMap(true), back.ToMap(true)); d != "" {
		t.Fatalf("%s: decode: (-want +have)\n%s", codec.Name(), d)
	}

	// partial decode
	part := odb.NewRecord(sch, "")
	X(codec.Decode(part, data, []string{"str", "nope"}))
	if d := pretty.Compare([]string{"str"}, part.PropertyNames()); d != "" {
		t.Fatalf("%s: partial decode: (-want +have)\n%s", codec.Name(), d)
	}

	// links to records without identity cannot be serialized
	bad := odb.NewRecord(sch, "")
	X(bad.SetProperty("link", odb.NewRecord(sch, "")))
	if _, err := codec.Encode(bad); err == nil {
		t.Errorf("%s: encode link to unsaved record: no error", codec.Name())
	}

	if err := codec.Decode(odb.NewRecord(sch, ""), []byte("\xc1garbage"), nil); err == nil {
		t.Errorf("%s: decode garbage: no error", codec.Name())
	}
}
