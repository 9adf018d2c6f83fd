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
// codec-neutral form of records

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// WireRecord is a record in the form codecs serialize.
//
// Codecs convert records to WireRecord with ToWire, and install decoded
// WireRecord into records with FromWire.
type WireRecord struct {
	Class  string      `msgpack:"c"`
	Fields []WireField `msgpack:"f"`
}

// WireField is one property of WireRecord.
type WireField struct {
	Name  string    `msgpack:"n"`
	Value WireValue `msgpack:"v"`
}

// WireValue is one property value, or container element.
//
// Type tells which of the other fields carries the value:
//
//	Boolean                      Bool
//	Byte Short Integer Long      Int
//	Float Double                 Float
//	String                       Str
//	DateTime Date                Str (RFC 3339)
//	Binary                       Bytes
//	Link                         Str (#cluster:position)
//	Embedded                     Record
//	EmbeddedList EmbeddedSet     Items
//	LinkList LinkSet LinkBag     Items
//	EmbeddedMap LinkMap          Keys + Items
//	Any                          null
type WireValue struct {
	Type   schema.Type `msgpack:"t"`
	Bool   bool        `msgpack:"b"`
	Int    int64       `msgpack:"i"`
	Float  float64     `msgpack:"d"`
	Str    string      `msgpack:"s"`
	Bytes  []byte      `msgpack:"x"`
	Items  []WireValue `msgpack:"l"`
	Keys   []string    `msgpack:"k"`
	Record *WireRecord `msgpack:"r"`
}

const wireTimeLayout = time.RFC3339Nano

// ToWire converts class and existing properties of rec to wire form.
func ToWire(rec *Record) (*WireRecord, error) {
	w := &WireRecord{}
	if err := rec.materialize(); err != nil {
		return nil, err
	}
	w.Class = rec.className
	err := rec.ForEachRaw(func(name string, value any, typ schema.Type) error {
		wv, err := toWireValue(value, typ)
		if err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		w.Fields = append(w.Fields, WireField{Name: name, Value: wv})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func toWireValue(v any, typ schema.Type) (WireValue, error) {
	if v == nil {
		return WireValue{Type: schema.Any}, nil
	}
	if typ == schema.Any {
		typ = inferType(v)
	}
	w := WireValue{Type: typ}

	bad := func() (WireValue, error) {
		return w, fmt.Errorf("cannot serialize %T as %s", v, typ)
	}

	switch x := v.(type) {
	case bool:
		w.Bool = x
	case int8:
		w.Int = int64(x)
	case int16:
		w.Int = int64(x)
	case int32:
		w.Int = int64(x)
	case int64:
		w.Int = x
	case float32:
		w.Float = float64(x)
	case float64:
		w.Float = x
	case string:
		w.Str = x
	case []byte:
		w.Bytes = x
	case time.Time:
		w.Str = x.Format(wireTimeLayout)

	case RID:
		if !x.IsPersistent() {
			return w, fmt.Errorf("link to %s: record is not saved", x)
		}
		w.Type = schema.Link
		w.Str = x.String()

	case *Record:
		if x.embedded {
			rec, err := ToWire(x)
			if err != nil {
				return w, err
			}
			w.Type = schema.Embedded
			w.Record = rec
			break
		}
		if !x.rid.IsPersistent() {
			return w, fmt.Errorf("link to %s: record is not saved", x)
		}
		w.Type = schema.Link
		w.Str = x.rid.String()

	case *Map:
		w.Type = schema.EmbeddedMap
		for _, k := range x.keys {
			item, err := toWireValue(x.m[k], schema.Any)
			if err != nil {
				return w, err
			}
			w.Keys = append(w.Keys, k)
			w.Items = append(w.Items, item)
		}

	case *LinkMap:
		w.Type = schema.LinkMap
		for _, k := range x.keys {
			item, err := toWireValue(x.m[k], schema.Link)
			if err != nil {
				return w, err
			}
			w.Keys = append(w.Keys, k)
			w.Items = append(w.Items, item)
		}

	case TrackedMultiValue:
		w.Type = x.Type()
		elemType := schema.Any
		if w.Type.IsLink() {
			elemType = schema.Link
		}
		for _, elem := range x.Values() {
			item, err := toWireValue(elem, elemType)
			if err != nil {
				return w, err
			}
			w.Items = append(w.Items, item)
		}

	default:
		return bad()
	}
	return w, nil
}

// FromWire installs class and properties of w into rec being decoded.
//
// If fields is not empty only those properties are installed.
//
// Strings and bytes of w may point into the buffer w was decoded from, which
// is released after decoding; everything installed into rec is copied.
func FromWire(rec *Record, w *WireRecord, fields []string) error {
	rec.SetLoadedClass(strings.Clone(w.Class))
	var want map[string]bool
	if len(fields) != 0 {
		want = make(map[string]bool, len(fields))
		for _, name := range fields {
			want[name] = true
		}
	}
	for _, f := range w.Fields {
		if want != nil && !want[f.Name] {
			continue
		}
		v, err := fromWireValue(rec, f.Value)
		if err != nil {
			return fmt.Errorf("decode %s: property %q: %w", rec.rid, f.Name, err)
		}
		rec.SetLoadedProperty(strings.Clone(f.Name), v, f.Value.Type)
	}
	return nil
}

func fromWireValue(owner *Record, w WireValue) (any, error) {
	switch w.Type {
	case schema.Any:
		return nil, nil
	case schema.Boolean:
		return w.Bool, nil
	case schema.Byte:
		return int8(w.Int), nil
	case schema.Short:
		return int16(w.Int), nil
	case schema.Integer:
		return int32(w.Int), nil
	case schema.Long:
		return w.Int, nil
	case schema.Float:
		return float32(w.Float), nil
	case schema.Double:
		return w.Float, nil
	case schema.String:
		return strings.Clone(w.Str), nil
	case schema.Binary:
		return bytes.Clone(w.Bytes), nil
	case schema.DateTime, schema.Date:
		return time.Parse(wireTimeLayout, w.Str)
	case schema.Link:
		return ParseRID(w.Str)

	case schema.Embedded:
		if w.Record == nil {
			return nil, fmt.Errorf("embedded record without data")
		}
		e := newRecord(owner.sch, w.Record.Class, owner.session, true)
		e.lazyLoad = owner.lazyLoad
		if err := FromWire(e, w.Record, nil); err != nil {
			return nil, err
		}
		return e, nil

	case schema.EmbeddedList, schema.EmbeddedSet:
		items, err := fromWireItems(owner, w.Items)
		if err != nil {
			return nil, err
		}
		if w.Type == schema.EmbeddedSet {
			return &Set{items: items}, nil
		}
		return &List{items: items}, nil

	case schema.EmbeddedMap:
		if len(w.Keys) != len(w.Items) {
			return nil, fmt.Errorf("map: %d keys for %d values", len(w.Keys), len(w.Items))
		}
		items, err := fromWireItems(owner, w.Items)
		if err != nil {
			return nil, err
		}
		m := &Map{m: make(map[string]any, len(items))}
		for i, k := range w.Keys {
			k = strings.Clone(k)
			m.keys = append(m.keys, k)
			m.m[k] = items[i]
		}
		return m, nil

	case schema.LinkList, schema.LinkSet, schema.LinkBag:
		links, err := fromWireLinks(w.Items)
		if err != nil {
			return nil, err
		}
		switch w.Type {
		case schema.LinkList:
			return &LinkList{items: links}, nil
		case schema.LinkSet:
			return &LinkSet{items: links}, nil
		}
		return NewLinkBag(links...), nil

	case schema.LinkMap:
		if len(w.Keys) != len(w.Items) {
			return nil, fmt.Errorf("link map: %d keys for %d values", len(w.Keys), len(w.Items))
		}
		links, err := fromWireLinks(w.Items)
		if err != nil {
			return nil, err
		}
		m := &LinkMap{m: make(map[string]Identifiable, len(links))}
		for i, k := range w.Keys {
			k = strings.Clone(k)
			m.keys = append(m.keys, k)
			m.m[k] = links[i]
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown value type %d", w.Type)
}

func fromWireItems(owner *Record, wv []WireValue) ([]any, error) {
	items := make([]any, 0, len(wv))
	for _, w := range wv {
		v, err := fromWireValue(owner, w)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func fromWireLinks(wv []WireValue) ([]Identifiable, error) {
	links := make([]Identifiable, 0, len(wv))
	for _, w := range wv {
		if w.Type != schema.Link {
			return nil, fmt.Errorf("%s in link collection", w.Type)
		}
		rid, err := ParseRID(w.Str)
		if err != nil {
			return nil, err
		}
		links = append(links, rid)
	}
	return links, nil
}
