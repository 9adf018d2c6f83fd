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
// property value type inference and conversion

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// Values of properties are kept in canonical Go types:
//
//	BOOLEAN   bool        INTEGER   int32      SHORT    int16
//	LONG      int64       BYTE      int8       FLOAT    float32
//	DOUBLE    float64     STRING    string     BINARY   []byte
//	DATETIME  time.Time   DATE      time.Time (UTC midnight)
//	EMBEDDED  *Record (embedded)
//	LINK      RID | *Record
//	EMBEDDEDLIST *List    EMBEDDEDSET *Set     EMBEDDEDMAP *Map
//	LINKLIST  *LinkList   LINKSET  *LinkSet    LINKMAP  *LinkMap   LINKBAG *LinkBag

const dateTimeLayout = "2006-01-02 15:04:05"
const dateLayout = "2006-01-02"

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalize brings untyped Go value v, e.g. a container element, to canonical form.
//
// Unsigned integers beyond int64 range become float64.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return normalizeUint(x)
	case []any:
		return NewList(x...)
	case map[string]any:
		return NewMap(x)
	case []Identifiable:
		return NewLinkList(x...)
	case []*Record:
		return NewLinkList(recordsToLinks(x)...)
	case map[string]Identifiable:
		return NewLinkMap(x)
	}
	return v
}

// cloneItems returns deep copies of container elements, so that embedded
// records are not shared between the source and the converted container.
func cloneItems(xv []any) []any {
	c := make([]any, len(xv))
	for i, v := range xv {
		c[i] = cloneValue(v)
	}
	return c
}

func normalizeUint(x uint64) any {
	if x > math.MaxInt64 {
		return float64(x)
	}
	return int64(x)
}

func recordsToLinks(rv []*Record) []Identifiable {
	lv := make([]Identifiable, len(rv))
	for i, r := range rv {
		lv[i] = r
	}
	return lv
}

// asLinks returns v's elements as links if v is a slice of links only.
func asLinks(v any) ([]Identifiable, bool) {
	switch x := v.(type) {
	case []Identifiable:
		return x, true
	case []*Record:
		return recordsToLinks(x), true
	case []RID:
		lv := make([]Identifiable, len(x))
		for i, rid := range x {
			lv[i] = rid
		}
		return lv, true
	case []any:
		lv := make([]Identifiable, 0, len(x))
		for _, e := range x {
			link, ok := e.(Identifiable)
			if !ok || isEmbeddedRecord(e) {
				return nil, false
			}
			lv = append(lv, link)
		}
		return lv, true
	}
	return nil, false
}

// asLinkMap returns v as map of links if all v values are links.
func asLinkMap(v any) (map[string]Identifiable, bool) {
	switch x := v.(type) {
	case map[string]Identifiable:
		return x, true
	case map[string]any:
		m := make(map[string]Identifiable, len(x))
		for k, e := range x {
			link, ok := e.(Identifiable)
			if !ok || isEmbeddedRecord(e) {
				return nil, false
			}
			m[k] = link
		}
		return m, true
	}
	return nil, false
}

func isEmbeddedRecord(v any) bool {
	r, ok := v.(*Record)
	return ok && r.embedded
}

// asAnySlice returns elements of any Go slice/array v.
func asAnySlice(v any) ([]any, bool) {
	if x, ok := v.([]any); ok {
		return x, true
	}
	if _, isbytes := v.([]byte); isbytes {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	xv := make([]any, rv.Len())
	for i := range xv {
		xv[i] = rv.Index(i).Interface()
	}
	return xv, true
}

// asAnyMap returns entries of any Go map with string keys.
func asAnyMap(v any) (map[string]any, bool) {
	if x, ok := v.(map[string]any); ok {
		return x, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

// inferType returns property type for value v, or Any if v is not supported.
func inferType(v any) schema.Type {
	switch x := v.(type) {
	case nil:
		return schema.Any
	case bool:
		return schema.Boolean
	case int8:
		return schema.Byte
	case int16:
		return schema.Short
	case int32:
		return schema.Integer
	case int, int64, uint, uint8, uint16, uint32, uint64:
		return schema.Long
	case float32:
		return schema.Float
	case float64:
		return schema.Double
	case string:
		return schema.String
	case []byte:
		return schema.Binary
	case time.Time:
		return schema.DateTime
	case RID:
		return schema.Link
	case *Record:
		if x.embedded {
			return schema.Embedded
		}
		return schema.Link
	case TrackedMultiValue:
		return x.Type()
	}

	if lv, ok := asLinks(v); ok && len(lv) > 0 {
		return schema.LinkList
	}
	if lm, ok := asLinkMap(v); ok && len(lm) > 0 {
		return schema.LinkMap
	}
	if _, ok := asAnySlice(v); ok {
		return schema.EmbeddedList
	}
	if _, ok := asAnyMap(v); ok {
		return schema.EmbeddedMap
	}
	return schema.Any
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case float32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case time.Time:
		return x.UnixMilli(), nil
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	}
	n, err := toInt64(v)
	return float64(n), err
}

func toIntRange(v any, min, max int64) (int64, error) {
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, min, max)
	}
	return n, nil
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, dateTimeLayout, dateLayout} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as time", x)
	}
	ms, err := toInt64(v)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// convertValue converts v to canonical value of type typ.
//
// typ = Any means to infer the type from v. The effective type is returned.
// owner is used to create embedded records from Go maps.
func convertValue(v any, typ schema.Type, owner *Record) (_ any, _ schema.Type, err error) {
	if v == nil {
		return nil, typ, nil
	}
	if typ == schema.Any {
		typ = inferType(v)
		if typ == schema.Any {
			return nil, typ, fmt.Errorf("unsupported value type %T", v)
		}
	}

	bad := func() (any, schema.Type, error) {
		return nil, typ, fmt.Errorf("cannot convert %T to %s", v, typ)
	}

	var x any
	switch typ {
	case schema.Boolean:
		switch b := v.(type) {
		case bool:
			x = b
		case string:
			x, err = strconv.ParseBool(b)
		default:
			var n int64
			n, err = toInt64(v)
			x = n != 0
		}

	case schema.Integer:
		var n int64
		n, err = toIntRange(v, math.MinInt32, math.MaxInt32)
		x = int32(n)
	case schema.Short:
		var n int64
		n, err = toIntRange(v, math.MinInt16, math.MaxInt16)
		x = int16(n)
	case schema.Byte:
		var n int64
		n, err = toIntRange(v, math.MinInt8, math.MaxInt8)
		x = int8(n)
	case schema.Long:
		x, err = toInt64(v)

	case schema.Float:
		var f float64
		f, err = toFloat64(v)
		x = float32(f)
	case schema.Double:
		x, err = toFloat64(v)

	case schema.String:
		switch s := v.(type) {
		case string:
			x = s
		case []byte:
			x = string(s)
		case fmt.Stringer:
			x = s.String()
		case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			x = fmt.Sprint(s)
		default:
			return bad()
		}

	case schema.Binary:
		switch b := v.(type) {
		case []byte:
			x = b
		case string:
			x = []byte(b)
		default:
			return bad()
		}

	case schema.DateTime:
		x, err = toTime(v)
	case schema.Date:
		var t time.Time
		t, err = toTime(v)
		x = truncateDate(t)

	case schema.Embedded:
		switch r := v.(type) {
		case *Record:
			if !r.embedded {
				if r.rid.IsValid() {
					return nil, typ, fmt.Errorf("record %s has identity and cannot be embedded", r.rid)
				}
				r.embedded = true
				r.dirtyManager().removeNew(r)
			}
			x = r
		default:
			m, ok := asAnyMap(v)
			if !ok {
				return bad()
			}
			x, err = embeddedFromMap(m, owner)
		}

	case schema.EmbeddedList:
		switch l := v.(type) {
		case *List:
			x = l
		case *Set:
			nl := NewList(cloneItems(l.items)...)
			nl.track.SourceFrom(&l.track)
			x = nl
		default:
			xv, ok := asAnySlice(v)
			if !ok {
				return bad()
			}
			x = NewList(xv...)
		}

	case schema.EmbeddedSet:
		switch s := v.(type) {
		case *Set:
			x = s
		case *List:
			ns := NewSet(cloneItems(s.items)...)
			ns.track.SourceFrom(&s.track)
			x = ns
		default:
			xv, ok := asAnySlice(v)
			if !ok {
				return bad()
			}
			x = NewSet(xv...)
		}

	case schema.EmbeddedMap:
		switch m := v.(type) {
		case *Map:
			x = m
		default:
			mm, ok := asAnyMap(v)
			if !ok {
				return bad()
			}
			x = NewMap(mm)
		}

	case schema.Link:
		switch l := v.(type) {
		case RID:
			x = l
		case *Record:
			if l.embedded {
				return nil, typ, fmt.Errorf("embedded record cannot be linked")
			}
			x = l
		case string:
			x, err = ParseRID(l)
		default:
			return bad()
		}

	case schema.LinkList, schema.LinkSet, schema.LinkBag:
		if mv, ok := v.(TrackedMultiValue); ok && mv.Type() == typ {
			x = mv
			break
		}
		var lv []Identifiable
		var src *Tracker
		if mv, ok := v.(TrackedMultiValue); ok && mv.Type().IsLink() {
			lv, ok = asLinks(mv.Values())
			if !ok {
				return bad()
			}
			src = mv.Tracker()
		} else {
			var ok bool
			lv, ok = asLinks(v)
			if !ok {
				return bad()
			}
		}
		var mv TrackedMultiValue
		switch typ {
		case schema.LinkList:
			mv = NewLinkList(lv...)
		case schema.LinkSet:
			mv = NewLinkSet(lv...)
		default:
			mv = NewLinkBag(lv...)
		}
		if src != nil {
			mv.Tracker().SourceFrom(src)
		}
		x = mv

	case schema.LinkMap:
		switch m := v.(type) {
		case *LinkMap:
			x = m
		default:
			lm, ok := asLinkMap(v)
			if !ok {
				return bad()
			}
			x = NewLinkMap(lm)
		}

	default:
		return bad()
	}

	if err != nil {
		return nil, typ, fmt.Errorf("convert to %s: %w", typ, err)
	}
	return x, typ, nil
}

// embeddedFromMap creates embedded record out of Go map.
//
// "@class" key, if present, gives the class of the record.
func embeddedFromMap(m map[string]any, owner *Record) (*Record, error) {
	class, _ := m["@class"].(string)
	var rec *Record
	if owner != nil {
		rec = owner.NewEmbeddedChild(class)
	} else {
		rec = NewEmbedded(nil, class)
	}
	for _, k := range sortedKeys(m) {
		if k == "@class" {
			continue
		}
		if err := rec.SetProperty(k, m[k]); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
