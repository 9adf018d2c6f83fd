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
	"bytes"
	"reflect"
	"time"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// keyedMultiValue is implemented by Map and LinkMap.
type keyedMultiValue interface {
	TrackedMultiValue
	Keys() []string
	getRaw(key string) any
}

// valuesEqual compares two property values.
//
// Links are equal if they refer to the same record. Embedded records are
// equal if their properties are equal. Sets and bags are compared
// regardless of element order.
func valuesEqual(a, b any) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case []byte:
		bb, ok := b.([]byte)
		return ok && bytes.Equal(a, bb)
	case time.Time:
		bt, ok := b.(time.Time)
		return ok && a.Equal(bt)
	case *Record:
		if a.embedded {
			br, ok := b.(*Record)
			return ok && br.embedded && recordsEqual(a, br)
		}
		bi, ok := b.(Identifiable)
		return ok && sameLink(a, bi)
	case RID:
		bi, ok := b.(Identifiable)
		return ok && sameLink(a, bi)
	case TrackedMultiValue:
		bm, ok := b.(TrackedMultiValue)
		return ok && multiValuesEqual(a, bm)
	}

	if reflect.TypeOf(a).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func multiValuesEqual(a, b TrackedMultiValue) bool {
	if a.Type() != b.Type() || a.Len() != b.Len() {
		return false
	}

	switch a.Type() {
	case schema.EmbeddedMap, schema.LinkMap:
		ak := a.(keyedMultiValue)
		bk := b.(keyedMultiValue)
		for _, k := range ak.Keys() {
			if !valuesEqual(ak.getRaw(k), bk.getRaw(k)) {
				return false
			}
		}
		return true

	case schema.EmbeddedSet, schema.LinkSet, schema.LinkBag:
		bv := b.Values()
		used := make([]bool, len(bv))
	next:
		for _, x := range a.Values() {
			for i, y := range bv {
				if !used[i] && valuesEqual(x, y) {
					used[i] = true
					continue next
				}
			}
			return false
		}
		return true
	}

	av, bv := a.Values(), b.Values()
	for i := range av {
		if !valuesEqual(av[i], bv[i]) {
			return false
		}
	}
	return true
}

// recordsEqual compares class and properties of two records.
func recordsEqual(a, b *Record) bool {
	if a.className != b.className {
		return false
	}
	an, bn := a.existingNames(), b.existingNames()
	if len(an) != len(bn) {
		return false
	}
	for _, name := range an {
		be := b.fields[name]
		if be == nil || !be.exists {
			return false
		}
		if !valuesEqual(a.fields[name].value, be.value) {
			return false
		}
	}
	return true
}

// indexOf returns index of the first element of xv equal to v, or -1.
func indexOf(xv []any, v any) int {
	for i, x := range xv {
		if valuesEqual(x, v) {
			return i
		}
	}
	return -1
}
