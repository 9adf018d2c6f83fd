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
// embedded containers: List, Set, Map

import (
	"iter"
	"slices"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// List is a tracked ordered collection of embedded values.
type List struct {
	track Tracker
	items []any
}

// NewList creates new detached list with items.
func NewList(items ...any) *List {
	l := &List{}
	for _, v := range items {
		l.items = append(l.items, normalize(v))
	}
	return l
}

func (l *List) Tracker() *Tracker   { return &l.track }
func (l *List) Type() schema.Type   { return schema.EmbeddedList }
func (l *List) Len() int            { return len(l.items) }
func (l *List) Values() []any       { return append([]any(nil), l.items...) }
func (l *List) Get(i int) any       { return l.items[i] }
func (l *List) Contains(v any) bool { return indexOf(l.items, v) >= 0 }

// All iterates over list elements with their indices.
func (l *List) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, v := range l.items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Add appends v to the list.
func (l *List) Add(v any) {
	l.Insert(len(l.items), v)
}

// Insert puts v at index i shifting following elements.
func (l *List) Insert(i int, v any) {
	v = normalize(v)
	l.items = append(l.items, nil)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v
	attachValue(v, l.track.owner)
	l.track.Add(i, v, true)
}

// Set replaces element at index i and returns the previous one.
func (l *List) Set(i int, v any) (old any) {
	v = normalize(v)
	old = l.items[i]
	if valuesEqual(old, v) {
		return old
	}
	l.items[i] = v
	detachValue(old)
	attachValue(v, l.track.owner)
	l.track.Update(i, v, old, true)
	return old
}

// RemoveAt removes element at index i and returns it.
func (l *List) RemoveAt(i int) any {
	old := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	detachValue(old)
	l.track.Remove(i, old, true)
	return old
}

// Remove removes the first element equal to v.
func (l *List) Remove(v any) bool {
	i := indexOf(l.items, v)
	if i < 0 {
		return false
	}
	l.RemoveAt(i)
	return true
}

// Clear removes all elements.
func (l *List) Clear() {
	for i := len(l.items) - 1; i >= 0; i-- {
		l.RemoveAt(i)
	}
}

func (l *List) attach(owner *Record) {
	l.track.attach(owner)
	for _, v := range l.items {
		attachValue(v, owner)
	}
}

func (l *List) clone() TrackedMultiValue {
	c := &List{items: make([]any, len(l.items))}
	for i, v := range l.items {
		c.items[i] = cloneValue(v)
	}
	return c
}

func (l *List) rollback(events []ChangeEvent) {
	for k := len(events) - 1; k >= 0; k-- {
		ev := events[k]
		i, ok := ev.Key.(int)
		if !ok {
			continue // taken over from a set on conversion
		}
		switch ev.Kind {
		case Add:
			if i < len(l.items) {
				l.items = slices.Delete(l.items, i, i+1)
			}
		case Remove:
			l.items = insertAt(l.items, i, ev.OldValue)
		case Update:
			if i < len(l.items) {
				l.items[i] = ev.OldValue
			}
		}
	}
}

// Set is a tracked collection of unique embedded values kept in insertion order.
type Set struct {
	track Tracker
	items []any
}

// NewSet creates new detached set with items; duplicates are dropped.
func NewSet(items ...any) *Set {
	s := &Set{}
	for _, v := range items {
		v = normalize(v)
		if indexOf(s.items, v) < 0 {
			s.items = append(s.items, v)
		}
	}
	return s
}

func (s *Set) Tracker() *Tracker   { return &s.track }
func (s *Set) Type() schema.Type   { return schema.EmbeddedSet }
func (s *Set) Len() int            { return len(s.items) }
func (s *Set) Values() []any       { return append([]any(nil), s.items...) }
func (s *Set) Contains(v any) bool { return indexOf(s.items, normalize(v)) >= 0 }

// Add adds v to the set and returns whether it was not there before.
func (s *Set) Add(v any) bool {
	v = normalize(v)
	if indexOf(s.items, v) >= 0 {
		return false
	}
	s.items = append(s.items, v)
	attachValue(v, s.track.owner)
	s.track.Add(v, v, true)
	return true
}

// Remove removes v from the set and returns whether it was there.
func (s *Set) Remove(v any) bool {
	i := indexOf(s.items, normalize(v))
	if i < 0 {
		return false
	}
	old := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	detachValue(old)
	s.track.RemoveAt(old, old, i, true)
	return true
}

func (s *Set) attach(owner *Record) {
	s.track.attach(owner)
	for _, v := range s.items {
		attachValue(v, owner)
	}
}

func (s *Set) clone() TrackedMultiValue {
	c := &Set{items: make([]any, len(s.items))}
	for i, v := range s.items {
		c.items[i] = cloneValue(v)
	}
	return c
}

func (s *Set) rollback(events []ChangeEvent) {
	for k := len(events) - 1; k >= 0; k-- {
		ev := events[k]
		switch ev.Kind {
		case Add:
			if i := indexOf(s.items, ev.Value); i >= 0 {
				s.items = append(s.items[:i], s.items[i+1:]...)
			}
		case Remove:
			if indexOf(s.items, ev.OldValue) < 0 {
				s.items = insertAt(s.items, ev.Index, ev.OldValue)
			}
		case Update:
			if i := indexOf(s.items, ev.Value); i >= 0 {
				s.items[i] = ev.OldValue
			}
		}
	}
}

// Map is a tracked string-keyed collection of embedded values kept in insertion order.
type Map struct {
	track Tracker
	keys  []string
	m     map[string]any
}

// NewMap creates new detached map from m.
//
// Keys are ordered lexically since Go maps have no order.
func NewMap(m map[string]any) *Map {
	mm := &Map{m: make(map[string]any, len(m))}
	for _, k := range sortedKeys(m) {
		mm.keys = append(mm.keys, k)
		mm.m[k] = normalize(m[k])
	}
	return mm
}

func (m *Map) Tracker() *Tracker   { return &m.track }
func (m *Map) Type() schema.Type   { return schema.EmbeddedMap }
func (m *Map) Len() int            { return len(m.keys) }
func (m *Map) Keys() []string      { return append([]string(nil), m.keys...) }
func (m *Map) getRaw(k string) any { return m.m[k] }

func (m *Map) Values() []any {
	vv := make([]any, len(m.keys))
	for i, k := range m.keys {
		vv[i] = m.m[k]
	}
	return vv
}

// Get returns value under key k.
func (m *Map) Get(k string) (any, bool) {
	v, ok := m.m[k]
	return v, ok
}

// All iterates over map entries in insertion order.
func (m *Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range m.keys {
			if !yield(k, m.m[k]) {
				return
			}
		}
	}
}

// Put sets value under key k.
func (m *Map) Put(k string, v any) {
	v = normalize(v)
	if m.m == nil {
		m.m = make(map[string]any)
	}
	old, had := m.m[k]
	if had && valuesEqual(old, v) {
		return
	}
	m.m[k] = v
	attachValue(v, m.track.owner)
	if had {
		detachValue(old)
		m.track.Update(k, v, old, true)
	} else {
		m.keys = append(m.keys, k)
		m.track.Add(k, v, true)
	}
}

// Delete removes key k and returns whether it was there.
func (m *Map) Delete(k string) bool {
	old, had := m.m[k]
	if !had {
		return false
	}
	delete(m.m, k)
	var i int
	m.keys, i = removeKey(m.keys, k)
	detachValue(old)
	m.track.RemoveAt(k, old, i, true)
	return true
}

func (m *Map) attach(owner *Record) {
	m.track.attach(owner)
	for _, v := range m.m {
		attachValue(v, owner)
	}
}

func (m *Map) clone() TrackedMultiValue {
	c := &Map{keys: append([]string(nil), m.keys...), m: make(map[string]any, len(m.m))}
	for k, v := range m.m {
		c.m[k] = cloneValue(v)
	}
	return c
}

func (m *Map) rollback(events []ChangeEvent) {
	if m.m == nil {
		m.m = make(map[string]any)
	}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		k := ev.Key.(string)
		switch ev.Kind {
		case Add:
			delete(m.m, k)
			m.keys, _ = removeKey(m.keys, k)
		case Update:
			m.m[k] = ev.OldValue
		case Remove:
			m.m[k] = ev.OldValue
			m.keys = insertAt(m.keys, ev.Index, k)
		}
	}
}

// removeKey removes k from keys and returns where it was, or -1.
func removeKey(keys []string, k string) ([]string, int) {
	for i, kk := range keys {
		if kk == k {
			return append(keys[:i], keys[i+1:]...), i
		}
	}
	return keys, -1
}

// insertAt inserts v into xv at i; i beyond the end appends.
func insertAt[T any](xv []T, i int, v T) []T {
	if i < 0 || i >= len(xv) {
		return append(xv, v)
	}
	return slices.Insert(xv, i, v)
}
