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
// link containers: LinkList, LinkSet, LinkMap
//
// Elements are Identifiable: either an unresolved RID or a *Record.
// Accessors resolve RIDs lazily through the owner's session and memoize the
// loaded record in place; links to missing records read as nil. Raw
// accessors never resolve. nil links are ignored on insertion.

import (
	"iter"
	"slices"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// resolveLink resolves link through owner's session if possible.
//
// It returns link itself if it cannot be resolved now, and nil if the
// linked record is missing.
func resolveLink(owner *Record, link Identifiable) (_ Identifiable, replaced bool) {
	rid, ok := link.(RID)
	if !ok || owner == nil {
		return link, false
	}
	rec, found, ok := owner.resolve(rid)
	if !ok {
		return link, false
	}
	if !found {
		return nil, false
	}
	return rec, true
}

func linksToAny(lv []Identifiable) []any {
	vv := make([]any, len(lv))
	for i, l := range lv {
		vv[i] = l
	}
	return vv
}

func indexOfLink(lv []Identifiable, link Identifiable) int {
	for i, l := range lv {
		if sameLink(l, link) {
			return i
		}
	}
	return -1
}

// LinkList is a tracked ordered collection of links.
type LinkList struct {
	track Tracker
	items []Identifiable
}

// NewLinkList creates new detached link list.
func NewLinkList(links ...Identifiable) *LinkList {
	l := &LinkList{}
	for _, link := range links {
		if link != nil {
			l.items = append(l.items, link)
		}
	}
	return l
}

func (l *LinkList) Tracker() *Tracker               { return &l.track }
func (l *LinkList) Type() schema.Type               { return schema.LinkList }
func (l *LinkList) Len() int                        { return len(l.items) }
func (l *LinkList) Values() []any                   { return linksToAny(l.items) }
func (l *LinkList) GetRaw(i int) Identifiable       { return l.items[i] }
func (l *LinkList) Contains(link Identifiable) bool { return indexOfLink(l.items, link) >= 0 }

// Get returns link at index i resolved to *Record if possible.
func (l *LinkList) Get(i int) Identifiable {
	link, replaced := resolveLink(l.track.owner, l.items[i])
	if replaced {
		l.items[i] = link
	}
	return link
}

// All iterates over resolved links; missing records are skipped.
func (l *LinkList) All() iter.Seq2[int, Identifiable] {
	return func(yield func(int, Identifiable) bool) {
		for i := 0; i < len(l.items); i++ {
			link := l.Get(i)
			if link == nil {
				continue
			}
			if !yield(i, link) {
				return
			}
		}
	}
}

func (l *LinkList) Add(link Identifiable) {
	l.Insert(len(l.items), link)
}

func (l *LinkList) Insert(i int, link Identifiable) {
	if link == nil {
		return
	}
	l.items = append(l.items, nil)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = link
	l.track.owner.trackLink(link)
	l.track.Add(i, link, true)
}

func (l *LinkList) Set(i int, link Identifiable) (old Identifiable) {
	if link == nil {
		return l.RemoveAt(i)
	}
	old = l.items[i]
	if sameLink(old, link) {
		return old
	}
	l.items[i] = link
	l.track.owner.trackLink(link)
	l.track.Update(i, link, old, true)
	return old
}

func (l *LinkList) RemoveAt(i int) Identifiable {
	old := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.track.Remove(i, old, true)
	return old
}

// Remove removes the first occurrence of link.
func (l *LinkList) Remove(link Identifiable) bool {
	i := indexOfLink(l.items, link)
	if i < 0 {
		return false
	}
	l.RemoveAt(i)
	return true
}

func (l *LinkList) attach(owner *Record) {
	l.track.attach(owner)
	for _, link := range l.items {
		owner.trackLink(link)
	}
}

func (l *LinkList) clone() TrackedMultiValue {
	return &LinkList{items: append([]Identifiable(nil), l.items...)}
}

func (l *LinkList) rollback(events []ChangeEvent) {
	for k := len(events) - 1; k >= 0; k-- {
		ev := events[k]
		i, ok := ev.Key.(int)
		if !ok {
			continue // taken over from a set or bag on conversion
		}
		switch ev.Kind {
		case Add:
			if i < len(l.items) {
				l.items = slices.Delete(l.items, i, i+1)
			}
		case Remove:
			l.items = insertAt(l.items, i, ev.OldValue.(Identifiable))
		case Update:
			if i < len(l.items) {
				l.items[i] = ev.OldValue.(Identifiable)
			}
		}
	}
}

// LinkSet is a tracked collection of unique links.
type LinkSet struct {
	track Tracker
	items []Identifiable
}

// NewLinkSet creates new detached link set; duplicate links are dropped.
func NewLinkSet(links ...Identifiable) *LinkSet {
	s := &LinkSet{}
	for _, link := range links {
		if link != nil && indexOfLink(s.items, link) < 0 {
			s.items = append(s.items, link)
		}
	}
	return s
}

func (s *LinkSet) Tracker() *Tracker               { return &s.track }
func (s *LinkSet) Type() schema.Type               { return schema.LinkSet }
func (s *LinkSet) Len() int                        { return len(s.items) }
func (s *LinkSet) Values() []any                   { return linksToAny(s.items) }
func (s *LinkSet) Contains(link Identifiable) bool { return indexOfLink(s.items, link) >= 0 }

// All iterates over resolved links; missing records are skipped.
func (s *LinkSet) All() iter.Seq[Identifiable] {
	return func(yield func(Identifiable) bool) {
		for i := 0; i < len(s.items); i++ {
			link, replaced := resolveLink(s.track.owner, s.items[i])
			if replaced {
				s.items[i] = link
			}
			if link == nil {
				continue
			}
			if !yield(link) {
				return
			}
		}
	}
}

func (s *LinkSet) Add(link Identifiable) bool {
	if link == nil || indexOfLink(s.items, link) >= 0 {
		return false
	}
	s.items = append(s.items, link)
	s.track.owner.trackLink(link)
	s.track.Add(link, link, true)
	return true
}

func (s *LinkSet) Remove(link Identifiable) bool {
	i := indexOfLink(s.items, link)
	if i < 0 {
		return false
	}
	old := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.track.RemoveAt(old, old, i, true)
	return true
}

func (s *LinkSet) attach(owner *Record) {
	s.track.attach(owner)
	for _, link := range s.items {
		owner.trackLink(link)
	}
}

func (s *LinkSet) clone() TrackedMultiValue {
	return &LinkSet{items: append([]Identifiable(nil), s.items...)}
}

func (s *LinkSet) rollback(events []ChangeEvent) {
	for k := len(events) - 1; k >= 0; k-- {
		ev := events[k]
		link, _ := ev.Value.(Identifiable)
		old, _ := ev.OldValue.(Identifiable)
		switch ev.Kind {
		case Add:
			if i := indexOfLink(s.items, link); i >= 0 {
				s.items = slices.Delete(s.items, i, i+1)
			}
		case Remove:
			if old != nil && indexOfLink(s.items, old) < 0 {
				s.items = insertAt(s.items, ev.Index, old)
			}
		case Update:
			if i := indexOfLink(s.items, link); i >= 0 {
				s.items[i] = old
			}
		}
	}
}

// LinkMap is a tracked string-keyed collection of links kept in insertion order.
type LinkMap struct {
	track Tracker
	keys  []string
	m     map[string]Identifiable
}

// NewLinkMap creates new detached link map; keys are ordered lexically.
func NewLinkMap(m map[string]Identifiable) *LinkMap {
	lm := &LinkMap{m: make(map[string]Identifiable, len(m))}
	for _, k := range sortedKeys(m) {
		if m[k] != nil {
			lm.keys = append(lm.keys, k)
			lm.m[k] = m[k]
		}
	}
	return lm
}

func (m *LinkMap) Tracker() *Tracker   { return &m.track }
func (m *LinkMap) Type() schema.Type   { return schema.LinkMap }
func (m *LinkMap) Len() int            { return len(m.keys) }
func (m *LinkMap) Keys() []string      { return append([]string(nil), m.keys...) }
func (m *LinkMap) getRaw(k string) any { return m.m[k] }

func (m *LinkMap) Values() []any {
	vv := make([]any, len(m.keys))
	for i, k := range m.keys {
		vv[i] = m.m[k]
	}
	return vv
}

// GetRaw returns link under k without resolving it.
func (m *LinkMap) GetRaw(k string) Identifiable { return m.m[k] }

// Get returns link under k resolved to *Record if possible.
func (m *LinkMap) Get(k string) Identifiable {
	link, ok := m.m[k]
	if !ok {
		return nil
	}
	link, replaced := resolveLink(m.track.owner, link)
	if replaced {
		m.m[k] = link
	}
	return link
}

// All iterates over resolved links in insertion order; missing records are skipped.
func (m *LinkMap) All() iter.Seq2[string, Identifiable] {
	return func(yield func(string, Identifiable) bool) {
		for _, k := range m.Keys() {
			link := m.Get(k)
			if link == nil {
				continue
			}
			if !yield(k, link) {
				return
			}
		}
	}
}

func (m *LinkMap) Put(k string, link Identifiable) {
	if link == nil {
		m.Delete(k)
		return
	}
	if m.m == nil {
		m.m = make(map[string]Identifiable)
	}
	old, had := m.m[k]
	if had && sameLink(old, link) {
		return
	}
	m.m[k] = link
	m.track.owner.trackLink(link)
	if had {
		m.track.Update(k, link, old, true)
	} else {
		m.keys = append(m.keys, k)
		m.track.Add(k, link, true)
	}
}

func (m *LinkMap) Delete(k string) bool {
	old, had := m.m[k]
	if !had {
		return false
	}
	delete(m.m, k)
	var i int
	m.keys, i = removeKey(m.keys, k)
	m.track.RemoveAt(k, old, i, true)
	return true
}

func (m *LinkMap) attach(owner *Record) {
	m.track.attach(owner)
	for _, link := range m.m {
		owner.trackLink(link)
	}
}

func (m *LinkMap) clone() TrackedMultiValue {
	c := &LinkMap{keys: append([]string(nil), m.keys...), m: make(map[string]Identifiable, len(m.m))}
	for k, link := range m.m {
		c.m[k] = link
	}
	return c
}

func (m *LinkMap) rollback(events []ChangeEvent) {
	if m.m == nil {
		m.m = make(map[string]Identifiable)
	}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		k := ev.Key.(string)
		switch ev.Kind {
		case Add:
			delete(m.m, k)
			m.keys, _ = removeKey(m.keys, k)
		case Update:
			m.m[k] = ev.OldValue.(Identifiable)
		case Remove:
			m.m[k] = ev.OldValue.(Identifiable)
			m.keys = insertAt(m.keys, ev.Index, k)
		}
	}
}
