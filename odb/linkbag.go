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
	"iter"

	"github.com/tidwall/btree"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// bagEntry is one distinct link of a LinkBag with its multiplicity.
type bagEntry struct {
	rid  RID
	link Identifiable
	n    int
}

func bagLess(a, b *bagEntry) bool {
	if a.rid.Cluster != b.rid.Cluster {
		return a.rid.Cluster < b.rid.Cluster
	}
	return a.rid.Position < b.rid.Position
}

// LinkBag is a tracked multiset of links ordered by RID.
//
// It is the default container for vertex adjacency. Links to records that
// do not yet have persistent identity are kept aside until the record is
// committed.
type LinkBag struct {
	track   Tracker
	tree    *btree.BTreeG[*bagEntry]
	pending []*bagEntry
	size    int
}

// NewLinkBag creates new detached link bag.
func NewLinkBag(links ...Identifiable) *LinkBag {
	b := &LinkBag{tree: btree.NewBTreeG(bagLess)}
	for _, link := range links {
		b.add(link)
	}
	return b
}

func (b *LinkBag) Tracker() *Tracker { return &b.track }
func (b *LinkBag) Type() schema.Type { return schema.LinkBag }

// Len returns number of links in the bag counting duplicates.
func (b *LinkBag) Len() int { return b.size }

// settle moves pending entries whose records got persistent identity into the tree.
func (b *LinkBag) settle() {
	j := 0
	for _, e := range b.pending {
		rid := e.link.Identity()
		if !rid.IsPersistent() {
			b.pending[j] = e
			j++
			continue
		}
		e.rid = rid
		if have, ok := b.tree.Get(e); ok {
			have.n += e.n
		} else {
			b.tree.Set(e)
		}
	}
	clear(b.pending[j:])
	b.pending = b.pending[:j]
}

// find returns entry for link or nil.
func (b *LinkBag) find(link Identifiable) *bagEntry {
	b.settle()
	rid := link.Identity()
	if rid.IsPersistent() {
		e, _ := b.tree.Get(&bagEntry{rid: rid})
		return e
	}
	for _, e := range b.pending {
		if sameLink(e.link, link) {
			return e
		}
	}
	return nil
}

func (b *LinkBag) add(link Identifiable) {
	if link == nil {
		return
	}
	b.size++
	if e := b.find(link); e != nil {
		e.n++
		if _, isrec := link.(*Record); isrec {
			e.link = link
		}
		return
	}
	e := &bagEntry{rid: link.Identity(), link: link, n: 1}
	if e.rid.IsPersistent() {
		b.tree.Set(e)
	} else {
		b.pending = append(b.pending, e)
	}
}

func (b *LinkBag) remove(link Identifiable) bool {
	e := b.find(link)
	if e == nil {
		return false
	}
	b.size--
	e.n--
	if e.n > 0 {
		return true
	}
	if e.rid.IsPersistent() {
		b.tree.Delete(e)
		return true
	}
	for i, p := range b.pending {
		if p == e {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			break
		}
	}
	return true
}

// Add adds one occurrence of link.
func (b *LinkBag) Add(link Identifiable) {
	if link == nil {
		return
	}
	b.add(link)
	b.track.owner.trackLink(link)
	b.track.Add(link, link, true)
}

// Remove removes one occurrence of link and returns whether it was there.
func (b *LinkBag) Remove(link Identifiable) bool {
	if link == nil || !b.remove(link) {
		return false
	}
	b.track.Remove(link, link, true)
	return true
}

// Count returns how many times link is in the bag.
func (b *LinkBag) Count(link Identifiable) int {
	if e := b.find(link); e != nil {
		return e.n
	}
	return 0
}

func (b *LinkBag) Contains(link Identifiable) bool { return b.Count(link) > 0 }

// entries returns all entries: persistent ones in RID order, then pending ones.
func (b *LinkBag) entries() []*bagEntry {
	b.settle()
	ev := make([]*bagEntry, 0, b.tree.Len()+len(b.pending))
	b.tree.Scan(func(e *bagEntry) bool {
		ev = append(ev, e)
		return true
	})
	return append(ev, b.pending...)
}

// Values returns raw links, each repeated according to its multiplicity.
func (b *LinkBag) Values() []any {
	vv := make([]any, 0, b.size)
	for _, e := range b.entries() {
		for i := 0; i < e.n; i++ {
			vv = append(vv, e.link)
		}
	}
	return vv
}

// All iterates over resolved links; missing records are skipped.
func (b *LinkBag) All() iter.Seq[Identifiable] {
	return func(yield func(Identifiable) bool) {
		for _, e := range b.entries() {
			link, replaced := resolveLink(b.track.owner, e.link)
			if replaced {
				e.link = link
			}
			if link == nil {
				continue
			}
			for i := 0; i < e.n; i++ {
				if !yield(link) {
					return
				}
			}
		}
	}
}

func (b *LinkBag) attach(owner *Record) {
	b.track.attach(owner)
	for _, e := range b.entries() {
		owner.trackLink(e.link)
	}
}

func (b *LinkBag) clone() TrackedMultiValue {
	c := NewLinkBag()
	for _, e := range b.entries() {
		ce := *e
		if ce.rid.IsPersistent() {
			c.tree.Set(&ce)
		} else {
			c.pending = append(c.pending, &ce)
		}
	}
	c.size = b.size
	return c
}

func (b *LinkBag) rollback(events []ChangeEvent) {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		link, _ := ev.Value.(Identifiable)
		old, _ := ev.OldValue.(Identifiable)
		switch ev.Kind {
		case Add:
			if link != nil {
				b.remove(link)
			}
		case Remove:
			b.add(old)
		case Update:
			if link != nil {
				b.remove(link)
			}
			b.add(old)
		}
	}
}
