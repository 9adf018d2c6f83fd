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
// dirty manager

import (
	"maps"
	"sort"

	"lab.nexedi.com/kirr/odb/go/internal/metrics"
)

// DirtyManager aggregates new and updated records of a connected graph of
// records, so that saving any record of the graph saves all of them.
//
// Managers form a union-find forest: when two records get linked their
// managers are merged and one of them starts to forward to the other via
// overrider. Only the root manager holds record sets; callers must always
// go through real() and must not cache the root.
type DirtyManager struct {
	overrider *DirtyManager
	size      int // number of managers in this tree, valid for roots
	newRecs   map[uint64]*Record
	updated   map[uint64]*Record
}

func newDirtyManager() *DirtyManager {
	return &DirtyManager{size: 1}
}

// real returns root of m's tree, compressing the path on the way.
func (m *DirtyManager) real() *DirtyManager {
	root := m
	for root.overrider != nil {
		root = root.overrider
		if root == m {
			panic("dirty manager: overrider cycle")
		}
	}
	for m != root {
		next := m.overrider
		m.overrider = root
		m = next
	}
	return root
}

// SetDirty registers rec as new or updated in m's unit.
//
// A record goes to the new set if its identity is new and not temporary;
// otherwise it goes to the updated set.
func (m *DirtyManager) SetDirty(rec *Record) {
	real := m.real()
	rid := rec.rid
	if rid.IsNew() && !rid.IsTemporary() {
		if real.newRecs == nil {
			real.newRecs = make(map[uint64]*Record)
		}
		real.newRecs[rec.handle] = rec
	} else {
		if real.updated == nil {
			real.updated = make(map[uint64]*Record)
		}
		real.updated[rec.handle] = rec
	}
}

// Merge unions m's and other's units.
//
// The smaller tree is attached to the larger one. Of every pair of record
// sets the smaller one is appended into the larger, which the root keeps.
// Merging a manager with itself, or twice, is a no-op.
func (m *DirtyManager) Merge(other *DirtyManager) {
	a, b := m.real(), other.real()
	if a == b {
		return
	}
	if a.size < b.size {
		a, b = b, a
	}

	a.newRecs = unionRecords(a.newRecs, b.newRecs)
	a.updated = unionRecords(a.updated, b.updated)
	b.newRecs = nil
	b.updated = nil
	b.overrider = a
	a.size += b.size
	metrics.DirtyMerges.Inc()
}

// Track records that pointing refers to pointed: both now belong to one unit.
func (m *DirtyManager) Track(pointing, pointed *Record) {
	if pointing == nil || pointed == nil || pointing == pointed {
		return
	}
	pointing.dirtyManager().Merge(pointed.dirtyManager())
}

// NewRecords returns new records of m's unit ordered by creation.
func (m *DirtyManager) NewRecords() []*Record {
	return sortedRecords(m.real().newRecs)
}

// UpdatedRecords returns updated records of m's unit ordered by creation.
func (m *DirtyManager) UpdatedRecords() []*Record {
	return sortedRecords(m.real().updated)
}

// Clear forgets all records of m's unit.
func (m *DirtyManager) Clear() {
	real := m.real()
	real.newRecs = nil
	real.updated = nil
}

// removeNew moves rec out of the new set, e.g. after it got an identity.
func (m *DirtyManager) removeNew(rec *Record) {
	delete(m.real().newRecs, rec.handle)
}

// unionRecords appends the smaller of x and y into the larger and returns it.
func unionRecords(x, y map[uint64]*Record) map[uint64]*Record {
	if len(x) < len(y) {
		x, y = y, x
	}
	if x == nil {
		return nil
	}
	maps.Copy(x, y)
	return x
}

func sortedRecords(recs map[uint64]*Record) []*Record {
	rv := make([]*Record, 0, len(recs))
	for _, rec := range recs {
		rv = append(rv, rec)
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].handle < rv[j].handle })
	return rv
}
