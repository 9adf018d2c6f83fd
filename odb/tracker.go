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
// change tracking of multi-value containers

import (
	"fmt"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// ChangeKind is the kind of a container mutation.
type ChangeKind int8

const (
	Add ChangeKind = iota
	Update
	Remove
)

func (k ChangeKind) String() string {
	switch k {
	case Add:
		return "add"
	case Update:
		return "update"
	case Remove:
		return "remove"
	}
	return fmt.Sprintf("ChangeKind(%d)", int8(k))
}

// ChangeEvent describes one mutation of a tracked container.
//
// Key is the index for lists, the element for sets and bags, and the key for maps.
type ChangeEvent struct {
	Kind     ChangeKind
	Key      any
	Value    any // new value; nil for Remove
	OldValue any // previous value; nil for Add
	Index    int // position of removed element in ordered sets and maps
}

// Tracker records mutations of a container into two timelines: the
// session timeline, cleared on save, and the transaction timeline, cleared
// on commit.
//
// A tracker is enabled while its container is attached to a record that
// tracks changes. Every event marks the owning record dirty; events are kept
// in the timelines only while the tracker is enabled.
type Tracker struct {
	owner      *Record
	enabled    bool
	timeline   []ChangeEvent
	txTimeline []ChangeEvent
}

// Owner returns the record the container is attached to, or nil.
func (t *Tracker) Owner() *Record { return t.owner }

func (t *Tracker) Enabled() bool { return t.enabled }
func (t *Tracker) Enable()       { t.enabled = true }
func (t *Tracker) Disable()      { t.enabled = false }

// Add records addition of value under key.
//
// changed=false records the event but marks the owner dirty without content
// change, e.g. when an unresolved link is replaced by the loaded record.
func (t *Tracker) Add(key, value any, changed bool) {
	t.record(ChangeEvent{Kind: Add, Key: key, Value: value}, changed)
}

// Update records replacement of old with value under key.
func (t *Tracker) Update(key, value, old any, changed bool) {
	t.record(ChangeEvent{Kind: Update, Key: key, Value: value, OldValue: old}, changed)
}

// Remove records removal of old under key.
func (t *Tracker) Remove(key, old any, changed bool) {
	t.record(ChangeEvent{Kind: Remove, Key: key, OldValue: old}, changed)
}

// RemoveAt is Remove for ordered sets and maps; index is where old was.
func (t *Tracker) RemoveAt(key, old any, index int, changed bool) {
	t.record(ChangeEvent{Kind: Remove, Key: key, OldValue: old, Index: index}, changed)
}

func (t *Tracker) record(ev ChangeEvent, changed bool) {
	if t.owner == nil {
		return
	}
	if t.enabled {
		t.timeline = append(t.timeline, ev)
		t.txTimeline = append(t.txTimeline, ev)
	}
	if changed {
		t.owner.setDirty()
	} else {
		t.owner.setDirtyNoChanged()
	}
}

// SourceFrom takes over both timelines of other.
//
// It is used when a container is converted to another kind, so that the
// history of the source stays with the converted container.
func (t *Tracker) SourceFrom(other *Tracker) {
	t.timeline = append([]ChangeEvent(nil), other.timeline...)
	t.txTimeline = append([]ChangeEvent(nil), other.txTimeline...)
}

// Timeline returns events recorded since the last Clear.
func (t *Tracker) Timeline() []ChangeEvent { return t.timeline }

// TransactionTimeline returns events recorded since the last TransactionClear.
func (t *Tracker) TransactionTimeline() []ChangeEvent { return t.txTimeline }

func (t *Tracker) Clear()            { t.timeline = nil }
func (t *Tracker) TransactionClear() { t.txTimeline = nil }

// IsModified returns whether the session timeline is not empty.
func (t *Tracker) IsModified() bool { return len(t.timeline) != 0 }

// IsTxModified returns whether the transaction timeline is not empty.
func (t *Tracker) IsTxModified() bool { return len(t.txTimeline) != 0 }

func (t *Tracker) attach(owner *Record) {
	t.owner = owner
	if owner != nil && owner.trackingChanges {
		t.Enable()
	} else {
		t.Disable()
	}
}

// setTracking enables or disables trackers of mv and of containers nested in it.
func setTracking(mv TrackedMultiValue, on bool) {
	if on && mv.Tracker().owner != nil {
		mv.Tracker().Enable()
	} else {
		mv.Tracker().Disable()
	}
	for _, v := range mv.Values() {
		if sub, ok := v.(TrackedMultiValue); ok {
			setTracking(sub, on)
		}
	}
}

// TrackedMultiValue is implemented by all tracked containers: List, Set,
// Map, LinkList, LinkSet, LinkMap and LinkBag.
type TrackedMultiValue interface {
	Tracker() *Tracker
	Len() int

	// Type returns the property type the container represents.
	Type() schema.Type

	// Values returns container elements; map values come in key order.
	Values() []any

	// attach binds the container and its embedded elements to owner and enables tracking.
	attach(owner *Record)

	// clone returns a detached deep copy of the container.
	clone() TrackedMultiValue

	// rollback reverts events, newest first, in place and without recording them.
	rollback(events []ChangeEvent)
}

// returnOriginalState returns a detached copy of mv as it was before events happened.
func returnOriginalState(mv TrackedMultiValue, events []ChangeEvent) TrackedMultiValue {
	c := mv.clone()
	c.rollback(events)
	return c
}

// attachValue binds value to owner if value is a container or an embedded record.
func attachValue(v any, owner *Record) {
	switch v := v.(type) {
	case TrackedMultiValue:
		v.attach(owner)
	case *Record:
		if v.embedded {
			v.setOwner(owner)
		}
	}
}

// detachValue undoes attachValue.
func detachValue(v any) {
	switch v := v.(type) {
	case TrackedMultiValue:
		v.attach(nil)
	case *Record:
		if v.embedded {
			v.owner = nil
		}
	}
}

// cloneValue returns a deep copy of v suitable to be put into another record.
func cloneValue(v any) any {
	switch v := v.(type) {
	case TrackedMultiValue:
		return v.clone()
	case *Record:
		if v.embedded {
			return v.Copy()
		}
		return v
	case []byte:
		return append([]byte(nil), v...)
	}
	return v
}
