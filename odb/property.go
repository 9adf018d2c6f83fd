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
	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// propertyEntry is the state of one record property.
//
// Flags come in pairs: the session-level flag is reset when the record is
// saved, the tx* one when the transaction completes.
//
//	            exists      changed      created
//	session     exists      changed      created
//	transaction txExists    txChanged    txCreated
//
// original is the value before the first change in the session, and
// txOriginal the value before the first change in the transaction. Each is
// captured exactly once.
type propertyEntry struct {
	value      any
	original   any
	txOriginal any
	typ        schema.Type

	exists, changed, created       bool
	txExists, txChanged, txCreated bool
}

func (e *propertyEntry) markCreated() { e.created = true; e.txCreated = true }
func (e *propertyEntry) markExists(exists bool) {
	e.exists = exists
	e.txExists = exists
}

// setValue changes value capturing originals on first change.
func (e *propertyEntry) setValue(v any) {
	if !e.created && !e.changed {
		e.original = e.value
		e.changed = true
	}
	if !e.txCreated && !e.txChanged {
		e.txOriginal = e.value
		e.txChanged = true
	}
	e.value = v
}

// clear forgets session-level changes.
func (e *propertyEntry) clear() {
	e.created = false
	e.changed = false
	e.original = nil
	if mv, ok := e.value.(TrackedMultiValue); ok {
		mv.Tracker().Clear()
	}
}

// transactionClear forgets transaction-level changes.
func (e *propertyEntry) transactionClear() {
	e.txCreated = false
	e.txChanged = false
	e.txExists = e.exists
	e.txOriginal = nil
	if mv, ok := e.value.(TrackedMultiValue); ok {
		mv.Tracker().TransactionClear()
	}
}

// undo reverts value to original if it was changed in this session.
func (e *propertyEntry) undo() {
	if !e.changed {
		return
	}
	e.value = e.original
	e.original = nil
	e.changed = false
	e.exists = true
	e.txExists = true
}

// onLoadValue returns the value as it was when the transaction started.
func (e *propertyEntry) onLoadValue() any {
	if e.txChanged && !e.txCreated {
		v := e.txOriginal
		if mv, ok := v.(TrackedMultiValue); ok {
			return returnOriginalState(mv, mv.Tracker().TransactionTimeline())
		}
		return v
	}
	if mv, ok := e.value.(TrackedMultiValue); ok && mv.Tracker().IsTxModified() {
		return returnOriginalState(mv, mv.Tracker().TransactionTimeline())
	}
	return e.value
}

// isTrackedModified returns whether value was modified in place in this session.
func (e *propertyEntry) isTrackedModified() bool {
	switch v := e.value.(type) {
	case TrackedMultiValue:
		return v.Tracker().IsModified()
	case *Record:
		return v.embedded && v.dirty
	}
	return false
}

// isTxTrackedModified is like isTrackedModified but for the whole transaction.
func (e *propertyEntry) isTxTrackedModified() bool {
	switch v := e.value.(type) {
	case TrackedMultiValue:
		return v.Tracker().IsTxModified()
	case *Record:
		return v.embedded && v.txDirty
	}
	return false
}
