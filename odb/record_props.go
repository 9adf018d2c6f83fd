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
// record: property access, mutation and undo

import (
	"strings"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// characters not allowed in property names.
const badNameChars = " .:,;=%[]"

func checkPropertyName(op, name string) error {
	switch {
	case name == "":
		return &ArgumentError{Op: op, Arg: name, Msg: "empty property name"}
	case strings.HasPrefix(name, "@"):
		return &ArgumentError{Op: op, Arg: name, Msg: "property name cannot start with '@'"}
	case strings.ContainsAny(name, badNameChars):
		return &ArgumentError{Op: op, Arg: name, Msg: "property name contains one of " + badNameChars}
	}
	return nil
}

// isGraphReserved returns whether name is maintained by the graph layer for records of kind.
func isGraphReserved(kind Kind, name string) bool {
	switch kind {
	case KindVertex:
		return strings.HasPrefix(name, outPrefix) || strings.HasPrefix(name, inPrefix)
	case KindEdge:
		return name == edgeOut || name == edgeIn
	}
	return false
}

// declaredType returns type of property name declared in r's class, or Any.
func (r *Record) declaredType(name string) schema.Type {
	if c := r.Class(); c != nil {
		if p := c.Property(name); p != nil {
			return p.Type
		}
	}
	return schema.Any
}

// GetProperty returns value of property name, or nil if there is no such property.
//
// Links are returned as *Record, loaded through the session if needed, when
// lazy loading is on. A link to a missing record reads as nil.
func (r *Record) GetProperty(name string) any {
	r.checkLoaded(name)
	e := r.fields[name]
	if e == nil || !e.exists {
		return nil
	}
	if rid, ok := e.value.(RID); ok {
		rec, found, ok := r.resolve(rid)
		if !ok {
			return rid
		}
		if !found {
			return nil
		}
		e.value = rec
		r.trackLink(rec)
		return rec
	}
	return e.value
}

// GetPropertyRaw is like GetProperty but never resolves links.
func (r *Record) GetPropertyRaw(name string) any {
	r.checkLoaded(name)
	e := r.fields[name]
	if e == nil || !e.exists {
		return nil
	}
	return e.value
}

// PropertyType returns type of property name, or Any if there is no such property.
func (r *Record) PropertyType(name string) schema.Type {
	r.checkLoaded(name)
	e := r.fields[name]
	if e == nil || !e.exists {
		return schema.Any
	}
	return e.typ
}

func (r *Record) HasProperty(name string) bool {
	r.checkLoaded(name)
	e := r.fields[name]
	return e != nil && e.exists
}

// PropertyNames returns names of existing properties in insertion order.
func (r *Record) PropertyNames() []string {
	r.checkLoaded()
	return r.existingNames()
}

// SetProperty sets property name to v.
//
// The property type is the one declared by the record class, or is inferred
// from v. v is converted to the canonical Go type of the property type.
// Names maintained by the graph layer cannot be set directly.
func (r *Record) SetProperty(name string, v any) error {
	return r.SetPropertyTyped(name, v, schema.Any)
}

// SetPropertyTyped sets property name to v converted to typ.
func (r *Record) SetPropertyTyped(name string, v any, typ schema.Type) error {
	op := "set property"
	if err := checkPropertyName(op, name); err != nil {
		return err
	}
	if isGraphReserved(r.Kind(), name) {
		return &ArgumentError{Op: op, Arg: name, Msg: "property is maintained by the graph layer"}
	}
	return r.setProperty(op, name, v, typ)
}

// setPropertyInternal sets property without public name checks.
func (r *Record) setPropertyInternal(name string, v any, typ schema.Type) error {
	return r.setProperty("set property", name, v, typ)
}

func (r *Record) setProperty(op, name string, v any, typ schema.Type) error {
	if r.status == statusDeleted {
		return stateErr(IllegalState, op+" "+name, "record %s is deleted", r.rid)
	}
	r.checkLoaded(name)

	if typ == schema.Any {
		typ = r.declaredType(name)
	}
	x, typ, err := convertValue(v, typ, r)
	if err != nil {
		return &ArgumentError{Op: op, Arg: name, Msg: err.Error()}
	}

	e := r.fields[name]
	if e != nil && e.exists && e.typ == typ && valuesEqual(e.value, x) {
		if _, isbytes := x.([]byte); isbytes {
			// bytes could be changed in place
			e.setValue(x)
			r.setDirty()
		}
		return nil
	}

	// values owned by another record are copied
	switch xv := x.(type) {
	case TrackedMultiValue:
		if o := xv.Tracker().Owner(); o != nil && o != r {
			x = xv.clone()
		}
	case *Record:
		if xv.embedded && xv.owner != nil && xv.owner != r {
			x = xv.Copy()
		}
	}

	switch {
	case e == nil:
		e = &propertyEntry{value: x}
		e.markCreated()
		e.markExists(true)
		r.fields[name] = e
		r.order = append(r.order, name)
	case !r.trackingChanges:
		detachValue(e.value)
		e.value = x
		e.markExists(true)
	default:
		detachValue(e.value)
		e.setValue(x)
		e.markExists(true)
	}
	e.typ = typ

	attachValue(x, r)
	r.trackLink(x)
	r.setDirty()
	return nil
}

// RemoveProperty removes property name and returns its previous value.
//
// The removal can be undone with Undo while change tracking is on.
func (r *Record) RemoveProperty(name string) (any, error) {
	op := "remove property"
	if isGraphReserved(r.Kind(), name) {
		return nil, &ArgumentError{Op: op, Arg: name, Msg: "property is maintained by the graph layer"}
	}
	return r.removeProperty(name), nil
}

func (r *Record) removeProperty(name string) any {
	r.checkLoaded(name)
	e := r.fields[name]
	if e == nil || !e.exists {
		return nil
	}
	old := e.value
	detachValue(old)

	// a removed property of a partially decoded record stays as a tombstone
	// so that the full decode does not bring it back
	if e.created || (!r.trackingChanges && r.status != statusNotLoaded) {
		delete(r.fields, name)
		r.order, _ = removeKey(r.order, name)
	} else {
		e.setValue(nil)
		e.exists = false
	}
	r.setDirty()
	return old
}

// Undo reverts all changes made since the record was loaded or last saved.
func (r *Record) Undo() {
	for _, name := range append([]string(nil), r.order...) {
		r.undoField(name)
	}
	r.dirty = false
	r.contentChanged = false
}

// UndoField reverts changes of property name made since the record was
// loaded or last saved.
func (r *Record) UndoField(name string) {
	r.undoField(name)
}

func (r *Record) undoField(name string) {
	e := r.fields[name]
	if e == nil {
		return
	}
	if e.created {
		detachValue(e.value)
		delete(r.fields, name)
		r.order, _ = removeKey(r.order, name)
		return
	}
	if e.changed {
		detachValue(e.value)
		e.undo()
		attachValue(e.value, r)
	}

	switch v := e.value.(type) {
	case TrackedMultiValue:
		t := v.Tracker()
		events := t.Timeline()
		if len(events) != 0 {
			v.rollback(events)
			tx := t.TransactionTimeline()
			if n := len(tx) - len(events); n >= 0 {
				t.txTimeline = tx[:n]
			}
			t.Clear()
		}
		forEachEmbedded(v, (*Record).Undo)
	case *Record:
		if v.embedded && v.dirty {
			v.Undo()
		}
	}
}

// DirtyFields returns names of properties created, changed or removed since
// the record was loaded or last saved.
func (r *Record) DirtyFields() []string {
	var names []string
	for _, name := range r.order {
		e := r.fields[name]
		if e.created || e.changed || e.isTrackedModified() {
			names = append(names, name)
		}
	}
	return names
}

// OriginalValue returns value property name had when the record was loaded
// or last saved. nil is returned for properties created since then.
func (r *Record) OriginalValue(name string) any {
	r.checkLoaded(name)
	e := r.fields[name]
	switch {
	case e == nil || e.created:
		return nil
	case e.changed:
		if mv, ok := e.original.(TrackedMultiValue); ok && mv.Tracker().IsModified() {
			return returnOriginalState(mv, mv.Tracker().Timeline())
		}
		return e.original
	}
	if mv, ok := e.value.(TrackedMultiValue); ok && mv.Tracker().IsModified() {
		return returnOriginalState(mv, mv.Tracker().Timeline())
	}
	return e.value
}
