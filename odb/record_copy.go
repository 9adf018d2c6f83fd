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
// record: copy and merge

// Copy returns an independent copy of r.
//
// Containers are deep-copied and embedded records are copied recursively;
// links keep referring to the same records. The copy keeps identity and
// version of r but is not registered in the session live cache.
func (r *Record) Copy() *Record {
	c := newRecord(r.sch, "", r.session, r.embedded)
	r.copyInto(c)
	return c
}

// CopyTo overwrites dest with a copy of r. dest must not be dirty.
func (r *Record) CopyTo(dest *Record) error {
	if dest.dirty {
		return stateErr(DirtyState, "copy "+r.String()+" to "+dest.String(),
			"destination record has unsaved changes")
	}
	for _, e := range dest.fields {
		detachValue(e.value)
	}
	r.copyInto(dest)
	if dest.dirty && !dest.embedded {
		dest.dirtyManager().SetDirty(dest)
	}
	return nil
}

func (r *Record) copyInto(c *Record) {
	r.checkLoaded()
	c.rid = r.rid
	c.version = r.version
	c.className = r.className
	c.sch = r.sch
	c.lazyLoad = r.lazyLoad
	c.trackingChanges = r.trackingChanges
	c.status = r.status
	if c.status == statusNotLoaded {
		// decode failed; keep the copy loaded with what could be decoded
		c.status = statusLoaded
	}
	c.dirty = r.dirty
	c.txDirty = r.txDirty
	c.contentChanged = r.contentChanged

	c.fields = make(map[string]*propertyEntry, len(r.fields))
	c.order = append([]string(nil), r.order...)
	for name, e := range r.fields {
		ce := *e
		ce.value = cloneValue(e.value)
		ce.original = cloneValue(e.original)
		ce.txOriginal = cloneValue(e.txOriginal)
		c.fields[name] = &ce
		attachValue(ce.value, c)
		c.trackLink(ce.value)
	}
}

// Merge merges properties of other into r.
//
// Every property of other replaces the same property of r. With
// mergeSingleItems containers are merged element-wise instead: maps get
// all entries of other, lists and sets get elements they do not yet
// have, bags get links they do not yet hold. Without updateOnly properties
// that other does not have are removed from r.
func (r *Record) Merge(other *Record, updateOnly, mergeSingleItems bool) error {
	other.checkLoaded()
	r.checkLoaded()

	if r.className == "" && other.className != "" {
		r.className = other.className
	}

	for _, name := range other.existingNames() {
		oe := other.fields[name]
		if mergeSingleItems {
			if e := r.fields[name]; e != nil && e.exists && mergeItems(e.value, oe.value) {
				continue
			}
		}
		if err := r.setPropertyInternal(name, cloneValue(oe.value), oe.typ); err != nil {
			return err
		}
	}

	if !updateOnly {
		for _, name := range r.existingNames() {
			if oe := other.fields[name]; oe == nil || !oe.exists {
				r.removeProperty(name)
			}
		}
	}
	return nil
}

// mergeItems merges elements of src container into dst container of the
// same type. It returns false if dst and src cannot be merged element-wise.
func mergeItems(dst, src any) bool {
	switch d := dst.(type) {
	case *Map:
		s, ok := src.(*Map)
		if !ok {
			return false
		}
		for _, k := range s.keys {
			d.Put(k, cloneValue(s.m[k]))
		}
	case *List:
		s, ok := src.(*List)
		if !ok {
			return false
		}
		for _, v := range s.items {
			if !d.Contains(v) {
				d.Add(cloneValue(v))
			}
		}
	case *Set:
		s, ok := src.(*Set)
		if !ok {
			return false
		}
		for _, v := range s.items {
			d.Add(cloneValue(v))
		}
	case *LinkMap:
		s, ok := src.(*LinkMap)
		if !ok {
			return false
		}
		for _, k := range s.keys {
			d.Put(k, s.m[k])
		}
	case *LinkList:
		s, ok := src.(*LinkList)
		if !ok {
			return false
		}
		for _, link := range s.items {
			if !d.Contains(link) {
				d.Add(link)
			}
		}
	case *LinkSet:
		s, ok := src.(*LinkSet)
		if !ok {
			return false
		}
		for _, link := range s.items {
			d.Add(link)
		}
	case *LinkBag:
		s, ok := src.(*LinkBag)
		if !ok {
			return false
		}
		for _, e := range s.entries() {
			if !d.Contains(e.link) {
				d.Add(e.link)
			}
		}
	default:
		return false
	}
	return true
}
