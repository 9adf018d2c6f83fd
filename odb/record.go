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
// record: state, lifecycle and dirty tracking

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"lab.nexedi.com/kirr/go123/mem"

	"lab.nexedi.com/kirr/odb/go/internal/log"
	"lab.nexedi.com/kirr/odb/go/internal/metrics"
	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// recordStatus describes whether record properties are in RAM.
type recordStatus int8

const (
	statusLoaded    recordStatus = iota // properties are in RAM (or record is new)
	statusNotLoaded                     // raw data is pending decode in .source
	statusUnloaded                      // properties were dropped; reload from storage on access
	statusDeleted                       // record was deleted
)

// handleSeq gives every in-RAM record a process-unique handle.
var handleSeq atomic.Uint64

// Record is a schema-flexible property container.
//
// The same Record type represents plain documents, vertices and edges; the
// role is decided by the record class (see Kind, AsVertex, AsEdge).
//
// A record tracks every change of its properties, in place mutations of its
// containers included, precisely enough to undo them, to compute which
// properties are dirty and to check read-only constraints against the value
// the transaction started with.
//
// Records are not safe for concurrent use.
type Record struct {
	handle    uint64
	rid       RID
	version   int32
	className string
	sch       *schema.Schema
	session   *Session

	fields map[string]*propertyEntry
	order  []string // property names in insertion order

	owner    *Record // embedded records: the record they are embedded in
	embedded bool

	lazyLoad        bool
	trackingChanges bool

	status  recordStatus
	source  *mem.Buf            // raw data while status = statusNotLoaded
	decoded map[string]struct{} // names decoded partially from source

	dirty          bool // changed since last save
	txDirty        bool // changed since transaction start
	contentChanged bool
	dirtyMgr       *DirtyManager
}

func newRecord(sch *schema.Schema, class string, s *Session, embedded bool) *Record {
	r := &Record{
		handle:          handleSeq.Add(1),
		rid:             NilRID,
		className:       class,
		sch:             sch,
		session:         s,
		fields:          make(map[string]*propertyEntry),
		embedded:        embedded,
		lazyLoad:        true,
		trackingChanges: true,
	}
	if s != nil {
		r.lazyLoad = s.lazyLoad
	}
	return r
}

// NewRecord creates new detached record of class.
//
// sch may be nil for schema-less use. A detached record can be saved after
// attaching it to a session with Session.Attach.
func NewRecord(sch *schema.Schema, class string) *Record {
	r := newRecord(sch, class, nil, false)
	r.setDirty()
	return r
}

// NewEmbedded creates new detached embedded record of class.
func NewEmbedded(sch *schema.Schema, class string) *Record {
	r := newRecord(sch, class, nil, true)
	r.setDirty()
	return r
}

// NewEmbeddedChild creates new embedded record sharing r's schema and session.
//
// The record is not put into r; use SetProperty or a container for that.
func (r *Record) NewEmbeddedChild(class string) *Record {
	e := newRecord(r.sch, class, r.session, true)
	e.lazyLoad = r.lazyLoad
	e.setDirty()
	return e
}

// Identity returns record id.
func (r *Record) Identity() RID { return r.rid }

// Version returns version of the record as last loaded or committed.
func (r *Record) Version() int32 { return r.version }

// classHeader is a name no property can have. Asking to decode it installs
// only the record class.
const classHeader = "@class"

// ClassName returns name of the record class, "" if it has none.
//
// Properties of a not yet decoded record stay not decoded.
func (r *Record) ClassName() string {
	if r.className == "" {
		r.checkLoaded(classHeader)
	}
	return r.className
}

// Class returns schema class of the record, or nil.
//
// The class is found by name, and, for records loaded without class
// information, by cluster id.
func (r *Record) Class() *schema.Class {
	if r.sch == nil {
		return nil
	}
	if name := r.ClassName(); name != "" {
		return r.sch.Class(name)
	}
	if r.rid.IsValid() {
		return r.sch.ClassByClusterID(r.rid.Cluster)
	}
	return nil
}

// Schema returns schema the record is interpreted with, or nil.
func (r *Record) Schema() *schema.Schema { return r.sch }

// Session returns session the record belongs to, or nil.
func (r *Record) Session() *Session { return r.session }

func (r *Record) IsEmbedded() bool { return r.embedded }

// Owner returns the record r is embedded in, or nil.
func (r *Record) Owner() *Record { return r.owner }

// IsDirty returns whether r was changed since it was loaded or last saved.
func (r *Record) IsDirty() bool { return r.dirty }

// IsContentChanged returns whether r properties changed; a record can be
// dirty without content change, e.g. if only its links were resolved.
func (r *Record) IsContentChanged() bool { return r.contentChanged }

// IsDeleted returns whether r was deleted.
func (r *Record) IsDeleted() bool { return r.status == statusDeleted }

// IsLazyLoad returns whether links are resolved to records on access.
func (r *Record) IsLazyLoad() bool { return r.lazyLoad }

// SetLazyLoad sets whether links are resolved to records on access.
func (r *Record) SetLazyLoad(lazy bool) { r.lazyLoad = lazy }

// IsTrackingChanges returns whether r keeps originals of changed properties.
func (r *Record) IsTrackingChanges() bool { return r.trackingChanges }

// SetTrackingChanges enables or disables change tracking.
//
// Disabling tracking forgets all tracked changes.
func (r *Record) SetTrackingChanges(track bool) {
	r.trackingChanges = track
	r.checkLoaded()
	if !track {
		r.clearTrackData()
		r.txClearTrackData()
	}
	for _, e := range r.fields {
		if mv, ok := e.value.(TrackedMultiValue); ok {
			setTracking(mv, track)
		}
	}
}

func (r *Record) String() string {
	return r.className + r.rid.String()
}

// ctx returns context for operations implicitly done on behalf of r.
func (r *Record) ctx() context.Context {
	if r.session != nil {
		return r.session.ctx
	}
	return context.Background()
}

// ---- dirty tracking ----

func (r *Record) dirtyManager() *DirtyManager {
	if r.dirtyMgr == nil {
		r.dirtyMgr = newDirtyManager()
	}
	return r.dirtyMgr
}

// setDirty marks r, and all records it is embedded into, as changed.
func (r *Record) setDirty() {
	if r.owner != nil {
		r.owner.setDirty()
	}
	r.contentChanged = true
	r.markDirty()
}

// setDirtyNoChanged marks r dirty without content change.
func (r *Record) setDirtyNoChanged() {
	if r.owner != nil {
		r.owner.setDirtyNoChanged()
	}
	r.markDirty()
}

func (r *Record) markDirty() {
	r.dirty = true
	r.txDirty = true
	if r.embedded {
		return
	}
	r.dirtyManager().SetDirty(r)
	if r.session != nil {
		r.session.touch(r)
	}
}

// setOwner embeds r into owner.
func (r *Record) setOwner(owner *Record) {
	r.owner = owner
	if owner == nil {
		return
	}
	owner.dirtyManager().Track(owner, r)
	if r.session == nil {
		r.session = owner.session
	}
	if r.sch == nil {
		r.sch = owner.sch
	}
}

// trackLink records that r links to link. r may be nil.
func (r *Record) trackLink(link any) {
	if r == nil {
		return
	}
	if rec, ok := link.(*Record); ok && !rec.embedded {
		r.dirtyManager().Track(r, rec)
	}
}

// DirtyManager returns dirty manager of the unit r belongs to.
func (r *Record) DirtyManager() *DirtyManager { return r.dirtyManager().real() }

// clearTrackData forgets session-level change tracking, e.g. after save.
func (r *Record) clearTrackData() {
	for _, e := range r.fields {
		e.clear()
		if rec, ok := e.value.(*Record); ok && rec.embedded {
			rec.clearTrackData()
		}
		forEachEmbedded(e.value, (*Record).clearTrackData)
	}
	r.dirty = false
	r.contentChanged = false
}

// txClearTrackData forgets transaction-level change tracking, e.g. after commit.
func (r *Record) txClearTrackData() {
	for name, e := range r.fields {
		e.transactionClear()
		if !e.exists {
			delete(r.fields, name)
			r.order, _ = removeKey(r.order, name)
			continue
		}
		if rec, ok := e.value.(*Record); ok && rec.embedded {
			rec.txClearTrackData()
		}
		forEachEmbedded(e.value, (*Record).txClearTrackData)
	}
	r.txDirty = false
}

// forEachEmbedded calls f for embedded records inside embedded container v.
func forEachEmbedded(v any, f func(*Record)) {
	mv, ok := v.(TrackedMultiValue)
	if !ok || !mv.Type().IsEmbedded() {
		return
	}
	for _, x := range mv.Values() {
		if rec, ok := x.(*Record); ok && rec.embedded {
			f(rec)
		}
	}
}

// ---- loading ----

// codec returns codec to decode r's raw data with.
func (r *Record) codec() Codec {
	if r.session != nil {
		return r.session.db.codec
	}
	return DefaultCodec()
}

// materialize decodes pending raw data for names, or everything if names is empty.
func (r *Record) materialize(names ...string) error {
	if r.status == statusUnloaded {
		if r.session == nil {
			return stateErr(NotBound, "load "+r.rid.String(), "record is not bound to a session")
		}
		if err := r.session.loadSource(r.ctx(), r); err != nil {
			return err
		}
	}
	if r.status != statusNotLoaded {
		return nil
	}
	codec := r.codec()
	if codec == nil {
		return fmt.Errorf("decode %s: no codec", r.rid)
	}

	if len(names) != 0 {
		var need []string
		for _, name := range names {
			if _, ok := r.fields[name]; ok {
				continue
			}
			if _, ok := r.decoded[name]; ok {
				continue
			}
			need = append(need, name)
		}
		if len(need) == 0 {
			return nil
		}
		if r.decoded == nil {
			r.decoded = make(map[string]struct{})
		}
		for _, name := range need {
			r.decoded[name] = struct{}{}
		}
		return codec.Decode(r, r.source.Data, need)
	}

	// properties decoded or created before keep their place in source order
	prev := r.order
	r.order = nil
	err := codec.Decode(r, r.source.Data, nil)
	for _, name := range prev {
		if !slices.Contains(r.order, name) {
			r.order = append(r.order, name)
		}
	}
	r.source.Release()
	r.source = nil
	r.decoded = nil
	r.status = statusLoaded
	return err
}

// checkLoaded is materialize for accessors that cannot return an error.
func (r *Record) checkLoaded(names ...string) {
	err := r.materialize(names...)
	if err != nil {
		log.Warningf(r.ctx(), "%s: load: %s", r.rid, err)
	}
}

// resolve loads the record rid links to.
//
// ok=false means the link cannot be resolved now, e.g. lazy loading is off
// or there is no session. found=false means the linked record is missing.
func (r *Record) resolve(rid RID) (rec *Record, found, ok bool) {
	if !r.lazyLoad || r.session == nil || !rid.IsValid() {
		return nil, false, false
	}
	res := r.session.resolveLink(rid)
	switch {
	case res.err != nil:
		log.Warningf(r.ctx(), "resolve %s: %s", rid, res.err)
		return nil, false, false
	case res.missing:
		metrics.DanglingLinks.Inc()
		log.V(1).Infof(r.ctx(), "%s: link to missing record %s", r, rid)
		return nil, false, true
	}
	return res.rec, true, true
}

// SetLoadedClass sets class of a record being decoded.
//
// It is intended to be used by codecs.
func (r *Record) SetLoadedClass(class string) {
	if r.className == "" {
		r.className = class
	}
}

// SetLoadedProperty installs property value decoded from raw data.
//
// It is intended to be used by codecs: value must already be in canonical
// form. The property does not become dirty. Properties already present,
// e.g. modified after a partial decode, are left as is.
func (r *Record) SetLoadedProperty(name string, value any, typ schema.Type) {
	if _, already := r.fields[name]; already {
		if !slices.Contains(r.order, name) {
			r.order = append(r.order, name)
		}
		return
	}
	e := &propertyEntry{value: value, typ: typ}
	e.markExists(true)
	r.fields[name] = e
	r.order = append(r.order, name)
	attachValue(value, r)
}

// ForEachRaw calls f for every existing property in insertion order with raw, unresolved values.
//
// It is intended to be used by codecs.
func (r *Record) ForEachRaw(f func(name string, value any, typ schema.Type) error) error {
	if err := r.materialize(); err != nil {
		return err
	}
	for _, name := range r.order {
		e := r.fields[name]
		if !e.exists {
			continue
		}
		if err := f(name, e.value, e.typ); err != nil {
			return err
		}
	}
	return nil
}

// setSource makes r a not yet decoded record with raw data in buf.
func (r *Record) setSource(buf *mem.Buf, version int32) {
	r.source.XRelease()
	r.source = buf
	r.version = version
	r.status = statusNotLoaded
	r.fields = make(map[string]*propertyEntry)
	r.order = nil
	r.decoded = nil
	r.dirty = false
	r.txDirty = false
	r.contentChanged = false
}

// ---- lifecycle ----

// Save saves r, and all new or updated records linked to it, in r's session.
func (r *Record) Save() error {
	if r.session == nil {
		return stateErr(NotBound, "save "+r.String(), "record is not bound to a session")
	}
	return r.session.Save(r)
}

// Delete deletes r in r's session.
func (r *Record) Delete() error {
	if r.session == nil {
		return stateErr(NotBound, "delete "+r.String(), "record is not bound to a session")
	}
	return r.session.Delete(r)
}

// Unload drops properties from RAM; they are reloaded from storage on next access.
//
// Unsaved changes are lost.
func (r *Record) Unload() error {
	op := "unload " + r.String()
	if r.embedded {
		return stateErr(IllegalState, op, "embedded record cannot be unloaded")
	}
	if !r.rid.IsPersistent() {
		return stateErr(IllegalState, op, "record was never committed")
	}
	r.source.XRelease()
	r.source = nil
	r.fields = make(map[string]*propertyEntry)
	r.order = nil
	r.decoded = nil
	r.status = statusUnloaded
	r.dirty = false
	r.txDirty = false
	r.contentChanged = false
	return nil
}

// Reload discards in-RAM state and loads r again from storage.
func (r *Record) Reload(ctx context.Context) error {
	if err := r.Unload(); err != nil {
		return err
	}
	if r.session == nil {
		return stateErr(NotBound, "reload "+r.String(), "record is not bound to a session")
	}
	if err := r.session.loadSource(ctx, r); err != nil {
		return err
	}
	return r.materialize()
}

// Reset removes all properties of r.
//
// It is an error to reset an embedded record, or a record whose session
// transaction is in progress.
func (r *Record) Reset() error {
	op := "reset " + r.String()
	if r.embedded {
		return stateErr(IllegalState, op, "embedded record cannot be reset")
	}
	if r.session != nil && r.session.txnActive() {
		return stateErr(DirtyState, op, "cannot reset record inside active transaction")
	}
	for _, e := range r.fields {
		detachValue(e.value)
	}
	r.source.XRelease()
	r.source = nil
	r.fields = make(map[string]*propertyEntry)
	r.order = nil
	r.decoded = nil
	r.status = statusLoaded
	r.dirty = false
	r.txDirty = false
	r.contentChanged = false
	return nil
}

// existingNames returns names of existing properties in insertion order.
func (r *Record) existingNames() []string {
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.fields[name].exists {
			names = append(names, name)
		}
	}
	return names
}
