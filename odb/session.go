// Copyright (C) 2018-2026  Nexedi SA and Contributors.
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
// session = live view of the database under one transaction

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"lab.nexedi.com/kirr/go123/mem"

	"lab.nexedi.com/kirr/odb/go/internal/log"
	"lab.nexedi.com/kirr/odb/go/internal/metrics"
	"lab.nexedi.com/kirr/odb/go/internal/task"
	"lab.nexedi.com/kirr/odb/go/odb/internal/weak"
	"lab.nexedi.com/kirr/odb/go/odb/schema"
	"lab.nexedi.com/kirr/odb/go/transaction"
)

// DefaultCluster is the cluster of records whose class has no clusters,
// including records without class.
const DefaultCluster = 0

// number of loads Preload runs in parallel.
const preloadParallel = 16

// Session provides access to records of a database under one transaction.
//
// Records loaded through a session are kept in its live cache while the
// application holds them: loading the same RID twice returns the same
// *Record. Saved and deleted records are written to storage when the
// transaction commits.
//
// Session, and records bound to it, must be used from one goroutine at a time.
type Session struct {
	db       *DB
	txn      transaction.Transaction
	ctx      context.Context
	lazyLoad bool

	// live cache: rid -> record. Entries go away when records are garbage-collected.
	cachemu sync.Mutex
	cache   map[RID]*weak.Ref[Record]

	touched  map[uint64]*Record // changed under the transaction
	saved    map[uint64]*Record // to be written on commit
	deleted  map[uint64]*Record // to be deleted on commit
	pinned   []*Record          // loaded by Preload
	collect  map[uint64]*Record // != nil while Delete unlinks a record from the graph
	nextTemp int64
	joined   bool
	done     bool

	// commit in progress
	ops      []StoreOp
	opRecs   []*Record
	tempRIDs map[uint64]RID // record handle -> temporary rid it had before commit
	versions []int32
}

func newSession(ctx context.Context, db *DB, txn transaction.Transaction, lazy bool) *Session {
	return &Session{
		db:       db,
		txn:      txn,
		ctx:      ctx,
		lazyLoad: lazy,
		cache:    make(map[RID]*weak.Ref[Record]),
		touched:  make(map[uint64]*Record),
		saved:    make(map[uint64]*Record),
		deleted:  make(map[uint64]*Record),
		nextTemp: -2,
	}
}

func (s *Session) DB() *DB                              { return s.db }
func (s *Session) Schema() *schema.Schema               { return s.db.sch }
func (s *Session) Codec() Codec                         { return s.db.codec }
func (s *Session) Storage() IStorage                    { return s.db.stor }
func (s *Session) Transaction() transaction.Transaction { return s.txn }

func (s *Session) String() string {
	return fmt.Sprintf("session(%s)", s.db.stor.URL())
}

// txnActive returns whether the session transaction still accepts changes.
func (s *Session) txnActive() bool {
	return !s.done && s.txn.Status() == transaction.Active
}

// touch registers r as changed under the transaction.
func (s *Session) touch(r *Record) {
	if s.done {
		return
	}
	s.touched[r.handle] = r
	if s.collect != nil {
		s.collect[r.handle] = r
	}
	s.join()
}

func (s *Session) join() {
	if s.joined || !s.txnActive() {
		return
	}
	s.txn.Join((*sessionDM)(s))
	s.joined = true
}

// ---- live cache ----

func (s *Session) cacheGet(rid RID) *Record {
	s.cachemu.Lock()
	defer s.cachemu.Unlock()
	if w := s.cache[rid]; w != nil {
		return w.Get()
	}
	return nil
}

func (s *Session) cacheSet(rec *Record) {
	rid := rec.rid
	var w *weak.Ref[Record]
	w = weak.NewRef(rec, func() {
		s.cachemu.Lock()
		defer s.cachemu.Unlock()
		if s.cache[rid] == w {
			delete(s.cache, rid)
		}
	})

	s.cachemu.Lock()
	defer s.cachemu.Unlock()
	s.cache[rid] = w
}

func (s *Session) cacheDel(rid RID, rec *Record) {
	s.cachemu.Lock()
	defer s.cachemu.Unlock()
	if w := s.cache[rid]; w != nil && w.Get() == rec {
		delete(s.cache, rid)
	}
}

// cacheMove re-keys rec in the cache from old rid to its current one.
func (s *Session) cacheMove(old RID, rec *Record) {
	s.cacheDel(old, rec)
	s.cacheSet(rec)
}

// ---- creating & loading ----

// NewRecord creates new record of class bound to s.
func (s *Session) NewRecord(class string) *Record {
	r := newRecord(s.db.sch, class, s, false)
	r.setDirty()
	return r
}

// NewEmbedded creates new embedded record of class bound to s.
func (s *Session) NewEmbedded(class string) *Record {
	r := newRecord(s.db.sch, class, s, true)
	r.setDirty()
	return r
}

// NewVertex creates new vertex of class bound to s. class="" means V.
func (s *Session) NewVertex(class string) (Vertex, error) {
	class, err := vertexClass(s.db.sch, class)
	if err != nil {
		return nil, err
	}
	return &vertexView{s.NewRecord(class)}, nil
}

// Attach binds detached rec, and records embedded into it, to s.
func (s *Session) Attach(rec *Record) error {
	if rec.session == s {
		return nil
	}
	if rec.session != nil {
		return stateErr(NotBound, "attach "+rec.String(), "record is bound to another session")
	}
	s.attach(rec)
	if rec.dirty && !rec.embedded {
		s.touch(rec)
	}
	return nil
}

func (s *Session) attach(rec *Record) {
	rec.session = s
	if rec.sch == nil {
		rec.sch = s.db.sch
	}
	for _, e := range rec.fields {
		if sub, ok := e.value.(*Record); ok && sub.embedded {
			s.attach(sub)
		}
		forEachEmbedded(e.value, s.attach)
	}
}

// Load returns record with identity rid.
//
// The record is returned from the live cache if it is there; otherwise its
// raw data is loaded from storage and decoded on first access.
// *NotFoundError, possibly wrapped, is returned if there is no such record.
func (s *Session) Load(ctx context.Context, rid RID) (*Record, error) {
	if !rid.IsValid() {
		return nil, &ArgumentError{Op: "load", Arg: rid.String(), Msg: "invalid rid"}
	}
	if rec := s.cacheGet(rid); rec != nil {
		if rec.status == statusDeleted {
			return nil, &NotFoundError{RID: rid}
		}
		return rec, nil
	}
	if !rid.IsPersistent() {
		return nil, &NotFoundError{RID: rid}
	}

	buf, version, err := s.db.stor.Load(ctx, rid)
	if err != nil {
		return nil, err
	}
	return s.install(rid, buf, version), nil
}

// install creates cached record rid with raw data in buf.
func (s *Session) install(rid RID, buf *mem.Buf, version int32) *Record {
	if rec := s.cacheGet(rid); rec != nil {
		buf.Release()
		return rec
	}
	rec := newRecord(s.db.sch, "", s, false)
	rec.rid = rid
	rec.setSource(buf, version)
	s.cacheSet(rec)
	return rec
}

// loadSource fetches raw data of r from storage again.
func (s *Session) loadSource(ctx context.Context, r *Record) error {
	buf, version, err := s.db.stor.Load(ctx, r.rid)
	if err != nil {
		return err
	}
	r.setSource(buf, version)
	return nil
}

type linkResult struct {
	rec     *Record
	missing bool
	err     error
}

// resolveLink loads the record a link points to.
func (s *Session) resolveLink(rid RID) linkResult {
	rec, err := s.Load(s.ctx, rid)
	if err != nil {
		if isNotFound(err) {
			return linkResult{missing: true}
		}
		return linkResult{err: err}
	}
	return linkResult{rec: rec}
}

func isNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// Preload loads records rids from storage in parallel.
//
// Loaded records stay in the session until the transaction completes.
// Missing records are skipped.
func (s *Session) Preload(ctx context.Context, rids ...RID) (err error) {
	defer task.Runningf(&ctx, "preload %d", len(rids))(&err)

	var todo []RID
	seen := make(map[RID]bool)
	for _, rid := range rids {
		if !rid.IsPersistent() || seen[rid] {
			continue
		}
		seen[rid] = true
		if rec := s.cacheGet(rid); rec != nil {
			s.pinned = append(s.pinned, rec)
			continue
		}
		todo = append(todo, rid)
	}

	bufv := make([]*mem.Buf, len(todo))
	versionv := make([]int32, len(todo))
	wg, gctx := errgroup.WithContext(ctx)
	wg.SetLimit(preloadParallel)
	for i, rid := range todo {
		wg.Go(func() error {
			buf, version, err := s.db.stor.Load(gctx, rid)
			if err != nil {
				if isNotFound(err) {
					return nil
				}
				return err
			}
			bufv[i], versionv[i] = buf, version
			return nil
		})
	}
	err = wg.Wait()
	if err != nil {
		for _, buf := range bufv {
			buf.XRelease()
		}
		return err
	}

	for i, buf := range bufv {
		if buf != nil {
			s.pinned = append(s.pinned, s.install(todo[i], buf, versionv[i]))
		}
	}
	return nil
}

// ---- save & delete ----

// Save schedules rec, and new or updated records of its dirty unit, to be
// written on commit.
//
// All the records are validated first; nothing is scheduled if any of them
// is invalid. New records get temporary identities that are replaced with
// persistent ones on commit.
func (s *Session) Save(rec *Record) error {
	op := "save " + rec.String()
	switch {
	case rec.embedded:
		return stateErr(IllegalState, op, "embedded record cannot be saved on its own")
	case rec.status == statusDeleted:
		return stateErr(IllegalState, op, "record is deleted")
	case !s.txnActive():
		return stateErr(IllegalState, op, "transaction is not active")
	}
	if err := s.Attach(rec); err != nil {
		return err
	}

	unit := rec.dirtyManager()
	recs := []*Record{rec}
	seen := map[uint64]bool{rec.handle: true}
	for _, r := range append(unit.NewRecords(), unit.UpdatedRecords()...) {
		if seen[r.handle] || r.embedded || r.status == statusDeleted {
			continue
		}
		seen[r.handle] = true
		recs = append(recs, r)
	}

	for _, r := range recs {
		if err := s.Attach(r); err != nil {
			return err
		}
		if c := r.Class(); c != nil && c.Abstract {
			return &ArgumentError{Op: "save", Arg: c.Name, Msg: "class is abstract"}
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}

	for _, r := range recs {
		if !r.rid.IsValid() {
			r.rid = RID{Cluster: s.clusterFor(r), Position: s.nextTemp}
			s.nextTemp--
			s.cacheSet(r)
		}
		s.saved[r.handle] = r
		r.clearTrackData()
	}
	unit.Clear()
	s.join()
	return nil
}

// clusterFor returns cluster new record r goes to.
func (s *Session) clusterFor(r *Record) int32 {
	c := r.Class()
	if c == nil || len(c.ClusterIDs()) == 0 {
		return DefaultCluster
	}
	return c.DefaultClusterID()
}

// Delete schedules rec to be deleted on commit.
//
// A deleted vertex takes its edges with it; a deleted edge is removed from
// its vertices. Records changed by that are saved as well.
func (s *Session) Delete(rec *Record) error {
	op := "delete " + rec.String()
	switch {
	case rec.embedded:
		return stateErr(IllegalState, op, "embedded record cannot be deleted on its own")
	case rec.session != s:
		return stateErr(NotBound, op, "record is not bound to this session")
	case !s.txnActive():
		return stateErr(IllegalState, op, "transaction is not active")
	}
	if _, already := s.deleted[rec.handle]; already || rec.status == statusDeleted {
		return nil
	}
	if err := rec.materialize(); err != nil {
		return err
	}

	outer := s.collect == nil
	if outer {
		s.collect = make(map[uint64]*Record)
		defer func() { s.collect = nil }()
	}

	s.deleted[rec.handle] = rec
	if err := rec.unlinkGraph(); err != nil {
		delete(s.deleted, rec.handle)
		return err
	}
	rec.status = statusDeleted
	delete(s.saved, rec.handle)
	s.join()

	if !outer {
		return nil
	}
	for _, r := range sortedRecords(s.collect) {
		if r.status == statusDeleted || !r.rid.IsValid() {
			continue
		}
		s.saved[r.handle] = r
		r.clearTrackData()
	}
	return nil
}

// ---- transaction participation ----

// sessionDM makes Session a data manager of its transaction.
type sessionDM Session

// sessionSync makes Session a synchronizer of its transaction.
type sessionSync Session

func (ss *sessionSync) BeforeCompletion(ctx context.Context, txn transaction.Transaction) error {
	return nil
}

// AfterCompletion ends the session: records are released to the GC
// and no more changes are accepted.
func (ss *sessionSync) AfterCompletion(txn transaction.Transaction) {
	s := (*Session)(ss)
	s.done = true
	s.touched = nil
	s.saved = nil
	s.deleted = nil
	s.pinned = nil
	s.ops = nil
	s.opRecs = nil
	s.tempRIDs = nil
}

// Abort discards all changes: persistent records are unloaded, new ones detached.
func (dm *sessionDM) Abort(txn transaction.Transaction) {
	s := (*Session)(dm)
	all := make(map[uint64]*Record)
	for _, set := range []map[uint64]*Record{s.touched, s.saved, s.deleted} {
		for h, r := range set {
			all[h] = r
		}
	}
	for _, r := range sortedRecords(all) {
		if r.rid.IsPersistent() {
			r.Unload()
			continue
		}
		if r.rid.IsValid() {
			s.cacheDel(r.rid, r)
		}
		r.rid = NilRID
		r.session = nil
	}
	metrics.Commits.WithLabelValues("aborted").Inc()
	log.V(1).Infof(s.ctx, "%s: aborted (%d records)", s, len(all))
}

func (dm *sessionDM) TPCBegin(txn transaction.Transaction) {
	s := (*Session)(dm)
	s.ops = nil
	s.opRecs = nil
	s.versions = nil
	s.tempRIDs = make(map[uint64]RID)
}

// Commit assigns persistent identities to new records and encodes the write set.
func (dm *sessionDM) Commit(ctx context.Context, txn transaction.Transaction) (err error) {
	s := (*Session)(dm)
	defer task.Running(&ctx, "session commit")(&err)

	saved := sortedRecords(s.saved)
	for _, r := range saved {
		if !r.rid.IsTemporary() {
			continue
		}
		pos, err := s.db.stor.Allocate(ctx, r.rid.Cluster)
		if err != nil {
			return err
		}
		old := r.rid
		s.tempRIDs[r.handle] = old
		r.rid = RID{Cluster: old.Cluster, Position: pos}
		s.cacheMove(old, r)
	}

	// records could have been changed after they were saved.
	for _, r := range saved {
		if err := r.Validate(); err != nil {
			return err
		}
		data, err := s.db.codec.Encode(r)
		if err != nil {
			return errors.Wrapf(err, "encode %s", r)
		}
		s.ops = append(s.ops, StoreOp{RID: r.rid, Version: r.version, Data: data})
		s.opRecs = append(s.opRecs, r)
	}
	for _, r := range sortedRecords(s.deleted) {
		if !r.rid.IsPersistent() {
			continue
		}
		s.ops = append(s.ops, StoreOp{RID: r.rid, Version: r.version, Delete: true})
		s.opRecs = append(s.opRecs, r)
	}
	return nil
}

// TPCVote writes the batch to storage.
func (dm *sessionDM) TPCVote(ctx context.Context, txn transaction.Transaction) error {
	s := (*Session)(dm)
	if len(s.ops) == 0 {
		return nil
	}
	versions, err := s.db.stor.Commit(ctx, s.ops)
	if err != nil {
		return err
	}
	if len(versions) != len(s.ops) {
		return fmt.Errorf("%s: commit: storage returned %d versions for %d records",
			s, len(versions), len(s.ops))
	}
	s.versions = versions
	return nil
}

// TPCFinish makes committed state the base of further change tracking.
func (dm *sessionDM) TPCFinish(ctx context.Context, txn transaction.Transaction) error {
	s := (*Session)(dm)
	for i, r := range s.opRecs {
		if s.ops[i].Delete {
			s.cacheDel(r.rid, r)
			continue
		}
		r.version = s.versions[i]
		r.clearTrackData()
		r.txClearTrackData()
		r.dirtyManager().Clear()
	}
	metrics.Commits.WithLabelValues("committed").Inc()
	log.Infof(ctx, "%s: committed %d records", s, len(s.ops))
	return nil
}

// TPCAbort returns new records to their temporary identities.
func (dm *sessionDM) TPCAbort(ctx context.Context, txn transaction.Transaction) {
	s := (*Session)(dm)
	handles := make([]uint64, 0, len(s.tempRIDs))
	for h := range s.tempRIDs {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		r := s.saved[h]
		if r == nil {
			continue
		}
		final := r.rid
		r.rid = s.tempRIDs[h]
		s.cacheDel(final, r)
		s.cacheSet(r)
	}
	metrics.Commits.WithLabelValues("failed").Inc()
	log.Warningf(ctx, "%s: commit failed; %d records not written", s, len(s.ops))
}
