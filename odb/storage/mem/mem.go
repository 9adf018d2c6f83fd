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

// Package mem provides storage that keeps records in RAM.
//
// URL is mem:// for a private storage, or mem://<name> for a storage shared
// by all opens with the same name inside the process. Named storages live
// until the process exits.
package mem

import (
	"context"
	"net/url"
	"sync"

	"github.com/tidwall/btree"

	"lab.nexedi.com/kirr/go123/mem"

	"lab.nexedi.com/kirr/odb/go/odb"
)

// entry is one stored record.
type entry struct {
	rid     odb.RID
	version int32
	data    []byte
}

func entryLess(a, b *entry) bool {
	if a.rid.Cluster != b.rid.Cluster {
		return a.rid.Cluster < b.rid.Cluster
	}
	return a.rid.Position < b.rid.Position
}

// store is data shared by opens of the same storage.
type store struct {
	mu      sync.Mutex
	records *btree.BTreeG[*entry] // ordered by rid
	nextPos map[int32]int64       // cluster -> next free position
}

func newStore() *store {
	return &store{
		records: btree.NewBTreeG(entryLess),
		nextPos: make(map[int32]int64),
	}
}

var (
	namedMu sync.Mutex
	named   = map[string]*store{} // name -> store of mem://name
)

// Storage is in-RAM storage driver.
type Storage struct {
	*store
	url string
}

var _ odb.IStorageDriver = (*Storage)(nil)

// Open opens new private in-RAM storage.
func Open() *Storage {
	return &Storage{store: newStore(), url: "mem://"}
}

func (s *Storage) URL() string  { return s.url }
func (s *Storage) Close() error { return nil }

func (s *Storage) get(rid odb.RID) (*entry, bool) {
	return s.records.Get(&entry{rid: rid})
}

func (s *Storage) Load(_ context.Context, rid odb.RID) (*mem.Buf, int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.get(rid)
	if !ok {
		return nil, 0, &odb.NotFoundError{RID: rid}
	}
	buf := mem.BufAlloc(len(e.data))
	copy(buf.Data, e.data)
	return buf, e.version, nil
}

func (s *Storage) Allocate(_ context.Context, cluster int32) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.nextPos[cluster]
	s.nextPos[cluster] = pos + 1
	return pos, nil
}

func (s *Storage) Commit(_ context.Context, ops []odb.StoreOp) ([]int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// verify everything first: the batch is applied all or nothing.
	versions := make([]int32, len(ops))
	for i, op := range ops {
		var have int32
		if e, ok := s.get(op.RID); ok {
			have = e.version
		}
		if have != op.Version {
			return nil, &odb.ConflictError{RID: op.RID, Have: have, Want: op.Version}
		}
		if !op.Delete {
			versions[i] = have + 1
		}
	}

	for i, op := range ops {
		if op.Delete {
			s.records.Delete(&entry{rid: op.RID})
			continue
		}
		data := make([]byte, len(op.Data))
		copy(data, op.Data)
		s.records.Set(&entry{rid: op.RID, version: versions[i], data: data})
		if next := op.RID.Position + 1; next > s.nextPos[op.RID.Cluster] {
			s.nextPos[op.RID.Cluster] = next
		}
	}
	return versions, nil
}

func (s *Storage) Clusters(_ context.Context) ([]odb.ClusterInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cv []odb.ClusterInfo
	s.records.Scan(func(e *entry) bool {
		if n := len(cv); n == 0 || cv[n-1].ID != e.rid.Cluster {
			cv = append(cv, odb.ClusterInfo{ID: e.rid.Cluster})
		}
		cv[len(cv)-1].Records++
		return true
	})
	return cv, nil
}

// ---- open by URL ----

func openByURL(_ context.Context, u *url.URL, _ *odb.DriverOptions) (odb.IStorageDriver, error) {
	name := u.Host + u.Path
	if name == "" {
		return Open(), nil
	}

	namedMu.Lock()
	defer namedMu.Unlock()
	st, ok := named[name]
	if !ok {
		st = newStore()
		named[name] = st
	}
	return &Storage{store: st, url: "mem://" + name}, nil
}

func init() {
	odb.RegisterDriver("mem", openByURL)
}
