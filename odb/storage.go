// Copyright (C) 2017-2026  Nexedi SA and Contributors.
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
// storage interfaces + open storage by URL

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"lab.nexedi.com/kirr/go123/mem"

	"lab.nexedi.com/kirr/odb/go/internal/log"
	"lab.nexedi.com/kirr/odb/go/internal/metrics"
)

// StoreOp is one record change in a commit batch.
type StoreOp struct {
	RID     RID
	Version int32  // stored version the change is based on; 0 = record was never stored
	Data    []byte // serialized record; ignored for Delete
	Delete  bool
}

// ClusterInfo describes one storage cluster.
type ClusterInfo struct {
	ID      int32
	Records int64
}

// IStorageDriver is the raw interface provided by storage drivers.
type IStorageDriver interface {
	// URL returns URL of how the storage was opened.
	URL() string

	// Close closes storage.
	Close() error

	// Load loads raw data of record rid.
	//
	// Returned buffer is owned by the caller. *NotFoundError is returned
	// if there is no such record.
	Load(ctx context.Context, rid RID) (buf *mem.Buf, version int32, err error)

	// Allocate reserves next free position in cluster.
	Allocate(ctx context.Context, cluster int32) (int64, error)

	// Commit applies ops atomically.
	//
	// Every op is checked against the stored version of its record, and
	// *ConflictError is returned on mismatch without applying anything.
	// New versions of stored records are returned; 0 for deleted ones.
	Commit(ctx context.Context, ops []StoreOp) ([]int32, error)

	// Clusters returns clusters that have records, ordered by id.
	Clusters(ctx context.Context) ([]ClusterInfo, error)
}

// IStorage is the interface of storages opened by OpenStorage.
type IStorage interface {
	IStorageDriver
}

// OpenOptions describes options for OpenStorage.
type OpenOptions struct {
	ReadOnly      bool // whether to open storage as read-only
	CompressAbove int  // compress payloads larger than this; 0 = driver default, <0 = never
}

// DriverOptions describes options for DriverOpener.
type DriverOptions struct {
	ReadOnly      bool
	CompressAbove int
}

// DriverOpener is a function to open a storage driver.
type DriverOpener func(ctx context.Context, u *url.URL, opt *DriverOptions) (IStorageDriver, error)

// {} scheme -> DriverOpener
var driverRegistry = map[string]DriverOpener{}

// RegisterDriver registers opener to be used for URLs with scheme.
func RegisterDriver(scheme string, opener DriverOpener) {
	if _, already := driverRegistry[scheme]; already {
		panic(fmt.Errorf("odb URL scheme %q was already registered", scheme))
	}

	driverRegistry[scheme] = opener
}

// OpenStorage opens storage by URL.
//
// Only URL schemes registered to odb package are handled. Users should
// import in storage packages they use or odb/wks package to get support for
// well-known storages.
func OpenStorage(ctx context.Context, storageURL string, opt *OpenOptions) (IStorage, error) {
	if opt == nil {
		opt = &OpenOptions{}
	}
	// no scheme -> sqlite://
	if !strings.Contains(storageURL, "://") {
		storageURL = "sqlite://" + storageURL
	}

	u, err := url.Parse(storageURL)
	if err != nil {
		return nil, err
	}

	opener, ok := driverRegistry[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("odb: URL scheme \"%s://\" not supported", u.Scheme)
	}

	driver, err := opener(ctx, u, &DriverOptions{
		ReadOnly:      opt.ReadOnly,
		CompressAbove: opt.CompressAbove,
	})
	if err != nil {
		return nil, err
	}
	log.Infof(ctx, "opened %s (readonly: %v)", driver.URL(), opt.ReadOnly)

	return &storage{
		driver:   driver,
		scheme:   u.Scheme,
		readOnly: opt.ReadOnly,
		down:     make(chan struct{}),
	}, nil
}

// storage represents storage opened via OpenStorage.
//
// it adds common checks and error context on top of raw storage driver.
type storage struct {
	driver   IStorageDriver
	scheme   string
	readOnly bool

	down     chan struct{} // ready when no longer operational
	downOnce sync.Once
	downErr  error // reason for shutdown
}

var errReadOnly = errors.New("storage is read-only")

func (s *storage) URL() string { return s.driver.URL() }

func (s *storage) shutdown(reason error) {
	s.downOnce.Do(func() {
		close(s.down)
		s.downErr = fmt.Errorf("not operational due: %s", reason)
	})
}

func ready(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// zerr turns error returned by storage into *OpError.
func (s *storage) zerr(op string, args any, err error) *OpError {
	if e, ok := err.(*OpError); ok {
		return e
	}
	return &OpError{URL: s.URL(), Op: op, Args: args, Err: err}
}

func (s *storage) Close() error {
	s.shutdown(fmt.Errorf("closed"))
	return s.driver.Close()
}

func (s *storage) Load(ctx context.Context, rid RID) (*mem.Buf, int32, error) {
	if ready(s.down) {
		return nil, 0, s.zerr("load", rid, s.downErr)
	}
	buf, version, err := s.driver.Load(ctx, rid)
	if err != nil {
		return nil, 0, s.zerr("load", rid, err)
	}
	metrics.RecordsLoaded.WithLabelValues(s.scheme).Inc()
	return buf, version, nil
}

func (s *storage) Allocate(ctx context.Context, cluster int32) (int64, error) {
	if ready(s.down) {
		return 0, s.zerr("allocate", cluster, s.downErr)
	}
	if s.readOnly {
		return 0, s.zerr("allocate", cluster, errReadOnly)
	}
	pos, err := s.driver.Allocate(ctx, cluster)
	if err != nil {
		return 0, s.zerr("allocate", cluster, err)
	}
	return pos, nil
}

func (s *storage) Commit(ctx context.Context, ops []StoreOp) ([]int32, error) {
	if ready(s.down) {
		return nil, s.zerr("commit", nil, s.downErr)
	}
	if s.readOnly {
		return nil, s.zerr("commit", nil, errReadOnly)
	}
	versions, err := s.driver.Commit(ctx, ops)
	if err != nil {
		return nil, s.zerr("commit", nil, err)
	}
	return versions, nil
}

func (s *storage) Clusters(ctx context.Context) ([]ClusterInfo, error) {
	if ready(s.down) {
		return nil, s.zerr("clusters", nil, s.downErr)
	}
	cv, err := s.driver.Clusters(ctx)
	if err != nil {
		return nil, s.zerr("clusters", nil, err)
	}
	return cv, nil
}
