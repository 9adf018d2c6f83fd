// Copyright (C) 2017-2026  Nexedi SA and Contributors.
//                          Kirill Smelkov <kirr@nexedi.com>
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

// Package xtesting provides infrastructure for odb testing.
package xtesting

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/pkg/errors"

	"lab.nexedi.com/kirr/odb/go/odb"
)

// FatalIf returns function that fails the test if called with non-nil error.
//
// Typical use:
//
//	X := xtesting.FatalIf(t)
//	data, err := ...; X(err)
func FatalIf(t testing.TB) func(error) {
	return func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
}

// NeedEnv skips current test if environment variable env is not set, and
// returns its value otherwise.
//
// It is used for tests that need external services, e.g.
//
//	dsn := xtesting.NeedEnv(t, "ODB_TEST_POSTGRES")
func NeedEnv(t testing.TB, env string) string {
	t.Helper()
	v := os.Getenv(env)
	if v == "" {
		t.Skipf("skipping: $%s is not set", env)
	}
	return v
}

// ---- tests for storage drivers ----

// state of a record in the storage
type recState struct {
	version int32
	data    []byte // nil if record is not there
}

// checkLoad verifies that drv.Load(rid) returns expected result.
func checkLoad(t *testing.T, drv odb.IStorageDriver, rid odb.RID, expect recState) {
	t.Helper()
	buf, version, err := drv.Load(context.Background(), rid)

	// missing record - it should load with "not found"
	if expect.data == nil {
		errOk := &odb.NotFoundError{RID: rid}
		if !reflect.DeepEqual(errors.Cause(err), errOk) {
			t.Errorf("load %v: returned err unexpected: %v  ; want: %v", rid, err, errOk)
		}
		if buf != nil {
			t.Errorf("load %v: returned buf != nil", rid)
		}
		return
	}

	// regular load
	if err != nil {
		t.Errorf("load %v: returned err unexpected: %v  ; want: nil", rid, err)
		return
	}
	if version != expect.version {
		t.Errorf("load %v: returned version unexpected: %v  ; want: %v", rid, version, expect.version)
	}
	switch {
	case buf == nil:
		t.Errorf("load %v: returned buf = nil", rid)

	case !reflect.DeepEqual(buf.Data, expect.data): // NOTE reflect to catch nil != ""
		t.Errorf("load %v: different data:\nhave: %q\nwant: %q", rid, buf.Data, expect.data)
	}
	buf.XRelease()
}

// DrvTestCommit verifies that drv implements Allocate, Commit, Load and
// Clusters correctly.
//
// drv must be empty.
func DrvTestCommit(t *testing.T, drv odb.IStorageDriver) {
	X := FatalIf(t)
	ctx := context.Background()

	cv, err := drv.Clusters(ctx); X(err)
	if len(cv) != 0 {
		t.Fatalf("clusters of empty storage: %v;  want none", cv)
	}

	// allocation is sequential per cluster
	alloc := func(cluster int32) odb.RID {
		t.Helper()
		pos, err := drv.Allocate(ctx, cluster); X(err)
		return odb.RID{Cluster: cluster, Position: pos}
	}
	a, b := alloc(3), alloc(3)
	c := alloc(5)
	if a.Position+1 != b.Position {
		t.Fatalf("allocate: %s, %s;  want consecutive positions", a, b)
	}
	checkLoad(t, drv, a, recState{})

	// large enough to be compressed by SQL backends
	big := make([]byte, 4096)
	for i := range big {
		big[i] = byte(i % 7)
	}

	versions, err := drv.Commit(ctx, []odb.StoreOp{
		{RID: a, Data: []byte("alpha")},
		{RID: b, Data: big},
		{RID: c, Data: []byte{}},
	})
	X(err)
	if diff := pretty.Compare([]int32{1, 1, 1}, versions); diff != "" {
		t.Fatalf("commit new: versions:\n%s", diff)
	}
	checkLoad(t, drv, a, recState{1, []byte("alpha")})
	checkLoad(t, drv, b, recState{1, big})
	checkLoad(t, drv, c, recState{1, []byte{}})

	// update based on current version
	versions, err = drv.Commit(ctx, []odb.StoreOp{{RID: a, Version: 1, Data: []byte("beta")}})
	X(err)
	if diff := pretty.Compare([]int32{2}, versions); diff != "" {
		t.Fatalf("commit update: versions:\n%s", diff)
	}
	checkLoad(t, drv, a, recState{2, []byte("beta")})

	// update based on stale version -> conflict; the whole batch is rejected
	_, err = drv.Commit(ctx, []odb.StoreOp{
		{RID: b, Version: 1, Data: []byte("bbb")},
		{RID: a, Version: 1, Data: []byte("gamma")},
	})
	errOk := &odb.ConflictError{RID: a, Have: 2, Want: 1}
	if !reflect.DeepEqual(errors.Cause(err), errOk) {
		t.Fatalf("commit stale: err = %v;  want %v", err, errOk)
	}
	checkLoad(t, drv, a, recState{2, []byte("beta")})
	checkLoad(t, drv, b, recState{1, big})

	// creating record that is already there -> conflict
	_, err = drv.Commit(ctx, []odb.StoreOp{{RID: c, Version: 0, Data: []byte("c")}})
	errOk = &odb.ConflictError{RID: c, Have: 1, Want: 0}
	if !reflect.DeepEqual(errors.Cause(err), errOk) {
		t.Fatalf("commit over existing: err = %v;  want %v", err, errOk)
	}

	cv, err = drv.Clusters(ctx); X(err)
	cvOk := []odb.ClusterInfo{{ID: 3, Records: 2}, {ID: 5, Records: 1}}
	if diff := pretty.Compare(cvOk, cv); diff != "" {
		t.Fatalf("clusters:\n%s", diff)
	}

	// delete
	versions, err = drv.Commit(ctx, []odb.StoreOp{{RID: a, Version: 2, Delete: true}})
	X(err)
	if diff := pretty.Compare([]int32{0}, versions); diff != "" {
		t.Fatalf("commit delete: versions:\n%s", diff)
	}
	checkLoad(t, drv, a, recState{})
	checkLoad(t, drv, b, recState{1, big})

	cv, err = drv.Clusters(ctx); X(err)
	cvOk = []odb.ClusterInfo{{ID: 3, Records: 1}, {ID: 5, Records: 1}}
	if diff := pretty.Compare(cvOk, cv); diff != "" {
		t.Fatalf("clusters after delete:\n%s", diff)
	}

	// positions are never reused, even after delete
	d := alloc(3)
	if d.Position <= b.Position {
		t.Fatalf("allocate after delete: %s;  want position > %d", d, b.Position)
	}

	// storing at position not obtained from Allocate moves allocator past it
	far := odb.RID{Cluster: 7, Position: 100}
	_, err = drv.Commit(ctx, []odb.StoreOp{{RID: far, Data: []byte("far")}}); X(err)
	if e := alloc(7); e.Position <= far.Position {
		t.Fatalf("allocate after %s: %s;  want position > %d", far, e, far.Position)
	}
}
