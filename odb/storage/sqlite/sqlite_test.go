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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"lab.nexedi.com/kirr/odb/go/internal/xtesting"
	"lab.nexedi.com/kirr/odb/go/odb"
)

func TestCommit(t *testing.T) {
	X := xtesting.FatalIf(t)
	path := filepath.Join(t.TempDir(), "1.db")

	b, err := Open(context.Background(), path, nil); X(err)
	defer func() {
		err := b.Close(); X(err)
	}()

	xtesting.DrvTestCommit(t, b)
}

// data committed to sqlite storage survives reopen, including read-only one.
func TestReopen(t *testing.T) {
	X := xtesting.FatalIf(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "2.db")

	stor, err := odb.OpenStorage(ctx, path, nil); X(err) // no scheme -> sqlite
	if url := stor.URL(); url != "sqlite://"+path {
		t.Fatalf("url: %q;  want %q", url, "sqlite://"+path)
	}
	pos, err := stor.Allocate(ctx, 4); X(err)
	rid := odb.RID{Cluster: 4, Position: pos}
	_, err = stor.Commit(ctx, []odb.StoreOp{{RID: rid, Data: []byte("data")}}); X(err)
	err = stor.Close(); X(err)

	stor, err = odb.OpenStorage(ctx, "sqlite://"+path, &odb.OpenOptions{ReadOnly: true}); X(err)
	defer func() {
		err := stor.Close(); X(err)
	}()

	buf, version, err := stor.Load(ctx, rid); X(err)
	if string(buf.Data) != "data" || version != 1 {
		t.Fatalf("load after reopen: %q @%d;  want %q @1", buf.Data, version, "data")
	}

	_, err = stor.Allocate(ctx, 4)
	if err == nil {
		t.Fatal("allocate in read-only storage: no error")
	}
}
