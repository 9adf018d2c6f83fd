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

package mem

import (
	"context"
	"testing"

	"lab.nexedi.com/kirr/odb/go/internal/xtesting"
	"lab.nexedi.com/kirr/odb/go/odb"
)

func TestCommit(t *testing.T) {
	xtesting.DrvTestCommit(t, Open())
}

func TestOpenNamed(t *testing.T) {
	X := xtesting.FatalIf(t)
	ctx := context.Background()

	s1, err := odb.OpenStorage(ctx, "mem://shared-test", nil); X(err)
	s2, err := odb.OpenStorage(ctx, "mem://shared-test", nil); X(err)
	s3, err := odb.OpenStorage(ctx, "mem://", nil); X(err)

	rid := odb.RID{Cluster: 1, Position: 0}
	_, err = s1.Commit(ctx, []odb.StoreOp{{RID: rid, Data: []byte("hello")}}); X(err)

	buf, version, err := s2.Load(ctx, rid); X(err)
	if string(buf.Data) != "hello" || version != 1 {
		t.Fatalf("load via second open: %q @%d;  want %q @1", buf.Data, version, "hello")
	}

	_, _, err = s3.Load(ctx, rid)
	if _, ok := err.(*odb.OpError); !ok {
		t.Fatalf("load from private storage: err = %v;  want *OpError", err)
	}
}
