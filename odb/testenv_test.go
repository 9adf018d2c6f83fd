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
	"context"
	"testing"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
	"lab.nexedi.com/kirr/odb/go/transaction"
)

// testDB is a database over private in-RAM storage.
type testDB struct {
	*DB
	t *testing.T
}

func newTestDB(t *testing.T, sch *schema.Schema) *testDB {
	t.Helper()
	return newTestDBCodec(t, sch, DefaultCodecName)
}

// newTestDBCodec is like newTestDB but records are serialized with codec.
func newTestDBCodec(t *testing.T, sch *schema.Schema, codec string) *testDB {
	t.Helper()
	ctx := context.Background()
	c, err := CodecByName(codec)
	if err != nil {
		t.Fatal(err)
	}
	stor, err := OpenStorage(ctx, "mem://", nil)
	if err != nil {
		t.Fatal(err)
	}
	db := NewDB(stor, &DBOptions{Schema: sch, Codec: c})
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Error(err)
		}
	})
	return &testDB{db, t}
}

// session opens new session under new transaction.
func (db *testDB) session() (context.Context, *Session) {
	db.t.Helper()
	txn, ctx := transaction.New(context.Background())
	s, err := db.Open(ctx, nil)
	if err != nil {
		db.t.Fatal(err)
	}
	db.t.Cleanup(func() {
		if txn.Status() == transaction.Active {
			txn.Abort()
		}
	})
	return ctx, s
}

// commit commits transaction of s.
func (db *testDB) commit(ctx context.Context) {
	db.t.Helper()
	if err := transaction.Current(ctx).Commit(ctx); err != nil {
		db.t.Fatal(err)
	}
}

// load loads rid in new session.
func (db *testDB) load(rid RID) (context.Context, *Session, *Record) {
	db.t.Helper()
	ctx, s := db.session()
	rec, err := s.Load(ctx, rid)
	if err != nil {
		db.t.Fatal(err)
	}
	return ctx, s, rec
}

// personSchema returns schema used by most tests:
//
//	Person(V)  name: STRING mandatory, age: INTEGER 0..150, tags: readonly EMBEDDEDLIST
//	Knows(E)   since: INTEGER
//	Address    city: STRING mandatory
func personSchema() *schema.Schema {
	sch := schema.New()
	person := mustClass(sch.CreateClass("Person", schema.VertexClass))
	person.AddProperty("name", schema.String).Mandatory = true
	age := person.AddProperty("age", schema.Integer)
	age.Min, age.Max = "0", "150"
	person.AddProperty("tags", schema.EmbeddedList).ReadOnly = true

	knows := mustClass(sch.CreateClass("Knows", schema.EdgeClass))
	knows.AddProperty("since", schema.Integer)

	addr := mustClass(sch.CreateClass("Address"))
	addr.AddProperty("city", schema.String).Mandatory = true
	return sch
}

// fatalIf returns function that fails t on error.
func fatalIf(t *testing.T) func(error) {
	return func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
}

func mustClass(c *schema.Class, err error) *schema.Class {
	if err != nil {
		panic(err)
	}
	return c
}
