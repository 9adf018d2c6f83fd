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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lab.nexedi.com/kirr/odb/go/transaction"
)

func TestParseConfig(t *testing.T) {
	assert := require.New(t)

	cfg, err := ParseConfig(strings.NewReader("storage: mem://x\ncompress: -1\n"))
	assert.NoError(err)
	want := DefaultConfig("mem://x")
	want.Compress = -1
	assert.Equal(want, cfg)

	cfg, err = ParseConfig(strings.NewReader("storage: mem://\ncodec: pickle\nlazyLoad: false\nreadOnly: true\n"))
	assert.NoError(err)
	assert.Equal("pickle", cfg.Codec)
	assert.False(cfg.LazyLoad)
	assert.True(cfg.ReadOnly)

	for _, bad := range []string{
		"",
		"codec: msgpack\n",
		"storage: mem://\ncolor: red\n",
		"storage: [1, 2]\n",
	} {
		_, err = ParseConfig(strings.NewReader(bad))
		assert.Error(err, "config %q", bad)
	}
}

func TestLoadConfig(t *testing.T) {
	assert := require.New(t)
	X := fatalIf(t)
	dir := t.TempDir()

	X(os.WriteFile(filepath.Join(dir, "schema.yaml"), []byte(`
classes:
  - name: Person
    superClasses: [V]
    properties:
      - {name: name, type: STRING, mandatory: true}
`), 0644))
	cfgPath := filepath.Join(dir, "odb.yaml")
	X(os.WriteFile(cfgPath, []byte("storage: mem://config-test\nschema: schema.yaml\ncodec: pickle\n"), 0644))

	cfg, err := LoadConfig(cfgPath)
	X(err)
	assert.Equal(filepath.Join(dir, "schema.yaml"), cfg.Schema)

	ctx := context.Background()
	db, err := OpenDB(ctx, cfg)
	X(err)
	defer db.Close()
	assert.Equal("pickle", db.Codec().Name())
	assert.NotNil(db.Schema().Class("Person"))

	txn, ctx := transaction.New(ctx)
	s, err := db.Open(ctx, nil)
	X(err)
	p := s.NewRecord("Person")
	assert.Error(s.Save(p)) // name is mandatory
	X(p.SetProperty("name", "alice"))
	X(s.Save(p))
	X(txn.Commit(ctx))

	_, err = LoadConfig(filepath.Join(dir, "nope.yaml"))
	assert.Error(err)
	cfg.Codec = "nope"
	_, err = OpenDB(context.Background(), cfg)
	assert.Error(err)
}

func TestOpenSession(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, nil)

	// session needs active transaction
	_, err := db.Open(context.Background(), nil)
	assert.Error(err)

	txn, ctx := transaction.New(context.Background())
	txn.Abort()
	_, err = db.Open(ctx, nil)
	assert.Error(err)
}

func TestOpenStorage(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()

	_, err := OpenStorage(ctx, "nope://x", nil)
	assert.Error(err)

	stor, err := OpenStorage(ctx, "mem://", &OpenOptions{ReadOnly: true})
	assert.NoError(err)
	_, err = stor.Allocate(ctx, 1)
	assert.ErrorIs(err, errReadOnly)
	_, err = stor.Commit(ctx, []StoreOp{{RID: RID{1, 0}, Data: []byte("x")}})
	assert.ErrorIs(err, errReadOnly)

	assert.NoError(stor.Close())
	_, _, err = stor.Load(ctx, RID{1, 0})
	assert.Error(err)
}
