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

package odbtools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"lab.nexedi.com/kirr/go123/exc"

	"lab.nexedi.com/kirr/odb/go/internal/xtesting"
	"lab.nexedi.com/kirr/odb/go/odb"
	"lab.nexedi.com/kirr/odb/go/odb/schema"
	"lab.nexedi.com/kirr/odb/go/transaction"

	_ "lab.nexedi.com/kirr/odb/go/odb/codec/msgpack"
	_ "lab.nexedi.com/kirr/odb/go/odb/storage/mem"
)

const testSchema = `
classes:
  - name: Person
    superClasses: [V]
    properties:
      - {name: name, type: STRING, mandatory: true}
  - name: Knows
    superClasses: [E]
`

// testGraph is alice -Knows-> bob (regular edge) and alice -Knows-> carol
// (lightweight edge) committed to mem://<name>.
type testGraph struct {
	url, schema       string
	alice, bob, carol odb.RID
	knows             odb.RID
}

func populate(t *testing.T, name string) *testGraph {
	t.Helper()
	X := xtesting.FatalIf(t)

	g := &testGraph{url: "mem://" + name}
	g.schema = filepath.Join(t.TempDir(), "schema.yaml")
	X(os.WriteFile(g.schema, []byte(testSchema), 0644))
	sch, err := schema.LoadFile(g.schema)
	X(err)

	ctx := context.Background()
	stor, err := odb.OpenStorage(ctx, g.url, nil)
	X(err)
	db := odb.NewDB(stor, &odb.DBOptions{Schema: sch})
	defer exc.XRun(db.Close)

	txn, ctx := transaction.New(ctx)
	s, err := db.Open(ctx, nil)
	X(err)

	person := func(name string) odb.Vertex {
		v, err := s.NewVertex("Person")
		X(err)
		X(v.Record().SetProperty("name", name))
		return v
	}
	alice, bob, carol := person("alice"), person("bob"), person("carol")
	knows, err := alice.AddEdge(bob, "Knows")
	X(err)
	_, err = alice.AddLightweightEdge(carol, "Knows")
	X(err)
	X(s.Save(alice.Record()))
	X(txn.Commit(ctx))

	g.alice = alice.Identity()
	g.bob = bob.Identity()
	g.carol = carol.Identity()
	g.knows = knows.Identity()
	return g
}

func TestInfo(t *testing.T) {
	assert := require.New(t)
	X := xtesting.FatalIf(t)
	g := populate(t, "odbtools-info")

	ctx := context.Background()
	stor, err := odb.OpenStorage(ctx, g.url, &odb.OpenOptions{ReadOnly: true})
	X(err)
	defer exc.XRun(stor.Close)

	out := &bytes.Buffer{}
	X(Info(ctx, out, stor, nil, true))
	want := "name=" + stor.URL() + "\n" +
		"clusters=2\n" +
		"records=4\n" +
		fmt.Sprintf("cluster.%d=3\n", g.alice.Cluster) +
		fmt.Sprintf("cluster.%d=1\n", g.knows.Cluster)
	assert.Equal(want, out.String())

	out.Reset()
	X(Info(ctx, out, stor, []string{"records"}, false))
	assert.Equal("4\n", out.String())

	err = Info(ctx, out, stor, []string{"color"}, false)
	assert.Error(err)
}

func TestCat(t *testing.T) {
	assert := require.New(t)
	X := xtesting.FatalIf(t)
	g := populate(t, "odbtools-cat")

	ctx := context.Background()
	s, ctx, done, err := openSession(ctx, g.url, &dbOptions{codec: odb.DefaultCodecName, schema: g.schema})
	X(err)
	defer done()

	out := &bytes.Buffer{}
	X(Cat(ctx, out, s, g.bob))
	var m map[string]any
	X(json.Unmarshal(out.Bytes(), &m))
	assert.Equal(g.bob.String(), m["@rid"])
	assert.Equal("Person", m["@class"])
	assert.Equal("bob", m["name"])
	assert.Equal([]any{g.knows.String()}, m["in_Knows"])

	err = Cat(ctx, out, s, odb.RID{Cluster: g.bob.Cluster, Position: 99})
	assert.Error(err)

	// raw data is what the codec decodes
	out.Reset()
	X(CatRaw(ctx, out, s.Storage(), g.bob))
	rec := odb.NewRecord(s.Schema(), "")
	X(s.Codec().Decode(rec, out.Bytes(), nil))
	assert.Equal("bob", rec.GetProperty("name"))
}

// lines splits output into lines without trailing newline.
func lines(out string) []string {
	out = strings.TrimSuffix(out, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestEdges(t *testing.T) {
	assert := require.New(t)
	X := xtesting.FatalIf(t)
	g := populate(t, "odbtools-edges")

	ctx := context.Background()
	s, ctx, done, err := openSession(ctx, g.url, &dbOptions{codec: odb.DefaultCodecName, schema: g.schema})
	X(err)
	defer done()

	edges := func(rid odb.RID, dir odb.Direction, labels ...string) []string {
		t.Helper()
		out := &bytes.Buffer{}
		X(Edges(ctx, out, s, rid, dir, labels...))
		return lines(out.String())
	}
	line := func(id, from, to string) string {
		return id + " Knows " + from + " -> " + to
	}

	regular := line(g.knows.String(), g.alice.String(), g.bob.String())
	lightweight := line("-", g.alice.String(), g.carol.String())

	assert.ElementsMatch([]string{regular, lightweight}, edges(g.alice, odb.Out))
	assert.ElementsMatch([]string{regular, lightweight}, edges(g.alice, odb.Both, "Knows"))
	assert.Empty(edges(g.alice, odb.In))
	assert.Empty(edges(g.alice, odb.Out, "Likes"))
	assert.ElementsMatch([]string{regular}, edges(g.bob, odb.In))
	assert.ElementsMatch([]string{lightweight}, edges(g.carol, odb.Both))

	// edges are not vertices
	err = Edges(ctx, &bytes.Buffer{}, s, g.knows, odb.Both)
	assert.Error(err)
}
