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

// Edges - list edges of a vertex

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"lab.nexedi.com/kirr/go123/prog"
	"lab.nexedi.com/kirr/go123/xfmt"

	"lab.nexedi.com/kirr/odb/go/odb"
)

// Edges lists edges of vertex rid in direction dir, one edge per line:
//
//	<edge-rid> <label> <from> -> <to>
//
// Lightweight edges have no identity and are printed with "-" for it.
func Edges(ctx context.Context, w io.Writer, s *odb.Session, rid odb.RID, dir odb.Direction, labels ...string) error {
	rec, err := s.Load(ctx, rid)
	if err != nil {
		return err
	}
	v, ok := rec.AsVertex()
	if !ok {
		return fmt.Errorf("%s: not a vertex (class %q)", rid, rec.ClassName())
	}

	var buf xfmt.Buffer
	for e := range v.Edges(dir, labels...) {
		buf.Reset()
		if e.IsLightweight() {
			buf.Cb('-')
		} else {
			buf.V(e.Identity())
		}
		buf.Cb(' ').S(e.Label()).Cb(' ')
		xvertex(&buf, e.From())
		buf.S(" -> ")
		xvertex(&buf, e.To())
		buf.Cb('\n')

		_, err = w.Write(buf.Bytes())
		if err != nil {
			return err
		}
	}
	return nil
}

func xvertex(buf *xfmt.Buffer, v odb.Vertex) {
	if v == nil {
		buf.Cb('?')
		return
	}
	buf.V(v.Identity())
}

// ----------------------------------------

const edgesSummary = "list edges of a vertex"

func edgesUsage(w io.Writer) {
	fmt.Fprintf(w,
		`Usage: odb edges [OPTIONS] <storage> rid [label ...]
List edges of vertex with id rid, one edge per line as

	<edge-rid> <label> <from> -> <to>

Lightweight edges are printed with "-" instead of edge rid. If labels are
given only edges with those labels are listed.

Options:

	-h --help       this help text.
	-dir <dir>	direction of edges: out, in or both (default both).
	-codec <name>	codec records are serialized with (default msgpack).
	-schema <file>	schema YAML file.
`)
}

func edgesMain(argv []string) {
	dirStr := "both"
	var o dbOptions

	flags := flag.FlagSet{Usage: func() { edgesUsage(os.Stderr) }}
	flags.Init("", flag.ExitOnError)
	flags.StringVar(&dirStr, "dir", dirStr, "direction of edges: out, in or both")
	o.register(&flags)
	flags.Parse(argv[1:])

	argv = flags.Args()
	if len(argv) < 2 {
		flags.Usage()
		prog.Exit(2)
	}
	storURL := argv[0]

	rid, err := odb.ParseRID(argv[1])
	if err != nil {
		prog.Fatal(err)
	}
	dir, err := odb.ParseDirection(dirStr)
	if err != nil {
		prog.Fatal(err)
	}

	ctx := context.Background()
	s, ctx, done, err := openSession(ctx, storURL, &o)
	if err != nil {
		prog.Fatal(err)
	}
	defer done()

	err = Edges(ctx, os.Stdout, s, rid, dir, argv[2:]...)
	if err != nil {
		prog.Fatal(err)
	}
}
