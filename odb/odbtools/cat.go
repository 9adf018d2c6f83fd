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

// Cat - dump content of database records

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"lab.nexedi.com/kirr/go123/prog"

	"lab.nexedi.com/kirr/odb/go/odb"
)

// CatRaw dumps stored bytes of one record without any headers.
func CatRaw(ctx context.Context, w io.Writer, stor odb.IStorage, rid odb.RID) error {
	buf, _, err := stor.Load(ctx, rid)
	if err != nil {
		return err
	}
	_, err = w.Write(buf.Data)
	buf.Release()
	return err
}

// Cat dumps one record as JSON on its own line.
func Cat(ctx context.Context, w io.Writer, s *odb.Session, rid odb.RID) error {
	rec, err := s.Load(ctx, rid)
	if err != nil {
		return err
	}
	data, err := rec.ToJSON()
	if err != nil {
		return fmt.Errorf("%s: %w", rid, err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// ----------------------------------------

const catSummary = "dump content of database records"

func catUsage(w io.Writer) {
	fmt.Fprintf(w,
		`Usage: odb cat [OPTIONS] <storage> rid...
Dump content of odb database records as JSON, one record per line.

<storage> is an URL (see 'odb help url') of an odb storage.
rid is record id (see 'odb help rid').

Options:

	-h --help       this help text.
	-raw		dump stored record data without decoding. Only one record allowed.
	-codec <name>	codec records are serialized with (default msgpack).
	-schema <file>	schema YAML file.
`)
}

func catMain(argv []string) {
	raw := false
	var o dbOptions

	flags := flag.FlagSet{Usage: func() { catUsage(os.Stderr) }}
	flags.Init("", flag.ExitOnError)
	flags.BoolVar(&raw, "raw", raw, "dump stored record data without decoding. Only one record allowed.")
	o.register(&flags)
	flags.Parse(argv[1:])

	argv = flags.Args()
	if len(argv) < 2 {
		flags.Usage()
		prog.Exit(2)
	}
	storURL := argv[0]

	ridv := []odb.RID{}
	for _, arg := range argv[1:] {
		rid, err := odb.ParseRID(arg)
		if err != nil {
			prog.Fatal(err)
		}
		ridv = append(ridv, rid)
	}

	if raw && len(ridv) > 1 {
		prog.Fatal("only 1 record allowed with -raw")
	}

	ctx := context.Background()

	if raw {
		stor, err := odb.OpenStorage(ctx, storURL, &odb.OpenOptions{ReadOnly: true})
		if err != nil {
			prog.Fatal(err)
		}
		defer stor.Close()
		err = CatRaw(ctx, os.Stdout, stor, ridv[0])
		if err != nil {
			prog.Fatal(err)
		}
		return
	}

	s, ctx, done, err := openSession(ctx, storURL, &o)
	if err != nil {
		prog.Fatal(err)
	}
	defer done()

	err = s.Preload(ctx, ridv...)
	if err != nil {
		prog.Fatal(err)
	}
	for _, rid := range ridv {
		err = Cat(ctx, os.Stdout, s, rid)
		if err != nil {
			prog.Fatal(err)
		}
	}
}
