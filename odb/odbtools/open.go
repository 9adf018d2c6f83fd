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

// opening databases for commands that decode records

import (
	"context"
	"flag"

	"lab.nexedi.com/kirr/odb/go/odb"
	"lab.nexedi.com/kirr/odb/go/transaction"
)

// dbOptions are options of commands that decode records.
type dbOptions struct {
	codec  string
	schema string
}

func (o *dbOptions) register(flags *flag.FlagSet) {
	if o.codec == "" {
		o.codec = odb.DefaultCodecName
	}
	flags.StringVar(&o.codec, "codec", o.codec, "codec records are serialized with")
	flags.StringVar(&o.schema, "schema", o.schema, "schema YAML file")
}

// openSession opens database at storURL read-only and a session to it.
//
// The session lives under its own transaction; call done when finished.
func openSession(ctx context.Context, storURL string, o *dbOptions) (_ *odb.Session, _ context.Context, done func(), err error) {
	cfg := odb.DefaultConfig(storURL)
	cfg.ReadOnly = true
	cfg.Codec = o.codec
	cfg.Schema = o.schema

	db, err := odb.OpenDB(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	txn, ctx := transaction.New(ctx)
	s, err := db.Open(ctx, nil)
	if err != nil {
		txn.Abort()
		db.Close()
		return nil, nil, nil, err
	}

	done = func() {
		txn.Abort()
		db.Close()
	}
	return s, ctx, done, nil
}
