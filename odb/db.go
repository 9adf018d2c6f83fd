// Copyright (C) 2018-2026  Nexedi SA and Contributors.
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
// application-level database handle.

import (
	"context"
	"errors"
	"fmt"

	"lab.nexedi.com/kirr/go123/xerr"

	"lab.nexedi.com/kirr/odb/go/odb/schema"
	"lab.nexedi.com/kirr/odb/go/transaction"
)

// DB represents a handle to database at application level.
//
// DB binds together storage, schema and codec. DB.Open opens a Session
// under a transaction.
//
// DB is safe to access from multiple goroutines simultaneously.
type DB struct {
	stor  IStorage
	sch   *schema.Schema
	codec Codec
	opt   DBOptions
}

// DBOptions describes options to NewDB.
type DBOptions struct {
	Schema     *schema.Schema // nil -> empty schema with only V and E
	Codec      Codec          // nil -> DefaultCodec
	NoLazyLoad bool           // don't resolve links on access by default
}

// NewDB creates new database handle over stor.
func NewDB(stor IStorage, opt *DBOptions) *DB {
	db := &DB{stor: stor}
	if opt != nil {
		db.opt = *opt
	}
	db.sch = db.opt.Schema
	if db.sch == nil {
		db.sch = schema.New()
	}
	db.codec = db.opt.Codec
	if db.codec == nil {
		db.codec = DefaultCodec()
	}
	return db
}

// OpenDB opens database according to cfg.
//
// The storage is opened by URL, the codec is looked up by name, and the
// schema is loaded from YAML file if one is configured.
func OpenDB(ctx context.Context, cfg *Config) (_ *DB, err error) {
	defer xerr.Contextf(&err, "open db %s", cfg.Storage)

	codec, err := CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	sch := schema.New()
	if cfg.Schema != "" {
		sch, err = schema.LoadFile(cfg.Schema)
		if err != nil {
			return nil, err
		}
	}

	stor, err := OpenStorage(ctx, cfg.Storage, &OpenOptions{
		ReadOnly:      cfg.ReadOnly,
		CompressAbove: cfg.Compress,
	})
	if err != nil {
		return nil, err
	}

	return NewDB(stor, &DBOptions{
		Schema:     sch,
		Codec:      codec,
		NoLazyLoad: !cfg.LazyLoad,
	}), nil
}

func (db *DB) Storage() IStorage      { return db.stor }
func (db *DB) Schema() *schema.Schema { return db.sch }
func (db *DB) Codec() Codec           { return db.codec }

// Close closes database storage.
func (db *DB) Close() error {
	return db.stor.Close()
}

// SessionOptions describes options to DB.Open.
type SessionOptions struct {
	NoLazyLoad bool // don't resolve links on access; overrides DB default when set
}

func (opt *SessionOptions) String() string {
	if opt == nil || !opt.NoLazyLoad {
		return "(lazy)"
	}
	return "(eager)"
}

var errNoTxn = errors.New("no transaction in context")

// Open opens new session to the database.
//
// Open must be called under transaction. The session, and the records
// obtained from it, must be used only under that transaction and only until
// the transaction is complete.
func (db *DB) Open(ctx context.Context, opt *SessionOptions) (_ *Session, err error) {
	defer func() {
		if err == nil {
			return
		}

		err = &OpError{
			URL:  db.stor.URL(),
			Op:   "open session",
			Args: opt,
			Err:  err,
		}
	}()

	if db.codec == nil {
		return nil, fmt.Errorf("codec %q not registered", DefaultCodecName)
	}
	txn := transaction.Lookup(ctx)
	if txn == nil {
		return nil, errNoTxn
	}
	if st := txn.Status(); st != transaction.Active {
		return nil, fmt.Errorf("transaction is %s", st)
	}

	lazy := !db.opt.NoLazyLoad
	if opt != nil && opt.NoLazyLoad {
		lazy = false
	}
	s := newSession(ctx, db, txn, lazy)
	txn.RegisterSync((*sessionSync)(s))
	return s, nil
}
