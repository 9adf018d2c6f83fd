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

// Package sqlite provides storage driver that keeps records in SQLite database.
//
// URL is sqlite://<path>; a path without scheme given to odb.OpenStorage
// also opens SQLite storage. The database is accessed via pure-Go
// modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"net/url"

	_ "modernc.org/sqlite"

	"lab.nexedi.com/kirr/odb/go/odb"
	odbsql "lab.nexedi.com/kirr/odb/go/odb/storage/sql"
)

// Open opens SQLite storage at path.
func Open(ctx context.Context, path string, opt *odb.DriverOptions) (*odbsql.Backend, error) {
	dsn := path
	if opt != nil && opt.ReadOnly {
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows only one writer; serialize access instead of getting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return odbsql.Open(ctx, db, "sqlite://"+path, odbsql.SQLite, opt)
}

// ---- open by URL ----

func openByURL(ctx context.Context, u *url.URL, opt *odb.DriverOptions) (odb.IStorageDriver, error) {
	// TODO handle query, e.g. ?journal_mode=wal
	path := u.Host + u.Path
	return Open(ctx, path, opt)
}

func init() {
	odb.RegisterDriver("sqlite", openByURL)
}
