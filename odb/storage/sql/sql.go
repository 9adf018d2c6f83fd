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

// Package sql provides storage backend that keeps records in an SQL database.
//
// The backend works over database/sql; drivers for particular databases
// (odb/storage/sqlite, odb/storage/postgres) open the database and pass
// their Dialect.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"lab.nexedi.com/kirr/go123/mem"
	"lab.nexedi.com/kirr/go123/xerr"

	"lab.nexedi.com/kirr/odb/go/internal/xzlib"
	"lab.nexedi.com/kirr/odb/go/odb"
)

// DefaultCompressAbove is the payload size from which records are compressed
// when storage is opened with CompressAbove=0.
const DefaultCompressAbove = 512

// ---- schema ----

// table "clusters" keeps position allocator of every cluster.
const clusters = `
	id		INTEGER NOT NULL PRIMARY KEY,
	next_pos	BIGINT NOT NULL
`

// table "records" stores serialized records.
const records = `
	cluster		INTEGER NOT NULL,
	position	BIGINT NOT NULL,
	version		INTEGER NOT NULL,
	compression	INTEGER NOT NULL,	-- 0 | 1 (zlib)
	data		%s NOT NULL,

	PRIMARY KEY (cluster, position)
`

// Dialect describes differences in SQL between databases.
type Dialect struct {
	Name      string
	Blob      string // column type for raw bytes
	Greatest  string // function returning the largest of its arguments
	ForUpdate string // suffix to lock rows selected inside a transaction
	Numbered  bool   // placeholders are $1, $2, ... instead of ?
}

var (
	SQLite   = &Dialect{Name: "sqlite", Blob: "BLOB", Greatest: "MAX"}
	Postgres = &Dialect{Name: "postgres", Blob: "BYTEA", Greatest: "GREATEST",
		ForUpdate: " FOR UPDATE", Numbered: true}
)

// rebind converts ? placeholders in query to the dialect form.
func (d *Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Backend is storage driver over SQL database.
type Backend struct {
	db            *sql.DB
	url           string
	dialect       *Dialect
	compressAbove int
}

var _ odb.IStorageDriver = (*Backend)(nil)

// Open creates backend over opened database db.
//
// Tables are created if they do not exist yet, unless opt.ReadOnly is set.
// The backend owns db and closes it on Close.
func Open(ctx context.Context, db *sql.DB, url string, dialect *Dialect, opt *odb.DriverOptions) (_ *Backend, err error) {
	defer xerr.Contextf(&err, "%s: open", url)

	if opt == nil {
		opt = &odb.DriverOptions{}
	}
	b := &Backend{db: db, url: url, dialect: dialect}
	switch {
	case opt.CompressAbove == 0:
		b.compressAbove = DefaultCompressAbove
	case opt.CompressAbove > 0:
		b.compressAbove = opt.CompressAbove
	}

	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// check we can actually access db
	err = db.PingContext(ctx)
	if err != nil {
		return nil, err
	}

	if !opt.ReadOnly {
		err = b.exec(ctx, b.db, "CREATE TABLE IF NOT EXISTS clusters ("+clusters+")")
		if err != nil {
			return nil, err
		}
		err = b.exec(ctx, b.db, "CREATE TABLE IF NOT EXISTS records ("+fmt.Sprintf(records, dialect.Blob)+")")
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Backend) URL() string { return b.url }

func (b *Backend) Close() error {
	return b.db.Close()
}

// querier is *sql.DB or *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, argv ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, argv ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, argv ...any) *sql.Row
}

func (b *Backend) query1(ctx context.Context, q querier, query string, argv ...any) *sql.Row {
	return q.QueryRowContext(ctx, b.dialect.rebind(query), argv...)
}

func (b *Backend) exec(ctx context.Context, q querier, query string, argv ...any) error {
	_, err := q.ExecContext(ctx, b.dialect.rebind(query), argv...)
	return err
}

func (b *Backend) Load(ctx context.Context, rid odb.RID) (*mem.Buf, int32, error) {
	var version int32
	var compression int
	var data []byte
	err := b.query1(ctx, b.db,
		"SELECT version, compression, data FROM records WHERE cluster=? AND position=?",
		rid.Cluster, rid.Position).
		Scan(&version, &compression, &data)
	if err != nil {
		if err == sql.ErrNoRows {
			err = &odb.NotFoundError{RID: rid}
		}
		return nil, 0, err
	}

	data, err = xzlib.Uncompress(data, compression != 0)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: decompress: %w", rid, err)
	}
	buf := mem.BufAlloc(len(data))
	copy(buf.Data, data)
	return buf, version, nil
}

func (b *Backend) Allocate(ctx context.Context, cluster int32) (int64, error) {
	var pos int64
	err := b.query1(ctx, b.db,
		"INSERT INTO clusters (id, next_pos) VALUES (?, 1)"+
			" ON CONFLICT (id) DO UPDATE SET next_pos = clusters.next_pos + 1"+
			" RETURNING next_pos - 1",
		cluster).
		Scan(&pos)
	if err != nil {
		return 0, err
	}
	return pos, nil
}

func (b *Backend) Commit(ctx context.Context, ops []odb.StoreOp) (_ []int32, err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	versions := make([]int32, len(ops))
	for i, op := range ops {
		rid := op.RID
		var have int32
		err = b.query1(ctx, tx,
			"SELECT version FROM records WHERE cluster=? AND position=?"+b.dialect.ForUpdate,
			rid.Cluster, rid.Position).
			Scan(&have)
		switch {
		case err == sql.ErrNoRows:
			have = 0
		case err != nil:
			return nil, err
		}
		if have != op.Version {
			return nil, &odb.ConflictError{RID: rid, Have: have, Want: op.Version}
		}

		if op.Delete {
			err = b.exec(ctx, tx,
				"DELETE FROM records WHERE cluster=? AND position=?",
				rid.Cluster, rid.Position)
			if err != nil {
				return nil, err
			}
			continue
		}

		data, compressed := xzlib.CompressAbove(op.Data, b.compressAbove)
		compression := 0
		if compressed {
			compression = 1
		}
		versions[i] = have + 1
		if have == 0 {
			err = b.exec(ctx, tx,
				"INSERT INTO records (cluster, position, version, compression, data)"+
					" VALUES (?, ?, ?, ?, ?)",
				rid.Cluster, rid.Position, versions[i], compression, data)
		} else {
			err = b.exec(ctx, tx,
				"UPDATE records SET version=?, compression=?, data=?"+
					" WHERE cluster=? AND position=?",
				versions[i], compression, data, rid.Cluster, rid.Position)
		}
		if err != nil {
			return nil, err
		}

		// keep the allocator ahead of stored positions.
		err = b.exec(ctx, tx,
			"INSERT INTO clusters (id, next_pos) VALUES (?, ?)"+
				" ON CONFLICT (id) DO UPDATE SET next_pos = "+
				b.dialect.Greatest+"(clusters.next_pos, excluded.next_pos)",
			rid.Cluster, rid.Position+1)
		if err != nil {
			return nil, err
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (b *Backend) Clusters(ctx context.Context) (_ []odb.ClusterInfo, err error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT cluster, COUNT(*) FROM records GROUP BY cluster ORDER BY cluster")
	if err != nil {
		return nil, err
	}
	defer func() {
		err2 := rows.Close()
		if err == nil {
			err = err2
		}
	}()

	var cv []odb.ClusterInfo
	for rows.Next() {
		var ci odb.ClusterInfo
		err = rows.Scan(&ci.ID, &ci.Records)
		if err != nil {
			return nil, err
		}
		cv = append(cv, ci)
	}
	return cv, rows.Err()
}
