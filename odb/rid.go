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
// record identity + its formatting and parsing

import (
	"strconv"
	"strings"

	"lab.nexedi.com/kirr/go123/xstrings"
)

// RID is the identity of a stored record: the cluster it lives in and its
// position inside the cluster.
//
// A record which was never saved has NilRID. A record saved inside a
// not yet committed transaction has a temporary RID: valid cluster and
// position < -1. On commit the temporary position is replaced with a
// persistent one (>= 0).
type RID struct {
	Cluster  int32
	Position int64
}

// NilRID is the identity of records that have none: new records,
// embedded records and lightweight edges.
var NilRID = RID{-1, -1}

// IsValid returns whether rid refers to a cluster.
func (rid RID) IsValid() bool { return rid.Cluster != -1 }

// IsNew returns whether record with this identity was never committed.
func (rid RID) IsNew() bool { return rid.Position < 0 }

// IsTemporary returns whether rid was assigned at save time inside a not
// yet committed transaction.
func (rid RID) IsTemporary() bool { return rid.Cluster != -1 && rid.Position < -1 }

// IsPersistent returns whether rid addresses a committed record.
func (rid RID) IsPersistent() bool { return rid.Cluster >= 0 && rid.Position >= 0 }

// Identity makes RID an Identifiable.
func (rid RID) Identity() RID { return rid }

// String converts rid to string.
//
// RID string representation is "#<cluster>:<position>", e.g.
//
//	#12:0
//
// See also: ParseRID.
func (rid RID) String() string {
	return string(rid.XFmtString(nil))
}

func (rid RID) XFmtString(b []byte) []byte {
	b = append(b, '#')
	b = strconv.AppendInt(b, int64(rid.Cluster), 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, rid.Position, 10)
	return b
}

// ParseRID parses rid from string.
//
// Both "#12:0" and "12:0" forms are accepted.
//
// See also: RID.String .
func ParseRID(s string) (RID, error) {
	bad := func() (RID, error) {
		return NilRID, &ArgumentError{Op: "parse rid", Arg: s, Msg: "invalid record id"}
	}

	c, p, err := xstrings.Split2(strings.TrimPrefix(s, "#"), ":")
	if err != nil {
		return bad()
	}
	cluster, err := strconv.ParseInt(c, 10, 32)
	if err != nil {
		return bad()
	}
	pos, err := strconv.ParseInt(p, 10, 64)
	if err != nil {
		return bad()
	}
	return RID{int32(cluster), pos}, nil
}

// MarshalText/UnmarshalText make RID usable with encoding/json and friends.
func (rid RID) MarshalText() ([]byte, error) {
	return rid.XFmtString(nil), nil
}

func (rid *RID) UnmarshalText(text []byte) error {
	x, err := ParseRID(string(text))
	if err != nil {
		return err
	}
	*rid = x
	return nil
}

// Identifiable is anything that refers to a record: RID itself or *Record.
type Identifiable interface {
	Identity() RID
}

// sameLink returns whether a and b refer to the same record.
//
// Records without valid identity are the same only if they are the same object.
func sameLink(a, b Identifiable) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, aok := a.(*Record)
	rb, bok := b.(*Record)
	if aok && bok && ra == rb {
		return true
	}
	ida, idb := a.Identity(), b.Identity()
	return ida.IsValid() && ida == idb
}
