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

package sql

import (
	"testing"
)

func TestRebind(t *testing.T) {
	testv := []struct {
		dialect *Dialect
		query   string
		want    string
	}{
		{SQLite, "SELECT a FROM t WHERE x=? AND y=?", "SELECT a FROM t WHERE x=? AND y=?"},
		{Postgres, "SELECT a FROM t WHERE x=? AND y=?", "SELECT a FROM t WHERE x=$1 AND y=$2"},
		{Postgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range testv {
		have := tt.dialect.rebind(tt.query)
		if have != tt.want {
			t.Errorf("%s: rebind %q:\nhave: %q\nwant: %q", tt.dialect.Name, tt.query, have, tt.want)
		}
	}
}
