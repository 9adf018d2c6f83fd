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

// Package msgpack provides the msgpack record codec.
//
// It is the default codec of odb; importing the package registers it
// under name "msgpack".
package msgpack

import (
	"fmt"

	msgp "github.com/shamaton/msgpack"

	"lab.nexedi.com/kirr/odb/go/odb"
)

type codec struct{}

func (codec) Name() string { return "msgpack" }

func (codec) Encode(rec *odb.Record) ([]byte, error) {
	w, err := odb.ToWire(rec)
	if err != nil {
		return nil, err
	}
	data, err := msgp.Encode(w)
	if err != nil {
		return nil, fmt.Errorf("msgpack: encode %s: %w", rec, err)
	}
	return data, nil
}

func (codec) Decode(rec *odb.Record, data []byte, fields []string) error {
	var w odb.WireRecord
	if err := msgp.Decode(data, &w); err != nil {
		return fmt.Errorf("msgpack: decode %s: %w", rec.Identity(), err)
	}
	return odb.FromWire(rec, &w, fields)
}

func init() {
	odb.RegisterCodec(codec{})
}
