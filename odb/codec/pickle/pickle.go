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

// Package pickle provides record codec that serializes records as python pickles.
//
// Records pickled this way can be inspected with python tools. Importing
// the package registers the codec under name "pickle".
//
// A record is pickled as tuple (class, [(name, value), ...]) and every value
// as tuple (type, payload).
package pickle

import (
	"bytes"
	"fmt"
	"math/big"

	ogórek "github.com/kisielk/og-rek"

	"lab.nexedi.com/kirr/odb/go/odb"
	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

type codec struct{}

func (codec) Name() string { return "pickle" }

func (codec) Encode(rec *odb.Record) ([]byte, error) {
	w, err := odb.ToWire(rec)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	p := ogórek.NewEncoder(buf)
	if err := p.Encode(pickleRecord(w)); err != nil {
		return nil, fmt.Errorf("pickle: encode %s: %w", rec, err)
	}
	return buf.Bytes(), nil
}

func (codec) Decode(rec *odb.Record, data []byte, fields []string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pickle: decode %s: %w", rec.Identity(), err)
		}
	}()

	p := ogórek.NewDecoder(bytes.NewReader(data))
	xw, err := p.Decode()
	if err != nil {
		return err
	}
	w, err := unpickleRecord(xw)
	if err != nil {
		return err
	}
	return odb.FromWire(rec, w, fields)
}

func init() {
	odb.RegisterCodec(codec{})
}

// ---- WireRecord -> pickle ----

func pickleRecord(w *odb.WireRecord) ogórek.Tuple {
	fields := make([]interface{}, 0, len(w.Fields))
	for _, f := range w.Fields {
		fields = append(fields, ogórek.Tuple{f.Name, pickleValue(f.Value)})
	}
	return ogórek.Tuple{w.Class, fields}
}

func pickleValue(w odb.WireValue) ogórek.Tuple {
	var payload interface{}
	switch w.Type {
	case schema.Any:
		payload = ogórek.None{}
	case schema.Boolean:
		payload = w.Bool
	case schema.Byte, schema.Short, schema.Integer, schema.Long:
		payload = w.Int
	case schema.Float, schema.Double:
		payload = w.Float
	case schema.Binary:
		payload = string(w.Bytes)
	case schema.Embedded:
		payload = pickleRecord(w.Record)
	case schema.EmbeddedMap, schema.LinkMap:
		items := make([]interface{}, len(w.Items))
		for i, item := range w.Items {
			items[i] = ogórek.Tuple{w.Keys[i], pickleValue(item)}
		}
		payload = items
	default:
		if w.Type.IsMultiValue() {
			items := make([]interface{}, len(w.Items))
			for i, item := range w.Items {
				items[i] = pickleValue(item)
			}
			payload = items
		} else {
			payload = w.Str // strings, dates and links
		}
	}
	return ogórek.Tuple{int64(w.Type), payload}
}

// ---- pickle -> WireRecord ----

// asTuple accepts both tuple and list, as python does.
func asTuple(xv interface{}, n int) (ogórek.Tuple, error) {
	var t ogórek.Tuple
	switch xv := xv.(type) {
	case ogórek.Tuple:
		t = xv
	case []interface{}:
		t = ogórek.Tuple(xv)
	default:
		return nil, fmt.Errorf("expected tuple; got %T", xv)
	}
	if n >= 0 && len(t) != n {
		return nil, fmt.Errorf("expected tuple of %d; got len = %d", n, len(t))
	}
	return t, nil
}

func unpickleRecord(xv interface{}) (*odb.WireRecord, error) {
	t, err := asTuple(xv, 2)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	class, ok := t[0].(string)
	if !ok {
		return nil, fmt.Errorf("record: class is %T", t[0])
	}
	fields, err := asTuple(t[1], -1)
	if err != nil {
		return nil, fmt.Errorf("record fields: %w", err)
	}

	w := &odb.WireRecord{Class: class}
	for _, xf := range fields {
		f, err := asTuple(xf, 2)
		if err != nil {
			return nil, fmt.Errorf("field: %w", err)
		}
		name, ok := f[0].(string)
		if !ok {
			return nil, fmt.Errorf("field: name is %T", f[0])
		}
		v, err := unpickleValue(f[1])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		w.Fields = append(w.Fields, odb.WireField{Name: name, Value: v})
	}
	return w, nil
}

func unpickleValue(xv interface{}) (w odb.WireValue, err error) {
	t, err := asTuple(xv, 2)
	if err != nil {
		return w, err
	}
	typ, ok := xint64(t[0])
	if !ok {
		return w, fmt.Errorf("value type is %T", t[0])
	}
	w.Type = schema.Type(typ)
	payload := t[1]

	bad := func() (odb.WireValue, error) {
		return w, fmt.Errorf("%s: invalid payload %T", w.Type, payload)
	}

	switch w.Type {
	case schema.Any:
		// None

	case schema.Boolean:
		switch b := payload.(type) {
		case bool:
			w.Bool = b
		default:
			n, ok := xint64(payload)
			if !ok {
				return bad()
			}
			w.Bool = n != 0
		}

	case schema.Byte, schema.Short, schema.Integer, schema.Long:
		w.Int, ok = xint64(payload)
		if !ok {
			return bad()
		}

	case schema.Float, schema.Double:
		switch f := payload.(type) {
		case float64:
			w.Float = f
		default:
			n, ok := xint64(payload)
			if !ok {
				return bad()
			}
			w.Float = float64(n)
		}

	case schema.Binary:
		s, ok := payload.(string)
		if !ok {
			return bad()
		}
		w.Bytes = []byte(s)

	case schema.Embedded:
		w.Record, err = unpickleRecord(payload)
		if err != nil {
			return w, err
		}

	case schema.EmbeddedMap, schema.LinkMap:
		items, err := asTuple(payload, -1)
		if err != nil {
			return w, err
		}
		for _, xkv := range items {
			kv, err := asTuple(xkv, 2)
			if err != nil {
				return w, err
			}
			k, ok := kv[0].(string)
			if !ok {
				return w, fmt.Errorf("%s: key is %T", w.Type, kv[0])
			}
			v, err := unpickleValue(kv[1])
			if err != nil {
				return w, err
			}
			w.Keys = append(w.Keys, k)
			w.Items = append(w.Items, v)
		}

	default:
		if w.Type.IsMultiValue() {
			items, err := asTuple(payload, -1)
			if err != nil {
				return w, err
			}
			for _, xitem := range items {
				v, err := unpickleValue(xitem)
				if err != nil {
					return w, err
				}
				w.Items = append(w.Items, v)
			}
			break
		}
		s, ok := payload.(string)
		if !ok {
			return bad()
		}
		w.Str = s
	}
	return w, nil
}

// xint64 tries to convert unpickled value to int64.
//
// (ogórek decodes python long as big.Int)
func xint64(xv interface{}) (int64, bool) {
	switch v := xv.(type) {
	case int64:
		return v, true
	case *big.Int:
		if v.IsInt64() {
			return v.Int64(), true
		}
	}
	return 0, false
}
