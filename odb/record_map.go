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
// record: structural views, field paths and typed accessors

import (
	"encoding/json"
	"strconv"
	"strings"
)

// metadata keys of ToMap.
const (
	metaRID     = "@rid"
	metaVersion = "@version"
	metaClass   = "@class"
)

// ToMap returns properties of r as plain Go values.
//
// Containers become []any and map[string]any, embedded records become
// nested maps and links become their RID. With includeMetadata @rid,
// @version and @class keys are added.
func (r *Record) ToMap(includeMetadata bool) map[string]any {
	r.checkLoaded()
	m := make(map[string]any, len(r.fields)+3)
	if includeMetadata {
		if !r.embedded {
			m[metaRID] = r.rid
			m[metaVersion] = r.version
		}
		if r.className != "" {
			m[metaClass] = r.className
		}
	}
	for _, name := range r.existingNames() {
		m[name] = exportValue(r.fields[name].value, includeMetadata)
	}
	return m
}

func exportValue(v any, meta bool) any {
	switch x := v.(type) {
	case *Record:
		if x.embedded {
			return x.ToMap(meta)
		}
		return x.rid
	case keyedMultiValue:
		m := make(map[string]any, x.Len())
		for _, k := range x.Keys() {
			m[k] = exportValue(x.getRaw(k), meta)
		}
		return m
	case TrackedMultiValue:
		xv := x.Values()
		for i := range xv {
			xv[i] = exportValue(xv[i], meta)
		}
		return xv
	}
	return v
}

// ToJSON returns r with metadata as JSON object.
func (r *Record) ToJSON() ([]byte, error) {
	return json.Marshal(r.ToMap(true))
}

// ---- field paths ----

type pathStep struct {
	name  string
	index bool // [name]
}

// parsePath parses "a.b[2].c" or "a[key].b".
func parsePath(path string) ([]pathStep, error) {
	bad := func(msg string) error {
		return &ArgumentError{Op: "parse path", Arg: path, Msg: msg}
	}
	if path == "" {
		return nil, bad("empty path")
	}

	var steps []pathStep
	s := path
	afterIndex := false
	for len(s) > 0 {
		switch s[0] {
		case '[':
			if len(steps) == 0 {
				return nil, bad("path starts with '['")
			}
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, bad("missing ']'")
			}
			key := s[1:end]
			if key == "" {
				return nil, bad("empty index")
			}
			steps = append(steps, pathStep{name: key, index: true})
			s = s[end+1:]
			afterIndex = true
			continue

		case '.':
			if len(steps) == 0 {
				return nil, bad("path starts with '.'")
			}
			s = s[1:]
			if s == "" || s[0] == '.' || s[0] == '[' {
				return nil, bad("empty field name")
			}
		default:
			if afterIndex {
				return nil, bad("expected '.' or '[' after ']'")
			}
		}

		end := strings.IndexAny(s, ".[")
		if end < 0 {
			end = len(s)
		}
		name := s[:end]
		if name == "" {
			return nil, bad("empty field name")
		}
		if strings.ContainsRune(name, ']') {
			return nil, bad("unexpected ']'")
		}
		steps = append(steps, pathStep{name: name})
		s = s[end:]
		afterIndex = false
	}
	return steps, nil
}

// GetPath returns value at field path like "address.city", "tags[0]" or
// "attrs[color].name".
//
// Links along the path are followed. nil is returned if any element of the
// path is missing. Malformed paths give *ArgumentError.
func (r *Record) GetPath(path string) (any, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	var cur any = r
	for _, step := range steps {
		if cur == nil {
			return nil, nil
		}
		cur = pathLookup(r, cur, step)
	}
	if rid, ok := cur.(RID); ok {
		if rec, found, ok := r.resolve(rid); ok {
			if !found {
				return nil, nil
			}
			return rec, nil
		}
	}
	return cur, nil
}

func pathLookup(r *Record, cur any, step pathStep) any {
	if rid, ok := cur.(RID); ok {
		rec, found, ok := r.resolve(rid)
		if !ok || !found {
			return nil
		}
		cur = rec
	}

	switch x := cur.(type) {
	case *Record:
		if step.index {
			return nil
		}
		return x.GetProperty(step.name)
	case *Map:
		v, _ := x.Get(step.name)
		return v
	case *LinkMap:
		return nilIfNoLink(x.Get(step.name))
	}

	if !step.index {
		return nil
	}
	i, err := strconv.Atoi(step.name)
	if err != nil || i < 0 {
		return nil
	}
	switch x := cur.(type) {
	case *List:
		if i < x.Len() {
			return x.Get(i)
		}
	case *LinkList:
		if i < x.Len() {
			return nilIfNoLink(x.Get(i))
		}
	case TrackedMultiValue:
		if xv := x.Values(); i < len(xv) {
			return xv[i]
		}
	}
	return nil
}

// nilIfNoLink converts nil Identifiable to untyped nil.
func nilIfNoLink(link Identifiable) any {
	if link == nil {
		return nil
	}
	return link
}

// ---- typed accessors ----

// GetString returns value of string property name.
func (r *Record) GetString(name string) (string, bool) {
	s, ok := r.GetPropertyRaw(name).(string)
	return s, ok
}

// GetInt64 returns value of integer property name.
func (r *Record) GetInt64(name string) (int64, bool) {
	switch x := r.GetPropertyRaw(name).(type) {
	case int8, int16, int32, int64:
		n, _ := toInt64(x)
		return n, true
	}
	return 0, false
}

// GetBool returns value of boolean property name.
func (r *Record) GetBool(name string) (bool, bool) {
	b, ok := r.GetPropertyRaw(name).(bool)
	return b, ok
}

// GetLink returns link property name, resolved to *Record if possible.
func (r *Record) GetLink(name string) (Identifiable, bool) {
	if _, ok := r.GetPropertyRaw(name).(Identifiable); !ok || isEmbeddedRecord(r.GetPropertyRaw(name)) {
		return nil, false
	}
	link, ok := r.GetProperty(name).(Identifiable)
	return link, ok
}

// GetEmbedded returns embedded record property name.
func (r *Record) GetEmbedded(name string) (*Record, bool) {
	rec, ok := r.GetPropertyRaw(name).(*Record)
	if !ok || !rec.embedded {
		return nil, false
	}
	return rec, true
}
