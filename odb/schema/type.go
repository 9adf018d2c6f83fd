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

package schema

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type is the type of a record property.
type Type int8

const (
	Any Type = iota // not declared; inferred from value
	Boolean
	Integer // int32
	Short   // int16
	Long    // int64
	Float   // float32
	Double  // float64
	DateTime
	Date
	String
	Binary
	Byte // int8
	Embedded
	EmbeddedList
	EmbeddedSet
	EmbeddedMap
	Link
	LinkList
	LinkSet
	LinkMap
	LinkBag
)

var typeNames = [...]string{
	Any:          "ANY",
	Boolean:      "BOOLEAN",
	Integer:      "INTEGER",
	Short:        "SHORT",
	Long:         "LONG",
	Float:        "FLOAT",
	Double:       "DOUBLE",
	DateTime:     "DATETIME",
	Date:         "DATE",
	String:       "STRING",
	Binary:       "BINARY",
	Byte:         "BYTE",
	Embedded:     "EMBEDDED",
	EmbeddedList: "EMBEDDEDLIST",
	EmbeddedSet:  "EMBEDDEDSET",
	EmbeddedMap:  "EMBEDDEDMAP",
	Link:         "LINK",
	LinkList:     "LINKLIST",
	LinkSet:      "LINKSET",
	LinkMap:      "LINKMAP",
	LinkBag:      "LINKBAG",
}

func (t Type) String() string {
	if 0 <= t && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int8(t))
}

// ParseType parses type name as used in schema files, e.g. "LINKLIST".
//
// Parsing is case-insensitive.
func ParseType(s string) (Type, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == u {
			return Type(t), nil
		}
	}
	return Any, fmt.Errorf("invalid property type %q", s)
}

// MarshalYAML/UnmarshalYAML make Type usable directly in schema files.
func (t Type) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *Type) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	tt, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = tt
	return nil
}

// IsNumber returns whether t is an integer or floating point type.
func (t Type) IsNumber() bool {
	switch t {
	case Integer, Short, Long, Float, Double, Byte:
		return true
	}
	return false
}

// IsLink returns whether values of t refer to other records by identity.
func (t Type) IsLink() bool {
	switch t {
	case Link, LinkList, LinkSet, LinkMap, LinkBag:
		return true
	}
	return false
}

// IsMultiValue returns whether values of t are tracked containers.
func (t Type) IsMultiValue() bool {
	switch t {
	case EmbeddedList, EmbeddedSet, EmbeddedMap, LinkList, LinkSet, LinkMap, LinkBag:
		return true
	}
	return false
}

// IsEmbedded returns whether values of t are owned by the record.
func (t Type) IsEmbedded() bool {
	switch t {
	case Embedded, EmbeddedList, EmbeddedSet, EmbeddedMap:
		return true
	}
	return false
}
