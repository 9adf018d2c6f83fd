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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSchema = `
classes:
  - name: Friend
    superClasses: [Knows]
  - name: Person
    superClasses: [V]
    strict: true
    properties:
      - {name: name, type: string, mandatory: true, notNull: true}
      - {name: age, type: INTEGER, min: "0", max: "150"}
      - {name: email, type: STRING, regexp: "[^@]+@[^@]+"}
  - name: Knows
    superClasses: [E]
    clusters: [40, 41]
  - name: Address
    properties:
      - {name: city, type: STRING}
`

func TestLoad(t *testing.T) {
	assert := require.New(t)

	s, err := Load(strings.NewReader(testSchema))
	assert.NoError(err)

	person := s.Class("Person")
	assert.NotNil(person)
	assert.True(person.IsVertexType())
	assert.False(person.IsEdgeType())
	assert.True(person.Strict)

	name := person.Property("name")
	assert.NotNil(name)
	assert.Equal(String, name.Type)
	assert.True(name.Mandatory)
	assert.True(name.NotNull)
	assert.Same(person, name.Owner())

	re, err := person.Property("email").CompiledRegexp()
	assert.NoError(err)
	assert.True(re.MatchString("a@b"))
	assert.False(re.MatchString("xa@b@c"))

	knows := s.Class("Knows")
	friend := s.Class("Friend")
	assert.True(friend.IsEdgeType())
	assert.True(friend.IsSubClassOf("Knows"))
	assert.Equal([]int32{40, 41}, knows.ClusterIDs())
	assert.Same(knows, s.ClassByClusterID(41))
	assert.Equal([]*Class{knows}, s.Class(EdgeClass).AllSubClasses()[:1])
	assert.Equal([]*Class{friend}, knows.AllSubClasses())

	addr := s.Class("Address")
	assert.False(addr.IsVertexType() || addr.IsEdgeType())
	assert.NotEqual(addr.DefaultClusterID(), person.DefaultClusterID())
}

func TestLoadErrors(t *testing.T) {
	testv := []struct {
		yaml string
		err  string
	}{
		{"classes:\n  - {name: A, superClasses: [B]}\n", "schema: load: class A: unresolved superclasses [B]"},
		{"classes:\n  - {name: A}\n  - {name: A}\n", `schema: load: schema: class "A" already exists`},
		{"classes:\n  - name: A\n    properties:\n      - {name: x, type: WHATEVER}\n", "invalid property type"},
		{"classes:\n  - name: A\n    properties:\n      - {name: x, type: LINK, linkedClass: Z}\n", `linked class "Z" does not exist`},
		{"classes:\n  - {name: A, superClasses: [V, E]}\n", "cannot be both vertex and edge"},
		{"klasses: []\n", "field klasses not found"},
	}

	for _, tt := range testv {
		_, err := Load(strings.NewReader(tt.yaml))
		if err == nil || !strings.Contains(err.Error(), tt.err) {
			t.Errorf("load %q:\nhave: %v\nwant: ~%q", tt.yaml, err, tt.err)
		}
	}
}

func TestClassProperties(t *testing.T) {
	assert := require.New(t)

	s := New()
	base, err := s.CreateClass("Base")
	assert.NoError(err)
	base.AddProperty("a", Long)
	base.AddProperty("b", String)

	derived, err := s.CreateClass("Derived", "Base")
	assert.NoError(err)
	derived.AddProperty("b", Integer) // overrides Base.b
	derived.AddProperty("c", LinkBag)

	var names []string
	for _, p := range derived.Properties() {
		names = append(names, p.Name+":"+p.Type.String())
	}
	assert.Equal([]string{"b:INTEGER", "c:LINKBAG", "a:LONG"}, names)

	_, err = derived.CreateProperty("c", Any)
	assert.Error(err)

	_, err = s.CreateClass("Derived")
	assert.Error(err)
	_, err = s.CreateClassInClusters("Other", base.ClusterIDs())
	assert.Error(err)
}

func TestTypeParse(t *testing.T) {
	for typ := Any; typ <= LinkBag; typ++ {
		typ2, err := ParseType(strings.ToLower(typ.String()))
		if err != nil || typ2 != typ {
			t.Errorf("parse %q -> %v, %v;  want %v", typ, typ2, err, typ)
		}
	}
	if _, err := ParseType("nope"); err == nil {
		t.Errorf("parse nope: no error")
	}
}
