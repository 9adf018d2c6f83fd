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
// loading schema from YAML

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"lab.nexedi.com/kirr/go123/xerr"
)

// File is the YAML representation of a schema, e.g.
//
//	classes:
//	  - name: Person
//	    superClasses: [V]
//	    properties:
//	      - {name: name, type: STRING, mandatory: true}
//	      - {name: born, type: DATE, readonly: true}
//	  - name: Knows
//	    superClasses: [E]
type File struct {
	Classes []ClassDef `yaml:"classes"`
}

type ClassDef struct {
	Name         string        `yaml:"name"`
	SuperClasses []string      `yaml:"superClasses,omitempty"`
	Abstract     bool          `yaml:"abstract,omitempty"`
	Strict       bool          `yaml:"strict,omitempty"`
	Clusters     []int32       `yaml:"clusters,omitempty"`
	Properties   []PropertyDef `yaml:"properties,omitempty"`
}

type PropertyDef struct {
	Name        string `yaml:"name"`
	Type        Type   `yaml:"type"`
	LinkedClass string `yaml:"linkedClass,omitempty"`
	LinkedType  Type   `yaml:"linkedType,omitempty"`
	Mandatory   bool   `yaml:"mandatory,omitempty"`
	NotNull     bool   `yaml:"notNull,omitempty"`
	ReadOnly    bool   `yaml:"readonly,omitempty"`
	Min         string `yaml:"min,omitempty"`
	Max         string `yaml:"max,omitempty"`
	Regexp      string `yaml:"regexp,omitempty"`
}

// Load reads schema definition in YAML from r.
//
// Classes may be listed in any order; a class is created once all its
// superclasses are.
func Load(r io.Reader) (_ *Schema, err error) {
	defer xerr.Context(&err, "schema: load")

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	err = dec.Decode(&f)
	if err != nil && err != io.EOF {
		return nil, err
	}

	s := New()
	err = s.Apply(&f)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile is Load from file at path.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Apply creates classes defined in f.
func (s *Schema) Apply(f *File) error {
	pending := f.Classes
	for len(pending) > 0 {
		var next []ClassDef
		for _, def := range pending {
			ready := true
			for _, super := range def.SuperClasses {
				if s.Class(super) == nil {
					ready = false
					break
				}
			}
			if !ready {
				next = append(next, def)
				continue
			}
			if err := s.applyClass(def); err != nil {
				return err
			}
		}

		if len(next) == len(pending) {
			return fmt.Errorf("class %s: unresolved superclasses %v", next[0].Name, next[0].SuperClasses)
		}
		pending = next
	}

	// verify linked classes after all classes are known
	for _, c := range s.Classes() {
		for _, p := range c.DeclaredProperties() {
			if p.LinkedClass != "" && s.Class(p.LinkedClass) == nil {
				return fmt.Errorf("class %s: property %s: linked class %q does not exist",
					c.Name, p.Name, p.LinkedClass)
			}
			if _, err := p.CompiledRegexp(); err != nil {
				return fmt.Errorf("class %s: property %s: %s", c.Name, p.Name, err)
			}
		}
	}
	return nil
}

func (s *Schema) applyClass(def ClassDef) error {
	c, err := s.CreateClassInClusters(def.Name, def.Clusters, def.SuperClasses...)
	if err != nil {
		return err
	}
	c.Abstract = def.Abstract
	c.Strict = def.Strict

	for _, pdef := range def.Properties {
		p, err := c.CreateProperty(pdef.Name, pdef.Type)
		if err != nil {
			return err
		}
		p.LinkedClass = pdef.LinkedClass
		p.LinkedType = pdef.LinkedType
		p.Mandatory = pdef.Mandatory
		p.NotNull = pdef.NotNull
		p.ReadOnly = pdef.ReadOnly
		p.Min = pdef.Min
		p.Max = pdef.Max
		p.Regexp = pdef.Regexp
	}
	return nil
}
