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
	"regexp"
	"sync"
)

// Class describes a record class.
//
// Classes form a multiple-inheritance hierarchy. Vertex classes are
// subclasses of V and edge classes are subclasses of E.
type Class struct {
	Name     string
	Abstract bool
	Strict   bool // reject properties not declared in the class hierarchy

	schema       *Schema
	superClasses []*Class
	subClasses   []*Class
	clusterIDs   []int32
	properties   map[string]*Property // declared in this class only
	order        []string
}

// Property describes a declared property of a class.
type Property struct {
	Name        string
	Type        Type
	LinkedClass string // class of linked/embedded records, "" = any
	LinkedType  Type   // type of container elements, Any = not constrained
	Mandatory   bool
	NotNull     bool
	ReadOnly    bool
	Min         string // "" = no bound; parsed according to Type
	Max         string
	Regexp      string

	owner  *Class
	reOnce sync.Once
	re     *regexp.Regexp
	reErr  error
}

// Owner returns the class that declares p.
func (p *Property) Owner() *Class { return p.owner }

// CompiledRegexp returns p.Regexp compiled to match the whole value.
func (p *Property) CompiledRegexp() (*regexp.Regexp, error) {
	p.reOnce.Do(func() {
		if p.Regexp != "" {
			p.re, p.reErr = regexp.Compile("^(?:" + p.Regexp + ")$")
		}
	})
	return p.re, p.reErr
}

func (c *Class) String() string { return c.Name }

// SuperClasses returns direct superclasses of c.
func (c *Class) SuperClasses() []*Class { return c.superClasses }

// SubClasses returns direct subclasses of c.
func (c *Class) SubClasses() []*Class { return c.subClasses }

// AllSubClasses returns all transitive subclasses of c, c excluded.
func (c *Class) AllSubClasses() []*Class {
	var all []*Class
	seen := map[*Class]bool{c: true}
	var walk func(*Class)
	walk = func(k *Class) {
		for _, sub := range k.subClasses {
			if seen[sub] {
				continue
			}
			seen[sub] = true
			all = append(all, sub)
			walk(sub)
		}
	}
	walk(c)
	return all
}

// IsSubClassOf returns whether c is name or inherits from it.
func (c *Class) IsSubClassOf(name string) bool {
	if c == nil {
		return false
	}
	if c.Name == name {
		return true
	}
	for _, super := range c.superClasses {
		if super.IsSubClassOf(name) {
			return true
		}
	}
	return false
}

// IsVertexType returns whether c is a vertex class.
func (c *Class) IsVertexType() bool { return c.IsSubClassOf(VertexClass) }

// IsEdgeType returns whether c is an edge class.
func (c *Class) IsEdgeType() bool { return c.IsSubClassOf(EdgeClass) }

// ClusterIDs returns ids of clusters records of c are stored in.
//
// The first cluster is the default one for new records.
func (c *Class) ClusterIDs() []int32 { return c.clusterIDs }

// DefaultClusterID returns cluster id for new records of c.
func (c *Class) DefaultClusterID() int32 { return c.clusterIDs[0] }

// Property returns property name declared in c or any of its superclasses.
func (c *Class) Property(name string) *Property {
	if p, ok := c.properties[name]; ok {
		return p
	}
	for _, super := range c.superClasses {
		if p := super.Property(name); p != nil {
			return p
		}
	}
	return nil
}

// DeclaredProperties returns properties declared in c itself in declaration order.
func (c *Class) DeclaredProperties() []*Property {
	pv := make([]*Property, 0, len(c.order))
	for _, name := range c.order {
		pv = append(pv, c.properties[name])
	}
	return pv
}

// Properties returns all properties of c including inherited ones.
//
// Properties declared closer to c override same-named inherited ones.
func (c *Class) Properties() []*Property {
	seen := map[string]bool{}
	var pv []*Property
	var walk func(*Class)
	walk = func(k *Class) {
		for _, p := range k.DeclaredProperties() {
			if !seen[p.Name] {
				seen[p.Name] = true
				pv = append(pv, p)
			}
		}
		for _, super := range k.superClasses {
			walk(super)
		}
	}
	walk(c)
	return pv
}

// CreateProperty declares new property in c.
func (c *Class) CreateProperty(name string, typ Type) (*Property, error) {
	if name == "" {
		return nil, fmt.Errorf("class %s: create property: empty name", c.Name)
	}
	if _, already := c.properties[name]; already {
		return nil, fmt.Errorf("class %s: property %q already exists", c.Name, name)
	}
	p := &Property{Name: name, Type: typ, owner: c}
	c.properties[name] = p
	c.order = append(c.order, name)
	return p, nil
}

// AddProperty is like CreateProperty but panics on error.
//
// It is handy for programmatic schema construction:
//
//	person.AddProperty("name", schema.String).Mandatory = true
func (c *Class) AddProperty(name string, typ Type) *Property {
	p, err := c.CreateProperty(name, typ)
	if err != nil {
		panic(err)
	}
	return p
}
