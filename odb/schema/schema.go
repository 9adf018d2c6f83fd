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

// Package schema provides class and property metadata for odb records.
//
// A Schema is a registry of classes. Every schema has two base classes: V
// for vertices and E for edges. Each class owns at least one cluster id;
// records of a class are stored in its clusters, and the class of a record
// can thus be found from its identity alone. Cluster 0 is reserved for
// records without class.
//
//	sch := schema.New()
//	person, _ := sch.CreateClass("Person", schema.VertexClass)
//	person.AddProperty("name", schema.String).Mandatory = true
//	knows, _ := sch.CreateClass("Knows", schema.EdgeClass)
//
// Schemas can also be loaded from YAML with Load.
package schema

import (
	"fmt"
	"sort"
	"sync"
)

const (
	VertexClass = "V" // base class of all vertex classes
	EdgeClass   = "E" // base class of all edge classes
)

// Schema is a registry of classes.
//
// It is safe to use Schema from multiple goroutines.
type Schema struct {
	mu          sync.RWMutex
	classes     map[string]*Class
	byCluster   map[int32]*Class
	nextCluster int32
}

// New creates new schema with base classes V and E.
func New() *Schema {
	s := &Schema{
		classes:     make(map[string]*Class),
		byCluster:   make(map[int32]*Class),
		nextCluster: 1,
	}
	s.mustCreate(VertexClass)
	s.mustCreate(EdgeClass)
	return s
}

func (s *Schema) mustCreate(name string, supers ...string) *Class {
	c, err := s.CreateClass(name, supers...)
	if err != nil {
		panic(err)
	}
	return c
}

// CreateClass creates new class with given superclasses and one new cluster.
func (s *Schema) CreateClass(name string, supers ...string) (*Class, error) {
	return s.CreateClassInClusters(name, nil, supers...)
}

// CreateClassInClusters creates new class stored in given clusters.
//
// If clusters is empty a new cluster is allocated.
func (s *Schema) CreateClassInClusters(name string, clusters []int32, supers ...string) (_ *Class, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return nil, fmt.Errorf("schema: create class: empty name")
	}
	if _, already := s.classes[name]; already {
		return nil, fmt.Errorf("schema: class %q already exists", name)
	}

	c := &Class{
		Name:       name,
		schema:     s,
		properties: make(map[string]*Property),
	}
	for _, sname := range supers {
		super, ok := s.classes[sname]
		if !ok {
			return nil, fmt.Errorf("schema: create class %s: superclass %q does not exist", name, sname)
		}
		c.superClasses = append(c.superClasses, super)
	}
	if c.IsVertexType() && c.IsEdgeType() {
		return nil, fmt.Errorf("schema: create class %s: class cannot be both vertex and edge", name)
	}

	for _, id := range clusters {
		if id <= 0 {
			return nil, fmt.Errorf("schema: create class %s: cluster id must be positive; have %d", name, id)
		}
		if other, taken := s.byCluster[id]; taken {
			return nil, fmt.Errorf("schema: create class %s: cluster %d already belongs to %s", name, id, other.Name)
		}
	}
	if len(clusters) == 0 {
		clusters = []int32{s.nextCluster}
	}
	for _, id := range clusters {
		s.byCluster[id] = c
		if id >= s.nextCluster {
			s.nextCluster = id + 1
		}
	}
	c.clusterIDs = append([]int32(nil), clusters...)

	for _, super := range c.superClasses {
		super.subClasses = append(super.subClasses, c)
	}
	s.classes[name] = c
	return c, nil
}

// Class returns class by name, or nil.
func (s *Schema) Class(name string) *Class {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classes[name]
}

// ClassByClusterID returns class owning cluster id, or nil.
func (s *Schema) ClassByClusterID(id int32) *Class {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byCluster[id]
}

// Classes returns all classes sorted by name.
func (s *Schema) Classes() []*Class {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cv := make([]*Class, 0, len(s.classes))
	for _, c := range s.classes {
		cv = append(cv, c)
	}
	sort.Slice(cv, func(i, j int) bool { return cv[i].Name < cv[j].Name })
	return cv
}
