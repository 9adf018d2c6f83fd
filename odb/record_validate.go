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
// record: schema validation

import (
	"fmt"
	"strconv"
	"time"

	"lab.nexedi.com/kirr/odb/go/internal/metrics"
	"lab.nexedi.com/kirr/odb/go/odb/schema"
)

// Validate checks r against constraints of its class.
//
// Records without class, or with a class unknown to the schema, are always
// valid. Embedded records with class are validated recursively. The first
// violation is returned as *ValidationError.
func (r *Record) Validate() error {
	err := r.validate()
	if verr, ok := err.(*ValidationError); ok {
		metrics.ValidationFailures.WithLabelValues(verr.Constraint).Inc()
	}
	return err
}

func (r *Record) validate() error {
	if err := r.materialize(); err != nil {
		return err
	}
	class := r.Class()
	if class == nil {
		return nil
	}

	for _, p := range class.Properties() {
		if err := r.validateProperty(class, p); err != nil {
			return err
		}
	}

	if class.Strict {
		for _, name := range r.existingNames() {
			if class.Property(name) == nil && !isGraphReserved(r.Kind(), name) {
				return r.violation(class, name, "strict", "property is not declared in strict class")
			}
		}
	}

	// embedded records not covered by declared properties
	for _, name := range r.existingNames() {
		if class.Property(name) != nil {
			continue
		}
		if err := validateEmbedded(r.fields[name].value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Record) violation(class *schema.Class, name, constraint, format string, argv ...any) *ValidationError {
	return &ValidationError{
		Record:     r.rid,
		Class:      class.Name,
		Property:   name,
		Constraint: constraint,
		Msg:        fmt.Sprintf(format, argv...),
	}
}

func (r *Record) validateProperty(class *schema.Class, p *schema.Property) error {
	e := r.fields[p.Name]
	exists := e != nil && e.exists
	var value any
	if exists {
		value = e.value
	}

	if p.ReadOnly && e != nil && r.rid.IsPersistent() {
		if !valuesEqual(e.onLoadValue(), value) {
			return r.violation(class, p.Name, "readonly", "property is read-only")
		}
	}

	if !exists {
		if p.Mandatory {
			return r.violation(class, p.Name, "mandatory", "property is mandatory")
		}
		return nil
	}
	if value == nil {
		if p.NotNull {
			return r.violation(class, p.Name, "notnull", "property cannot be null")
		}
		return nil
	}

	if p.Type != schema.Any && !typesCompatible(e.typ, p.Type) {
		return r.violation(class, p.Name, "type", "value of type %s, declared %s", e.typ, p.Type)
	}

	if s, ok := value.(string); ok && p.Regexp != "" {
		re, err := p.CompiledRegexp()
		if err != nil {
			return r.violation(class, p.Name, "regexp", "%s", err)
		}
		if !re.MatchString(s) {
			return r.violation(class, p.Name, "regexp", "%q does not match %q", s, p.Regexp)
		}
	}

	if err := r.validateBound(class, p, "min", p.Min, value); err != nil {
		return err
	}
	if err := r.validateBound(class, p, "max", p.Max, value); err != nil {
		return err
	}

	switch x := value.(type) {
	case *Record:
		if x.embedded {
			if err := r.checkEmbeddedClass(class, p, x); err != nil {
				return err
			}
			return x.validate()
		}
		return r.checkLinkedClass(class, p, x)

	case RID:
		return r.checkLinkedClass(class, p, x)

	case TrackedMultiValue:
		for _, elem := range x.Values() {
			if p.LinkedType != schema.Any && x.Type().IsEmbedded() {
				if t := inferType(elem); elem != nil && !typesCompatible(t, p.LinkedType) {
					return r.violation(class, p.Name, "type", "element of type %s, declared %s", t, p.LinkedType)
				}
			}
			switch ev := elem.(type) {
			case *Record:
				if ev.embedded {
					if err := r.checkEmbeddedClass(class, p, ev); err != nil {
						return err
					}
					if err := ev.validate(); err != nil {
						return err
					}
					continue
				}
				if err := r.checkLinkedClass(class, p, ev); err != nil {
					return err
				}
			case RID:
				if err := r.checkLinkedClass(class, p, ev); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// typesCompatible returns whether value of type have satisfies declared type want.
func typesCompatible(have, want schema.Type) bool {
	switch {
	case have == want:
		return true
	case have.IsNumber() && want.IsNumber():
		return true
	case (have == schema.Date || have == schema.DateTime) && (want == schema.Date || want == schema.DateTime):
		return true
	}
	return false
}

// linkClass returns class of the record link refers to, or nil if unknown.
func (r *Record) linkClass(link Identifiable) *schema.Class {
	if rec, ok := link.(*Record); ok && rec.status != statusUnloaded {
		if c := rec.Class(); c != nil {
			return c
		}
	}
	rid := link.Identity()
	if r.sch != nil && rid.IsValid() {
		return r.sch.ClassByClusterID(rid.Cluster)
	}
	return nil
}

func (r *Record) checkLinkedClass(class *schema.Class, p *schema.Property, link Identifiable) error {
	if p.LinkedClass == "" {
		return nil
	}
	lc := r.linkClass(link)
	if lc == nil {
		return nil
	}
	if !lc.IsSubClassOf(p.LinkedClass) {
		return r.violation(class, p.Name, "linkedclass",
			"linked record %s of class %s is not %s", link.Identity(), lc.Name, p.LinkedClass)
	}
	return nil
}

func (r *Record) checkEmbeddedClass(class *schema.Class, p *schema.Property, rec *Record) error {
	ec := rec.Class()
	if ec != nil && (ec.IsVertexType() || ec.IsEdgeType()) {
		return r.violation(class, p.Name, "embedded", "class %s cannot be embedded", ec.Name)
	}
	if p.LinkedClass != "" && !ec.IsSubClassOf(p.LinkedClass) {
		return r.violation(class, p.Name, "embedded", "embedded record of class %q is not %s",
			rec.className, p.LinkedClass)
	}
	return nil
}

// validateEmbedded validates embedded records held by v.
func validateEmbedded(v any) error {
	switch x := v.(type) {
	case *Record:
		if x.embedded {
			return x.validate()
		}
	case TrackedMultiValue:
		if !x.Type().IsEmbedded() {
			return nil
		}
		for _, elem := range x.Values() {
			if err := validateEmbedded(elem); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateBound checks value against min or max bound.
//
// Numbers are compared by value, dates by time, strings, binaries and
// containers by length.
func (r *Record) validateBound(class *schema.Class, p *schema.Property, which, bound string, value any) error {
	if bound == "" {
		return nil
	}
	bad := func(format string, argv ...any) error {
		return r.violation(class, p.Name, which, format, argv...)
	}
	cmpOK := func(c int) bool {
		if which == "min" {
			return c >= 0
		}
		return c <= 0
	}

	switch x := value.(type) {
	case time.Time:
		b, err := toTime(bound)
		if err != nil {
			return bad("invalid bound %q: %s", bound, err)
		}
		if !cmpOK(x.Compare(b)) {
			return bad("%s is out of %s bound %s", x.Format(time.RFC3339), which, bound)
		}
		return nil

	case int8, int16, int32, int64, float32, float64:
		b, err := strconv.ParseFloat(bound, 64)
		if err != nil {
			return bad("invalid bound %q: %s", bound, err)
		}
		f, _ := toFloat64(x)
		if !cmpOK(cmpFloat(f, b)) {
			return bad("%v is out of %s bound %s", x, which, bound)
		}
		return nil
	}

	var n int
	switch x := value.(type) {
	case string:
		n = len([]rune(x))
	case []byte:
		n = len(x)
	case TrackedMultiValue:
		n = x.Len()
	default:
		return nil
	}
	b, err := strconv.Atoi(bound)
	if err != nil {
		return bad("invalid bound %q: %s", bound, err)
	}
	if !cmpOK(n - b) {
		return bad("length %d is out of %s bound %s", n, which, bound)
	}
	return nil
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
