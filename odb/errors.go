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
// errors

import (
	"fmt"
)

// ValidationError is returned when a record violates a schema constraint.
type ValidationError struct {
	Record     RID
	Class      string
	Property   string
	Constraint string // mandatory | notnull | type | regexp | min | max | linkedclass | embedded | readonly | strict
	Msg        string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s%s: property %q: %s", e.Class, e.Record, e.Property, e.Msg)
}

// StateKind classifies StateError.
type StateKind int

const (
	IllegalState StateKind = iota // operation does not make sense for the record in its current state
	Unsupported                   // operation is not supported by the object, e.g. lightweight edge mutation
	DirtyState                    // operation requires a clean record or no active transaction
	NotBound                      // record or session is bound to another session / none
)

func (k StateKind) String() string {
	switch k {
	case IllegalState:
		return "illegal state"
	case Unsupported:
		return "unsupported"
	case DirtyState:
		return "dirty state"
	case NotBound:
		return "not bound"
	}
	return "?"
}

// StateError is returned when an operation is invoked on an object in a
// state where the operation is not allowed.
type StateError struct {
	Kind StateKind
	Op   string
	Msg  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func stateErr(kind StateKind, op, format string, argv ...any) *StateError {
	return &StateError{Kind: kind, Op: op, Msg: fmt.Sprintf(format, argv...)}
}

// ArgumentError is returned on invalid argument, e.g. a reserved property name.
type ArgumentError struct {
	Op  string
	Arg string
	Msg string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Op, e.Arg, e.Msg)
}

// NotFoundError is returned by storage when there is no record with RID.
type NotFoundError struct {
	RID RID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no such record", e.RID)
}

// ConflictError is returned when a record was concurrently modified:
// stored version differs from the version the change was based on.
type ConflictError struct {
	RID  RID
	Have int32 // version in storage
	Want int32 // version the change was based on
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflict: stored version %d, but change is based on version %d",
		e.RID, e.Have, e.Want)
}

// OpError is the error returned by storage operations.
type OpError struct {
	URL  string // URL of the storage
	Op   string // operation that failed
	Args any    // operation arguments, if any
	Err  error  // actual error that occurred during the operation
}

func (e *OpError) Error() string {
	s := e.URL + ": " + e.Op
	if e.Args != nil {
		s += fmt.Sprintf(" %s", e.Args)
	}
	s += ": " + e.Err.Error()
	return s
}

func (e *OpError) Cause() error  { return e.Err }
func (e *OpError) Unwrap() error { return e.Err }
