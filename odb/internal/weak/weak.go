// Copyright (C) 2018-2026  Nexedi SA and Contributors.
//                          Kirill Smelkov <kirr@nexedi.com>
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

// Package weak provides weak references with release notification.
//
// odb sessions use them for their live cache: a record stays in the cache
// only while the application holds it.
//
// Records routinely form reference cycles (containers point back to their
// owner), so references are built on runtime weak pointers and cleanups
// instead of finalizers: finalizers never run for objects in cycles.
package weak

import (
	"runtime"
	"weak"
)

// Ref is a weak reference to *T.
//
// Create one with NewRef and retrieve referenced object with Get.
type Ref[T any] struct {
	p weak.Pointer[T]
}

// NewRef creates new weak reference pointing to obj.
//
// onRelease, if not nil, is called from a runtime goroutine after obj has
// been garbage-collected. onRelease must not reference obj.
func NewRef[T any](obj *T, onRelease func()) *Ref[T] {
	w := &Ref[T]{p: weak.Make(obj)}
	if onRelease != nil {
		runtime.AddCleanup(obj, func(f func()) { f() }, onRelease)
	}
	return w
}

// Get returns object pointed to by this weak reference.
//
// If original object is still alive - it is returned.
// If not - nil is returned.
func (w *Ref[T]) Get() *T {
	return w.p.Value()
}
