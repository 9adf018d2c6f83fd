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

package weak

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestWeakRef(t *testing.T) {
	// node can point to itself: released objects in cycles must be collected too.
	type node struct {
		self *node
		_    [8]int64 // large enough not to go into tinyalloc
	}

	var nrelease atomic.Int32
	p := new(node)
	p.self = p
	w := NewRef(p, func() { nrelease.Add(1) })

	// perform GC + give cleanups a chance to run.
	GC := func() {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}

	if w.Get() != p {
		t.Fatal("Get: object is live, but Get does not return it")
	}
	GC()
	if w.Get() != p {
		t.Fatal("Get after GC: object is live, but Get does not return it")
	}
	runtime.KeepAlive(p)

	p = nil
	for i := 0; i < 100 && nrelease.Load() == 0; i++ {
		GC()
	}
	if got := w.Get(); got != nil {
		t.Fatalf("Get after release: %p;  want nil", got)
	}
	if n := nrelease.Load(); n != 1 {
		t.Fatalf("onRelease called %d times;  want 1", n)
	}
}
