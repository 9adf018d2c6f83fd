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

package odb_test

// import at runtime codecs and storage drivers into odb tests; odb cannot
// import them itself due to cyclic dependency.
import (
	_ "lab.nexedi.com/kirr/odb/go/odb/codec/msgpack"
	_ "lab.nexedi.com/kirr/odb/go/odb/codec/pickle"
	_ "lab.nexedi.com/kirr/odb/go/odb/storage/mem"
)
