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

package odbtools

// registry for all help topics

import "lab.nexedi.com/kirr/go123/prog"

const helpURL = `Almost every odb command works with a database.
A database is specified by URL of its storage:

- sqlite://<path>       for SQLite database; plain /path/to/file means the same
- postgres://<user>:<password>@<host>/<db>
                        for PostgreSQL database
- mem://<name>          for in-RAM storage (useful only inside one process)

Records are decoded with the codec given by -codec option (msgpack by
default), and checked against schema from -schema file, if given.
`

const helpRID = `A record is addressed by its id:

	- "#"
	- cluster
	- ":"
	- position

for example

	#12:0	- record at position 0 in cluster 12

The leading "#" may be omitted.
`

var helpTopics = prog.HelpRegistry{
	{Name: "url", Summary: "specifying database URL", Text: helpURL},
	{Name: "rid", Summary: "specifying record id", Text: helpRID},
}
