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

// Package odbtools provides tools for managing odb databases.
package odbtools

import "lab.nexedi.com/kirr/go123/prog"

// registry of all odbtools commands
var commands = prog.CommandRegistry{
	// NOTE the order commands are listed here is the order how they will appear in help
	{Name: "info", Summary: infoSummary, Usage: infoUsage, Main: infoMain},
	{Name: "cat", Summary: catSummary, Usage: catUsage, Main: catMain},
	{Name: "edges", Summary: edgesSummary, Usage: edgesUsage, Main: edgesMain},
}

// main odbtools driver
var Prog = prog.MainProg{
	Name:       "odb",
	Summary:    "Odb is a tool for managing odb databases",
	Commands:   commands,
	HelpTopics: helpTopics,
}
