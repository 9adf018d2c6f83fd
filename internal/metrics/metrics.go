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

// Package metrics defines prometheus metrics exported by odb.
//
// The metrics are registered on the default registry; it is up to the
// embedding program to serve them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsLoaded counts records loaded from storage, labeled by storage scheme.
	RecordsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odb_records_loaded_total",
			Help: "Total number of records loaded from storage",
		},
		[]string{"scheme"},
	)

	// DanglingLinks counts links which were resolved to a missing record.
	DanglingLinks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "odb_dangling_links_total",
			Help: "Total number of links resolved to a missing record",
		},
	)

	// DirtyMerges counts unions of two distinct dirty-tracking units.
	DirtyMerges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "odb_dirty_merges_total",
			Help: "Total number of dirty-manager unions",
		},
	)

	// ValidationFailures counts failed validations, labeled by violated constraint.
	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odb_validation_failures_total",
			Help: "Total number of record validation failures",
		},
		[]string{"constraint"},
	)

	// Commits counts session commits, labeled by outcome (ok | conflict | error).
	Commits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odb_commits_total",
			Help: "Total number of session commits",
		},
		[]string{"status"},
	)

	// EdgePromotions counts lightweight edges promoted to stateful edges.
	EdgePromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "odb_edge_promotions_total",
			Help: "Total number of lightweight edges promoted to records",
		},
	)
)
