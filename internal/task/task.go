// Copyright (C) 2017-2026  Nexedi SA and Contributors.
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

// Package task provides handy utilities to define & log tasks.
//
// Typical use:
//
//	func (s *Session) commit(ctx context.Context) (err error) {
//		defer task.Running(&ctx, "commit")(&err)
//		...
//	}
package task

import (
	"context"
	"fmt"

	"lab.nexedi.com/kirr/odb/go/internal/log"
	taskctx "lab.nexedi.com/kirr/odb/go/internal/xcontext/task"
)

// Running marks *ctxp as running a new task called name.
//
// It returns a function which, when called with a pointer to the task's
// result error, logs task completion and adds the task name to the error context.
func Running(ctxp *context.Context, name string) func(*error) {
	return running(ctxp, name)
}

// Runningf is Running with formatted task name.
func Runningf(ctxp *context.Context, format string, argv ...any) func(*error) {
	return running(ctxp, fmt.Sprintf(format, argv...))
}

func running(ctxp *context.Context, name string) func(*error) {
	ctx := taskctx.Running(*ctxp, name)
	*ctxp = ctx
	log.V(1).Infof(ctx, "start")

	return func(errp *error) {
		if *errp != nil {
			log.Depth(1).Warning(ctx, "## ", *errp)
		} else {
			log.V(1).Infof(ctx, "done")
		}

		// NOTE not *ctxp: the context it points to could have been
		// changed by the time this deferred function runs.
		taskctx.ErrContext(errp, ctx)
	}
}
