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

// Package log provides logging with severity levels and tasks integration.
//
// Every message is prefixed with the stack of operational tasks found in
// the context (see internal/xcontext/task), e.g.
//
//	session #3: commit: storing 12 records
package log

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"lab.nexedi.com/kirr/odb/go/internal/xcontext/task"
)

// withTask prepends string describing current operational task stack to argv and returns it.
//
// see https://golang.org/issues/21388
func withTask(ctx context.Context, argv ...any) []any {
	task := task.Current(ctx).String()
	if task == "" {
		return argv
	}

	if len(argv) != 0 {
		task += ": "
	}

	return append([]any{task}, argv...)
}

// Depth allows to log with caller information taken from Depth frames up.
type Depth int

func (d Depth) Info(ctx context.Context, argv ...any) {
	glog.InfoDepth(int(d+1), withTask(ctx, argv...)...)
}

func (d Depth) Infof(ctx context.Context, format string, argv ...any) {
	glog.InfoDepth(int(d+1), withTask(ctx, fmt.Sprintf(format, argv...))...)
}

func (d Depth) Warning(ctx context.Context, argv ...any) {
	glog.WarningDepth(int(d+1), withTask(ctx, argv...)...)
}

func (d Depth) Warningf(ctx context.Context, format string, argv ...any) {
	glog.WarningDepth(int(d+1), withTask(ctx, fmt.Sprintf(format, argv...))...)
}

func (d Depth) Error(ctx context.Context, argv ...any) {
	glog.ErrorDepth(int(d+1), withTask(ctx, argv...)...)
}

func (d Depth) Errorf(ctx context.Context, format string, argv ...any) {
	glog.ErrorDepth(int(d+1), withTask(ctx, fmt.Sprintf(format, argv...))...)
}

// Verbose logs only if glog verbosity is >= its level.
type Verbose glog.Level

// V returns Verbose logger for level.
//
// Use it for high-volume diagnostics, e.g. every resolved link:
//
//	log.V(2).Infof(ctx, "resolve %s", rid)
func V(level glog.Level) Verbose { return Verbose(level) }

func (v Verbose) Infof(ctx context.Context, format string, argv ...any) {
	if !glog.V(glog.Level(v)) {
		return
	}
	glog.InfoDepth(1, withTask(ctx, fmt.Sprintf(format, argv...))...)
}

func Info(ctx context.Context, argv ...any)    { Depth(1).Info(ctx, argv...) }
func Warning(ctx context.Context, argv ...any) { Depth(1).Warning(ctx, argv...) }
func Error(ctx context.Context, argv ...any)   { Depth(1).Error(ctx, argv...) }

func Infof(ctx context.Context, format string, argv ...any) {
	Depth(1).Infof(ctx, format, argv...)
}

func Warningf(ctx context.Context, format string, argv ...any) {
	Depth(1).Warningf(ctx, format, argv...)
}

func Errorf(ctx context.Context, format string, argv ...any) {
	Depth(1).Errorf(ctx, format, argv...)
}

func Flush() { glog.Flush() }
