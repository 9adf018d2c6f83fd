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

package transaction

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder is DataManager + Synchronizer that logs calls made to it.
type recorder struct {
	name string

	mu    sync.Mutex
	calls []string

	failCommit error
	failVote   error
	failBefore error
}

func (r *recorder) log(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) Abort(txn Transaction)    { r.log("abort") }
func (r *recorder) TPCBegin(txn Transaction) { r.log("tpc_begin") }
func (r *recorder) Commit(ctx context.Context, txn Transaction) error {
	r.log("commit")
	return r.failCommit
}
func (r *recorder) TPCVote(ctx context.Context, txn Transaction) error {
	r.log("tpc_vote")
	return r.failVote
}
func (r *recorder) TPCFinish(ctx context.Context, txn Transaction) error {
	r.log("tpc_finish")
	return nil
}
func (r *recorder) TPCAbort(ctx context.Context, txn Transaction) { r.log("tpc_abort") }

func (r *recorder) BeforeCompletion(ctx context.Context, txn Transaction) error {
	r.log("before")
	return r.failBefore
}
func (r *recorder) AfterCompletion(txn Transaction) { r.log("after") }

func TestBasic(t *testing.T) {
	ctx := context.Background()

	// Current(ø) -> panic
	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("Current(ø) -> not paniced")
			}

			if want := "transaction: no current transaction"; r != want {
				t.Fatalf("Current(ø) -> %q;  want %q", r, want)
			}
		}()

		Current(ctx)
	}()

	if txn := Lookup(ctx); txn != nil {
		t.Fatalf("Lookup(ø) -> %v;  want nil", txn)
	}

	txn, ctx := New(ctx)
	if txn_ := Current(ctx); txn_ != txn {
		t.Fatalf("New inconsistent with Current: txn = %#v;  txn_ = %#v", txn, txn_)
	}
	if txn.ID() == "" {
		t.Fatal("New: empty transaction id")
	}

	// subtransactions not allowed
	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("New(!ø) -> not paniced")
			}

			if want := "transaction: new: nested transactions not supported"; r != want {
				t.Fatalf("New(!ø) -> %q;  want %q", r, want)
			}
		}()

		_, _ = New(ctx)
	}()
}

func TestCommit(t *testing.T) {
	assert := require.New(t)

	txn, ctx := New(context.Background())
	r := &recorder{name: "r"}
	txn.Join(r)
	txn.Join(r) // double join is noop
	txn.RegisterSync(r)

	err := txn.Commit(ctx)
	assert.NoError(err)
	assert.Equal(Committed, txn.Status())
	assert.Equal([]string{"before", "tpc_begin", "commit", "tpc_vote", "tpc_finish", "after"}, r.calls)

	// completed transaction cannot be joined anymore
	func() {
		defer func() {
			r := recover()
			if want := "transaction: join: transaction completion already began"; r != want {
				t.Fatalf("join after commit -> %v;  want %q", r, want)
			}
		}()
		txn.Join(&recorder{})
	}()
}

func TestCommitVoteFail(t *testing.T) {
	assert := require.New(t)

	txn, ctx := New(context.Background())
	ok := &recorder{name: "ok"}
	bad := &recorder{name: "bad", failVote: errors.New("conflict")}
	txn.Join(ok)
	txn.Join(bad)

	err := txn.Commit(ctx)
	assert.Error(err)
	assert.True(strings.HasPrefix(err.Error(), "transaction: commit: "), "error: %q", err)
	assert.Contains(err.Error(), "conflict")
	assert.Equal(CommitFailed, txn.Status())
	for _, r := range []*recorder{ok, bad} {
		assert.Equal([]string{"tpc_begin", "commit", "tpc_vote", "tpc_abort"}, r.calls, r.name)
	}
}

func TestCommitBeforeCompletionFail(t *testing.T) {
	assert := require.New(t)

	txn, ctx := New(context.Background())
	dm := &recorder{}
	sync := &recorder{failBefore: errors.New("dirty")}
	txn.Join(dm)
	txn.RegisterSync(sync)

	err := txn.Commit(ctx)
	assert.Error(err)
	assert.Equal(CommitFailed, txn.Status())
	assert.Equal([]string{"abort"}, dm.calls)
	assert.Equal([]string{"before", "after"}, sync.calls)
}

func TestAbort(t *testing.T) {
	assert := require.New(t)

	txn, _ := New(context.Background())
	r := &recorder{}
	txn.Join(r)
	txn.RegisterSync(r)

	txn.Abort()
	assert.Equal(Aborted, txn.Status())
	assert.Equal([]string{"before", "abort", "after"}, r.calls)
}
