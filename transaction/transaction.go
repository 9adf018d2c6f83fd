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
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lab.nexedi.com/kirr/go123/xerr"
)

// transaction implements Transaction.
type transaction struct {
	mu     sync.Mutex
	status Status
	datav  []DataManager
	syncv  []Synchronizer

	// metadata
	id          string
	user        string
	description string
}

// ctxKey is the type private to transaction package, used as key in contexts.
type ctxKey struct{}

// getTxn returns transaction associated with provided context.
// nil is returned if there is no association.
func getTxn(ctx context.Context) *transaction {
	t := ctx.Value(ctxKey{})
	if t == nil {
		return nil
	}
	return t.(*transaction)
}

// currentTxn serves Current.
func currentTxn(ctx context.Context) Transaction {
	txn := getTxn(ctx)
	if txn == nil {
		panic("transaction: no current transaction")
	}
	return txn
}

// newTxn serves New.
func newTxn(ctx context.Context) (Transaction, context.Context) {
	if getTxn(ctx) != nil {
		panic("transaction: new: nested transactions not supported")
	}

	txn := &transaction{status: Active, id: uuid.NewString()}
	txnCtx := context.WithValue(ctx, ctxKey{}, txn)
	return txn, txnCtx
}

// Status implements Transaction.
func (txn *transaction) Status() Status {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	return txn.status
}

func (txn *transaction) setStatus(status Status) {
	txn.mu.Lock()
	txn.status = status
	txn.mu.Unlock()
}

// begin switches txn to completing state and extracts datav/syncv.
func (txn *transaction) begin(who string, status Status) ([]DataManager, []Synchronizer) {
	txn.mu.Lock()
	defer txn.mu.Unlock()

	txn.checkNotYetCompleting(who)
	txn.status = status

	datav := txn.datav
	syncv := txn.syncv
	txn.datav = nil
	txn.syncv = nil
	return datav, syncv
}

// forEach runs f for every element of xv in parallel and returns merged error.
func forEach[T any](ctx context.Context, xv []T, f func(ctx context.Context, x T) error) error {
	wg, ctx := errgroup.WithContext(ctx)
	errv := make([]error, len(xv))
	for i, x := range xv {
		wg.Go(func() error {
			errv[i] = f(ctx, x)
			return nil
		})
	}
	wg.Wait()
	return xerr.Merge(errv...)
}

// Commit implements Transaction.
func (txn *transaction) Commit(ctx context.Context) (err error) {
	defer xerr.Context(&err, "transaction: commit")

	datav, syncv := txn.begin("commit", Committing)

	defer func() {
		forEach(ctx, syncv, func(_ context.Context, sync Synchronizer) error {
			sync.AfterCompletion(txn)
			return nil
		})
	}()

	err = forEach(ctx, syncv, func(ctx context.Context, sync Synchronizer) error {
		return sync.BeforeCompletion(ctx, txn)
	})
	if err != nil {
		forEach(ctx, datav, func(_ context.Context, dm DataManager) error {
			dm.Abort(txn)
			return nil
		})
		txn.setStatus(CommitFailed)
		return err
	}

	forEach(ctx, datav, func(_ context.Context, dm DataManager) error {
		dm.TPCBegin(txn)
		return nil
	})

	abort := func(err error) error {
		forEach(context.WithoutCancel(ctx), datav, func(ctx context.Context, dm DataManager) error {
			dm.TPCAbort(ctx, txn)
			return nil
		})
		txn.setStatus(CommitFailed)
		return err
	}

	err = forEach(ctx, datav, func(ctx context.Context, dm DataManager) error {
		return dm.Commit(ctx, txn)
	})
	if err != nil {
		return abort(err)
	}

	err = forEach(ctx, datav, func(ctx context.Context, dm DataManager) error {
		return dm.TPCVote(ctx, txn)
	})
	if err != nil {
		return abort(err)
	}

	err = forEach(ctx, datav, func(ctx context.Context, dm DataManager) error {
		return dm.TPCFinish(ctx, txn)
	})
	if err != nil {
		txn.setStatus(CommitFailed)
		return err
	}

	txn.setStatus(Committed)
	return nil
}

// Abort implements Transaction.
func (txn *transaction) Abort() {
	datav, syncv := txn.begin("abort", Aborting)
	ctx := context.Background()

	// errors from BeforeCompletion cannot prevent abort.
	forEach(ctx, syncv, func(ctx context.Context, sync Synchronizer) error {
		return sync.BeforeCompletion(ctx, txn)
	})

	forEach(ctx, datav, func(_ context.Context, dm DataManager) error {
		dm.Abort(txn)
		return nil
	})

	txn.setStatus(Aborted)

	forEach(ctx, syncv, func(_ context.Context, sync Synchronizer) error {
		sync.AfterCompletion(txn)
		return nil
	})
}

// Join implements Transaction.
func (txn *transaction) Join(dm DataManager) {
	txn.mu.Lock()
	defer txn.mu.Unlock()

	txn.checkNotYetCompleting("join")

	for _, dm2 := range txn.datav {
		if dm2 == dm {
			return
		}
	}
	txn.datav = append(txn.datav, dm)
}

// RegisterSync implements Transaction.
func (txn *transaction) RegisterSync(sync Synchronizer) {
	txn.mu.Lock()
	defer txn.mu.Unlock()

	txn.checkNotYetCompleting("register sync")

	for _, sync2 := range txn.syncv {
		if sync2 == sync {
			return
		}
	}
	txn.syncv = append(txn.syncv, sync)
}

// checkNotYetCompleting asserts that transaction completion has not yet began.
//
// and panics if the assert fails.
// must be called with .mu held.
func (txn *transaction) checkNotYetCompleting(who string) {
	switch txn.status {
	case Active:
		// ok
	default:
		panic("transaction: " + who + ": transaction completion already began")
	}
}

// ---- meta ----

func (txn *transaction) ID() string          { return txn.id }
func (txn *transaction) User() string        { return txn.user }
func (txn *transaction) Description() string { return txn.description }

func (txn *transaction) SetUser(user string)        { txn.user = user }
func (txn *transaction) SetDescription(desc string) { txn.description = desc }
