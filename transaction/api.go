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

// Package transaction provides transactions with two-phase commit over
// several data managers.
//
// Overview
//
// A transaction is started with New, which creates transaction object and
// remembers it in a child of provided context:
//
//	txn, ctx := transaction.New(ctx)
//
// Data backends, e.g. odb sessions, are then opened under ctx and find the
// transaction with Current. The transaction must be eventually completed by
// user - either committed or aborted:
//
//	... // modify records
//	err := txn.Commit(ctx)
//
// A transaction is not tied to a goroutine. It is possible to use one
// transaction from several goroutines and to have several transactions
// in progress simultaneously.
//
// Two-phase commit
//
// Every data manager which modified data must first Join the transaction.
// At commit time the transaction runs the following phases, each phase
// fanned out to all joined data managers in parallel:
//
//	Synchronizer.BeforeCompletion
//	DataManager.TPCBegin
//	DataManager.Commit
//	DataManager.TPCVote
//	DataManager.TPCFinish
//	Synchronizer.AfterCompletion
//
// If Commit or TPCVote fails on any data manager, TPCAbort is called on all
// of them and the transaction ends in CommitFailed status.
package transaction

import (
	"context"
)

// Status describes status of a transaction.
type Status int

const (
	Active       Status = iota // transaction is in progress
	Committing                 // transaction commit started
	Committed                  // transaction commit finished successfully
	CommitFailed               // transaction commit resulted in error
	Aborting                   // transaction abort started
	Aborted                    // transaction was aborted by user
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Committing:
		return "committing"
	case Committed:
		return "committed"
	case CommitFailed:
		return "commit-failed"
	case Aborting:
		return "aborting"
	case Aborted:
		return "aborted"
	}
	return "?"
}

// Transaction represents a transaction.
//
// ... and should be completed by user via either Commit or Abort.
//
// Before completion, if there are changes to managed data, corresponding
// DataManager(s) must join the transaction to participate in the completion.
type Transaction interface {
	ID() string             // unique id of the transaction
	User() string           // user name associated with transaction
	Description() string    // description of transaction
	SetUser(user string)
	SetDescription(desc string)

	// Status returns current status of the transaction.
	Status() Status

	// Commit finalizes the transaction.
	//
	// Commit completes the transaction by executing the two-phase commit
	// algorithm for all DataManagers associated with the transaction.
	Commit(ctx context.Context) error

	// Abort aborts the transaction.
	//
	// Abort completes the transaction by executing Abort on all
	// DataManagers associated with it.
	Abort()

	// ---- part for data managers & friends ----

	// Join associates a DataManager to the transaction.
	//
	// Only associated data managers will participate in the transaction
	// completion - commit or abort. Joining the same data manager twice is a no-op.
	//
	// Join must be called before transaction completion begins.
	Join(dm DataManager)

	// RegisterSync registers sync to be notified in this transaction boundary events.
	RegisterSync(sync Synchronizer)
}

// New creates new transaction.
//
// The transaction is associated with returned txnCtx.
// Nested transactions are not supported.
func New(ctx context.Context) (txn Transaction, txnCtx context.Context) {
	return newTxn(ctx)
}

// Current returns current transaction.
//
// It panics if there is no transaction associated with provided context.
func Current(ctx context.Context) Transaction {
	return currentTxn(ctx)
}

// Lookup returns transaction associated with ctx, or nil.
func Lookup(ctx context.Context) Transaction {
	txn := getTxn(ctx)
	if txn == nil {
		return nil
	}
	return txn
}

// DataManager manages data and can transactionally persist it.
type DataManager interface {
	// Abort should abort all modifications to managed data.
	//
	// Abort is called by Transaction outside of two-phase commit, and only
	// if abort was caused by user requesting transaction abort.
	Abort(txn Transaction)

	// TPCBegin should begin commit of a transaction, starting the two-phase commit.
	TPCBegin(txn Transaction)

	// Commit should prepare modifications to managed data to be made persistent.
	//
	// This should include conflict detection. If TPCAbort is called later,
	// the changes must not persist.
	Commit(ctx context.Context, txn Transaction) error

	// TPCVote is the last chance for a data manager to vote 'no' by returning an error.
	TPCVote(ctx context.Context, txn Transaction) error

	// TPCFinish should make all changes of this transaction persist.
	//
	// An error here means the data manager could not keep consistency.
	TPCFinish(ctx context.Context, txn Transaction) error

	// TPCAbort should abandon all changes made in this transaction.
	TPCAbort(ctx context.Context, txn Transaction)
}

// Synchronizer is the interface to participate in transaction-boundary notifications.
type Synchronizer interface {
	// BeforeCompletion is called before txn is going to be completed -
	// either committed or aborted. An error prevents the commit.
	BeforeCompletion(ctx context.Context, txn Transaction) error

	// AfterCompletion is called after txn is completed.
	AfterCompletion(txn Transaction)
}
