package db

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/quintans/faults"
	"github.com/samterrell/SQLProcessor/dbx"
)

// Unit is a piece of work run inside a Transaction. *Processor and *Transaction are units.
type Unit interface {
	Run(ctx context.Context, conn dbx.Connection) error
}

type UnitFunc func(ctx context.Context, conn dbx.Connection) error

func (f UnitFunc) Run(ctx context.Context, conn dbx.Connection) error {
	return f(ctx, conn)
}

var (
	_ Unit = (*Processor)(nil)
	_ Unit = (*Transaction)(nil)
	_ Unit = UnitFunc(nil)
)

// Transaction runs its units, in order, on one connection with auto-commit off,
// then commits. An error, or an Abort anywhere in the group or in a nested group,
// rolls everything back. The connection's auto-commit setting is restored on every path.
//
// Inside the group the connection handed to the units ignores Commit and SetAutoCommit,
// and treats Rollback as an Abort.
type Transaction struct {
	units      []Unit
	body       UnitFunc
	log        dbx.Logger
	aborted    bool
	rolledBack bool
}

func NewTransaction(units ...Unit) *Transaction {
	t := &Transaction{log: dbx.NopLogger{}}
	for _, u := range units {
		t.Add(u)
	}
	return t
}

func (t *Transaction) Add(u Unit) *Transaction {
	if u != nil {
		t.units = append(t.units, u)
	}
	return t
}

// Body sets work that runs after the added units.
func (t *Transaction) Body(fn UnitFunc) *Transaction {
	t.body = fn
	return t
}

func (t *Transaction) SetLogger(l dbx.Logger) *Transaction {
	if l != nil {
		t.log = l
	}
	return t
}

// Abort asks the running (or next) execution to roll back instead of committing.
func (t *Transaction) Abort() {
	t.aborted = true
}

func (t *Transaction) Aborted() bool {
	return t.aborted
}

// RolledBack reports whether the last execution ended in a rollback.
func (t *Transaction) RolledBack() bool {
	return t.rolledBack
}

func (t *Transaction) Execute(ctx context.Context, source dbx.ConnectionSource) error {
	conn, err := source.Acquire(ctx)
	if err != nil {
		return faults.Wrap(err)
	}
	defer func() {
		if rerr := source.Release(conn); rerr != nil {
			t.log.Warn("Failure returning the connection", rerr)
		}
	}()
	return t.ExecuteOn(ctx, conn)
}

func (t *Transaction) Run(ctx context.Context, conn dbx.Connection) error {
	return t.ExecuteOn(ctx, conn)
}

type txState struct {
	aborted bool
}

func (t *Transaction) ExecuteOn(ctx context.Context, conn dbx.Connection) (err error) {
	t.rolledBack = false
	defer func() {
		t.aborted = false
	}()

	stored, err := conn.AutoCommit()
	if err != nil {
		return faults.Wrap(dbx.NewTransactionError("Error reading auto-commit", err))
	}
	if stored {
		if err := conn.SetAutoCommit(false); err != nil {
			return faults.Wrap(dbx.NewTransactionError("Error setting auto-commit to false", err))
		}
	}
	defer func() {
		if serr := conn.SetAutoCommit(stored); serr != nil {
			if err == nil {
				err = faults.Wrap(dbx.NewTransactionError("Error restoring auto-commit", serr))
			} else {
				t.log.Warn("Failure restoring auto-commit", serr)
			}
		}
	}()

	defer func() {
		r := recover()
		if r != nil {
			logger.Errorf("Transaction end in panic: %v", r)
			t.rolledBack = true
			if rerr := conn.Rollback(); rerr != nil {
				logger.Errorf("failed to rollback: %v", rerr)
			}
			panic(r) // up you go
		}
	}()

	logger.Debugf("Transaction begin")
	state := &txState{}
	bodyErr := t.runIn(ctx, &txConnection{Connection: conn, state: state}, state)

	if bodyErr != nil {
		logger.Debug("Transaction end: ROLLBACK")
		t.rolledBack = true
		if rerr := conn.Rollback(); rerr != nil {
			t.log.Error("Failure rolling back transaction", rerr)
			var merr *multierror.Error
			merr = multierror.Append(merr, bodyErr, rerr)
			return faults.Wrap(dbx.NewTransactionError("Error executing transaction. Rollback failed", merr.ErrorOrNil()))
		}
		if isEngineError(bodyErr) {
			return bodyErr
		}
		return faults.Wrap(dbx.NewTransactionError("Error executing transaction. Rolled back", bodyErr))
	}

	if state.aborted {
		logger.Debug("Transaction end: ROLLBACK (aborted)")
		t.rolledBack = true
		if rerr := conn.Rollback(); rerr != nil {
			return faults.Wrap(dbx.NewTransactionError("Error rolling back transaction", rerr))
		}
		return nil
	}

	logger.Debug("Transaction end: COMMIT")
	if cerr := conn.Commit(); cerr != nil {
		return faults.Wrap(dbx.NewTransactionError("Error committing transaction", cerr))
	}
	return nil
}

// runIn executes the group, and nested groups, in the context of an enclosing execution.
func (t *Transaction) runIn(ctx context.Context, conn dbx.Connection, state *txState) error {
	for _, u := range t.units {
		if nested, ok := u.(*Transaction); ok {
			err := nested.runIn(ctx, conn, state)
			nested.aborted = false
			if err != nil {
				return err
			}
			continue
		}
		if err := u.Run(ctx, conn); err != nil {
			return err
		}
	}
	if t.body != nil {
		if err := t.body(ctx, conn); err != nil {
			return err
		}
	}
	if t.aborted {
		state.aborted = true
	}
	return nil
}

func isEngineError(err error) bool {
	var se *dbx.StatementError
	var te *dbx.TransactionError
	var ue *dbx.UnboundParameterError
	var us *dbx.UnboundSubstitutionError
	var ik *dbx.InvalidKeyError
	var uo *dbx.UnsupportedOperationError
	return errors.As(err, &se) || errors.As(err, &te) || errors.As(err, &ue) ||
		errors.As(err, &us) || errors.As(err, &ik) || errors.As(err, &uo)
}

// txConnection is the view of the connection given to the units of a transaction.
type txConnection struct {
	dbx.Connection
	state *txState
}

func (c *txConnection) AutoCommit() (bool, error) {
	return false, nil
}

func (c *txConnection) SetAutoCommit(bool) error {
	return nil
}

func (c *txConnection) Commit() error {
	return nil
}

func (c *txConnection) Rollback() error {
	c.state.aborted = true
	return nil
}
