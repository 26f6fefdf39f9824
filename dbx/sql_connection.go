package dbx

import (
	"context"
	"database/sql"

	"github.com/quintans/faults"
)

var (
	_ Connection = (*SQLConnection)(nil)
	_ Statement  = (*sqlStatement)(nil)
)

// SQLConnection adapts a pooled *sql.Conn to Connection.
//
// database/sql has no auto-commit switch, so it is emulated: while auto-commit
// is off, the next Prepare begins a *sql.Tx that lives until Commit, Rollback
// or auto-commit is turned back on. The transaction is bound to the context of
// that first Prepare.
type SQLConnection struct {
	conn       *sql.Conn
	tx         *sql.Tx
	autoCommit bool
	txOptions  *sql.TxOptions
}

func NewSQLConnection(conn *sql.Conn, txOptions *sql.TxOptions) *SQLConnection {
	return &SQLConnection{
		conn:       conn,
		autoCommit: true,
		txOptions:  txOptions,
	}
}

func (c *SQLConnection) Prepare(ctx context.Context, query string) (Statement, error) {
	if !c.autoCommit && c.tx == nil {
		logger.Debugf("BEGIN")
		tx, err := c.conn.BeginTx(ctx, c.txOptions)
		if err != nil {
			return nil, faults.Wrap(err)
		}
		c.tx = tx
	}

	var stmt *sql.Stmt
	var err error
	if c.tx != nil {
		stmt, err = c.tx.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.PrepareContext(ctx, query)
	}
	if err != nil {
		return nil, faults.Wrap(err)
	}
	return &sqlStatement{stmt: stmt}, nil
}

func (c *SQLConnection) AutoCommit() (bool, error) {
	return c.autoCommit, nil
}

func (c *SQLConnection) SetAutoCommit(on bool) error {
	if on == c.autoCommit {
		return nil
	}
	c.autoCommit = on
	if on {
		// switching auto-commit on commits pending work
		return c.Commit()
	}
	return nil
}

func (c *SQLConnection) Commit() error {
	if c.tx == nil {
		return nil
	}
	logger.Debugf("COMMIT")
	err := c.tx.Commit()
	c.tx = nil
	return faults.Wrap(err)
}

func (c *SQLConnection) Rollback() error {
	if c.tx == nil {
		return nil
	}
	logger.Debugf("ROLLBACK")
	err := c.tx.Rollback()
	c.tx = nil
	return faults.Wrap(err)
}

// InTransaction reports whether a transaction is open.
func (c *SQLConnection) InTransaction() bool {
	return c.tx != nil
}

// Close rolls back any open transaction and returns the connection to the pool.
func (c *SQLConnection) Close() error {
	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil {
			logger.Errorf("failed to rollback on close: %+v", err)
		}
		c.tx = nil
	}
	return faults.Wrap(c.conn.Close())
}

type sqlStatement struct {
	stmt *sql.Stmt
}

func (s *sqlStatement) Query(ctx context.Context, args ...interface{}) (Cursor, error) {
	rows, err := s.stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, faults.Wrap(err)
	}
	return rows, nil
}

func (s *sqlStatement) Exec(ctx context.Context, args ...interface{}) (sql.Result, error) {
	res, err := s.stmt.ExecContext(ctx, args...)
	return res, faults.Wrap(err)
}

func (s *sqlStatement) Close() error {
	return faults.Wrap(s.stmt.Close())
}
