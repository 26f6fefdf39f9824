package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/samterrell/SQLProcessor/dbx"
)

// events shared by the fakes, in the order they happened
type journal struct {
	entries []string
}

func (j *journal) add(format string, args ...interface{}) {
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

type fakeResult struct {
	rows int64
}

func (r fakeResult) LastInsertId() (int64, error) {
	return 0, fmt.Errorf("not supported")
}

func (r fakeResult) RowsAffected() (int64, error) {
	return r.rows, nil
}

type fakeCursor struct {
	j       *journal
	columns []string
	rows    [][]interface{}
	current int
}

func (c *fakeCursor) Next() bool {
	c.current++
	return c.current <= len(c.rows)
}

func (c *fakeCursor) NextResultSet() bool { return false }
func (c *fakeCursor) Err() error          { return nil }

func (c *fakeCursor) Close() error {
	c.j.add("cursor closed")
	return nil
}

func (c *fakeCursor) Scan(dest ...interface{}) error {
	row := c.rows[c.current-1]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destinations, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		*(d.(*interface{})) = row[i]
	}
	return nil
}

func (c *fakeCursor) Columns() ([]string, error)                { return c.columns, nil }
func (c *fakeCursor) ColumnTypes() ([]*sql.ColumnType, error) { return nil, nil }

type fakeStatement struct {
	conn  *fakeConnection
	query string
}

func (s *fakeStatement) Query(ctx context.Context, args ...interface{}) (dbx.Cursor, error) {
	s.conn.j.add("query %v", args)
	s.conn.args = append(s.conn.args, args)
	if s.conn.queryErr != nil {
		return nil, s.conn.queryErr
	}
	return &fakeCursor{j: s.conn.j, columns: s.conn.columns, rows: s.conn.rows}, nil
}

func (s *fakeStatement) Exec(ctx context.Context, args ...interface{}) (sql.Result, error) {
	s.conn.j.add("exec %v", args)
	s.conn.args = append(s.conn.args, args)
	if s.conn.execErr != nil {
		return nil, s.conn.execErr
	}
	return fakeResult{rows: s.conn.affected}, nil
}

func (s *fakeStatement) Close() error {
	s.conn.j.add("statement closed")
	return nil
}

type fakeConnection struct {
	j          *journal
	prepared   []string
	args       [][]interface{}
	autoCommit bool

	columns  []string
	rows     [][]interface{}
	affected int64

	prepareErr  error
	queryErr    error
	execErr     error
	commitErr   error
	rollbackErr error
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{j: &journal{}, autoCommit: true, affected: 1}
}

func (c *fakeConnection) Prepare(ctx context.Context, query string) (dbx.Statement, error) {
	c.j.add("prepare %s", query)
	if c.prepareErr != nil && strings.Contains(query, "broken") {
		return nil, c.prepareErr
	}
	c.prepared = append(c.prepared, query)
	return &fakeStatement{conn: c, query: query}, nil
}

func (c *fakeConnection) AutoCommit() (bool, error) {
	return c.autoCommit, nil
}

func (c *fakeConnection) SetAutoCommit(on bool) error {
	c.j.add("autocommit %v", on)
	c.autoCommit = on
	return nil
}

func (c *fakeConnection) Commit() error {
	c.j.add("commit")
	return c.commitErr
}

func (c *fakeConnection) Rollback() error {
	c.j.add("rollback")
	return c.rollbackErr
}

type fakeSource struct {
	conn       *fakeConnection
	acquireErr error
	acquired   int
	released   int
}

func (s *fakeSource) Acquire(ctx context.Context) (dbx.Connection, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	s.acquired++
	s.conn.j.add("acquire")
	return s.conn, nil
}

func (s *fakeSource) Release(conn dbx.Connection) error {
	s.released++
	s.conn.j.add("release")
	return nil
}

type recordingLogger struct {
	infos  []string
	warns  []string
	errors []string
}

func (l *recordingLogger) Info(text string) {
	l.infos = append(l.infos, text)
}

func (l *recordingLogger) Warn(text string, cause error) {
	l.warns = append(l.warns, text)
}

func (l *recordingLogger) Error(text string, cause error) {
	l.errors = append(l.errors, text)
}

type idProviderFunc func(ctx context.Context, conn dbx.Connection, res sql.Result) (int64, bool, error)

func (f idProviderFunc) FetchLastId(ctx context.Context, conn dbx.Connection, res sql.Result) (int64, bool, error) {
	return f(ctx, conn, res)
}
