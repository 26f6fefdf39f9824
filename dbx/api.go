package dbx

import (
	"context"
	"database/sql"

	coll "github.com/quintans/toolkit/collections"
)

// ConnectionSource hands out connections and takes them back.
// Every successful Acquire must be paired with exactly one Release.
type ConnectionSource interface {
	Acquire(ctx context.Context) (Connection, error)
	Release(conn Connection) error
}

// Connection is a live database session with JDBC like auto-commit control.
type Connection interface {
	Prepare(ctx context.Context, query string) (Statement, error)
	AutoCommit() (bool, error)
	SetAutoCommit(on bool) error
	Commit() error
	Rollback() error
}

type Statement interface {
	Query(ctx context.Context, args ...interface{}) (Cursor, error)
	Exec(ctx context.Context, args ...interface{}) (sql.Result, error)
	Close() error
}

// Cursor is satisfied by *sql.Rows
type Cursor interface {
	Next() bool
	NextResultSet() bool
	Err() error
	Close() error
	Scan(dest ...interface{}) error
	Columns() ([]string, error)
	ColumnTypes() ([]*sql.ColumnType, error)
}

var _ Cursor = (*sql.Rows)(nil)

// InsertedIdProvider fetches the key generated by the last insert executed on conn.
// res is the outcome of that insert. found is false when no key is available.
type InsertedIdProvider interface {
	FetchLastId(ctx context.Context, conn Connection, res sql.Result) (id int64, found bool, err error)
}

// Logger receives the statement log lines and the secondary failures
// that are reported but never returned.
type Logger interface {
	Info(text string)
	Warn(text string, cause error)
	Error(text string, cause error)
}

type IRowTransformer interface {
	// Initializes the collection that will hold the results
	// return Creates a Collection
	BeforeAll() coll.Collection

	Transform(row *RestrictedCursor) (interface{}, error)

	// Executes additional decision/action over the transformed object.
	// For example, It can decide not to include if the result is repeated...
	OnTransformation(result coll.Collection, instance interface{})

	AfterAll(result coll.Collection)
}
