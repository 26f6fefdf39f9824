package dbx

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/jmoiron/sqlx"
	"github.com/quintans/faults"
)

var (
	_ ConnectionSource = (*DBSource)(nil)
	_ ConnectionSource = (*FixedSource)(nil)
)

// DBSource acquires connections from a database/sql pool.
type DBSource struct {
	db        *sql.DB
	txOptions *sql.TxOptions
}

func SourceWithTxOptions(opts *sql.TxOptions) func(*DBSource) {
	return func(s *DBSource) {
		s.txOptions = opts
	}
}

func NewDBSource(db *sql.DB, options ...func(*DBSource)) *DBSource {
	s := &DBSource{db: db}
	for _, o := range options {
		o(s)
	}
	return s
}

// NewSqlxSource uses the pool behind an sqlx handle.
func NewSqlxSource(db *sqlx.DB, options ...func(*DBSource)) *DBSource {
	return NewDBSource(db.DB, options...)
}

// NewGormSource uses the pool behind a gorm handle.
func NewGormSource(db *gorm.DB, options ...func(*DBSource)) *DBSource {
	return NewDBSource(db.DB(), options...)
}

func (s *DBSource) DB() *sql.DB {
	return s.db
}

func (s *DBSource) Acquire(ctx context.Context) (Connection, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, faults.Wrap(err)
	}
	return NewSQLConnection(conn, s.txOptions), nil
}

func (s *DBSource) Release(conn Connection) error {
	if closer, ok := conn.(io.Closer); ok {
		return faults.Wrap(closer.Close())
	}
	return nil
}

func (s *DBSource) Close() error {
	return faults.Wrap(s.db.Close())
}

// Open opens the pool and wakes it up with a ping.
func Open(driverName, dataSourceName string) (*DBSource, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, faults.Wrap(err)
	}

	// wake up the database pool
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, faults.Wrap(err)
	}
	return NewDBSource(db), nil
}

type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Connect is Open with exponential backoff between attempts.
func Connect(ctx context.Context, driverName, dataSourceName string, opts RetryOptions) (*DBSource, error) {
	delay := opts.BaseDelay
	if delay == 0 {
		delay = time.Second
	}
	attempts := opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		var src *DBSource
		src, err = Open(driverName, dataSourceName)
		if err == nil {
			return src, nil
		}
		logger.Debugf("connection attempt %d to %s failed: %v", i+1, driverName, err)
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, faults.Wrap(ctx.Err())
		case <-time.After(delay):
			delay *= 2
			if opts.MaxDelay > 0 && delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}
	return nil, faults.Wrap(err)
}

// FixedSource always hands out the same connection and never closes it.
// Useful when the caller owns the connection lifecycle.
type FixedSource struct {
	conn Connection
}

func NewFixedSource(conn Connection) *FixedSource {
	return &FixedSource{conn: conn}
}

func (s *FixedSource) Acquire(ctx context.Context) (Connection, error) {
	return s.conn, nil
}

func (s *FixedSource) Release(conn Connection) error {
	return nil
}

var registry = struct {
	mu      sync.RWMutex
	sources map[string]ConnectionSource
}{
	sources: make(map[string]ConnectionSource),
}

// Register makes a source available by name. A later registration replaces an earlier one.
func Register(name string, source ConnectionSource) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.sources[name] = source
}

func Unregister(name string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.sources, name)
}

func Lookup(name string) (ConnectionSource, error) {
	registry.mu.RLock()
	source, ok := registry.sources[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, faults.Errorf("connection source %s not registered", name)
	}
	return source, nil
}
