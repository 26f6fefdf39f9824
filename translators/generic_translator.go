package translators

import (
	"context"
	"database/sql"

	"github.com/quintans/faults"
	"github.com/quintans/toolkit/log"
	"github.com/samterrell/SQLProcessor/db"
	"github.com/samterrell/SQLProcessor/dbx"
)

var logger = log.LoggerFor("github.com/samterrell/SQLProcessor/translators")

var (
	_ db.Translator          = (*GenericTranslator)(nil)
	_ dbx.InsertedIdProvider = (*GenericTranslator)(nil)
)

// GenericTranslator uses ? markers. Dialects embed it and override what differs,
// registering themselves with Init so the shared code calls the overrides.
type GenericTranslator struct {
	overrider db.Translator
	name      string
}

func NewGenericTranslator() *GenericTranslator {
	g := new(GenericTranslator)
	g.Init(g, "generic")
	return g
}

func (g *GenericTranslator) Init(overrider db.Translator, name string) {
	g.overrider = overrider
	g.name = name
}

func (g *GenericTranslator) Name() string {
	return g.name
}

func (g *GenericTranslator) GetPlaceholder(index int, name string) string {
	return "?"
}

func (g *GenericTranslator) GetAutoNumberQuery() string {
	return ""
}

// FetchLastId runs the dialect's auto number query on the connection that did the insert.
func (g *GenericTranslator) FetchLastId(ctx context.Context, conn dbx.Connection, res sql.Result) (int64, bool, error) {
	query := g.overrider.GetAutoNumberQuery()
	if query == "" {
		return 0, false, nil
	}
	return QueryLastId(ctx, conn, query)
}

// QueryLastId reads a single integer from query. A NULL or an empty result means no id.
func QueryLastId(ctx context.Context, conn dbx.Connection, query string) (int64, bool, error) {
	stmt, err := conn.Prepare(ctx, query)
	if err != nil {
		return 0, false, faults.Wrap(err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			logger.Errorf("failed to close auto number statement: %v", cerr)
		}
	}()

	cursor, err := stmt.Query(ctx)
	if err != nil {
		return 0, false, faults.Wrap(err)
	}
	defer cursor.Close()

	if !cursor.Next() {
		return 0, false, faults.Wrap(cursor.Err())
	}
	var id sql.NullInt64
	if err := cursor.Scan(&id); err != nil {
		return 0, false, faults.Wrap(err)
	}
	return id.Int64, id.Valid, nil
}

var _ dbx.InsertedIdProvider = ResultIdProvider{}

// ResultIdProvider uses the driver's sql.Result.LastInsertId.
// Drivers that do not support it (eg pq) yield no id.
type ResultIdProvider struct{}

func (ResultIdProvider) FetchLastId(ctx context.Context, conn dbx.Connection, res sql.Result) (int64, bool, error) {
	if res == nil {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		logger.Debugf("LastInsertId not available: %v", err)
		return 0, false, nil
	}
	return id, true, nil
}
