package common

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/quintans/toolkit/log"
	"github.com/samterrell/SQLProcessor/db"
	"github.com/samterrell/SQLProcessor/dbx"
	"github.com/samterrell/SQLProcessor/transformers"
)

var logger = log.LoggerFor("github.com/samterrell/SQLProcessor/test")

func init() {
	log.Register("/", log.DEBUG, log.NewConsoleAppender(false), log.NewFileAppender("db_test.log", 0, true, true))
}

const (
	PUBLISHER_UTF8_NAME = "Edições Lusas"
	BOOK_UTF8_NAME      = "Era uma vez..."

	Firebird = "Firebird"
	Oracle   = "Oracle"
	MySQL    = "MySQL"
	Postgres = "Postgres"
)

// Schema creates the tables used by the Tester.
// Drop statements run first and their failures are ignored.
type Schema struct {
	Drop   []string
	Create []string
}

func InitDB(t testing.TB, driverName, dataSourceName string, schema Schema) *dbx.DBSource {
	src, err := dbx.Connect(context.Background(), driverName, dataSourceName, dbx.RetryOptions{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	CreateTables(t, src, schema)
	return src
}

func CreateTables(t testing.TB, src dbx.ConnectionSource, schema Schema) {
	logger.Infof("******* Creating tables *******\n")

	ctx := context.Background()
	for _, stmt := range schema.Drop {
		if _, err := db.MustProcessor("drop", stmt).Execute(ctx, src); err != nil {
			logger.Debugf("ignoring: %s", err)
		}
	}
	for _, stmt := range schema.Create {
		p, err := db.NewProcessor("create", stmt)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := p.Execute(ctx, src); err != nil {
			t.Fatalf("sql: %s\n%s", stmt, err)
		}
	}
}

type noIds struct{}

func (noIds) FetchLastId(context.Context, dbx.Connection, sql.Result) (int64, bool, error) {
	return 0, false, nil
}

type Tester struct {
	DbName     string
	Source     dbx.ConnectionSource
	Translator db.Translator
	// KeyColumn and KeyValue prefix the publisher insert, for databases
	// where the key comes from a sequence, eg "id, " and "publisher_seq.nextval, "
	KeyColumn string
	KeyValue  string
}

func (tt Tester) processor(t testing.TB, description, text string, options ...db.ProcessorOption) *db.Processor {
	options = append([]db.ProcessorOption{
		db.WithTranslator(tt.Translator),
		db.WithLogger(dbx.NewToolkitLogger("github.com/samterrell/SQLProcessor/test")),
	}, options...)
	p, err := db.NewProcessor(description, text, options...)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func (tt Tester) count(t testing.TB, text string, params map[string]interface{}) int64 {
	var n int64
	p := tt.processor(t, "count", text, db.OnRow(func(row *dbx.RestrictedCursor) (bool, error) {
		return false, row.Scan(&n)
	}))
	for k, v := range params {
		if err := p.Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.Execute(context.Background(), tt.Source); err != nil {
		t.Fatal(err)
	}
	return n
}

func (tt Tester) RunAll(t *testing.T) {
	tt.ResetDB(t)
	ids := tt.RunInsertReturningIds(t)
	tt.RunSelectUTF8(t, ids[0])
	tt.RunInsertBeans(t, ids[0])
	tt.RunSubstitution(t)
	tt.RunSetNull(t)
	tt.RunExpressions(t)
	tt.RunTransformer(t)
	tt.RunTransactionRollback(t)
	tt.RunNestedAbort(t)
	tt.RunTransactionCommit(t, ids[1])
}

func (tt Tester) ResetDB(t *testing.T) {
	for _, table := range []string{"book", "publisher"} {
		p := tt.processor(t, "reset", "DELETE FROM #table#")
		if err := p.Set("table", table); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Execute(context.Background(), tt.Source); err != nil {
			t.Fatal(err)
		}
	}
}

func (tt Tester) RunInsertReturningIds(t *testing.T) []int64 {
	p := tt.processor(t, "insert publisher", "INSERT INTO publisher (#key_column#name, address) VALUES (#key_value#|name|, |address|)")
	if err := p.Set("key_column", tt.KeyColumn); err != nil {
		t.Fatal(err)
	}
	if err := p.Set("key_value", tt.KeyValue); err != nil {
		t.Fatal(err)
	}
	p.SetDefaultNullType((*string)(nil), dbx.Varchar)
	p.SetBeans(
		&Publisher{Name: strPtr(PUBLISHER_UTF8_NAME)},
		&Publisher{Name: strPtr("Penguin"), Address: strPtr("London")},
	)

	n, err := p.Execute(context.Background(), tt.Source)
	if err != nil {
		t.Fatalf("Failed RunInsertReturningIds: %s", err)
	}
	if n != 2 {
		t.Fatalf("Failed RunInsertReturningIds: expected 2 rows, got %v", n)
	}
	ids := p.InsertedIds()
	if len(ids) != 2 {
		t.Fatalf("Failed RunInsertReturningIds: expected 2 ids, got %v", ids)
	}
	if ids[1] <= ids[0] {
		t.Fatalf("Failed RunInsertReturningIds: ids are not increasing %v", ids)
	}
	return ids
}

func (tt Tester) RunSelectUTF8(t *testing.T, id int64) {
	var name string
	p := tt.processor(t, "publisher by id", "SELECT name FROM publisher WHERE id = |id|", db.OnRow(func(row *dbx.RestrictedCursor) (bool, error) {
		return true, row.Scan(&name)
	}))
	if err := p.Set("id", id); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Execute(context.Background(), tt.Source); err != nil {
		t.Fatalf("Failed RunSelectUTF8: %s", err)
	}
	if name != PUBLISHER_UTF8_NAME {
		t.Fatalf("Failed RunSelectUTF8: expected %q, got %q", PUBLISHER_UTF8_NAME, name)
	}
}

func (tt Tester) RunInsertBeans(t *testing.T, publisherId int64) {
	p := tt.processor(t, "insert book", "INSERT INTO book (id, publisher_id, name, price, published) VALUES (|id|, |publisher_id|, |title|, |price|, |published|)",
		db.WithInsertedIdProvider(noIds{}),
	)
	p.SetDefaultNullType((*float64)(nil), dbx.Decimal)
	published := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	p.SetBeans(
		Book{Id: 1, PublisherId: publisherId, Name: BOOK_UTF8_NAME, Price: floatPtr(10.5), Published: published},
		Book{Id: 2, PublisherId: publisherId, Name: "Scrapbook", Published: published},
	)

	if _, err := p.Execute(context.Background(), tt.Source); err != nil {
		t.Fatalf("Failed RunInsertBeans: %s", err)
	}
	if n := tt.count(t, "SELECT count(*) FROM book WHERE price IS NULL", nil); n != 1 {
		t.Fatalf("Failed RunInsertBeans: expected 1 book without price, got %v", n)
	}
}

func (tt Tester) RunSubstitution(t *testing.T) {
	n := tt.count(t, "SELECT count(*) FROM #table# WHERE publisher_id = |pub|", map[string]interface{}{"table": "book", "pub": -1})
	if n != 0 {
		t.Fatalf("Failed RunSubstitution: expected no rows, got %v", n)
	}
	n = tt.count(t, "SELECT count(*) FROM #table#", map[string]interface{}{"table": "book"})
	if n != 2 {
		t.Fatalf("Failed RunSubstitution: expected 2 books, got %v", n)
	}
}

func (tt Tester) RunSetNull(t *testing.T) {
	p := tt.processor(t, "clear price", "UPDATE book SET price = |price| WHERE id = |id|")
	p.SetNull("price", dbx.Decimal)
	if err := p.Set("id", 1); err != nil {
		t.Fatal(err)
	}
	n, err := p.Execute(context.Background(), tt.Source)
	if err != nil {
		t.Fatalf("Failed RunSetNull: %s", err)
	}
	if n != 1 {
		t.Fatalf("Failed RunSetNull: expected 1 updated row, got %v", n)
	}
	if n := tt.count(t, "SELECT count(*) FROM book WHERE price IS NULL", nil); n != 2 {
		t.Fatalf("Failed RunSetNull: expected 2 books without price, got %v", n)
	}
}

func (tt Tester) RunExpressions(t *testing.T) {
	e := db.NewExpressionEvaluator()
	p := tt.processor(t, "rename", "UPDATE book SET name = |upper(b.Name)| WHERE id = |b.Id|", db.WithEvaluator(e))
	p.SetFeeder(db.Iterate(e, "b", Book{Id: 1, Name: "first"}, Book{Id: 2, Name: "second"}))

	n, err := p.Execute(context.Background(), tt.Source)
	if err != nil {
		t.Fatalf("Failed RunExpressions: %s", err)
	}
	if n != 2 {
		t.Fatalf("Failed RunExpressions: expected 2 updated rows, got %v", n)
	}
	if n := tt.count(t, "SELECT count(*) FROM book WHERE name = |name|", map[string]interface{}{"name": "SECOND"}); n != 1 {
		t.Fatalf("Failed RunExpressions: expected renamed book")
	}
}

func (tt Tester) RunTransformer(t *testing.T) {
	p := tt.processor(t, "publishers", "SELECT id, name, address FROM publisher ORDER BY id", db.WithTransformer(transformers.NewMapRowTransformer()))
	if _, err := p.Execute(context.Background(), tt.Source); err != nil {
		t.Fatalf("Failed RunTransformer: %s", err)
	}
	rows := transformers.Rows(p.Results())
	if len(rows) != 2 {
		t.Fatalf("Failed RunTransformer: expected 2 rows, got %v", len(rows))
	}
	var address interface{}
	for k, v := range rows[1] {
		if strings.EqualFold(k, "address") {
			address = v
		}
	}
	if address != "London" {
		t.Fatalf("Failed RunTransformer: expected London, got %v", address)
	}
}

func (tt Tester) insertBook(t *testing.T, id int64, name string) *db.Processor {
	p := tt.processor(t, "insert book", "INSERT INTO book (id, name) VALUES (|id|, |name|)", db.WithInsertedIdProvider(noIds{}))
	if err := p.Set("id", id); err != nil {
		t.Fatal(err)
	}
	if err := p.Set("name", name); err != nil {
		t.Fatal(err)
	}
	return p
}

func (tt Tester) RunTransactionRollback(t *testing.T) {
	broken := tt.processor(t, "broken", "INSERT INTO nowhere (id) VALUES (1)")
	tx := db.NewTransaction(tt.insertBook(t, 3, "lost"), broken)

	err := tx.Execute(context.Background(), tt.Source)
	if err == nil {
		t.Fatal("Failed RunTransactionRollback: expected an error")
	}
	if !tx.RolledBack() {
		t.Fatal("Failed RunTransactionRollback: not rolled back")
	}
	if n := tt.count(t, "SELECT count(*) FROM book", nil); n != 2 {
		t.Fatalf("Failed RunTransactionRollback: expected 2 books, got %v", n)
	}
}

func (tt Tester) RunNestedAbort(t *testing.T) {
	inner := db.NewTransaction(tt.insertBook(t, 4, "inner"))
	inner.Body(func(ctx context.Context, conn dbx.Connection) error {
		inner.Abort()
		return nil
	})
	outer := db.NewTransaction(tt.insertBook(t, 3, "outer"), inner)

	if err := outer.Execute(context.Background(), tt.Source); err != nil {
		t.Fatalf("Failed RunNestedAbort: %s", err)
	}
	if n := tt.count(t, "SELECT count(*) FROM book", nil); n != 2 {
		t.Fatalf("Failed RunNestedAbort: expected 2 books, got %v", n)
	}
}

func (tt Tester) RunTransactionCommit(t *testing.T, publisherId int64) {
	move := tt.processor(t, "move", "UPDATE book SET publisher_id = |pub| WHERE id = |id|")
	if err := move.Set("pub", publisherId); err != nil {
		t.Fatal(err)
	}
	if err := move.Set("id", 3); err != nil {
		t.Fatal(err)
	}

	tx := db.NewTransaction(tt.insertBook(t, 3, "kept"), move)
	if err := tx.Execute(context.Background(), tt.Source); err != nil {
		t.Fatalf("Failed RunTransactionCommit: %s", err)
	}
	if n := tt.count(t, "SELECT count(*) FROM book WHERE publisher_id = |pub|", map[string]interface{}{"pub": publisherId}); n != 1 {
		t.Fatalf("Failed RunTransactionCommit: expected 1 moved book, got %v", n)
	}
}

func (tt Tester) RunBench(b *testing.B) {
	p := tt.processor(b, "bench", "SELECT name FROM book WHERE id = |id|")
	if err := p.Set("id", 1); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Execute(context.Background(), tt.Source); err != nil {
			b.Fatal(err)
		}
	}
}
